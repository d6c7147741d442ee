package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID loads a payment with its metadata
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate loads a payment holding its row lock
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	return r.findOne(ctx, forUpdate(r.db.WithContext(ctx)).Where("id = ?", id))
}

// FindByTransactionReference finds a payment by its PAY- reference
func (r *GormPaymentRepository) FindByTransactionReference(ctx context.Context, reference string) (*finance.Payment, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("transaction_reference = ?", reference))
}

// FindByMetadata finds the payment owning a correlation record
func (r *GormPaymentRepository) FindByMetadata(ctx context.Context, key finance.MetadataKey, value string) (*finance.Payment, error) {
	sub := r.db.WithContext(ctx).Model(&models.PaymentMetadataModel{}).
		Select("payment_id").
		Where("key = ? AND value = ?", key, value)
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id IN (?)", sub))
}

func (r *GormPaymentRepository) findOne(ctx context.Context, query *gorm.DB) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := query.First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.loadMetadata(ctx, []*models.PaymentModel{&model}); err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormPaymentRepository) loadMetadata(ctx context.Context, payments []*models.PaymentModel) error {
	if len(payments) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(payments))
	byID := make(map[uuid.UUID]*models.PaymentModel, len(payments))
	for i, p := range payments {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	var rows []models.PaymentMetadataModel
	if err := r.db.WithContext(ctx).
		Where("payment_id IN ?", ids).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		if p, ok := byID[row.PaymentID]; ok {
			p.Metadata = append(p.Metadata, row)
		}
	}
	return nil
}

// FindBySale lists the payments of a sale
func (r *GormPaymentRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]finance.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomain(ctx, rows)
}

// FindPending lists payments still pending or processing
func (r *GormPaymentRepository) FindPending(ctx context.Context, filter shared.Filter) ([]finance.Payment, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("status IN ?", []finance.PaymentStatus{finance.PaymentStatusPending, finance.PaymentStatusProcessing})
	if method, ok := filterString(filter, "method"); ok {
		query = query.Where("method = ?", method)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.OrderBy == "" {
		filter.OrderDir = "asc"
	}
	var rows []models.PaymentModel
	if err := applyPaging(query, filter, PaymentSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	payments, err := r.toDomain(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *GormPaymentRepository) toDomain(ctx context.Context, rows []models.PaymentModel) ([]finance.Payment, error) {
	ptrs := make([]*models.PaymentModel, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	if err := r.loadMetadata(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]finance.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a payment with its metadata
func (r *GormPaymentRepository) Create(ctx context.Context, payment *finance.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return err
	}
	return r.upsertMetadata(db, model.Metadata)
}

// Save updates a payment with an optimistic version check and upserts its metadata
func (r *GormPaymentRepository) Save(ctx context.Context, payment *finance.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	db := r.db.WithContext(ctx)
	if err := updateVersioned(db, &models.PaymentModel{}, payment.ID, payment.Version,
		map[string]interface{}{
			"status":             model.Status,
			"external_reference": model.ExternalReference,
			"error_message":      model.ErrorMessage,
			"initiated_by":       model.InitiatedBy,
			"initiated_at":       model.InitiatedAt,
			"completed_at":       model.CompletedAt,
			"updated_at":         model.UpdatedAt,
		}, "Payment"); err != nil {
		return err
	}
	return r.upsertMetadata(db, model.Metadata)
}

func (r *GormPaymentRepository) upsertMetadata(db *gorm.DB, rows []models.PaymentMetadataModel) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rows).Error
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ finance.PaymentRepository = (*GormPaymentRepository)(nil)
