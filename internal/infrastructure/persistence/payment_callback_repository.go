package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentCallbackRepository implements PaymentCallbackRepository using
// GORM. Rows are never deleted and only their processing columns change.
type GormPaymentCallbackRepository struct {
	db *gorm.DB
}

// NewGormPaymentCallbackRepository creates a new GormPaymentCallbackRepository
func NewGormPaymentCallbackRepository(db *gorm.DB) *GormPaymentCallbackRepository {
	return &GormPaymentCallbackRepository{db: db}
}

// Create persists a newly received callback
func (r *GormPaymentCallbackRepository) Create(ctx context.Context, callback *finance.PaymentCallback) error {
	return r.db.WithContext(ctx).Create(models.PaymentCallbackModelFromDomain(callback)).Error
}

// FindByID finds a callback by its ID
func (r *GormPaymentCallbackRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PaymentCallback, error) {
	var model models.PaymentCallbackModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads a callback holding its row lock
func (r *GormPaymentCallbackRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.PaymentCallback, error) {
	var model models.PaymentCallbackModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// SaveProcessing updates only the processing columns
func (r *GormPaymentCallbackRepository) SaveProcessing(ctx context.Context, callback *finance.PaymentCallback) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentCallbackModel{}).
		Where("id = ?", callback.ID).
		Updates(map[string]interface{}{
			"payment_id":    callback.PaymentID,
			"success":       callback.Success,
			"processed":     callback.Processed,
			"processed_at":  callback.ProcessedAt,
			"error_message": callback.ErrorMessage,
			"attempts":      callback.Attempts,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindUnprocessed lists callbacks received before cutoff that are still unprocessed, oldest first
func (r *GormPaymentCallbackRepository) FindUnprocessed(ctx context.Context, cutoff time.Time, limit int) ([]finance.PaymentCallback, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.PaymentCallbackModel
	if err := r.db.WithContext(ctx).
		Where("processed = ? AND received_at < ?", false, cutoff).
		Order("received_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCallbacks(rows), nil
}

// FindAll lists callbacks newest first
func (r *GormPaymentCallbackRepository) FindAll(ctx context.Context, filter shared.Filter) ([]finance.PaymentCallback, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PaymentCallbackModel{})
	if method, ok := filterString(filter, "method"); ok {
		query = query.Where("method = ?", method)
	}
	if processed, ok := filterBool(filter, "processed"); ok {
		query = query.Where("processed = ?", processed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.PaymentCallbackModel
	if err := applyPaging(query, filter, PaymentCallbackSortFields, "received_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toCallbacks(rows), total, nil
}

func toCallbacks(rows []models.PaymentCallbackModel) []finance.PaymentCallback {
	out := make([]finance.PaymentCallback, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormPaymentCallbackRepository implements PaymentCallbackRepository
var _ finance.PaymentCallbackRepository = (*GormPaymentCallbackRepository)(nil)
