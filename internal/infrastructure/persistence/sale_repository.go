package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSaleRepository implements SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID loads a sale with its items
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate loads a sale with its items, holding the sale row lock
func (r *GormSaleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	return r.findOne(ctx, forUpdate(r.db.WithContext(ctx)).Where("id = ?", id))
}

// FindByNumber finds a sale by its sale number
func (r *GormSaleRepository) FindByNumber(ctx context.Context, saleNumber string) (*sales.Sale, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("sale_number = ?", saleNumber))
}

func (r *GormSaleRepository) findOne(ctx context.Context, query *gorm.DB) (*sales.Sale, error) {
	var model models.SaleModel
	if err := query.First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", model.ID).
		Order("created_at ASC, id ASC").
		Find(&model.Items).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists sale headers
func (r *GormSaleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]sales.Sale, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.SaleModel{})
	if status, ok := filterString(filter, "status"); ok {
		query = query.Where("status = ?", status)
	}
	if ps, ok := filterString(filter, "payment_status"); ok {
		query = query.Where("payment_status = ?", ps)
	}
	if cashier, ok := filterString(filter, "cashier_id"); ok {
		query = query.Where("cashier_id = ?", cashier)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("sale_number LIKE ? OR customer_name LIKE ? OR customer_phone LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.SaleModel
	if err := applyPaging(query, filter, SaleSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]sales.Sale, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a new sale with its items
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return err
	}
	if len(model.Items) == 0 {
		return nil
	}
	return db.Create(&model.Items).Error
}

// Save updates the sale header with an optimistic version check
func (r *GormSaleRepository) Save(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	return updateVersioned(r.db.WithContext(ctx), &models.SaleModel{}, sale.ID, sale.Version,
		map[string]interface{}{
			"status":          model.Status,
			"payment_status":  model.PaymentStatus,
			"amount_paid":     model.AmountPaid,
			"amount_refunded": model.AmountRefunded,
			"change_amount":   model.ChangeAmount,
			"notes":           model.Notes,
			"completed_at":    model.CompletedAt,
			"cancelled_at":    model.CancelledAt,
			"cancelled_by":    model.CancelledBy,
			"updated_at":      model.UpdatedAt,
		}, "Sale")
}

// Ensure GormSaleRepository implements SaleRepository
var _ sales.SaleRepository = (*GormSaleRepository)(nil)
