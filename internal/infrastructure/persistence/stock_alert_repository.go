package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockAlertRepository implements StockAlertRepository using GORM
type GormStockAlertRepository struct {
	db *gorm.DB
}

// NewGormStockAlertRepository creates a new GormStockAlertRepository
func NewGormStockAlertRepository(db *gorm.DB) *GormStockAlertRepository {
	return &GormStockAlertRepository{db: db}
}

// FindByID finds an alert by its ID
func (r *GormStockAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockAlert, error) {
	var model models.StockAlertModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads an alert holding its row lock
func (r *GormStockAlertRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.StockAlert, error) {
	var model models.StockAlertModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindActiveByProduct returns the active alert of a product
func (r *GormStockAlertRepository) FindActiveByProduct(ctx context.Context, productID uuid.UUID) (*inventory.StockAlert, error) {
	var model models.StockAlertModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, inventory.AlertStatusActive).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindActive lists active alerts
func (r *GormStockAlertRepository) FindActive(ctx context.Context, filter shared.Filter) ([]inventory.StockAlert, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.StockAlertModel{}).
		Where("status = ?", inventory.AlertStatusActive)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.StockAlertModel
	if err := applyPaging(query, filter, StockAlertSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	alerts := make([]inventory.StockAlert, len(rows))
	for i := range rows {
		alerts[i] = *rows[i].ToDomain()
	}
	return alerts, total, nil
}

// Save inserts a new alert or updates an existing one
func (r *GormStockAlertRepository) Save(ctx context.Context, alert *inventory.StockAlert) error {
	model := models.StockAlertModelFromDomain(alert)
	if alert.Version <= 1 {
		return r.db.WithContext(ctx).Create(model).Error
	}
	return updateVersioned(r.db.WithContext(ctx), &models.StockAlertModel{}, alert.ID, alert.Version,
		map[string]interface{}{
			"status":      model.Status,
			"resolved_by": model.ResolvedBy,
			"resolved_at": model.ResolvedAt,
			"updated_at":  model.UpdatedAt,
		}, "Stock alert")
}

// Ensure GormStockAlertRepository implements StockAlertRepository
var _ inventory.StockAlertRepository = (*GormStockAlertRepository)(nil)
