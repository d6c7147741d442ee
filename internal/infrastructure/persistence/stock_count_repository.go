package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockCountRepository implements StockCountRepository using GORM
type GormStockCountRepository struct {
	db *gorm.DB
}

// NewGormStockCountRepository creates a new GormStockCountRepository
func NewGormStockCountRepository(db *gorm.DB) *GormStockCountRepository {
	return &GormStockCountRepository{db: db}
}

// FindByID loads a count with its items
func (r *GormStockCountRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockCount, error) {
	return r.find(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads a count with its items, holding the count row lock
func (r *GormStockCountRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.StockCount, error) {
	return r.find(ctx, forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormStockCountRepository) find(ctx context.Context, db *gorm.DB, id uuid.UUID) (*inventory.StockCount, error) {
	var model models.StockCountModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.db.WithContext(ctx).
		Where("count_id = ?", id).
		Order("created_at ASC").
		Find(&model.Items).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists counts without their items
func (r *GormStockCountRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.StockCount, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.StockCountModel{})
	if status, ok := filterString(filter, "status"); ok {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.StockCountModel
	if err := applyPaging(query, filter, StockCountSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	counts := make([]inventory.StockCount, len(rows))
	for i := range rows {
		counts[i] = *rows[i].ToDomain()
	}
	return counts, total, nil
}

// Save inserts or updates the count header and upserts its items by
// (count_id, product_id)
func (r *GormStockCountRepository) Save(ctx context.Context, count *inventory.StockCount) error {
	model := models.StockCountModelFromDomain(count)
	db := r.db.WithContext(ctx)

	if count.Version <= 1 {
		if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
	} else {
		if err := updateVersioned(db, &models.StockCountModel{}, count.ID, count.Version,
			map[string]interface{}{
				"description":  model.Description,
				"status":       model.Status,
				"completed_by": model.CompletedBy,
				"completed_at": model.CompletedAt,
				"notes":        model.Notes,
				"updated_at":   model.UpdatedAt,
			}, "Stock count"); err != nil {
			return err
		}
	}

	if len(model.Items) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "count_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"system_quantity", "physical_quantity", "variance", "notes", "updated_at",
		}),
	}).Create(&model.Items).Error
}

// Ensure GormStockCountRepository implements StockCountRepository
var _ inventory.StockCountRepository = (*GormStockCountRepository)(nil)
