package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormRefundRepository implements RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// FindByID finds a refund by its ID
func (r *GormRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Refund, error) {
	var model models.RefundModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads a refund holding its row lock
func (r *GormRefundRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Refund, error) {
	var model models.RefundModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByPayment lists refunds of a payment, oldest first
func (r *GormRefundRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]finance.Refund, error) {
	var rows []models.RefundModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]finance.Refund, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// SumByPayment sums refund amounts of a payment in the given statuses
func (r *GormRefundRepository) SumByPayment(ctx context.Context, paymentID uuid.UUID, statuses ...finance.RefundStatus) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).Model(&models.RefundModel{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("payment_id = ?", paymentID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var result struct {
		Total decimal.Decimal
	}
	if err := query.Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Create inserts a refund
func (r *GormRefundRepository) Create(ctx context.Context, refund *finance.Refund) error {
	return r.db.WithContext(ctx).Create(models.RefundModelFromDomain(refund)).Error
}

// Save updates a refund with an optimistic version check
func (r *GormRefundRepository) Save(ctx context.Context, refund *finance.Refund) error {
	model := models.RefundModelFromDomain(refund)
	return updateVersioned(r.db.WithContext(ctx), &models.RefundModel{}, refund.ID, refund.Version,
		map[string]interface{}{
			"status":             model.Status,
			"external_reference": model.ExternalReference,
			"approved_by":        model.ApprovedBy,
			"completed_at":       model.CompletedAt,
			"error_message":      model.ErrorMessage,
			"updated_at":         model.UpdatedAt,
		}, "Refund")
}

// Ensure GormRefundRepository implements RefundRepository
var _ finance.RefundRepository = (*GormRefundRepository)(nil)
