package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLowStockProvider counts active alerts in the stock_alerts table
type GormLowStockProvider struct {
	db *gorm.DB
}

// NewGormLowStockProvider creates a new GormLowStockProvider
func NewGormLowStockProvider(db *gorm.DB) *GormLowStockProvider {
	return &GormLowStockProvider{db: db}
}

// CountActiveAlerts returns the number of alerts still in the active state
func (p *GormLowStockProvider) CountActiveAlerts(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_alerts").
		Where("status = ?", "active").
		Count(&count).Error
	return count, err
}
