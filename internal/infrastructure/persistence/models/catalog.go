package models

import (
	"github.com/retailpos/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product aggregate root.
type ProductModel struct {
	AggregateModel
	Name              string          `gorm:"type:varchar(200);not null"`
	Barcode           string          `gorm:"type:varchar(50);index"`
	SKU               *string         `gorm:"column:sku;type:varchar(50);uniqueIndex"` // NULL when unset
	Price             decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	CostPrice         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Stock             int             `gorm:"not null;default:0"`
	LowStockThreshold int             `gorm:"not null;default:10"`
	IsActive          bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Barcode:           m.Barcode,
		Price:             m.Price,
		CostPrice:         m.CostPrice,
		TaxRate:           m.TaxRate,
		Stock:             m.Stock,
		LowStockThreshold: m.LowStockThreshold,
		IsActive:          m.IsActive,
	}
	if m.SKU != nil {
		p.SKU = *m.SKU
	}
	return p
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.Barcode = p.Barcode
	m.SKU = nil
	if p.SKU != "" {
		sku := p.SKU
		m.SKU = &sku
	}
	m.Price = p.Price
	m.CostPrice = p.CostPrice
	m.TaxRate = p.TaxRate
	m.Stock = p.Stock
	m.LowStockThreshold = p.LowStockThreshold
	m.IsActive = p.IsActive
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
