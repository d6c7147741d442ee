package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	Barcode           string          `json:"barcode" binding:"max=50"`
	SKU               string          `json:"sku" binding:"max=50"`
	Price             decimal.Decimal `json:"price" binding:"required"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	LowStockThreshold int             `json:"low_stock_threshold" binding:"min=0"`
	// InitialStock is booked as a purchase movement when positive
	InitialStock int              `json:"initial_stock" binding:"min=0"`
	UnitCost     *decimal.Decimal `json:"unit_cost"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Barcode           string          `json:"barcode,omitempty"`
	SKU               string          `json:"sku,omitempty"`
	Price             decimal.Decimal `json:"price"`
	PriceWithTax      decimal.Decimal `json:"price_with_tax"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	IsLowStock        bool            `json:"is_low_stock"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:                p.ID,
		Name:              p.Name,
		Barcode:           p.Barcode,
		SKU:               p.SKU,
		Price:             p.Price,
		PriceWithTax:      p.PriceWithTax(),
		CostPrice:         p.CostPrice,
		TaxRate:           p.TaxRate,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		IsLowStock:        p.IsLowStock(),
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
}

// ToProductResponses converts a slice of products
func ToProductResponses(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out
}
