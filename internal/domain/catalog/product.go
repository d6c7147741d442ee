package catalog

import (
	"strings"
	"time"

	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold is used when a product is created without one
const DefaultLowStockThreshold = 10

// Product is a sellable item. Its Stock is owned by the stock ledger: the
// only supported way to change it is ApplyStockChange, called while the
// ledger appends the matching movement.
type Product struct {
	shared.BaseAggregateRoot
	Name              string
	Barcode           string
	SKU               string
	Price             decimal.Decimal
	CostPrice         decimal.Decimal
	TaxRate           decimal.Decimal // percent, e.g. 16 for 16%
	Stock             int
	LowStockThreshold int
	IsActive          bool
}

// NewProduct creates an active product with zero stock
func NewProduct(name, barcode, sku string, price, costPrice, taxRate decimal.Decimal, lowStockThreshold int, actor shared.Actor) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("Product name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("Product name cannot exceed 200 characters")
	}
	if len(barcode) > 50 {
		return nil, shared.NewValidationError("Barcode cannot exceed 50 characters")
	}
	if price.IsNegative() || costPrice.IsNegative() {
		return nil, shared.NewValidationError("Prices cannot be negative")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewValidationError("Tax rate must be between 0 and 100")
	}
	if lowStockThreshold < 0 {
		return nil, shared.NewValidationError("Low stock threshold cannot be negative")
	}
	if lowStockThreshold == 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}

	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Barcode:           strings.TrimSpace(barcode),
		SKU:               strings.ToUpper(strings.TrimSpace(sku)),
		Price:             price,
		CostPrice:         costPrice,
		TaxRate:           taxRate,
		LowStockThreshold: lowStockThreshold,
		IsActive:          true,
	}
	p.AddDomainEvent(NewProductCreatedEvent(p, actor))
	return p, nil
}

// ApplyStockChange sets the stock level computed by the ledger
func (p *Product) ApplyStockChange(after int) {
	p.Stock = after
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// IsLowStock reports whether stock is at or below the alert threshold
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

// PriceWithTax returns the unit price including tax, rounded to cents
func (p *Product) PriceWithTax() decimal.Decimal {
	tax := p.Price.Mul(p.TaxRate).Div(decimal.NewFromInt(100))
	return p.Price.Add(tax).Round(2)
}

// Deactivate hides the product from new sales
func (p *Product) Deactivate() {
	if !p.IsActive {
		return
	}
	p.IsActive = false
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}
