package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MovementType represents the reason stock changed
type MovementType string

const (
	MovementTypePurchase   MovementType = "purchase"
	MovementTypeSale       MovementType = "sale"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeReturn     MovementType = "return"
	MovementTypeDamage     MovementType = "damage"
	MovementTypeTransfer   MovementType = "transfer"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypePurchase,
		MovementTypeSale,
		MovementTypeAdjustment,
		MovementTypeReturn,
		MovementTypeDamage,
		MovementTypeTransfer:
		return true
	}
	return false
}

// AllowsNegativeStock reports whether the movement may leave stock below zero.
// Only adjustments (count corrections) can do that.
func (t MovementType) AllowsNegativeStock() bool {
	return t == MovementTypeAdjustment
}

// StockMovement is an immutable ledger entry. For every product,
// Product.Stock equals the sum of Quantity over its movements and
// StockAfter equals StockBefore + Quantity.
type StockMovement struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	MovementType    MovementType
	Quantity        int // signed delta
	StockBefore     int
	StockAfter      int
	ReferenceNumber string
	UnitCost        *decimal.Decimal
	Notes           string
	CreatedBy       string
	CreatedAt       time.Time
}

// NewStockMovement builds a movement on top of the current stock level.
// It fails with ErrInsufficientStock when the result would be negative for
// a movement type that does not allow it.
func NewStockMovement(productID uuid.UUID, movementType MovementType, quantity, stockBefore int, reference string, unitCost *decimal.Decimal, notes string, actor shared.Actor) (*StockMovement, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product is required")
	}
	if !movementType.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("invalid movement type %q", movementType))
	}
	if quantity == 0 {
		return nil, shared.NewValidationError("movement quantity cannot be zero")
	}
	if unitCost != nil && unitCost.IsNegative() {
		return nil, shared.NewValidationError("unit cost cannot be negative")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	after := stockBefore + quantity
	if after < 0 && !movementType.AllowsNegativeStock() {
		return nil, shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: available %d, requested %d", stockBefore, -quantity))
	}

	return &StockMovement{
		ID:              uuid.New(),
		ProductID:       productID,
		MovementType:    movementType,
		Quantity:        quantity,
		StockBefore:     stockBefore,
		StockAfter:      after,
		ReferenceNumber: reference,
		UnitCost:        unitCost,
		Notes:           notes,
		CreatedBy:       actor.String(),
		CreatedAt:       time.Now(),
	}, nil
}
