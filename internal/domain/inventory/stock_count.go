package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
)

// CountStatus represents the status of a physical stock count
type CountStatus string

const (
	CountStatusInProgress CountStatus = "in_progress"
	CountStatusCompleted  CountStatus = "completed"
	CountStatusCancelled  CountStatus = "cancelled"
)

// IsTerminal returns true for completed and cancelled counts
func (s CountStatus) IsTerminal() bool {
	return s == CountStatusCompleted || s == CountStatusCancelled
}

// StockCountItem is one product line of a count. SystemQuantity is the
// ledger stock at the moment the line was recorded.
type StockCountItem struct {
	ID               uuid.UUID
	CountID          uuid.UUID
	ProductID        uuid.UUID
	SystemQuantity   int
	PhysicalQuantity int
	Variance         int
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StockCount is a physical count session
type StockCount struct {
	shared.BaseAggregateRoot
	CountNumber string
	Description string
	Status      CountStatus
	StartedBy   string
	CompletedBy string
	CompletedAt *time.Time
	Notes       string
	Items       []StockCountItem
}

// NewStockCount starts an in-progress count
func NewStockCount(description string, actor shared.Actor) (*StockCount, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if len(description) > 500 {
		return nil, shared.NewValidationError("description cannot exceed 500 characters")
	}
	return &StockCount{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CountNumber:       shared.NewStockCountNumber(time.Now()),
		Description:       strings.TrimSpace(description),
		Status:            CountStatusInProgress,
		StartedBy:         actor.String(),
		Items:             make([]StockCountItem, 0),
	}, nil
}

// AddItem records or replaces the line for productID. Only one line per
// product exists in a count.
func (c *StockCount) AddItem(productID uuid.UUID, systemQty, physicalQty int, notes string) (*StockCountItem, error) {
	if c.Status != CountStatusInProgress {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Items can only be recorded on an in-progress count")
	}
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product is required")
	}
	if physicalQty < 0 {
		return nil, shared.NewValidationError("physical quantity cannot be negative")
	}

	now := time.Now()
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			item := &c.Items[i]
			item.SystemQuantity = systemQty
			item.PhysicalQuantity = physicalQty
			item.Variance = physicalQty - systemQty
			item.Notes = notes
			item.UpdatedAt = now
			c.touch(now)
			return item, nil
		}
	}

	c.Items = append(c.Items, StockCountItem{
		ID:               uuid.New(),
		CountID:          c.ID,
		ProductID:        productID,
		SystemQuantity:   systemQty,
		PhysicalQuantity: physicalQty,
		Variance:         physicalQty - systemQty,
		Notes:            notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	c.touch(now)
	return &c.Items[len(c.Items)-1], nil
}

// ItemsWithVariance returns the lines whose physical quantity differs from the system quantity
func (c *StockCount) ItemsWithVariance() []StockCountItem {
	out := make([]StockCountItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Variance != 0 {
			out = append(out, item)
		}
	}
	return out
}

// Complete closes the count. Adjustment movements are produced by the caller
// in the same transaction.
func (c *StockCount) Complete(actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if c.Status != CountStatusInProgress {
		return shared.NewDomainError(shared.CodeInvalidState, "Only in-progress counts can be completed")
	}
	now := time.Now()
	c.Status = CountStatusCompleted
	c.CompletedBy = actor.String()
	c.CompletedAt = &now
	c.touch(now)
	c.AddDomainEvent(NewStockCountCompletedEvent(c, actor))
	return nil
}

// Cancel abandons the count without touching stock
func (c *StockCount) Cancel(actor shared.Actor, reason string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if c.Status != CountStatusInProgress {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Only in-progress counts can be cancelled")
	}
	c.Status = CountStatusCancelled
	c.CompletedBy = actor.String()
	c.Notes = reason
	c.touch(time.Now())
	return nil
}

func (c *StockCount) touch(now time.Time) {
	c.UpdatedAt = now
	c.IncrementVersion()
}
