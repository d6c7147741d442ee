package inventory

import (
	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeProductStock = "ProductStock"
	AggregateTypeStockAlert   = "StockAlert"
	AggregateTypeStockCount   = "StockCount"
)

// Inventory event type constants
const (
	EventTypeStockMovementRecorded = "StockMovementRecorded"
	EventTypeLowStockAlertRaised   = "LowStockAlertRaised"
	EventTypeStockCountCompleted   = "StockCountCompleted"
)

// StockMovementRecordedEvent is raised for every ledger entry
type StockMovementRecordedEvent struct {
	shared.BaseDomainEvent
	MovementID   uuid.UUID    `json:"movement_id"`
	ProductID    uuid.UUID    `json:"product_id"`
	MovementType MovementType `json:"movement_type"`
	Quantity     int          `json:"quantity"`
	StockAfter   int          `json:"stock_after"`
	Reference    string       `json:"reference_number"`
}

// NewStockMovementRecordedEvent creates a new StockMovementRecordedEvent
func NewStockMovementRecordedEvent(m *StockMovement, actor shared.Actor) *StockMovementRecordedEvent {
	return &StockMovementRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockMovementRecorded, AggregateTypeProductStock, m.ProductID, actor),
		MovementID:      m.ID,
		ProductID:       m.ProductID,
		MovementType:    m.MovementType,
		Quantity:        m.Quantity,
		StockAfter:      m.StockAfter,
		Reference:       m.ReferenceNumber,
	}
}

// LowStockAlertRaisedEvent is raised when a new active alert is created
type LowStockAlertRaisedEvent struct {
	shared.BaseDomainEvent
	AlertID      uuid.UUID `json:"alert_id"`
	ProductID    uuid.UUID `json:"product_id"`
	CurrentStock int       `json:"current_stock"`
	Threshold    int       `json:"threshold"`
}

// NewLowStockAlertRaisedEvent creates a new LowStockAlertRaisedEvent
func NewLowStockAlertRaisedEvent(a *StockAlert, actor shared.Actor) *LowStockAlertRaisedEvent {
	return &LowStockAlertRaisedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLowStockAlertRaised, AggregateTypeStockAlert, a.ID, actor),
		AlertID:         a.ID,
		ProductID:       a.ProductID,
		CurrentStock:    a.CurrentStock,
		Threshold:       a.Threshold,
	}
}

// StockCountCompletedEvent is raised when a count is completed
type StockCountCompletedEvent struct {
	shared.BaseDomainEvent
	CountID       uuid.UUID `json:"count_id"`
	CountNumber   string    `json:"count_number"`
	ItemCount     int       `json:"item_count"`
	VarianceItems int       `json:"variance_items"`
}

// NewStockCountCompletedEvent creates a new StockCountCompletedEvent
func NewStockCountCompletedEvent(c *StockCount, actor shared.Actor) *StockCountCompletedEvent {
	return &StockCountCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockCountCompleted, AggregateTypeStockCount, c.ID, actor),
		CountID:         c.ID,
		CountNumber:     c.CountNumber,
		ItemCount:       len(c.Items),
		VarianceItems:   len(c.ItemsWithVariance()),
	}
}
