package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
)

// AlertStatus represents the lifecycle of a low-stock alert
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
	AlertStatusIgnored  AlertStatus = "ignored"
)

// StockAlert records that a product dropped to or below its threshold.
// A product has at most one active alert; alerts are closed by people, never
// by the ledger.
type StockAlert struct {
	shared.BaseAggregateRoot
	ProductID    uuid.UUID
	CurrentStock int
	Threshold    int
	Status       AlertStatus
	ResolvedBy   string
	ResolvedAt   *time.Time
}

// NewStockAlert creates an active alert for the observed stock level
func NewStockAlert(productID uuid.UUID, currentStock, threshold int, actor shared.Actor) *StockAlert {
	a := &StockAlert{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		CurrentStock:      currentStock,
		Threshold:         threshold,
		Status:            AlertStatusActive,
	}
	a.AddDomainEvent(NewLowStockAlertRaisedEvent(a, actor))
	return a
}

// Resolve marks the alert as handled (e.g. stock was reordered)
func (a *StockAlert) Resolve(actor shared.Actor) error {
	return a.close(AlertStatusResolved, actor)
}

// Ignore dismisses the alert
func (a *StockAlert) Ignore(actor shared.Actor) error {
	return a.close(AlertStatusIgnored, actor)
}

func (a *StockAlert) close(status AlertStatus, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if a.Status != AlertStatusActive {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Only active alerts can be "+string(status))
	}
	now := time.Now()
	a.Status = status
	a.ResolvedBy = actor.String()
	a.ResolvedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
	return nil
}
