package finance

import (
	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypePayment = "Payment"
	AggregateTypeRefund  = "Refund"
)

// Finance event type constants
const (
	EventTypePaymentInitiated = "PaymentInitiated"
	EventTypePaymentResolved  = "PaymentResolved"
	EventTypeRefundCompleted  = "RefundCompleted"
)

// PaymentInitiatedEvent is raised when a payment is sent to its gateway
type PaymentInitiatedEvent struct {
	shared.BaseDomainEvent
	PaymentID            uuid.UUID       `json:"payment_id"`
	SaleID               uuid.UUID       `json:"sale_id"`
	Method               PaymentMethod   `json:"method"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference"`
}

// NewPaymentInitiatedEvent creates a new PaymentInitiatedEvent
func NewPaymentInitiatedEvent(p *Payment, actor shared.Actor) *PaymentInitiatedEvent {
	return &PaymentInitiatedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypePaymentInitiated, AggregateTypePayment, p.ID, actor),
		PaymentID:            p.ID,
		SaleID:               p.SaleID,
		Method:               p.Method,
		Amount:               p.Amount,
		TransactionReference: p.TransactionReference,
	}
}

// PaymentResolvedEvent is raised when a payment reaches a terminal outcome
type PaymentResolvedEvent struct {
	shared.BaseDomainEvent
	PaymentID            uuid.UUID       `json:"payment_id"`
	SaleID               uuid.UUID       `json:"sale_id"`
	Method               PaymentMethod   `json:"method"`
	Status               PaymentStatus   `json:"status"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference"`
}

// NewPaymentResolvedEvent creates a new PaymentResolvedEvent
func NewPaymentResolvedEvent(p *Payment, actor shared.Actor) *PaymentResolvedEvent {
	return &PaymentResolvedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypePaymentResolved, AggregateTypePayment, p.ID, actor),
		PaymentID:            p.ID,
		SaleID:               p.SaleID,
		Method:               p.Method,
		Status:               p.Status,
		Amount:               p.Amount,
		TransactionReference: p.TransactionReference,
	}
}

// RefundCompletedEvent is raised when money has been returned
type RefundCompletedEvent struct {
	shared.BaseDomainEvent
	RefundID        uuid.UUID       `json:"refund_id"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	RefundReference string          `json:"refund_reference"`
}

// NewRefundCompletedEvent creates a new RefundCompletedEvent
func NewRefundCompletedEvent(r *Refund, actor shared.Actor) *RefundCompletedEvent {
	return &RefundCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRefundCompleted, AggregateTypeRefund, r.ID, actor),
		RefundID:        r.ID,
		PaymentID:       r.PaymentID,
		Amount:          r.Amount,
		RefundReference: r.RefundReference,
	}
}
