package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RefundStatus represents the status of a refund
type RefundStatus string

const (
	// RefundStatusPending indicates the refund awaits approval
	RefundStatusPending RefundStatus = "pending"
	// RefundStatusProcessing indicates the gateway refund call is in flight
	RefundStatusProcessing RefundStatus = "processing"
	// RefundStatusCompleted indicates money was returned
	RefundStatusCompleted RefundStatus = "completed"
	// RefundStatusFailed indicates the refund was rejected
	RefundStatusFailed RefundStatus = "failed"
)

// IsValid checks if the status is a valid RefundStatus
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusPending, RefundStatusProcessing, RefundStatusCompleted, RefundStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if the refund is in a terminal state
func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusCompleted || s == RefundStatusFailed
}

// Refund returns part or all of a successful payment
type Refund struct {
	shared.BaseAggregateRoot
	PaymentID         uuid.UUID
	Amount            decimal.Decimal
	Reason            string
	Status            RefundStatus
	RefundReference   string
	ExternalReference string
	RequestedBy       string
	ApprovedBy        string
	CompletedAt       *time.Time
	ErrorMessage      string
}

// NewRefund creates a pending refund request against a payment.
// refundable is the payment's unrefunded balance at request time.
func NewRefund(payment *Payment, amount, refundable decimal.Decimal, reason string, actor shared.Actor) (*Refund, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, shared.NewValidationError("payment is required")
	}
	if payment.Status != PaymentStatusSuccess {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Only successful payments can be refunded; payment is %s", payment.Status))
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("refund amount must be positive")
	}
	if amount.GreaterThan(refundable) {
		return nil, shared.NewDomainError(shared.CodeRefundExceedsBalance,
			fmt.Sprintf("Refund of %s exceeds refundable balance %s", amount.StringFixed(2), refundable.StringFixed(2)))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewValidationError("refund reason is required")
	}

	return &Refund{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentID:         payment.ID,
		Amount:            amount,
		Reason:            reason,
		Status:            RefundStatusPending,
		RefundReference:   shared.NewRefundReference(time.Now()),
		RequestedBy:       actor.String(),
	}, nil
}

// Approve moves the refund to processing; the gateway call follows
func (r *Refund) Approve(actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if r.Status != RefundStatusPending {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot approve a %s refund", r.Status))
	}
	r.Status = RefundStatusProcessing
	r.ApprovedBy = actor.String()
	r.touch(time.Now())
	return nil
}

// Complete marks the refund done. It reports whether anything changed so
// a repeated confirmation is a no-op.
func (r *Refund) Complete(externalRef string, actor shared.Actor) (bool, error) {
	if r.Status == RefundStatusCompleted {
		return false, nil
	}
	if r.Status != RefundStatusProcessing {
		return false, shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot complete a %s refund", r.Status))
	}
	now := time.Now()
	r.Status = RefundStatusCompleted
	r.ExternalReference = externalRef
	r.CompletedAt = &now
	r.ErrorMessage = ""
	r.touch(now)
	r.AddDomainEvent(NewRefundCompletedEvent(r, actor))
	return true, nil
}

// Fail rejects the refund from pending or processing
func (r *Refund) Fail(message string) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot fail a %s refund", r.Status))
	}
	now := time.Now()
	r.Status = RefundStatusFailed
	r.ErrorMessage = message
	r.CompletedAt = &now
	r.touch(now)
	return nil
}

func (r *Refund) touch(now time.Time) {
	r.UpdatedAt = now
	r.IncrementVersion()
}
