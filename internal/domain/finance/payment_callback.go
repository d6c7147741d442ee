package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CorrelationKind tells the reconciler how to find the payment a callback is about
type CorrelationKind string

const (
	// CorrelationMetadata matches on a PaymentMetadata (key, value) pair
	CorrelationMetadata CorrelationKind = "metadata"
	// CorrelationTransactionReference matches on our PAY- reference
	CorrelationTransactionReference CorrelationKind = "transaction_reference"
	// CorrelationNone means the payload could not be parsed
	CorrelationNone CorrelationKind = "none"
)

// CallbackNotification is the gateway-independent reading of a callback payload
type CallbackNotification struct {
	CorrelationKind  CorrelationKind
	CorrelationKey   MetadataKey // set when CorrelationKind is metadata
	CorrelationValue string
	Outcome          Outcome
	ResultCode       string
	ResultMessage    string
	TransactionID    string // gateway receipt / transaction id
	Amount           *decimal.Decimal
	PhoneNumber      string
}

// PaymentCallback is the durable record of an inbound gateway notification.
// The raw payload is stored before any processing and is never modified;
// only the processing columns change afterwards.
type PaymentCallback struct {
	ID               uuid.UUID
	Method           PaymentMethod
	RawPayload       string
	CorrelationKind  CorrelationKind
	CorrelationKey   MetadataKey
	CorrelationValue string
	Outcome          Outcome
	ResultCode       string
	ResultMessage    string
	TransactionID    string
	Amount           *decimal.Decimal
	PhoneNumber      string
	PaymentID        *uuid.UUID
	Success          bool
	Processed        bool
	ProcessedAt      *time.Time
	ErrorMessage     string
	Attempts         int
	ReceivedAt       time.Time
}

// NewPaymentCallback records a received payload. A nil notification (parse
// failure) yields a callback that is already processed and unsuccessful.
func NewPaymentCallback(method PaymentMethod, raw []byte, n *CallbackNotification, parseErr error) *PaymentCallback {
	now := time.Now()
	cb := &PaymentCallback{
		ID:              uuid.New(),
		Method:          method,
		RawPayload:      string(raw),
		CorrelationKind: CorrelationNone,
		ReceivedAt:      now,
	}
	if parseErr != nil || n == nil {
		msg := "unparseable callback payload"
		if parseErr != nil {
			msg = parseErr.Error()
		}
		cb.Processed = true
		cb.ProcessedAt = &now
		cb.ErrorMessage = msg
		return cb
	}

	cb.CorrelationKind = n.CorrelationKind
	cb.CorrelationKey = n.CorrelationKey
	cb.CorrelationValue = n.CorrelationValue
	cb.Outcome = n.Outcome
	cb.ResultCode = n.ResultCode
	cb.ResultMessage = n.ResultMessage
	cb.TransactionID = n.TransactionID
	cb.Amount = n.Amount
	cb.PhoneNumber = n.PhoneNumber
	return cb
}

// MarkMatched records the outcome of resolving the matched payment
func (c *PaymentCallback) MarkMatched(paymentID uuid.UUID, success bool, errMsg string) {
	now := time.Now()
	c.PaymentID = &paymentID
	c.Success = success
	c.Processed = true
	c.ProcessedAt = &now
	c.ErrorMessage = errMsg
}

// MarkUnmatched records that no payment corresponds to the callback
func (c *PaymentCallback) MarkUnmatched() {
	now := time.Now()
	c.Success = false
	c.Processed = true
	c.ProcessedAt = &now
	c.ErrorMessage = shared.ErrUnmatchedCallback.Message
}

// RecordAttempt counts a processing attempt that ended in a retryable error
func (c *PaymentCallback) RecordAttempt(errMsg string) {
	c.Attempts++
	c.ErrorMessage = errMsg
}
