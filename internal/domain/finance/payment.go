package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how the customer pays. Each method has exactly
// one gateway adapter in the GatewayRegistry.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodMpesa  PaymentMethod = "mpesa"
	PaymentMethodAirtel PaymentMethod = "airtel"
	PaymentMethodCard   PaymentMethod = "card"
)

// IsValid returns true if the method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMpesa, PaymentMethodAirtel, PaymentMethodCard:
		return true
	}
	return false
}

// RequiresPhone reports whether the method pushes a prompt to a phone number
func (m PaymentMethod) RequiresPhone() bool {
	return m == PaymentMethodMpesa || m == PaymentMethodAirtel
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentStatus is the state of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// IsTerminal returns true once the payment outcome is known
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Outcome is a gateway verdict on a payment
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomePending means the gateway has not decided yet
	OutcomePending Outcome = "pending"
)

// IsTerminal returns true for outcomes that resolve a payment
func (o Outcome) IsTerminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailed || o == OutcomeCancelled
}

// Status maps a terminal outcome to the payment status it produces
func (o Outcome) Status() PaymentStatus {
	switch o {
	case OutcomeSuccess:
		return PaymentStatusSuccess
	case OutcomeCancelled:
		return PaymentStatusCancelled
	default:
		return PaymentStatusFailed
	}
}

// Payment is one attempt to settle part or all of a sale through a gateway
type Payment struct {
	shared.BaseAggregateRoot
	SaleID               uuid.UUID
	Method               PaymentMethod
	Amount               decimal.Decimal
	Status               PaymentStatus
	TransactionReference string
	ExternalReference    string
	PhoneNumber          string
	AccountNumber        string
	ErrorMessage         string
	InitiatedBy          string
	InitiatedAt          *time.Time
	CompletedAt          *time.Time
	Metadata             []PaymentMetadata
}

// NewPayment creates a pending payment with a fresh PAY- reference
func NewPayment(saleID uuid.UUID, method PaymentMethod, amount decimal.Decimal, phone, account string, actor shared.Actor) (*Payment, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if saleID == uuid.Nil {
		return nil, shared.NewValidationError("sale is required")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unknown payment method %q", method))
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("payment amount must be positive")
	}
	if !amount.Round(2).Equal(amount) {
		return nil, shared.NewValidationError("payment amount cannot have more than 2 decimal places")
	}
	phone = strings.TrimSpace(phone)
	if method.RequiresPhone() && phone == "" {
		return nil, shared.NewValidationError(fmt.Sprintf("phone number is required for %s payments", method))
	}

	return &Payment{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		SaleID:               saleID,
		Method:               method,
		Amount:               amount,
		Status:               PaymentStatusPending,
		TransactionReference: shared.NewPaymentReference(time.Now()),
		PhoneNumber:          phone,
		AccountNumber:        strings.TrimSpace(account),
		InitiatedBy:          actor.String(),
		Metadata:             make([]PaymentMetadata, 0),
	}, nil
}

// BeginInitiation claims the single gateway Initiate call for this payment
func (p *Payment) BeginInitiation(actor shared.Actor) error {
	if p.Status != PaymentStatusPending || p.InitiatedAt != nil {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Payment has already been initiated")
	}
	now := time.Now()
	p.InitiatedAt = &now
	p.touch(now)
	p.AddDomainEvent(NewPaymentInitiatedEvent(p, actor))
	return nil
}

// MarkProcessing records that the gateway accepted the request and the
// outcome will arrive later
func (p *Payment) MarkProcessing(externalRef string, metadata map[MetadataKey]string) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot move payment from %s to processing", p.Status))
	}
	if externalRef != "" {
		p.ExternalReference = externalRef
	}
	for k, v := range metadata {
		if err := p.SetMetadata(k, v); err != nil {
			return err
		}
	}
	p.Status = PaymentStatusProcessing
	p.touch(time.Now())
	return nil
}

// Resolve applies a terminal outcome. It reports whether the payment
// changed: resolving again with the same outcome is a no-op, a different
// outcome is ErrConflictingResolution. A refunded payment counts as success.
func (p *Payment) Resolve(outcome Outcome, externalRef, message string, actor shared.Actor) (bool, error) {
	if !outcome.IsTerminal() {
		return false, shared.NewValidationError(fmt.Sprintf("outcome %q does not resolve a payment", outcome))
	}
	target := outcome.Status()

	if p.Status.IsTerminal() {
		current := p.Status
		if current == PaymentStatusRefunded {
			current = PaymentStatusSuccess
		}
		if current == target {
			return false, nil
		}
		return false, shared.NewDomainError(shared.CodeConflictingResolution,
			fmt.Sprintf("Payment %s is already %s; cannot resolve as %s", p.TransactionReference, p.Status, target))
	}

	now := time.Now()
	p.Status = target
	if externalRef != "" {
		p.ExternalReference = externalRef
	}
	if target == PaymentStatusSuccess {
		p.ErrorMessage = ""
	} else {
		p.ErrorMessage = message
	}
	p.CompletedAt = &now
	p.touch(now)
	p.AddDomainEvent(NewPaymentResolvedEvent(p, actor))
	return true, nil
}

// MarkRefunded flags a fully refunded payment
func (p *Payment) MarkRefunded() error {
	if p.Status == PaymentStatusRefunded {
		return nil
	}
	if p.Status != PaymentStatusSuccess {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Only successful payments can be refunded")
	}
	p.Status = PaymentStatusRefunded
	p.touch(time.Now())
	return nil
}

// MetadataValue returns the value stored under key
func (p *Payment) MetadataValue(key MetadataKey) (string, bool) {
	for _, m := range p.Metadata {
		if m.Key == key {
			return m.Value, true
		}
	}
	return "", false
}

// MetadataMap returns the metadata as a map for gateway calls
func (p *Payment) MetadataMap() map[MetadataKey]string {
	out := make(map[MetadataKey]string, len(p.Metadata))
	for _, m := range p.Metadata {
		out[m.Key] = m.Value
	}
	return out
}

// SetMetadata adds or replaces a correlation record
func (p *Payment) SetMetadata(key MetadataKey, value string) error {
	if !key.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("unknown metadata key %q", key))
	}
	for i := range p.Metadata {
		if p.Metadata[i].Key == key {
			p.Metadata[i].Value = value
			return nil
		}
	}
	p.Metadata = append(p.Metadata, PaymentMetadata{
		PaymentID: p.ID,
		Key:       key,
		Value:     value,
		CreatedAt: time.Now(),
	})
	return nil
}

func (p *Payment) touch(now time.Time) {
	p.UpdatedAt = now
	p.IncrementVersion()
}
