package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SaleStatus represents the lifecycle status of a sale
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// IsValid checks if the status is a valid SaleStatus
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusCompleted, SaleStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus summarises how much of the sale has been settled
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// DerivePaymentStatus computes the payment status from the settled amounts.
// It is the only place payment status is decided.
func DerivePaymentStatus(amountPaid, amountRefunded, total decimal.Decimal) PaymentStatus {
	switch {
	case amountRefunded.IsPositive() && amountRefunded.GreaterThanOrEqual(amountPaid):
		return PaymentStatusRefunded
	case amountPaid.IsPositive() && amountPaid.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	case amountPaid.IsZero() && total.IsZero():
		return PaymentStatusPaid
	case amountPaid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusUnpaid
	}
}

// SaleItem is a snapshot of a product at the moment of sale. It never
// changes after the sale is created.
type SaleItem struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Barcode     string
	UnitPrice   decimal.Decimal
	CostPrice   decimal.Decimal
	TaxRate     decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal // round2(UnitPrice * Quantity)
	TaxAmount   decimal.Decimal // round2(Subtotal * TaxRate / 100)
	Total       decimal.Decimal // Subtotal + TaxAmount
}

// NewSaleItem snapshots a product line and computes its amounts
func NewSaleItem(productID uuid.UUID, name, barcode string, unitPrice, costPrice, taxRate decimal.Decimal, quantity int) (SaleItem, error) {
	if productID == uuid.Nil {
		return SaleItem{}, shared.NewValidationError("product is required")
	}
	if quantity <= 0 {
		return SaleItem{}, shared.NewValidationError(fmt.Sprintf("quantity must be positive for %s", name))
	}
	if unitPrice.IsNegative() {
		return SaleItem{}, shared.NewValidationError("unit price cannot be negative")
	}
	if taxRate.IsNegative() {
		return SaleItem{}, shared.NewValidationError("tax rate cannot be negative")
	}

	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)

	return SaleItem{
		ID:          uuid.New(),
		ProductID:   productID,
		ProductName: name,
		Barcode:     barcode,
		UnitPrice:   unitPrice,
		CostPrice:   costPrice,
		TaxRate:     taxRate,
		Quantity:    quantity,
		Subtotal:    subtotal,
		TaxAmount:   tax,
		Total:       subtotal.Add(tax),
	}, nil
}

// Customer holds optional walk-in customer details
type Customer struct {
	Name  string
	Phone string
}

// Sale is the aggregate root for a till transaction.
// Total = Subtotal + TaxAmount - Discount, and PaymentStatus is always
// DerivePaymentStatus(AmountPaid, AmountRefunded, Total).
type Sale struct {
	shared.BaseAggregateRoot
	SaleNumber     string
	CashierID      string
	Customer       Customer
	Status         SaleStatus
	PaymentStatus  PaymentStatus
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal
	AmountRefunded decimal.Decimal
	ChangeAmount   decimal.Decimal
	Notes          string
	Items          []SaleItem
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CancelledBy    string
}

// NewSale builds a pending, unpaid sale from snapshotted items
func NewSale(items []SaleItem, discount decimal.Decimal, customer Customer, notes string, actor shared.Actor) (*Sale, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("a sale needs at least one item")
	}
	if discount.IsNegative() {
		return nil, shared.NewValidationError("discount cannot be negative")
	}

	s := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SaleNumber:        shared.NewSaleNumber(time.Now()),
		CashierID:         actor.String(),
		Customer:          Customer{Name: strings.TrimSpace(customer.Name), Phone: strings.TrimSpace(customer.Phone)},
		Status:            SaleStatusPending,
		Discount:          discount.Round(2),
		AmountPaid:        decimal.Zero,
		AmountRefunded:    decimal.Zero,
		ChangeAmount:      decimal.Zero,
		Notes:             notes,
		Items:             make([]SaleItem, len(items)),
	}
	for i, item := range items {
		item.SaleID = s.ID
		s.Items[i] = item
	}
	if err := s.calculateTotals(); err != nil {
		return nil, err
	}
	s.refreshPaymentStatus()
	if s.PaymentStatus == PaymentStatusPaid {
		now := time.Now()
		s.Status = SaleStatusCompleted
		s.CompletedAt = &now
	}

	s.AddDomainEvent(NewSaleCreatedEvent(s, actor))
	return s, nil
}

func (s *Sale) calculateTotals() error {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, item := range s.Items {
		subtotal = subtotal.Add(item.Subtotal)
		tax = tax.Add(item.TaxAmount)
	}
	gross := subtotal.Add(tax)
	if s.Discount.GreaterThan(gross) {
		return shared.NewValidationError(fmt.Sprintf("discount %s exceeds sale amount %s", s.Discount.StringFixed(2), gross.StringFixed(2)))
	}
	s.Subtotal = subtotal
	s.TaxAmount = tax
	s.Total = gross.Sub(s.Discount)
	return nil
}

// Balance returns the amount still owed
func (s *Sale) Balance() decimal.Decimal {
	b := s.Total.Sub(s.AmountPaid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// TenderCash records money handed over at the till when the sale is created.
// The credited amount is capped at the total; the excess becomes change.
func (s *Sale) TenderCash(tendered decimal.Decimal, actor shared.Actor) error {
	if tendered.IsNegative() {
		return shared.NewValidationError("amount paid cannot be negative")
	}
	if tendered.IsZero() {
		return nil
	}
	credit := decimal.Min(tendered, s.Balance())
	if err := s.ApplyPayment(credit, actor); err != nil {
		return err
	}
	if tendered.GreaterThan(credit) {
		s.ChangeAmount = tendered.Sub(credit)
	}
	return nil
}

// ApplyPayment credits a settled amount. The sum of credits never exceeds
// Total; the pending to completed edge happens when the sale becomes paid.
func (s *Sale) ApplyPayment(amount decimal.Decimal, actor shared.Actor) error {
	if amount.IsNegative() {
		return shared.NewValidationError("payment amount cannot be negative")
	}
	if s.Status == SaleStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Cannot apply payment to a cancelled sale")
	}
	newPaid := s.AmountPaid.Add(amount)
	if newPaid.GreaterThan(s.Total) {
		return shared.NewDomainError(shared.CodeOverPayment,
			fmt.Sprintf("Payment of %s exceeds outstanding balance %s", amount.StringFixed(2), s.Balance().StringFixed(2)))
	}

	before := s.PaymentStatus
	s.AmountPaid = newPaid
	s.refreshPaymentStatus()

	if before != PaymentStatusPaid && s.PaymentStatus == PaymentStatusPaid && s.Status == SaleStatusPending {
		now := time.Now()
		s.Status = SaleStatusCompleted
		s.CompletedAt = &now
		s.AddDomainEvent(NewSaleCompletedEvent(s, actor))
	}
	s.touch()
	return nil
}

// ApplyRefund records money returned to the customer
func (s *Sale) ApplyRefund(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("refund amount must be positive")
	}
	if s.AmountRefunded.Add(amount).GreaterThan(s.AmountPaid) {
		return shared.NewDomainError(shared.CodeRefundExceedsBalance, "Refunds cannot exceed the amount paid on the sale")
	}
	s.AmountRefunded = s.AmountRefunded.Add(amount)
	s.refreshPaymentStatus()
	s.touch()
	return nil
}

// CanCancel reports whether Cancel would succeed
func (s *Sale) CanCancel() bool {
	return s.Status != SaleStatusCancelled && s.PaymentStatus != PaymentStatusPaid
}

// Cancel marks the sale cancelled. Returning the stock is the caller's job,
// done in the same transaction through the stock ledger. A completed sale
// whose payments were fully refunded may still be cancelled.
func (s *Sale) Cancel(actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if s.Status == SaleStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Sale is already cancelled")
	}
	if s.PaymentStatus == PaymentStatusPaid {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Paid sales cannot be cancelled; refund the payments instead")
	}
	now := time.Now()
	s.Status = SaleStatusCancelled
	s.CancelledAt = &now
	s.CancelledBy = actor.String()
	s.touch()
	s.AddDomainEvent(NewSaleCancelledEvent(s, actor))
	return nil
}

func (s *Sale) refreshPaymentStatus() {
	s.PaymentStatus = DerivePaymentStatus(s.AmountPaid, s.AmountRefunded, s.Total)
}

func (s *Sale) touch() {
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}
