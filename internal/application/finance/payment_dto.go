package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// InitiatePaymentRequest starts a payment against a sale
type InitiatePaymentRequest struct {
	SaleID        uuid.UUID       `json:"sale_id" binding:"required"`
	Method        string          `json:"method" binding:"required,oneof=cash mpesa airtel card"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PhoneNumber   string          `json:"phone_number" binding:"max=20"`
	AccountNumber string          `json:"account_number" binding:"max=50"`
}

// ResolvePaymentRequest applies a terminal outcome to a payment
type ResolvePaymentRequest struct {
	Outcome           finance.Outcome `json:"outcome" binding:"required,oneof=success failed cancelled"`
	ExternalReference string          `json:"external_reference"`
	ErrorMessage      string          `json:"error_message"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                   uuid.UUID         `json:"id"`
	SaleID               uuid.UUID         `json:"sale_id"`
	Method               string            `json:"method"`
	Amount               decimal.Decimal   `json:"amount"`
	Status               string            `json:"status"`
	TransactionReference string            `json:"transaction_reference"`
	ExternalReference    string            `json:"external_reference,omitempty"`
	PhoneNumber          string            `json:"phone_number,omitempty"`
	AccountNumber        string            `json:"account_number,omitempty"`
	ErrorMessage         string            `json:"error_message,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	InitiatedBy          string            `json:"initiated_by"`
	InitiatedAt          *time.Time        `json:"initiated_at,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	// Note explains why a verification left the payment unchanged
	Note string `json:"note,omitempty"`
}

// ToPaymentResponse converts a domain Payment to PaymentResponse
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	var metadata map[string]string
	if len(p.Metadata) > 0 {
		metadata = make(map[string]string, len(p.Metadata))
		for _, m := range p.Metadata {
			metadata[m.Key.String()] = m.Value
		}
	}
	return PaymentResponse{
		ID:                   p.ID,
		SaleID:               p.SaleID,
		Method:               p.Method.String(),
		Amount:               p.Amount,
		Status:               string(p.Status),
		TransactionReference: p.TransactionReference,
		ExternalReference:    p.ExternalReference,
		PhoneNumber:          p.PhoneNumber,
		AccountNumber:        p.AccountNumber,
		ErrorMessage:         p.ErrorMessage,
		Metadata:             metadata,
		InitiatedBy:          p.InitiatedBy,
		InitiatedAt:          p.InitiatedAt,
		CompletedAt:          p.CompletedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

// RequestRefundRequest asks for money back on a successful payment
type RequestRefundRequest struct {
	PaymentID uuid.UUID       `json:"payment_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reason    string          `json:"reason" binding:"required,max=500"`
}

// RefundResponse represents a refund in API responses
type RefundResponse struct {
	ID                uuid.UUID       `json:"id"`
	PaymentID         uuid.UUID       `json:"payment_id"`
	Amount            decimal.Decimal `json:"amount"`
	Reason            string          `json:"reason"`
	Status            string          `json:"status"`
	RefundReference   string          `json:"refund_reference"`
	ExternalReference string          `json:"external_reference,omitempty"`
	RequestedBy       string          `json:"requested_by"`
	ApprovedBy        string          `json:"approved_by,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToRefundResponse converts a domain Refund to RefundResponse
func ToRefundResponse(r *finance.Refund) RefundResponse {
	return RefundResponse{
		ID:                r.ID,
		PaymentID:         r.PaymentID,
		Amount:            r.Amount,
		Reason:            r.Reason,
		Status:            string(r.Status),
		RefundReference:   r.RefundReference,
		ExternalReference: r.ExternalReference,
		RequestedBy:       r.RequestedBy,
		ApprovedBy:        r.ApprovedBy,
		ErrorMessage:      r.ErrorMessage,
		CompletedAt:       r.CompletedAt,
		CreatedAt:         r.CreatedAt,
	}
}

// CallbackResponse represents a stored gateway callback in API responses
type CallbackResponse struct {
	ID               uuid.UUID  `json:"id"`
	Method           string     `json:"method"`
	CorrelationKind  string     `json:"correlation_kind"`
	CorrelationValue string     `json:"correlation_value,omitempty"`
	Outcome          string     `json:"outcome,omitempty"`
	ResultCode       string     `json:"result_code,omitempty"`
	ResultMessage    string     `json:"result_message,omitempty"`
	TransactionID    string     `json:"transaction_id,omitempty"`
	PaymentID        *uuid.UUID `json:"payment_id,omitempty"`
	Success          bool       `json:"success"`
	Processed        bool       `json:"processed"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	Attempts         int        `json:"attempts"`
	ReceivedAt       time.Time  `json:"received_at"`
}

// ToCallbackResponse converts a domain PaymentCallback to CallbackResponse.
// The raw payload is not exposed.
func ToCallbackResponse(c *finance.PaymentCallback) CallbackResponse {
	return CallbackResponse{
		ID:               c.ID,
		Method:           c.Method.String(),
		CorrelationKind:  string(c.CorrelationKind),
		CorrelationValue: c.CorrelationValue,
		Outcome:          string(c.Outcome),
		ResultCode:       c.ResultCode,
		ResultMessage:    c.ResultMessage,
		TransactionID:    c.TransactionID,
		PaymentID:        c.PaymentID,
		Success:          c.Success,
		Processed:        c.Processed,
		ProcessedAt:      c.ProcessedAt,
		ErrorMessage:     c.ErrorMessage,
		Attempts:         c.Attempts,
		ReceivedAt:       c.ReceivedAt,
	}
}
