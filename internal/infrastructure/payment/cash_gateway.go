package payment

import (
	"context"

	"github.com/retailpos/backend/internal/domain/finance"
)

// CashGateway settles at the till: initiation is the collection
type CashGateway struct{}

// NewCashGateway creates the cash gateway
func NewCashGateway() *CashGateway {
	return &CashGateway{}
}

// Method returns the payment method served by this gateway
func (CashGateway) Method() finance.PaymentMethod {
	return finance.PaymentMethodCash
}

// Initiate settles immediately
func (CashGateway) Initiate(ctx context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	return &finance.InitiateResult{
		Accepted:          true,
		Settled:           true,
		ExternalReference: "CASH-" + req.TransactionReference,
		Message:           "Cash received",
	}, nil
}

// Verify always reports success; a cash payment cannot be outstanding
func (CashGateway) Verify(ctx context.Context, req *finance.VerifyRequest) (*finance.VerifyResult, error) {
	ref := req.ExternalReference
	if ref == "" {
		ref = "CASH-" + req.TransactionReference
	}
	return &finance.VerifyResult{Outcome: finance.OutcomeSuccess, ExternalReference: ref}, nil
}

// Refund pays out of the till immediately
func (CashGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	return &finance.RefundResult{
		Completed:         true,
		ExternalReference: "CASH-" + req.RefundReference,
		Message:           "Cash returned",
	}, nil
}
