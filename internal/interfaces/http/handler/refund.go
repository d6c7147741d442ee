package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	financeapp "github.com/retailpos/backend/internal/application/finance"
	"github.com/retailpos/backend/internal/domain/shared"
)

// RefundService is the refund surface used by RefundHandler
type RefundService interface {
	RequestRefund(ctx context.Context, req financeapp.RequestRefundRequest, actor shared.Actor) (*financeapp.RefundResponse, error)
	ApproveRefund(ctx context.Context, refundID uuid.UUID, actor shared.Actor) (*financeapp.RefundResponse, error)
	GetRefund(ctx context.Context, refundID uuid.UUID) (*financeapp.RefundResponse, error)
	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]financeapp.RefundResponse, error)
	RefundableBalance(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
}

// RefundHandler handles refund endpoints
type RefundHandler struct {
	BaseHandler
	refunds RefundService
}

// NewRefundHandler creates a new RefundHandler
func NewRefundHandler(refunds RefundService) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

// PaymentRefundsResponse lists a payment's refunds with what is left to refund
type PaymentRefundsResponse struct {
	PaymentID  uuid.UUID                   `json:"payment_id"`
	Refundable decimal.Decimal             `json:"refundable"`
	Refunds    []financeapp.RefundResponse `json:"refunds"`
}

// Request handles POST /refunds
func (h *RefundHandler) Request(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req financeapp.RequestRefundRequest
	if !h.bindJSON(c, &req) {
		return
	}
	refund, err := h.refunds.RequestRefund(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, refund)
}

// Get handles GET /refunds/:id
func (h *RefundHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	refund, err := h.refunds.GetRefund(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// Approve handles POST /refunds/:id/approve
func (h *RefundHandler) Approve(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	refund, err := h.refunds.ApproveRefund(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// ListForPayment handles GET /payments/:id/refunds
func (h *RefundHandler) ListForPayment(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	refunds, err := h.refunds.ListRefunds(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	balance, err := h.refunds.RefundableBalance(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PaymentRefundsResponse{PaymentID: id, Refundable: balance, Refunds: refunds})
}
