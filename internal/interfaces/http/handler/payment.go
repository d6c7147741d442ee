package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	financeapp "github.com/retailpos/backend/internal/application/finance"
	"github.com/retailpos/backend/internal/domain/shared"
)

// PaymentService is the payment surface used by PaymentHandler
type PaymentService interface {
	InitiatePayment(ctx context.Context, req financeapp.InitiatePaymentRequest, actor shared.Actor) (*financeapp.PaymentResponse, error)
	ResolvePayment(ctx context.Context, paymentID uuid.UUID, req financeapp.ResolvePaymentRequest, actor shared.Actor) (*financeapp.PaymentResponse, error)
	VerifyPayment(ctx context.Context, paymentID uuid.UUID, actor shared.Actor) (*financeapp.PaymentResponse, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*financeapp.PaymentResponse, error)
	GetPaymentByReference(ctx context.Context, reference string) (*financeapp.PaymentResponse, error)
	ListPendingPayments(ctx context.Context, filter shared.Filter) (*shared.Paginated[financeapp.PaymentResponse], error)
}

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Initiate handles POST /payments. Cash completes immediately; gateway
// methods return the payment in processing.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req financeapp.InitiatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.InitiatePayment(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// GetByReference handles GET /payments/reference/:reference
func (h *PaymentHandler) GetByReference(c *gin.Context) {
	payment, err := h.payments.GetPaymentByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// ListPending handles GET /payments/pending
func (h *PaymentHandler) ListPending(c *gin.Context) {
	filter, ok := h.listFilter(c, "method")
	if !ok {
		return
	}
	page, err := h.payments.ListPendingPayments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Verify handles POST /payments/:id/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.VerifyPayment(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Resolve handles POST /payments/:id/resolve, a manual resolution by staff
func (h *PaymentHandler) Resolve(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req financeapp.ResolvePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.ResolvePayment(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}
