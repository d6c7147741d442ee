package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	financeapp "github.com/retailpos/backend/internal/application/finance"
	salesapp "github.com/retailpos/backend/internal/application/sales"
	"github.com/retailpos/backend/internal/domain/shared"
)

// SaleService is the sales surface used by SaleHandler
type SaleService interface {
	CreateSale(ctx context.Context, req salesapp.CreateSaleRequest, actor shared.Actor) (*salesapp.SaleResponse, error)
	CancelSale(ctx context.Context, saleID uuid.UUID, actor shared.Actor) (*salesapp.SaleResponse, error)
	GetSale(ctx context.Context, saleID uuid.UUID) (*salesapp.SaleResponse, error)
	ListSales(ctx context.Context, filter shared.Filter) (*shared.Paginated[salesapp.SaleResponse], error)
}

// SalePaymentLister lists the payments recorded against a sale
type SalePaymentLister interface {
	ListSalePayments(ctx context.Context, saleID uuid.UUID) ([]financeapp.PaymentResponse, error)
}

// SaleHandler handles sale endpoints
type SaleHandler struct {
	BaseHandler
	sales    SaleService
	payments SalePaymentLister
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(sales SaleService, payments SalePaymentLister) *SaleHandler {
	return &SaleHandler{sales: sales, payments: payments}
}

// Create handles POST /sales
func (h *SaleHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req salesapp.CreateSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sale, err := h.sales.CreateSale(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// Get handles GET /sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	sale, err := h.sales.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// List handles GET /sales
func (h *SaleHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c, "status", "payment_status", "cashier_id")
	if !ok {
		return
	}
	page, err := h.sales.ListSales(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Cancel handles POST /sales/:id/cancel
func (h *SaleHandler) Cancel(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	sale, err := h.sales.CancelSale(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// Payments handles GET /sales/:id/payments
func (h *SaleHandler) Payments(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.payments.ListSalePayments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}
