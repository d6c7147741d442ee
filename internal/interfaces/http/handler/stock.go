package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/retailpos/backend/internal/application/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
)

// StockService is the inventory surface used by StockHandler
type StockService interface {
	RecordMovement(ctx context.Context, req inventoryapp.RecordMovementRequest, actor shared.Actor) (*inventoryapp.MovementResponse, error)
	ListMovements(ctx context.Context, filter shared.Filter) (*shared.Paginated[inventoryapp.MovementResponse], error)
	ListActiveAlerts(ctx context.Context, filter shared.Filter) (*shared.Paginated[inventoryapp.AlertResponse], error)
	ResolveAlert(ctx context.Context, alertID uuid.UUID, actor shared.Actor) (*inventoryapp.AlertResponse, error)
	IgnoreAlert(ctx context.Context, alertID uuid.UUID, actor shared.Actor) (*inventoryapp.AlertResponse, error)
}

// StockHandler handles manual movements and low-stock alerts
type StockHandler struct {
	BaseHandler
	stock StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stock StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

// RecordMovement handles POST /stock/movements
func (h *StockHandler) RecordMovement(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req inventoryapp.RecordMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	movement, err := h.stock.RecordMovement(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movement)
}

// ListMovements handles GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	filter, ok := h.listFilter(c, "movement_type", "reference_number")
	if !ok {
		return
	}
	page, err := h.stock.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// ListAlerts handles GET /stock/alerts
func (h *StockHandler) ListAlerts(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	page, err := h.stock.ListActiveAlerts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// ResolveAlert handles POST /stock/alerts/:id/resolve
func (h *StockHandler) ResolveAlert(c *gin.Context) {
	h.closeAlert(c, h.stock.ResolveAlert)
}

// IgnoreAlert handles POST /stock/alerts/:id/ignore
func (h *StockHandler) IgnoreAlert(c *gin.Context) {
	h.closeAlert(c, h.stock.IgnoreAlert)
}

func (h *StockHandler) closeAlert(c *gin.Context, op func(context.Context, uuid.UUID, shared.Actor) (*inventoryapp.AlertResponse, error)) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	alert, err := op(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, alert)
}
