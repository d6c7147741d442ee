package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/retailpos/backend/internal/application/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
)

// StockCountService is the physical count surface used by StockCountHandler
type StockCountService interface {
	StartCount(ctx context.Context, req inventoryapp.StartCountRequest, actor shared.Actor) (*inventoryapp.StockCountResponse, error)
	GetCount(ctx context.Context, id uuid.UUID) (*inventoryapp.StockCountResponse, error)
	ListCounts(ctx context.Context, filter shared.Filter) (*shared.Paginated[inventoryapp.StockCountResponse], error)
	AddItem(ctx context.Context, countID uuid.UUID, req inventoryapp.AddCountItemRequest, actor shared.Actor) (*inventoryapp.StockCountResponse, error)
	CompleteCount(ctx context.Context, countID uuid.UUID, actor shared.Actor) (*inventoryapp.StockCountResponse, error)
	CancelCount(ctx context.Context, countID uuid.UUID, req inventoryapp.CancelCountRequest, actor shared.Actor) (*inventoryapp.StockCountResponse, error)
}

// StockCountHandler handles stock count endpoints
type StockCountHandler struct {
	BaseHandler
	counts StockCountService
}

// NewStockCountHandler creates a new StockCountHandler
func NewStockCountHandler(counts StockCountService) *StockCountHandler {
	return &StockCountHandler{counts: counts}
}

// Start handles POST /stock-counts
func (h *StockCountHandler) Start(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req inventoryapp.StartCountRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	count, err := h.counts.StartCount(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, count)
}

// Get handles GET /stock-counts/:id
func (h *StockCountHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	count, err := h.counts.GetCount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// List handles GET /stock-counts
func (h *StockCountHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c, "status")
	if !ok {
		return
	}
	page, err := h.counts.ListCounts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// AddItem handles POST /stock-counts/:id/items
func (h *StockCountHandler) AddItem(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AddCountItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	count, err := h.counts.AddItem(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Complete handles POST /stock-counts/:id/complete
func (h *StockCountHandler) Complete(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	count, err := h.counts.CompleteCount(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Cancel handles POST /stock-counts/:id/cancel
func (h *StockCountHandler) Cancel(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelCountRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	count, err := h.counts.CancelCount(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}
