package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	catalogapp "github.com/retailpos/backend/internal/application/catalog"
	inventoryapp "github.com/retailpos/backend/internal/application/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
)

// ProductService is the catalog surface used by ProductHandler
type ProductService interface {
	Create(ctx context.Context, req catalogapp.CreateProductRequest, actor shared.Actor) (*catalogapp.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*catalogapp.ProductResponse, error)
	List(ctx context.Context, filter shared.Filter) (*shared.Paginated[catalogapp.ProductResponse], error)
	Deactivate(ctx context.Context, id uuid.UUID, actor shared.Actor) (*catalogapp.ProductResponse, error)
}

// ProductLedgerService exposes a product's stock history
type ProductLedgerService interface {
	ListProductMovements(ctx context.Context, productID uuid.UUID, filter shared.Filter) (*shared.Paginated[inventoryapp.MovementResponse], error)
	VerifyLedger(ctx context.Context, productID uuid.UUID) (*inventoryapp.LedgerCheckResponse, error)
}

// ProductHandler handles product endpoints
type ProductHandler struct {
	BaseHandler
	products ProductService
	ledger   ProductLedgerService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products ProductService, ledger ProductLedgerService) *ProductHandler {
	return &ProductHandler{products: products, ledger: ledger}
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req catalogapp.CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.products.Create(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// GetByID handles GET /products/:id
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	product, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c, "active")
	if !ok {
		return
	}
	page, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Deactivate handles POST /products/:id/deactivate
func (h *ProductHandler) Deactivate(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	product, err := h.products.Deactivate(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Movements handles GET /products/:id/movements
func (h *ProductHandler) Movements(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "movement_type", "reference_number")
	if !ok {
		return
	}
	page, err := h.ledger.ListProductMovements(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// LedgerCheck handles GET /products/:id/ledger-check
func (h *ProductHandler) LedgerCheck(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	check, err := h.ledger.VerifyLedger(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}
