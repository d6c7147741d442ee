package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	financeapp "github.com/retailpos/backend/internal/application/finance"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/logger"
)

// CallbackIngestor stores gateway notifications and exposes them for audit
type CallbackIngestor interface {
	Ingest(ctx context.Context, method finance.PaymentMethod, payload []byte) (*financeapp.IngestResult, error)
	GetCallback(ctx context.Context, callbackID uuid.UUID) (*financeapp.CallbackResponse, error)
	ListCallbacks(ctx context.Context, filter shared.Filter) (*shared.Paginated[financeapp.CallbackResponse], error)
}

// fallbackAck is sent when ingestion produced no gateway-specific body
var fallbackAck = []byte(`{"status":"accepted"}`)

// PaymentCallbackHandler receives asynchronous gateway notifications
type PaymentCallbackHandler struct {
	BaseHandler
	callbacks CallbackIngestor
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler
func NewPaymentCallbackHandler(callbacks CallbackIngestor) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{callbacks: callbacks}
}

// Receive handles POST /payments/callbacks/:gateway. Gateways retry on
// anything but 200, so the handler always answers 200 with the gateway's
// expected acknowledgement; failures are logged and left to the sweeper.
func (h *PaymentCallbackHandler) Receive(c *gin.Context) {
	log := logger.GetGinLogger(c)
	method := finance.PaymentMethod(strings.ToLower(c.Param("gateway")))

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("Failed to read payment callback body",
			zap.String("method", method.String()), zap.Error(err))
	}

	ack := fallbackAck
	result, err := h.callbacks.Ingest(c.Request.Context(), method, payload)
	if err != nil {
		log.Error("Payment callback ingestion failed",
			zap.String("method", method.String()), zap.Error(err))
	}
	if result != nil && len(result.Ack) > 0 {
		ack = result.Ack
	}
	c.Data(http.StatusOK, "application/json", ack)
}

// List handles GET /payment-callbacks
func (h *PaymentCallbackHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c, "method", "processed")
	if !ok {
		return
	}
	page, err := h.callbacks.ListCallbacks(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Get handles GET /payment-callbacks/:id
func (h *PaymentCallbackHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	cb, err := h.callbacks.GetCallback(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cb)
}
