package inventory

import (
	"context"
	"fmt"

	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockAlertNotifier is the interface for sending stock alerts.
// Implementations can support different channels (in-app, email, SMS, etc.)
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlertNotification) error
}

// StockAlertNotification is what a notifier receives
type StockAlertNotification struct {
	AlertID      string `json:"alert_id"`
	ProductID    string `json:"product_id"`
	CurrentStock int    `json:"current_stock"`
	Threshold    int    `json:"threshold"`
	AlertType    string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// LowStockAlertHandler handles LowStockAlertRaised events and forwards them
// to a notifier
type LowStockAlertHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// NewLowStockAlertHandler creates a new handler for low stock alert events
func NewLowStockAlertHandler(logger *zap.Logger, notifier StockAlertNotifier) *LowStockAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LowStockAlertHandler{logger: logger, notifier: notifier}
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeLowStockAlertRaised}
}

// Handle processes a LowStockAlertRaisedEvent
func (h *LowStockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	raised, ok := event.(*inventory.LowStockAlertRaisedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeLowStockAlertRaised, event.EventType())
	}

	alertType := "low_stock"
	if raised.CurrentStock <= 0 {
		alertType = "out_of_stock"
	}

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendAlert(ctx, StockAlertNotification{
		AlertID:      raised.AlertID.String(),
		ProductID:    raised.ProductID.String(),
		CurrentStock: raised.CurrentStock,
		Threshold:    raised.Threshold,
		AlertType:    alertType,
	}); err != nil {
		// notification failure must not fail the event dispatch
		h.logger.Error("failed to send stock alert notification",
			zap.String("alert_id", raised.AlertID.String()),
			zap.Error(err))
	}
	return nil
}

var _ shared.EventHandler = (*LowStockAlertHandler)(nil)

// LoggingStockAlertNotifier is a simple notifier that logs alerts
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlertNotification) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("product_id", alert.ProductID),
		zap.Int("current_stock", alert.CurrentStock),
		zap.Int("threshold", alert.Threshold))
	return nil
}
