package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/catalog"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MovementCommand describes one stock change
type MovementCommand struct {
	ProductID uuid.UUID
	Type      inventory.MovementType
	Quantity  int
	Reference string
	UnitCost  *decimal.Decimal
	Notes     string
}

// MovementResult is what a ledger write produced
type MovementResult struct {
	Movement *inventory.StockMovement
	Product  *catalog.Product
	Alert    *inventory.StockAlert // non-nil only when a new alert was raised
}

// StockLedger is the single writer of product stock. Every stock change in
// the system goes through Record, inside the caller's transaction.
type StockLedger struct {
	logger *zap.Logger
}

// NewStockLedger creates a StockLedger
func NewStockLedger(logger *zap.Logger) *StockLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedger{logger: logger}
}

// Record locks the product row, appends the movement, updates the product
// stock and raises a low-stock alert when the product crosses its threshold
// and has no active alert. It never resolves alerts.
func (l *StockLedger) Record(ctx context.Context, repos unitofwork.TransactionalRepositories, events *unitofwork.EventBuffer, cmd MovementCommand, actor shared.Actor) (*MovementResult, error) {
	product, err := repos.ProductRepo().FindByIDForUpdate(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	movement, err := inventory.NewStockMovement(product.ID, cmd.Type, cmd.Quantity, product.Stock,
		cmd.Reference, cmd.UnitCost, cmd.Notes, actor)
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			return nil, shared.NewDomainError(shared.CodeInsufficientStock,
				fmt.Sprintf("Insufficient stock for %s: available %d, requested %d", product.Name, product.Stock, -cmd.Quantity))
		}
		return nil, err
	}

	product.ApplyStockChange(movement.StockAfter)
	if err := repos.ProductRepo().Save(ctx, product); err != nil {
		return nil, fmt.Errorf("save product stock: %w", err)
	}
	if err := repos.MovementRepo().Append(ctx, movement); err != nil {
		return nil, fmt.Errorf("append stock movement: %w", err)
	}
	events.Add(inventory.NewStockMovementRecordedEvent(movement, actor))

	result := &MovementResult{Movement: movement, Product: product}

	if product.IsLowStock() {
		alert, err := l.raiseAlert(ctx, repos, product)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			events.Collect(alert)
			result.Alert = alert
		}
	}

	l.logger.Debug("Stock movement recorded",
		zap.String("product_id", product.ID.String()),
		zap.String("movement_type", string(movement.MovementType)),
		zap.Int("quantity", movement.Quantity),
		zap.Int("stock_after", movement.StockAfter),
		zap.String("reference", movement.ReferenceNumber))

	return result, nil
}

func (l *StockLedger) raiseAlert(ctx context.Context, repos unitofwork.TransactionalRepositories, product *catalog.Product) (*inventory.StockAlert, error) {
	_, err := repos.AlertRepo().FindActiveByProduct(ctx, product.ID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("find active alert: %w", err)
	}

	alert := inventory.NewStockAlert(product.ID, product.Stock, product.LowStockThreshold, shared.SystemActor("stock-ledger"))
	if err := repos.AlertRepo().Save(ctx, alert); err != nil {
		return nil, fmt.Errorf("save stock alert: %w", err)
	}
	l.logger.Info("Low stock alert raised",
		zap.String("product_id", product.ID.String()),
		zap.String("product_name", product.Name),
		zap.Int("current_stock", product.Stock),
		zap.Int("threshold", product.LowStockThreshold))
	return alert, nil
}
