package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockService exposes manual stock movements, ledger history and alert
// handling. Sales and counts write to the ledger through their own services.
type StockService struct {
	scope          unitofwork.TransactionScope
	repos          unitofwork.TransactionalRepositories
	ledger         *StockLedger
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// StockServiceConfig holds dependencies for StockService
type StockServiceConfig struct {
	Scope          unitofwork.TransactionScope
	Repos          unitofwork.TransactionalRepositories
	Ledger         *StockLedger
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(cfg StockServiceConfig) *StockService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewStockLedger(logger)
	}
	return &StockService{
		scope:          cfg.Scope,
		repos:          cfg.Repos,
		ledger:         ledger,
		eventPublisher: cfg.EventPublisher,
		logger:         logger,
	}
}

// RecordMovement books a standalone movement in its own transaction
func (s *StockService) RecordMovement(ctx context.Context, req RecordMovementRequest, actor shared.Actor) (*MovementResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	mtype := inventory.MovementType(req.MovementType)
	if mtype == inventory.MovementTypeSale {
		return nil, shared.NewValidationError("sale movements are created by sales")
	}

	var events unitofwork.EventBuffer
	var result *MovementResult
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		var err error
		result, err = s.ledger.Record(ctx, repos, &events, MovementCommand{
			ProductID: req.ProductID,
			Type:      mtype,
			Quantity:  req.Quantity,
			Reference: req.ReferenceNumber,
			UnitCost:  req.UnitCost,
			Notes:     req.Notes,
		}, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)

	resp := ToMovementResponse(result.Movement)
	return &resp, nil
}

// ListMovements lists ledger entries across products
func (s *StockService) ListMovements(ctx context.Context, filter shared.Filter) (*shared.Paginated[MovementResponse], error) {
	filter = filter.Normalize()
	movements, total, err := s.repos.MovementRepo().FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToMovementResponses(movements), total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListProductMovements lists the ledger of one product, newest first
func (s *StockService) ListProductMovements(ctx context.Context, productID uuid.UUID, filter shared.Filter) (*shared.Paginated[MovementResponse], error) {
	if _, err := s.repos.ProductRepo().FindByID(ctx, productID); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	movements, total, err := s.repos.MovementRepo().FindByProduct(ctx, productID, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToMovementResponses(movements), total, filter.Page, filter.PageSize)
	return &page, nil
}

// VerifyLedger checks that a product's stock equals the sum of its movements
func (s *StockService) VerifyLedger(ctx context.Context, productID uuid.UUID) (*LedgerCheckResponse, error) {
	product, err := s.repos.ProductRepo().FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	sum, err := s.repos.MovementRepo().SumQuantityByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	resp := &LedgerCheckResponse{
		ProductID:    productID,
		Stock:        product.Stock,
		LedgerSum:    sum,
		IsConsistent: int64(product.Stock) == sum,
	}
	if !resp.IsConsistent {
		s.logger.Error("Stock ledger mismatch",
			zap.String("product_id", productID.String()),
			zap.Int("stock", product.Stock),
			zap.Int64("ledger_sum", sum))
	}
	return resp, nil
}

// ListActiveAlerts lists active low-stock alerts
func (s *StockService) ListActiveAlerts(ctx context.Context, filter shared.Filter) (*shared.Paginated[AlertResponse], error) {
	filter = filter.Normalize()
	alerts, total, err := s.repos.AlertRepo().FindActive(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]AlertResponse, len(alerts))
	for i := range alerts {
		items[i] = ToAlertResponse(&alerts[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ResolveAlert closes an alert as handled
func (s *StockService) ResolveAlert(ctx context.Context, alertID uuid.UUID, actor shared.Actor) (*AlertResponse, error) {
	return s.closeAlert(ctx, alertID, actor, (*inventory.StockAlert).Resolve)
}

// IgnoreAlert dismisses an alert
func (s *StockService) IgnoreAlert(ctx context.Context, alertID uuid.UUID, actor shared.Actor) (*AlertResponse, error) {
	return s.closeAlert(ctx, alertID, actor, (*inventory.StockAlert).Ignore)
}

func (s *StockService) closeAlert(ctx context.Context, alertID uuid.UUID, actor shared.Actor, apply func(*inventory.StockAlert, shared.Actor) error) (*AlertResponse, error) {
	var alert *inventory.StockAlert
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		var err error
		alert, err = repos.AlertRepo().FindByIDForUpdate(ctx, alertID)
		if err != nil {
			return err
		}
		if err := apply(alert, actor); err != nil {
			return err
		}
		return repos.AlertRepo().Save(ctx, alert)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Stock alert closed",
		zap.String("alert_id", alertID.String()),
		zap.String("status", string(alert.Status)),
		zap.String("actor", actor.String()))
	resp := ToAlertResponse(alert)
	return &resp, nil
}
