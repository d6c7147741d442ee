package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockCountService reconciles physical counts with the ledger
type StockCountService struct {
	scope          unitofwork.TransactionScope
	repos          unitofwork.TransactionalRepositories
	ledger         *StockLedger
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// StockCountServiceConfig holds dependencies for StockCountService
type StockCountServiceConfig struct {
	Scope          unitofwork.TransactionScope
	Repos          unitofwork.TransactionalRepositories
	Ledger         *StockLedger
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewStockCountService creates a new StockCountService
func NewStockCountService(cfg StockCountServiceConfig) *StockCountService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewStockLedger(logger)
	}
	return &StockCountService{
		scope:          cfg.Scope,
		repos:          cfg.Repos,
		ledger:         ledger,
		eventPublisher: cfg.EventPublisher,
		logger:         logger,
	}
}

// StartCount opens a new in-progress count
func (s *StockCountService) StartCount(ctx context.Context, req StartCountRequest, actor shared.Actor) (*StockCountResponse, error) {
	count, err := inventory.NewStockCount(req.Description, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repos.CountRepo().Save(ctx, count); err != nil {
		return nil, err
	}
	s.logger.Info("Stock count started",
		zap.String("count_number", count.CountNumber),
		zap.String("actor", actor.String()))
	resp := ToStockCountResponse(count)
	return &resp, nil
}

// GetCount returns a count with its items
func (s *StockCountService) GetCount(ctx context.Context, id uuid.UUID) (*StockCountResponse, error) {
	count, err := s.repos.CountRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockCountResponse(count)
	return &resp, nil
}

// ListCounts lists counts, newest first
func (s *StockCountService) ListCounts(ctx context.Context, filter shared.Filter) (*shared.Paginated[StockCountResponse], error) {
	filter = filter.Normalize()
	counts, total, err := s.repos.CountRepo().FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]StockCountResponse, len(counts))
	for i := range counts {
		items[i] = ToStockCountResponse(&counts[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// AddItem records the physical quantity of a product, snapshotting the
// current ledger stock as the system quantity. Re-adding a product replaces
// its line.
func (s *StockCountService) AddItem(ctx context.Context, countID uuid.UUID, req AddCountItemRequest, actor shared.Actor) (*StockCountResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if req.PhysicalQuantity == nil {
		return nil, shared.NewValidationError("physical quantity is required")
	}

	var count *inventory.StockCount
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		var err error
		count, err = repos.CountRepo().FindByIDForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		product, err := repos.ProductRepo().FindByID(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if _, err := count.AddItem(product.ID, product.Stock, *req.PhysicalQuantity, req.Notes); err != nil {
			return err
		}
		return repos.CountRepo().Save(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockCountResponse(count)
	return &resp, nil
}

// CompleteCount books one adjustment movement per line with a variance and
// closes the count, all in one transaction. Either every adjustment is
// applied or none is.
func (s *StockCountService) CompleteCount(ctx context.Context, countID uuid.UUID, actor shared.Actor) (*StockCountResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var events unitofwork.EventBuffer
	var count *inventory.StockCount
	adjustments := 0
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		adjustments = 0
		var err error
		count, err = repos.CountRepo().FindByIDForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		if count.Status != inventory.CountStatusInProgress {
			return shared.NewDomainError(shared.CodeInvalidState,
				fmt.Sprintf("Count %s is %s", count.CountNumber, count.Status))
		}
		for _, item := range count.ItemsWithVariance() {
			if _, err := s.ledger.Record(ctx, repos, &events, MovementCommand{
				ProductID: item.ProductID,
				Type:      inventory.MovementTypeAdjustment,
				Quantity:  item.Variance,
				Reference: count.CountNumber,
				Notes:     fmt.Sprintf("Stock count: system %d, physical %d", item.SystemQuantity, item.PhysicalQuantity),
			}, actor); err != nil {
				return err
			}
			adjustments++
		}
		if err := count.Complete(actor); err != nil {
			return err
		}
		events.Collect(count)
		return repos.CountRepo().Save(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)

	s.logger.Info("Stock count completed",
		zap.String("count_number", count.CountNumber),
		zap.Int("items", len(count.Items)),
		zap.Int("adjustments", adjustments),
		zap.String("actor", actor.String()))
	resp := ToStockCountResponse(count)
	return &resp, nil
}

// CancelCount abandons an in-progress count without touching stock
func (s *StockCountService) CancelCount(ctx context.Context, countID uuid.UUID, req CancelCountRequest, actor shared.Actor) (*StockCountResponse, error) {
	var count *inventory.StockCount
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		var err error
		count, err = repos.CountRepo().FindByIDForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		if err := count.Cancel(actor, req.Reason); err != nil {
			return err
		}
		return repos.CountRepo().Save(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockCountResponse(count)
	return &resp, nil
}
