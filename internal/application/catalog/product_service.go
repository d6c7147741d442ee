package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/inventory"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/catalog"
	domaininventory "github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ProductService handles product-related business operations
type ProductService struct {
	scope            unitofwork.TransactionScope
	repos            unitofwork.TransactionalRepositories
	ledger           *inventory.StockLedger
	eventPublisher   shared.EventPublisher
	defaultThreshold int
	logger           *zap.Logger
}

// ProductServiceConfig holds dependencies for ProductService
type ProductServiceConfig struct {
	Scope          unitofwork.TransactionScope
	Repos          unitofwork.TransactionalRepositories
	Ledger         *inventory.StockLedger
	EventPublisher shared.EventPublisher
	// DefaultLowStockThreshold applies when a request leaves the threshold at zero
	DefaultLowStockThreshold int
	Logger                   *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(cfg ProductServiceConfig) *ProductService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = inventory.NewStockLedger(logger)
	}
	return &ProductService{
		scope:            cfg.Scope,
		repos:            cfg.Repos,
		ledger:           ledger,
		eventPublisher:   cfg.EventPublisher,
		defaultThreshold: cfg.DefaultLowStockThreshold,
		logger:           logger,
	}
}

// Create creates a new product. A positive initial stock is booked as a
// purchase movement in the same transaction, so stock always has a ledger.
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest, actor shared.Actor) (*ProductResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if req.InitialStock < 0 {
		return nil, shared.NewValidationError("initial stock cannot be negative")
	}

	if req.SKU != "" {
		exists, err := s.repos.ProductRepo().ExistsBySKU(ctx, req.SKU)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Product with this SKU already exists")
		}
	}

	threshold := req.LowStockThreshold
	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	product, err := catalog.NewProduct(req.Name, req.Barcode, req.SKU, req.Price, req.CostPrice, req.TaxRate, threshold, actor)
	if err != nil {
		return nil, err
	}

	var events unitofwork.EventBuffer
	err = s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		events.Collect(product)
		if err := repos.ProductRepo().Save(ctx, product); err != nil {
			return err
		}
		if req.InitialStock == 0 {
			return nil
		}
		unitCost := req.UnitCost
		if unitCost == nil {
			unitCost = &product.CostPrice
		}
		result, err := s.ledger.Record(ctx, repos, &events, inventory.MovementCommand{
			ProductID: product.ID,
			Type:      domaininventory.MovementTypePurchase,
			Quantity:  req.InitialStock,
			UnitCost:  unitCost,
			Notes:     "Initial stock",
		}, actor)
		if err != nil {
			return err
		}
		product = result.Product
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.Int("initial_stock", product.Stock),
		zap.String("actor", actor.String()))
	resp := ToProductResponse(product)
	return &resp, nil
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.repos.ProductRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// List retrieves products; Search matches name, barcode and SKU
func (s *ProductService) List(ctx context.Context, filter shared.Filter) (*shared.Paginated[ProductResponse], error) {
	filter = filter.Normalize()
	products, total, err := s.repos.ProductRepo().FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToProductResponses(products), total, filter.Page, filter.PageSize)
	return &page, nil
}

// Deactivate hides a product from new sales. Stock and history are kept.
func (s *ProductService) Deactivate(ctx context.Context, id uuid.UUID, actor shared.Actor) (*ProductResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var product *catalog.Product
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		var err error
		product, err = repos.ProductRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return nil
		}
		product.Deactivate()
		return repos.ProductRepo().Save(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product deactivated",
		zap.String("product_id", id.String()),
		zap.String("actor", actor.String()))
	resp := ToProductResponse(product)
	return &resp, nil
}
