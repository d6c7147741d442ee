package sales

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/inventory"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/catalog"
	domaininventory "github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SaleService creates and cancels sales. Every stock change it makes goes
// through the stock ledger inside the sale's transaction.
type SaleService struct {
	scope          unitofwork.TransactionScope
	repos          unitofwork.TransactionalRepositories
	ledger         *inventory.StockLedger
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// SaleServiceConfig holds dependencies for SaleService
type SaleServiceConfig struct {
	Scope          unitofwork.TransactionScope
	Repos          unitofwork.TransactionalRepositories
	Ledger         *inventory.StockLedger
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewSaleService creates a new SaleService
func NewSaleService(cfg SaleServiceConfig) *SaleService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = inventory.NewStockLedger(logger)
	}
	return &SaleService{
		scope:          cfg.Scope,
		repos:          cfg.Repos,
		ledger:         ledger,
		eventPublisher: cfg.EventPublisher,
		logger:         logger,
	}
}

// line is a requested quantity of one product; repeated products in a
// request are merged into one line
type line struct {
	productID uuid.UUID
	quantity  int
}

func mergeLines(items []SaleItemRequest) ([]line, error) {
	if len(items) == 0 {
		return nil, shared.NewValidationError("a sale needs at least one item")
	}
	index := make(map[uuid.UUID]int, len(items))
	lines := make([]line, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, shared.NewValidationError("product is required")
		}
		if item.Quantity <= 0 {
			return nil, shared.NewValidationError(fmt.Sprintf("quantity must be positive for product %s", item.ProductID))
		}
		if i, ok := index[item.ProductID]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, line{productID: item.ProductID, quantity: item.Quantity})
	}
	return lines, nil
}

// lockOrder returns the lines sorted by product id. Locking product rows in
// one global order keeps two multi-item sales from deadlocking.
func lockOrder(lines []line) []line {
	ordered := make([]line, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].productID[:], ordered[j].productID[:]) < 0
	})
	return ordered
}

// CreateSale validates the request, locks the products, books one sale
// movement per product and persists the sale, all in one transaction.
// Either the whole sale exists with its stock deducted or nothing changed.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest, actor shared.Actor) (resp *SaleResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "create",
		telemetry.WithAttribute("item_count", len(req.Items)))
	defer func() { endSaleSpan(span, resp, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}
	if req.Discount.IsNegative() {
		return nil, shared.NewValidationError("discount cannot be negative")
	}
	if req.AmountPaid.IsNegative() {
		return nil, shared.NewValidationError("amount paid cannot be negative")
	}

	var events unitofwork.EventBuffer
	var sale *sales.Sale
	err = s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()

		products := make(map[uuid.UUID]*catalog.Product, len(lines))
		for _, l := range lockOrder(lines) {
			product, err := repos.ProductRepo().FindByIDForUpdate(ctx, l.productID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return shared.NewValidationError(fmt.Sprintf("product %s is not available for sale", product.Name))
			}
			products[product.ID] = product
		}

		items := make([]sales.SaleItem, 0, len(lines))
		for _, l := range lines {
			p := products[l.productID]
			item, err := sales.NewSaleItem(p.ID, p.Name, p.Barcode, p.Price, p.CostPrice, p.TaxRate, l.quantity)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		var err error
		sale, err = sales.NewSale(items, req.Discount, sales.Customer{Name: req.CustomerName, Phone: req.CustomerPhone}, req.Notes, actor)
		if err != nil {
			return err
		}

		for _, l := range lockOrder(lines) {
			if _, err := s.ledger.Record(ctx, repos, &events, inventory.MovementCommand{
				ProductID: l.productID,
				Type:      domaininventory.MovementTypeSale,
				Quantity:  -l.quantity,
				Reference: sale.SaleNumber,
			}, actor); err != nil {
				return err
			}
		}

		if err := sale.TenderCash(req.AmountPaid, actor); err != nil {
			return err
		}
		if err := repos.SaleRepo().Create(ctx, sale); err != nil {
			return err
		}
		events.Collect(sale)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)

	s.logger.Info("Sale created",
		zap.String("sale_number", sale.SaleNumber),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("amount_paid", sale.AmountPaid.StringFixed(2)),
		zap.String("payment_status", string(sale.PaymentStatus)),
		zap.Int("items", len(sale.Items)),
		zap.String("actor", actor.String()))
	out := ToSaleResponse(sale)
	return &out, nil
}

func endSaleSpan(span trace.Span, resp *SaleResponse, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
	} else if resp != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrSaleID, resp.ID,
			telemetry.SpanAttrSaleNumber, resp.SaleNumber,
			"status", resp.Status)
		telemetry.SetOK(span)
	}
	span.End()
}

// CancelSale cancels an unpaid or partially paid sale and returns every
// item to stock in the same transaction. Paid sales are refunded instead.
func (s *SaleService) CancelSale(ctx context.Context, saleID uuid.UUID, actor shared.Actor) (resp *SaleResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "cancel",
		telemetry.WithAttribute(telemetry.SpanAttrSaleID, saleID))
	defer func() { endSaleSpan(span, resp, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var events unitofwork.EventBuffer
	var sale *sales.Sale
	err = s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		var err error
		sale, err = repos.SaleRepo().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := sale.Cancel(actor); err != nil {
			return err
		}

		lines := make([]line, 0, len(sale.Items))
		for _, item := range sale.Items {
			lines = append(lines, line{productID: item.ProductID, quantity: item.Quantity})
		}
		for _, l := range lockOrder(lines) {
			if _, err := s.ledger.Record(ctx, repos, &events, inventory.MovementCommand{
				ProductID: l.productID,
				Type:      domaininventory.MovementTypeSale,
				Quantity:  l.quantity,
				Reference: sale.SaleNumber,
				Notes:     "Sale cancelled",
			}, actor); err != nil {
				return err
			}
		}

		if err := repos.SaleRepo().Save(ctx, sale); err != nil {
			return err
		}
		events.Collect(sale)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)

	s.logger.Info("Sale cancelled",
		zap.String("sale_number", sale.SaleNumber),
		zap.String("actor", actor.String()))
	out := ToSaleResponse(sale)
	return &out, nil
}

// GetSale returns a sale with its items
func (s *SaleService) GetSale(ctx context.Context, saleID uuid.UUID) (*SaleResponse, error) {
	sale, err := s.repos.SaleRepo().FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(sale)
	return &resp, nil
}

// ListSales lists sales; supports the "status", "payment_status" and
// "cashier_id" filter keys
func (s *SaleService) ListSales(ctx context.Context, filter shared.Filter) (*shared.Paginated[SaleResponse], error) {
	filter = filter.Normalize()
	list, total, err := s.repos.SaleRepo().FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]SaleResponse, len(list))
	for i := range list {
		items[i] = ToSaleResponse(&list[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}
