package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	financeapp "github.com/retailpos/backend/internal/application/finance"
	inventoryapp "github.com/retailpos/backend/internal/application/inventory"
	salesapp "github.com/retailpos/backend/internal/application/sales"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/payment"
	"github.com/retailpos/backend/internal/infrastructure/persistence"
	"github.com/retailpos/backend/tests/testutil"
)

type services struct {
	sales    *salesapp.SaleService
	payments *financeapp.PaymentService
	refunds  *financeapp.RefundService
	stock    *inventoryapp.StockService
	events   *testutil.RecordingPublisher
}

func newServices(tdb *TestDB) *services {
	scope := persistence.NewGormTransactionScope(tdb.DB)
	repos := persistence.NewRepositories(tdb.DB)
	ledger := inventoryapp.NewStockLedger(nil)
	gateways := finance.NewGatewayRegistry(payment.NewCashGateway())
	events := testutil.NewRecordingPublisher()

	return &services{
		sales: salesapp.NewSaleService(salesapp.SaleServiceConfig{
			Scope: scope, Repos: repos, Ledger: ledger, EventPublisher: events,
		}),
		payments: financeapp.NewPaymentService(financeapp.PaymentServiceConfig{
			Scope: scope, Repos: repos, Gateways: gateways, EventPublisher: events,
		}),
		refunds: financeapp.NewRefundService(financeapp.RefundServiceConfig{
			Scope: scope, Repos: repos, Gateways: gateways, EventPublisher: events,
		}),
		stock: inventoryapp.NewStockService(inventoryapp.StockServiceConfig{
			Scope: scope, Repos: repos, Ledger: ledger, EventPublisher: events,
		}),
		events: events,
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	tdb := NewSharedTestDB(t)
	svc := newServices(tdb)
	product := testutil.SeedProduct(t, tdb.DB, "Bread", "60", "0", 5)

	const attempts = 12
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.sales.CreateSale(context.Background(), salesapp.CreateSaleRequest{
				Items: []salesapp.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
			}, testutil.TestActor())
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int32(attempts-5), rejected.Load())
	assert.Equal(t, 0, testutil.ProductStock(t, tdb.DB, product.ID))
	assert.Equal(t, 0, testutil.LedgerSum(t, tdb.DB, product.ID))

	check, err := svc.stock.VerifyLedger(context.Background(), product.ID)
	require.NoError(t, err)
	assert.True(t, check.IsConsistent)
}

func TestCancelSaleRestoresStock(t *testing.T) {
	tdb := NewSharedTestDB(t)
	svc := newServices(tdb)
	ctx := context.Background()
	product := testutil.SeedProduct(t, tdb.DB, "Milk", "55", "16", 10)

	sale, err := svc.sales.CreateSale(ctx, salesapp.CreateSaleRequest{
		Items: []salesapp.SaleItemRequest{{ProductID: product.ID, Quantity: 4}},
	}, testutil.TestActor())
	require.NoError(t, err)
	assert.Equal(t, 6, testutil.ProductStock(t, tdb.DB, product.ID))

	cancelled, err := svc.sales.CancelSale(ctx, sale.ID, testutil.TestActor())
	require.NoError(t, err)
	assert.Equal(t, string(sales.SaleStatusCancelled), cancelled.Status)
	assert.Equal(t, 10, testutil.ProductStock(t, tdb.DB, product.ID))
	assert.Equal(t, 10, testutil.LedgerSum(t, tdb.DB, product.ID))

	_, err = svc.sales.CancelSale(ctx, sale.ID, testutil.TestActor())
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
}

func TestCashPaymentAndRefund(t *testing.T) {
	tdb := NewSharedTestDB(t)
	svc := newServices(tdb)
	ctx := context.Background()
	product := testutil.SeedProduct(t, tdb.DB, "Rice 2kg", "100", "0", 3)

	sale, err := svc.sales.CreateSale(ctx, salesapp.CreateSaleRequest{
		Items: []salesapp.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
	}, testutil.TestActor())
	require.NoError(t, err)

	_, err = svc.payments.InitiatePayment(ctx, financeapp.InitiatePaymentRequest{
		SaleID: sale.ID, Method: "cash", Amount: decimal.NewFromInt(150),
	}, testutil.TestActor())
	assert.True(t, errors.Is(err, shared.ErrOverPayment))

	paid, err := svc.payments.InitiatePayment(ctx, financeapp.InitiatePaymentRequest{
		SaleID: sale.ID, Method: "cash", Amount: decimal.NewFromInt(100),
	}, testutil.TestActor())
	require.NoError(t, err)
	assert.Equal(t, string(finance.PaymentStatusSuccess), paid.Status)

	settled, err := svc.sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, string(sales.PaymentStatusPaid), settled.PaymentStatus)
	assert.Equal(t, string(sales.SaleStatusCompleted), settled.Status)

	refund, err := svc.refunds.RequestRefund(ctx, financeapp.RequestRefundRequest{
		PaymentID: paid.ID, Amount: decimal.NewFromInt(40), Reason: "damaged bag",
	}, testutil.TestActor())
	require.NoError(t, err)
	refund, err = svc.refunds.ApproveRefund(ctx, refund.ID, shared.UserActor("manager-1"))
	require.NoError(t, err)
	assert.Equal(t, string(finance.RefundStatusCompleted), refund.Status)

	balance, err := svc.refunds.RefundableBalance(ctx, paid.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(balance), "got %s", balance)

	_, err = svc.refunds.RequestRefund(ctx, financeapp.RequestRefundRequest{
		PaymentID: paid.ID, Amount: decimal.NewFromInt(70), Reason: "too much",
	}, testutil.TestActor())
	assert.True(t, errors.Is(err, shared.ErrRefundExceedsBalance))
}
