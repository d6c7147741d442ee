package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence"
	"github.com/retailpos/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// mockGateway is a PaymentGateway and CallbackParser driven by testify expectations
type mockGateway struct {
	mock.Mock
	method finance.PaymentMethod
}

func newMockGateway(method finance.PaymentMethod) *mockGateway {
	return &mockGateway{method: method}
}

func (g *mockGateway) Method() finance.PaymentMethod { return g.method }

func (g *mockGateway) Initiate(ctx context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	args := g.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.InitiateResult), args.Error(1)
}

func (g *mockGateway) Verify(ctx context.Context, req *finance.VerifyRequest) (*finance.VerifyResult, error) {
	args := g.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.VerifyResult), args.Error(1)
}

func (g *mockGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	args := g.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.RefundResult), args.Error(1)
}

func (g *mockGateway) ParseCallback(payload []byte) (*finance.CallbackNotification, error) {
	args := g.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.CallbackNotification), args.Error(1)
}

func (g *mockGateway) AcknowledgeCallback(accepted bool, message string) []byte {
	return []byte(`{"ResultCode":0,"ResultDesc":"` + message + `"}`)
}

// settledGateway behaves like the cash drawer
type settledGateway struct{}

func (settledGateway) Method() finance.PaymentMethod { return finance.PaymentMethodCash }

func (settledGateway) Initiate(_ context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	return &finance.InitiateResult{Accepted: true, Settled: true, ExternalReference: "CASH-" + req.TransactionReference}, nil
}

func (settledGateway) Verify(_ context.Context, _ *finance.VerifyRequest) (*finance.VerifyResult, error) {
	return &finance.VerifyResult{Outcome: finance.OutcomeSuccess}, nil
}

func (settledGateway) Refund(_ context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	return &finance.RefundResult{Completed: true, ExternalReference: "CASH-" + req.RefundReference}, nil
}

// memoryIdempotency is a map-backed shared.IdempotencyStore
type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (m *memoryIdempotency) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotency) IsProcessed(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryIdempotency) Close() error { return nil }

// recordingQueue collects enqueued callback IDs
type recordingQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (q *recordingQueue) EnqueueCallback(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return q.err
}

func (q *recordingQueue) enqueued() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uuid.UUID(nil), q.ids...)
}

type financeFixture struct {
	db         *gorm.DB
	repos      *persistence.Repositories
	mpesa      *mockGateway
	publisher  *testutil.RecordingPublisher
	payments   *PaymentService
	refunds    *RefundService
	reconciler *CallbackReconciler
	idem       *memoryIdempotency
	clerk      shared.Actor
}

func newFinanceFixture(t *testing.T) *financeFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	repos := persistence.NewRepositories(db)
	scope := persistence.NewGormTransactionScope(db)
	publisher := testutil.NewRecordingPublisher()
	mpesa := newMockGateway(finance.PaymentMethodMpesa)
	registry := finance.NewGatewayRegistry(settledGateway{}, mpesa)
	idem := newMemoryIdempotency()

	payments := NewPaymentService(PaymentServiceConfig{
		Scope: scope, Repos: repos, Gateways: registry, EventPublisher: publisher,
	})
	refunds := NewRefundService(RefundServiceConfig{
		Scope: scope, Repos: repos, Gateways: registry, EventPublisher: publisher,
	})
	reconciler := NewCallbackReconciler(CallbackReconcilerConfig{
		Scope: scope, Repos: repos, Gateways: registry, Payments: payments,
		Idempotency: idem, EventPublisher: publisher,
	})
	return &financeFixture{
		db:         db,
		repos:      repos,
		mpesa:      mpesa,
		publisher:  publisher,
		payments:   payments,
		refunds:    refunds,
		reconciler: reconciler,
		idem:       idem,
		clerk:      shared.UserActor("cashier-1"),
	}
}

// seedSale stores an unpaid sale of one untaxed line worth total
func (f *financeFixture) seedSale(t *testing.T, total string) *sales.Sale {
	t.Helper()
	product := testutil.SeedProduct(t, f.db, "Rice 5kg", total, "0", 50)
	item, err := sales.NewSaleItem(product.ID, product.Name, product.Barcode, product.Price, product.CostPrice, product.TaxRate, 1)
	require.NoError(t, err)
	sale, err := sales.NewSale([]sales.SaleItem{item}, decimal.Zero, sales.Customer{}, "", f.clerk)
	require.NoError(t, err)
	require.NoError(t, f.repos.SaleRepo().Create(context.Background(), sale))
	sale.ClearDomainEvents()
	return sale
}

func (f *financeFixture) reloadSale(t *testing.T, id uuid.UUID) *sales.Sale {
	t.Helper()
	sale, err := f.repos.SaleRepo().FindByID(context.Background(), id)
	require.NoError(t, err)
	return sale
}

func (f *financeFixture) reloadPayment(t *testing.T, id uuid.UUID) *finance.Payment {
	t.Helper()
	payment, err := f.repos.PaymentRepo().FindByID(context.Background(), id)
	require.NoError(t, err)
	return payment
}

// expectAsyncInitiate makes the mocked M-Pesa gateway accept one STK push
func (f *financeFixture) expectAsyncInitiate(checkoutID string) {
	f.mpesa.On("Initiate", mock.Anything, mock.AnythingOfType("*finance.InitiateRequest")).Return(&finance.InitiateResult{
		Accepted:          true,
		ExternalReference: checkoutID,
		Metadata: map[finance.MetadataKey]string{
			finance.MetadataCheckoutRequestID: checkoutID,
			finance.MetadataMerchantRequestID: "MR-" + checkoutID,
		},
	}, nil).Once()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
