package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	financeapp "github.com/retailpos/backend/internal/application/finance"
	salesapp "github.com/retailpos/backend/internal/application/sales"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/interfaces/http/dto"
	"github.com/retailpos/backend/internal/interfaces/http/middleware"
	"github.com/retailpos/backend/tests/testutil"
)

var cashier = shared.UserActor("cashier-1")

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// newTestRouter authenticates every request as cashier unless the
// X-Anonymous header is set.
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Anonymous") == "" {
			c.Set(middleware.ActorKey, cashier)
		}
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	h := make(map[string]string, len(headers)/2)
	for i := 0; i+1 < len(headers); i += 2 {
		h[headers[i]] = headers[i+1]
	}
	return testutil.PerformRequest(t, r, method, path, body, h)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	return testutil.JSONResponseAs[dto.Response](t, w)
}

// MockSaleService mocks SaleService
type MockSaleService struct {
	mock.Mock
}

func (m *MockSaleService) CreateSale(ctx context.Context, req salesapp.CreateSaleRequest, actor shared.Actor) (*salesapp.SaleResponse, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.SaleResponse), args.Error(1)
}

func (m *MockSaleService) CancelSale(ctx context.Context, saleID uuid.UUID, actor shared.Actor) (*salesapp.SaleResponse, error) {
	args := m.Called(ctx, saleID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.SaleResponse), args.Error(1)
}

func (m *MockSaleService) GetSale(ctx context.Context, saleID uuid.UUID) (*salesapp.SaleResponse, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.SaleResponse), args.Error(1)
}

func (m *MockSaleService) ListSales(ctx context.Context, filter shared.Filter) (*shared.Paginated[salesapp.SaleResponse], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[salesapp.SaleResponse]), args.Error(1)
}

// MockPaymentService mocks PaymentService and SalePaymentLister
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) paymentResult(args mock.Arguments) (*financeapp.PaymentResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) InitiatePayment(ctx context.Context, req financeapp.InitiatePaymentRequest, actor shared.Actor) (*financeapp.PaymentResponse, error) {
	return m.paymentResult(m.Called(ctx, req, actor))
}

func (m *MockPaymentService) ResolvePayment(ctx context.Context, id uuid.UUID, req financeapp.ResolvePaymentRequest, actor shared.Actor) (*financeapp.PaymentResponse, error) {
	return m.paymentResult(m.Called(ctx, id, req, actor))
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, id uuid.UUID, actor shared.Actor) (*financeapp.PaymentResponse, error) {
	return m.paymentResult(m.Called(ctx, id, actor))
}

func (m *MockPaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*financeapp.PaymentResponse, error) {
	return m.paymentResult(m.Called(ctx, id))
}

func (m *MockPaymentService) GetPaymentByReference(ctx context.Context, ref string) (*financeapp.PaymentResponse, error) {
	return m.paymentResult(m.Called(ctx, ref))
}

func (m *MockPaymentService) ListPendingPayments(ctx context.Context, filter shared.Filter) (*shared.Paginated[financeapp.PaymentResponse], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[financeapp.PaymentResponse]), args.Error(1)
}

func (m *MockPaymentService) ListSalePayments(ctx context.Context, saleID uuid.UUID) ([]financeapp.PaymentResponse, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]financeapp.PaymentResponse), args.Error(1)
}

// MockCallbackIngestor mocks CallbackIngestor
type MockCallbackIngestor struct {
	mock.Mock
}

func (m *MockCallbackIngestor) Ingest(ctx context.Context, method finance.PaymentMethod, payload []byte) (*financeapp.IngestResult, error) {
	args := m.Called(ctx, method, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.IngestResult), args.Error(1)
}

func (m *MockCallbackIngestor) GetCallback(ctx context.Context, id uuid.UUID) (*financeapp.CallbackResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.CallbackResponse), args.Error(1)
}

func (m *MockCallbackIngestor) ListCallbacks(ctx context.Context, filter shared.Filter) (*shared.Paginated[financeapp.CallbackResponse], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[financeapp.CallbackResponse]), args.Error(1)
}

func saleRoutes(sales *MockSaleService, payments *MockPaymentService) *gin.Engine {
	h := NewSaleHandler(sales, payments)
	r := newTestRouter()
	r.POST("/sales", h.Create)
	r.GET("/sales", h.List)
	r.GET("/sales/:id", h.Get)
	r.POST("/sales/:id/cancel", h.Cancel)
	r.GET("/sales/:id/payments", h.Payments)
	return r
}

func TestSaleHandler_Create(t *testing.T) {
	productID := uuid.New()

	t.Run("created", func(t *testing.T) {
		sales := new(MockSaleService)
		saleID := uuid.New()
		sales.On("CreateSale", mock.Anything, mock.MatchedBy(func(req salesapp.CreateSaleRequest) bool {
			return len(req.Items) == 1 && req.Items[0].ProductID == productID && req.Items[0].Quantity == 2
		}), cashier).Return(&salesapp.SaleResponse{ID: saleID, SaleNumber: "SALE-20261017-ABC123", Status: "pending"}, nil)

		w := doJSON(t, saleRoutes(sales, new(MockPaymentService)), http.MethodPost, "/sales",
			map[string]any{"items": []map[string]any{{"product_id": productID, "quantity": 2}}})

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "SALE-20261017-ABC123", resp.Data.(map[string]any)["sale_number"])
		sales.AssertExpectations(t)
	})

	t.Run("validation failure lists fields", func(t *testing.T) {
		sales := new(MockSaleService)
		w := doJSON(t, saleRoutes(sales, new(MockPaymentService)), http.MethodPost, "/sales", map[string]any{"items": []any{}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "items", resp.Error.Details[0].Field)
		sales.AssertNotCalled(t, "CreateSale")
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doJSON(t, saleRoutes(new(MockSaleService), new(MockPaymentService)), http.MethodPost, "/sales", `{"items":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		testutil.AssertErrorResponse(t, w, dto.ErrCodeInvalidJSON)
	})

	t.Run("insufficient stock maps to 422", func(t *testing.T) {
		sales := new(MockSaleService)
		sales.On("CreateSale", mock.Anything, mock.Anything, cashier).
			Return(nil, shared.NewDomainError(shared.CodeInsufficientStock, "only 0 left"))

		w := doJSON(t, saleRoutes(sales, new(MockPaymentService)), http.MethodPost, "/sales",
			map[string]any{"items": []map[string]any{{"product_id": productID, "quantity": 1}}})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)
		assert.Equal(t, "only 0 left", resp.Error.Message)
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		w := doJSON(t, saleRoutes(new(MockSaleService), new(MockPaymentService)), http.MethodPost, "/sales",
			map[string]any{"items": []map[string]any{{"product_id": productID, "quantity": 1}}}, "X-Anonymous", "1")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSaleHandler_Cancel(t *testing.T) {
	saleID := uuid.New()

	t.Run("paid sale cannot be cancelled", func(t *testing.T) {
		sales := new(MockSaleService)
		sales.On("CancelSale", mock.Anything, saleID, cashier).Return(nil, shared.ErrInvalidTransition)

		w := doJSON(t, saleRoutes(sales, new(MockPaymentService)), http.MethodPost, "/sales/"+saleID.String()+"/cancel", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		testutil.AssertErrorResponse(t, w, dto.ErrCodeInvalidTransition)
	})

	t.Run("bad id", func(t *testing.T) {
		w := doJSON(t, saleRoutes(new(MockSaleService), new(MockPaymentService)), http.MethodPost, "/sales/not-a-uuid/cancel", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSaleHandler_GetAndList(t *testing.T) {
	sales := new(MockSaleService)
	missing := uuid.New()
	sales.On("GetSale", mock.Anything, missing).Return(nil, shared.ErrNotFound)
	sales.On("ListSales", mock.Anything, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Page == 2 && f.PageSize == 10 && f.Filters["status"] == "completed" && f.Filters["cashier_id"] == nil
	})).Return(&shared.Paginated[salesapp.SaleResponse]{
		Items: []salesapp.SaleResponse{{ID: uuid.New()}}, Total: 11, Page: 2, PageSize: 10,
	}, nil)

	r := saleRoutes(sales, new(MockPaymentService))

	w := doJSON(t, r, http.MethodGet, "/sales/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/sales?page=2&page_size=10&status=completed&ignored=x", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	w = doJSON(t, r, http.MethodGet, "/sales?page_size=5000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	sales.AssertExpectations(t)
}

func TestSaleHandler_InfrastructureErrorIsMasked(t *testing.T) {
	sales := new(MockSaleService)
	id := uuid.New()
	sales.On("GetSale", mock.Anything, id).Return(nil, errors.New("pq: connection refused"))

	w := doJSON(t, saleRoutes(sales, new(MockPaymentService)), http.MethodGet, "/sales/"+id.String(), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func paymentRoutes(payments *MockPaymentService) *gin.Engine {
	h := NewPaymentHandler(payments)
	r := newTestRouter()
	r.POST("/payments", h.Initiate)
	r.GET("/payments/pending", h.ListPending)
	r.GET("/payments/:id", h.Get)
	r.POST("/payments/:id/verify", h.Verify)
	r.POST("/payments/:id/resolve", h.Resolve)
	return r
}

func TestPaymentHandler_Initiate(t *testing.T) {
	saleID := uuid.New()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"over payment", shared.ErrOverPayment, http.StatusUnprocessableEntity, dto.ErrCodeOverPayment},
		{"gateway down", shared.NewDomainError(shared.CodeGatewayError, "mpesa: 503"), http.StatusBadGateway, dto.ErrCodeGateway},
		{"method disabled", shared.ErrGatewayUnsupported, http.StatusUnprocessableEntity, dto.ErrCodeGatewayUnsupported},
	}
	for _, tt := range tests {
		payments := new(MockPaymentService)
		payments.On("InitiatePayment", mock.Anything, mock.Anything, cashier).Return(nil, tt.err)

		t.Run(tt.name, func(t *testing.T) {
			testutil.RunHTTPTestCase(t, paymentRoutes(payments), testutil.HTTPTestCase{
				Method:         http.MethodPost,
				Path:           "/payments",
				Body:           map[string]any{"sale_id": saleID, "method": "mpesa", "amount": "100", "phone_number": "0712345678"},
				ExpectedStatus: tt.status,
				ExpectedCode:   tt.code,
			})
			payments.AssertExpectations(t)
		})
	}

	t.Run("processing", func(t *testing.T) {
		payments := new(MockPaymentService)
		payments.On("InitiatePayment", mock.Anything, mock.MatchedBy(func(req financeapp.InitiatePaymentRequest) bool {
			return req.SaleID == saleID && req.Amount.Equal(decimal.NewFromInt(100)) && req.Method == "mpesa"
		}), cashier).Return(&financeapp.PaymentResponse{ID: uuid.New(), SaleID: saleID, Status: "processing"}, nil)

		w := doJSON(t, paymentRoutes(payments), http.MethodPost, "/payments",
			map[string]any{"sale_id": saleID, "method": "mpesa", "amount": "100", "phone_number": "0712345678"})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "processing", decode(t, w).Data.(map[string]any)["status"])
	})

	t.Run("unknown method rejected by binding", func(t *testing.T) {
		payments := new(MockPaymentService)
		w := doJSON(t, paymentRoutes(payments), http.MethodPost, "/payments",
			map[string]any{"sale_id": saleID, "method": "bitcoin", "amount": "100"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		payments.AssertNotCalled(t, "InitiatePayment")
	})
}

func TestPaymentHandler_ResolveConflict(t *testing.T) {
	payments := new(MockPaymentService)
	id := uuid.New()
	payments.On("ResolvePayment", mock.Anything, id, financeapp.ResolvePaymentRequest{Outcome: finance.OutcomeFailed}, cashier).
		Return(nil, shared.ErrConflictingResolution)

	w := doJSON(t, paymentRoutes(payments), http.MethodPost, "/payments/"+id.String()+"/resolve",
		map[string]any{"outcome": "failed"})

	assert.Equal(t, http.StatusConflict, w.Code)
	testutil.AssertErrorResponse(t, w, dto.ErrCodeConflictingResolution)
}

func TestPaymentHandler_ListPendingRoutesBeforeID(t *testing.T) {
	payments := new(MockPaymentService)
	payments.On("ListPendingPayments", mock.Anything, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["method"] == "airtel"
	})).Return(&shared.Paginated[financeapp.PaymentResponse]{Page: 1, PageSize: 20}, nil)

	w := doJSON(t, paymentRoutes(payments), http.MethodGet, "/payments/pending?method=airtel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	payments.AssertExpectations(t)
}

func callbackRoutes(cb *MockCallbackIngestor) *gin.Engine {
	h := NewPaymentCallbackHandler(cb)
	r := newTestRouter()
	r.POST("/payments/callbacks/:gateway", h.Receive)
	r.GET("/payment-callbacks", h.List)
	r.GET("/payment-callbacks/:id", h.Get)
	return r
}

func TestPaymentCallbackHandler_Receive(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`
	mpesaAck := []byte(`{"ResultCode":0,"ResultDesc":"Accepted"}`)

	t.Run("returns gateway ack", func(t *testing.T) {
		cb := new(MockCallbackIngestor)
		cb.On("Ingest", mock.Anything, finance.PaymentMethodMpesa, []byte(payload)).
			Return(&financeapp.IngestResult{Ack: mpesaAck}, nil)

		w := doJSON(t, callbackRoutes(cb), http.MethodPost, "/payments/callbacks/MPESA", payload, "X-Anonymous", "1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, string(mpesaAck), w.Body.String())
		cb.AssertExpectations(t)
	})

	t.Run("storage failure still acknowledges", func(t *testing.T) {
		cb := new(MockCallbackIngestor)
		cb.On("Ingest", mock.Anything, finance.PaymentMethodMpesa, mock.Anything).
			Return(&financeapp.IngestResult{Ack: mpesaAck}, errors.New("store callback: db down"))

		w := doJSON(t, callbackRoutes(cb), http.MethodPost, "/payments/callbacks/mpesa", payload, "X-Anonymous", "1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, string(mpesaAck), w.Body.String())
	})

	t.Run("nil result falls back", func(t *testing.T) {
		cb := new(MockCallbackIngestor)
		cb.On("Ingest", mock.Anything, finance.PaymentMethod("paypal"), mock.Anything).Return(nil, errors.New("boom"))

		w := doJSON(t, callbackRoutes(cb), http.MethodPost, "/payments/callbacks/paypal", "garbage", "X-Anonymous", "1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, string(fallbackAck), w.Body.String())
	})
}

func TestPaymentCallbackHandler_List(t *testing.T) {
	cb := new(MockCallbackIngestor)
	cb.On("ListCallbacks", mock.Anything, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["processed"] == "false" && f.Filters["method"] == "card"
	})).Return(&shared.Paginated[financeapp.CallbackResponse]{
		Items: []financeapp.CallbackResponse{{ID: uuid.New(), Method: "card"}}, Total: 1, Page: 1, PageSize: 20,
	}, nil)

	w := doJSON(t, callbackRoutes(cb), http.MethodGet, "/payment-callbacks?processed=false&method=card", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Len(t, resp.Data.([]any), 1)
	cb.AssertExpectations(t)
}
