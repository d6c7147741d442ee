package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	financeapp "github.com/retailpos/backend/internal/application/finance"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/auth"
	"github.com/retailpos/backend/internal/interfaces/http/dto"
	"github.com/retailpos/backend/internal/interfaces/http/handler"
	"github.com/retailpos/backend/internal/interfaces/http/middleware"
	"github.com/retailpos/backend/tests/testutil"
)

type stubValidator struct{}

func (stubValidator) ValidateAccessToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: "cashier-1", Username: "cashier"}, nil
}

type stubIngestor struct {
	ingested []finance.PaymentMethod
}

func (s *stubIngestor) Ingest(_ context.Context, method finance.PaymentMethod, _ []byte) (*financeapp.IngestResult, error) {
	s.ingested = append(s.ingested, method)
	return &financeapp.IngestResult{Ack: []byte(`{"ResultCode":0}`)}, nil
}

func (s *stubIngestor) GetCallback(context.Context, uuid.UUID) (*financeapp.CallbackResponse, error) {
	return nil, shared.ErrNotFound
}

func (s *stubIngestor) ListCallbacks(_ context.Context, filter shared.Filter) (*shared.Paginated[financeapp.CallbackResponse], error) {
	return &shared.Paginated[financeapp.CallbackResponse]{
		Items:    []financeapp.CallbackResponse{{ID: uuid.New(), Method: "mpesa"}},
		Total:    1,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func newTestEngine(t *testing.T, ingestor *stubIngestor, checks map[string]handler.HealthChecker) http.Handler {
	t.Helper()
	return New(Config{
		Auth: stubValidator{},
		CORS: middleware.DefaultCORSConfig(),
	}, Handlers{
		System:   handler.NewSystemHandler("retailpos", "test", checks),
		Callback: handler.NewPaymentCallbackHandler(ingestor),
		// Remaining handlers are only reached after auth in these tests
		Product:    handler.NewProductHandler(nil, nil),
		Stock:      handler.NewStockHandler(nil),
		StockCount: handler.NewStockCountHandler(nil),
		Sale:       handler.NewSaleHandler(nil, nil),
		Payment:    handler.NewPaymentHandler(nil),
		Refund:     handler.NewRefundHandler(nil),
	})
}

func TestNew_HealthIsPublic(t *testing.T) {
	engine := newTestEngine(t, &stubIngestor{}, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestNew_HealthDegraded(t *testing.T) {
	engine := newTestEngine(t, &stubIngestor{}, map[string]handler.HealthChecker{
		"database": handler.HealthCheckFunc(func(context.Context) error { return errors.New("down") }),
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNew_CallbackSkipsAuth(t *testing.T) {
	ingestor := &stubIngestor{}
	engine := newTestEngine(t, ingestor, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callbacks/MPESA", strings.NewReader(`{"Body":{}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0}`, w.Body.String())
	require.Len(t, ingestor.ingested, 1)
	assert.Equal(t, finance.PaymentMethodMpesa, ingestor.ingested[0])
}

func TestNew_VersionedRoutesRequireToken(t *testing.T) {
	engine := newTestEngine(t, &stubIngestor{}, nil)

	cases := []testutil.HTTPTestCase{
		{Name: "products", Method: http.MethodGet, Path: "/api/v1/products"},
		{Name: "stock movements", Method: http.MethodPost, Path: "/api/v1/stock/movements"},
		{Name: "stock counts", Method: http.MethodGet, Path: "/api/v1/stock-counts"},
		{Name: "sales", Method: http.MethodPost, Path: "/api/v1/sales"},
		{Name: "pending payments", Method: http.MethodGet, Path: "/api/v1/payments/pending"},
		{Name: "refunds", Method: http.MethodPost, Path: "/api/v1/refunds"},
		{Name: "callback listing", Method: http.MethodGet, Path: "/api/v1/payment-callbacks"},
		{
			Name:    "malformed header",
			Method:  http.MethodGet,
			Path:    "/api/v1/sales",
			Headers: map[string]string{"Authorization": "Basic abc"},
		},
	}
	for i := range cases {
		cases[i].ExpectedStatus = http.StatusUnauthorized
		cases[i].ExpectedCode = dto.ErrCodeUnauthorized
	}
	testutil.RunHTTPTestCases(t, engine, cases)
}

func TestNew_AuthenticatedListCallbacks(t *testing.T) {
	engine := newTestEngine(t, &stubIngestor{}, nil)

	testutil.RunHTTPTestCase(t, engine, testutil.HTTPTestCase{
		Method:         http.MethodGet,
		Path:           "/api/v1/payment-callbacks?page=1&page_size=10",
		Headers:        map[string]string{"Authorization": "Bearer good"},
		ExpectedStatus: http.StatusOK,
		Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
			testutil.AssertSuccessResponse(t, w)
			body := testutil.JSONResponseAs[struct {
				Data []json.RawMessage `json:"data"`
			}](t, w)
			assert.Len(t, body.Data, 1)
		},
	})
}

func TestNew_InvalidTokenRejected(t *testing.T) {
	engine := newTestEngine(t, &stubIngestor{}, nil)

	testutil.RunHTTPTestCase(t, engine, testutil.HTTPTestCase{
		Method:         http.MethodGet,
		Path:           "/api/v1/payment-callbacks",
		Headers:        map[string]string{"Authorization": "Bearer bad"},
		ExpectedStatus: http.StatusUnauthorized,
		ExpectedCode:   dto.ErrCodeTokenInvalid,
	})
}
