package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/infrastructure/logger"
	"github.com/retailpos/backend/internal/infrastructure/telemetry"
	"github.com/retailpos/backend/internal/interfaces/http/handler"
	"github.com/retailpos/backend/internal/interfaces/http/middleware"
)

// Handlers bundles every HTTP handler the API serves
type Handlers struct {
	System      *handler.SystemHandler
	Product     *handler.ProductHandler
	Stock       *handler.StockHandler
	StockCount  *handler.StockCountHandler
	Sale        *handler.SaleHandler
	Payment     *handler.PaymentHandler
	Refund      *handler.RefundHandler
	Callback    *handler.PaymentCallbackHandler
}

// Config holds the cross-cutting settings of the HTTP engine
type Config struct {
	Logger         *zap.Logger
	Auth           middleware.TokenValidator
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	TrustedProxies []string
	Tracing        middleware.TracingConfig
	MeterProvider  *telemetry.MeterProvider
}

// New builds the gin engine with the middleware stack and all routes.
// Middleware order: request ID, recovery, tracing, request log, security
// headers, CORS, body limit, metrics. Versioned routes add JWT auth.
func New(cfg Config, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: cfg.MeterProvider,
		Enabled:       cfg.MeterProvider != nil,
		Logger:        log,
	}))

	engine.GET("/health", h.System.Health)

	// Gateways call back without credentials; the payload is the proof
	engine.POST("/api/v1/payments/callbacks/:gateway", h.Callback.Receive)

	jwtCfg := middleware.DefaultJWTConfig(cfg.Auth)
	jwtCfg.Logger = log

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtCfg), middleware.TracingAttributeInjector())

	r.Register(NewDomainGroup("catalog", "/products").
		POST("", h.Product.Create).
		GET("", h.Product.List).
		GET("/:id", h.Product.GetByID).
		POST("/:id/deactivate", h.Product.Deactivate).
		GET("/:id/movements", h.Product.Movements).
		GET("/:id/ledger-check", h.Product.LedgerCheck))

	r.Register(NewDomainGroup("inventory", "/stock").
		POST("/movements", h.Stock.RecordMovement).
		GET("/movements", h.Stock.ListMovements).
		GET("/alerts", h.Stock.ListAlerts).
		POST("/alerts/:id/resolve", h.Stock.ResolveAlert).
		POST("/alerts/:id/ignore", h.Stock.IgnoreAlert))

	r.Register(NewDomainGroup("stock-count", "/stock-counts").
		POST("", h.StockCount.Start).
		GET("", h.StockCount.List).
		GET("/:id", h.StockCount.Get).
		POST("/:id/items", h.StockCount.AddItem).
		POST("/:id/complete", h.StockCount.Complete).
		POST("/:id/cancel", h.StockCount.Cancel))

	r.Register(NewDomainGroup("sales", "/sales").
		POST("", h.Sale.Create).
		GET("", h.Sale.List).
		GET("/:id", h.Sale.Get).
		POST("/:id/cancel", h.Sale.Cancel).
		GET("/:id/payments", h.Sale.Payments))

	r.Register(NewDomainGroup("payments", "/payments").
		POST("", h.Payment.Initiate).
		GET("/pending", h.Payment.ListPending).
		GET("/reference/:reference", h.Payment.GetByReference).
		GET("/:id", h.Payment.Get).
		POST("/:id/verify", h.Payment.Verify).
		POST("/:id/resolve", h.Payment.Resolve).
		GET("/:id/refunds", h.Refund.ListForPayment))

	r.Register(NewDomainGroup("refunds", "/refunds").
		POST("", h.Refund.Request).
		GET("/:id", h.Refund.Get).
		POST("/:id/approve", h.Refund.Approve))

	r.Register(NewDomainGroup("payment-callbacks", "/payment-callbacks").
		GET("", h.Callback.List).
		GET("/:id", h.Callback.Get))

	r.Setup()
	return engine
}
