package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	catalogapp "github.com/retailpos/backend/internal/application/catalog"
	financeapp "github.com/retailpos/backend/internal/application/finance"
	inventoryapp "github.com/retailpos/backend/internal/application/inventory"
	salesapp "github.com/retailpos/backend/internal/application/sales"
	"github.com/retailpos/backend/internal/infrastructure/auth"
	"github.com/retailpos/backend/internal/infrastructure/cache"
	"github.com/retailpos/backend/internal/infrastructure/config"
	"github.com/retailpos/backend/internal/infrastructure/event"
	"github.com/retailpos/backend/internal/infrastructure/logger"
	"github.com/retailpos/backend/internal/infrastructure/payment"
	"github.com/retailpos/backend/internal/infrastructure/persistence"
	"github.com/retailpos/backend/internal/infrastructure/queue"
	"github.com/retailpos/backend/internal/infrastructure/telemetry"
	"github.com/retailpos/backend/internal/interfaces/http/handler"
	"github.com/retailpos/backend/internal/interfaces/http/middleware"
	"github.com/retailpos/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const instrumentationName = "github.com/retailpos/backend"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting retail POS backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) (err error) {
	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	if cfg.Telemetry.SpanProfiles && cfg.Telemetry.ProfilingEnabled {
		tracerProvider.EnableSpanProfiles()
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	exportLevel, err := zapcore.ParseLevel(cfg.Telemetry.LogsLevel)
	if err != nil {
		exportLevel = zapcore.InfoLevel
	}
	log = telemetry.TeeLogger(log, telemetry.NewOtelZapCore(logsProvider, cfg.Telemetry.ServiceName, exportLevel))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingServer,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.ProfilingAuthUser,
		BasicAuthPassword: cfg.Telemetry.ProfilingAuthPass,
	}, log)
	if err != nil {
		return err
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	meter := meterProvider.Meter(instrumentationName)

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	log.Info("Database connected successfully")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}
	dbMetrics, err := telemetry.NewDBMetrics(meter, cfg.Telemetry.DBSlowQueryThresh, log)
	if err != nil {
		return err
	}
	if err := dbMetrics.RegisterCallbacks(db.DB); err != nil {
		return err
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		if err := dbMetrics.ObservePool(meter, sqlDB); err != nil {
			log.Warn("Connection pool metrics not registered", zap.Error(err))
		}
	}

	// Event bus and subscribers
	eventBus := event.NewInMemoryEventBus(log)
	lowStockHandler := inventoryapp.NewLowStockAlertHandler(log, inventoryapp.NewLoggingStockAlertNotifier(log))
	eventBus.Subscribe(lowStockHandler, lowStockHandler.EventTypes()...)

	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:            meter,
		Logger:           log,
		LowStockProvider: telemetry.NewGormLowStockProvider(db.DB),
	})
	if err != nil {
		return err
	}
	eventBus.Subscribe(businessMetrics, businessMetrics.EventTypes()...)

	log.Info("Event handlers registered",
		zap.Strings("low_stock_events", lowStockHandler.EventTypes()),
		zap.Strings("metrics_events", businessMetrics.EventTypes()),
	)
	if err := eventBus.Start(ctx); err != nil {
		return err
	}

	// Payment gateways
	gateways, err := payment.NewRegistryFromConfig(cfg.Gateways, log)
	if err != nil {
		return err
	}

	// Application services
	scope := persistence.NewGormTransactionScope(db.DB)
	repos := persistence.NewRepositories(db.DB)
	ledger := inventoryapp.NewStockLedger(log)

	productService := catalogapp.NewProductService(catalogapp.ProductServiceConfig{
		Scope:                    scope,
		Repos:                    repos,
		Ledger:                   ledger,
		EventPublisher:           eventBus,
		DefaultLowStockThreshold: cfg.Inventory.DefaultLowStockThreshold,
		Logger:                   log,
	})
	stockService := inventoryapp.NewStockService(inventoryapp.StockServiceConfig{
		Scope:          scope,
		Repos:          repos,
		Ledger:         ledger,
		EventPublisher: eventBus,
		Logger:         log,
	})
	stockCountService := inventoryapp.NewStockCountService(inventoryapp.StockCountServiceConfig{
		Scope:          scope,
		Repos:          repos,
		Ledger:         ledger,
		EventPublisher: eventBus,
		Logger:         log,
	})
	saleService := salesapp.NewSaleService(salesapp.SaleServiceConfig{
		Scope:          scope,
		Repos:          repos,
		Ledger:         ledger,
		EventPublisher: eventBus,
		Logger:         log,
	})
	paymentService := financeapp.NewPaymentService(financeapp.PaymentServiceConfig{
		Scope:          scope,
		Repos:          repos,
		Gateways:       gateways,
		EventPublisher: eventBus,
		Logger:         log,
	})
	refundService := financeapp.NewRefundService(financeapp.RefundServiceConfig{
		Scope:          scope,
		Repos:          repos,
		Gateways:       gateways,
		EventPublisher: eventBus,
		Logger:         log,
	})

	// Callback reconciliation: idempotency store, reconciler, then the queue
	// whose worker calls back into the reconciler
	idempotency, err := cache.NewIdempotencyStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	reconciler := financeapp.NewCallbackReconciler(financeapp.CallbackReconcilerConfig{
		Scope:          scope,
		Repos:          repos,
		Gateways:       gateways,
		Payments:       paymentService,
		Idempotency:    idempotency,
		EventPublisher: eventBus,
		Logger:         log,
	})
	callbackQueue, err := queue.New(cfg, reconciler, log)
	if err != nil {
		return err
	}
	reconciler.SetQueue(callbackQueue)
	log.Info("Callback queue configured",
		zap.String("driver", cfg.Queue.Driver),
		zap.Int("concurrency", cfg.Queue.Concurrency),
	)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	jwtService := auth.NewJWTService(cfg.JWT)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthChecker{
		"database": handler.HealthCheckFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	})

	engine := router.New(router.Config{
		Logger: log,
		Auth:   jwtService,
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		},
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		MeterProvider: meterProvider,
	}, router.Handlers{
		System:     systemHandler,
		Product:    handler.NewProductHandler(productService, stockService),
		Stock:      handler.NewStockHandler(stockService),
		StockCount: handler.NewStockCountHandler(stockCountService),
		Sale:       handler.NewSaleHandler(saleService, paymentService),
		Payment:    handler.NewPaymentHandler(paymentService),
		Refund:     handler.NewRefundHandler(refundService),
		Callback:   handler.NewPaymentCallbackHandler(reconciler),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return callbackQueue.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	// Release resources in reverse order of construction
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	err = multierr.Combine(
		err,
		callbackQueue.Close(),
		idempotency.Close(),
		eventBus.Stop(shutdownCtx),
		businessMetrics.Stop(),
		dbMetrics.Stop(),
		db.Close(),
		meterProvider.Shutdown(shutdownCtx),
		profiler.Stop(),
		tracerProvider.Shutdown(shutdownCtx),
		logsProvider.Shutdown(shutdownCtx),
	)
	return err
}
