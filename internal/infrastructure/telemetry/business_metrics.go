package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/retailpos/backend/internal/domain/shared"
)

// LowStockProvider reports the number of active low-stock alerts
type LowStockProvider interface {
	CountActiveAlerts(ctx context.Context) (int64, error)
}

// BusinessMetrics turns domain events into counters. It subscribes to the
// event bus like any other handler, so services stay free of metric calls.
type BusinessMetrics struct {
	logger *zap.Logger

	salesTotal        *Counter
	salesRevenue      metric.Float64Counter
	saleTotalAmount   *Histogram
	paymentsTotal     *Counter
	refundsTotal      *Counter
	refundAmount      metric.Float64Counter
	stockMovements    *Counter
	stockUnitsMoved   *Counter
	lowStockRaised    *Counter
	countsCompleted   *Counter
	countVarianceRows *Counter

	registration metric.Registration
}

// BusinessMetricsConfig holds the meter and optional gauge provider
type BusinessMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	LowStockProvider LowStockProvider
}

// SaleAmountBuckets are histogram boundaries for sale totals
var SaleAmountBuckets = []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000}

// NewBusinessMetrics creates the business instruments on cfg.Meter
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := cfg.Meter
	bm := &BusinessMetrics{logger: logger}

	var err error
	if bm.salesTotal, err = NewCounter(m, "pos_sales_total", "Sale lifecycle events", "{sale}"); err != nil {
		return nil, err
	}
	if bm.salesRevenue, err = m.Float64Counter("pos_sales_revenue_total",
		metric.WithDescription("Amount paid on completed sales"), metric.WithUnit("{currency}")); err != nil {
		return nil, fmt.Errorf("failed to create counter pos_sales_revenue_total: %w", err)
	}
	if bm.saleTotalAmount, err = NewHistogram(m, HistogramOpts{
		Name:        "pos_sale_total_amount",
		Description: "Grand total of created sales",
		Unit:        "{currency}",
		Boundaries:  SaleAmountBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.paymentsTotal, err = NewCounter(m, "pos_payments_total", "Payment initiations and resolutions", "{payment}"); err != nil {
		return nil, err
	}
	if bm.refundsTotal, err = NewCounter(m, "pos_refunds_completed_total", "Completed refunds", "{refund}"); err != nil {
		return nil, err
	}
	if bm.refundAmount, err = m.Float64Counter("pos_refund_amount_total",
		metric.WithDescription("Amount refunded"), metric.WithUnit("{currency}")); err != nil {
		return nil, fmt.Errorf("failed to create counter pos_refund_amount_total: %w", err)
	}
	if bm.stockMovements, err = NewCounter(m, "pos_stock_movements_total", "Recorded stock movements", "{movement}"); err != nil {
		return nil, err
	}
	if bm.stockUnitsMoved, err = NewCounter(m, "pos_stock_units_moved_total", "Absolute units moved through the ledger", "{unit}"); err != nil {
		return nil, err
	}
	if bm.lowStockRaised, err = NewCounter(m, "pos_low_stock_alerts_raised_total", "Low-stock alerts raised", "{alert}"); err != nil {
		return nil, err
	}
	if bm.countsCompleted, err = NewCounter(m, "pos_stock_counts_completed_total", "Completed stock counts", "{count}"); err != nil {
		return nil, err
	}
	if bm.countVarianceRows, err = NewCounter(m, "pos_stock_count_variance_items_total", "Counted items with a variance", "{item}"); err != nil {
		return nil, err
	}

	if cfg.LowStockProvider != nil {
		gauge, err := m.Int64ObservableGauge("pos_low_stock_alerts_active",
			metric.WithDescription("Active low-stock alerts"), metric.WithUnit("{alert}"))
		if err != nil {
			return nil, fmt.Errorf("failed to create gauge pos_low_stock_alerts_active: %w", err)
		}
		provider := cfg.LowStockProvider
		bm.registration, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			n, err := provider.CountActiveAlerts(ctx)
			if err != nil {
				logger.Warn("Failed to collect active low-stock alerts", zap.Error(err))
				return nil
			}
			o.ObserveInt64(gauge, n)
			return nil
		}, gauge)
		if err != nil {
			return nil, fmt.Errorf("failed to register low-stock gauge: %w", err)
		}
	}
	return bm, nil
}

// EventTypes lists the events the metrics handler consumes
func (bm *BusinessMetrics) EventTypes() []string {
	return []string{
		sales.EventTypeSaleCreated,
		sales.EventTypeSaleCompleted,
		sales.EventTypeSaleCancelled,
		finance.EventTypePaymentInitiated,
		finance.EventTypePaymentResolved,
		finance.EventTypeRefundCompleted,
		inventory.EventTypeStockMovementRecorded,
		inventory.EventTypeLowStockAlertRaised,
		inventory.EventTypeStockCountCompleted,
	}
}

// Handle records the event. Unknown events are ignored.
func (bm *BusinessMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *sales.SaleCreatedEvent:
		bm.salesTotal.Inc(ctx, AttrSaleEvent.String("created"))
		bm.saleTotalAmount.Record(ctx, e.Total.InexactFloat64())
	case *sales.SaleCompletedEvent:
		bm.salesTotal.Inc(ctx, AttrSaleEvent.String("completed"))
		bm.salesRevenue.Add(ctx, e.AmountPaid.InexactFloat64())
	case *sales.SaleCancelledEvent:
		bm.salesTotal.Inc(ctx, AttrSaleEvent.String("cancelled"))
	case *finance.PaymentInitiatedEvent:
		bm.paymentsTotal.Inc(ctx, AttrPaymentMethod.String(e.Method.String()), AttrPaymentStatus.String("initiated"))
	case *finance.PaymentResolvedEvent:
		bm.paymentsTotal.Inc(ctx, AttrPaymentMethod.String(e.Method.String()), AttrPaymentStatus.String(string(e.Status)))
	case *finance.RefundCompletedEvent:
		bm.refundsTotal.Inc(ctx)
		bm.refundAmount.Add(ctx, e.Amount.InexactFloat64())
	case *inventory.StockMovementRecordedEvent:
		attr := AttrMovementType.String(string(e.MovementType))
		bm.stockMovements.Inc(ctx, attr)
		qty := int64(e.Quantity)
		if qty < 0 {
			qty = -qty
		}
		bm.stockUnitsMoved.Add(ctx, qty, attr)
	case *inventory.LowStockAlertRaisedEvent:
		bm.lowStockRaised.Inc(ctx)
	case *inventory.StockCountCompletedEvent:
		bm.countsCompleted.Inc(ctx)
		bm.countVarianceRows.Add(ctx, int64(e.VarianceItems))
	default:
		bm.logger.Debug("Business metrics ignored event", zap.String("event_type", event.EventType()))
	}
	return nil
}

// Stop unregisters the gauge callback
func (bm *BusinessMetrics) Stop() error {
	if bm.registration == nil {
		return nil
	}
	return bm.registration.Unregister()
}

var _ shared.EventHandler = (*BusinessMetrics)(nil)
