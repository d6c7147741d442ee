package payment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/infrastructure/telemetry"
)

// instrumentedGateway wraps an adapter with a client span and a log line per call
type instrumentedGateway struct {
	next   finance.PaymentGateway
	logger *zap.Logger
}

// instrumentedParserGateway keeps the CallbackParser capability visible to the registry
type instrumentedParserGateway struct {
	instrumentedGateway
	parser finance.CallbackParser
}

// Instrument decorates g with tracing and logging. Gateways that parse
// callbacks stay CallbackParsers.
func Instrument(g finance.PaymentGateway, logger *zap.Logger) finance.PaymentGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := instrumentedGateway{next: g, logger: logger.With(zap.String("gateway", g.Method().String()))}
	if p, ok := g.(finance.CallbackParser); ok {
		return &instrumentedParserGateway{instrumentedGateway: base, parser: p}
	}
	return &base
}

func (g *instrumentedGateway) Method() finance.PaymentMethod {
	return g.next.Method()
}

func (g *instrumentedGateway) Initiate(ctx context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	ctx, span := g.start(ctx, "initiate", req.TransactionReference)
	defer span.End()
	start := time.Now()

	res, err := g.next.Initiate(ctx, req)
	g.finish(span, "initiate", req.TransactionReference, start, err)
	if res != nil {
		telemetry.SetAttributes(span, "accepted", res.Accepted, "settled", res.Settled)
		if !res.Accepted {
			g.logger.Warn("Gateway refused payment",
				zap.String("payment_ref", req.TransactionReference),
				zap.String("message", res.Message))
		}
	}
	return res, err
}

func (g *instrumentedGateway) Verify(ctx context.Context, req *finance.VerifyRequest) (*finance.VerifyResult, error) {
	ctx, span := g.start(ctx, "verify", req.TransactionReference)
	defer span.End()
	start := time.Now()

	res, err := g.next.Verify(ctx, req)
	g.finish(span, "verify", req.TransactionReference, start, err)
	if res != nil {
		telemetry.SetAttribute(span, "outcome", string(res.Outcome))
	}
	return res, err
}

func (g *instrumentedGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	ctx, span := g.start(ctx, "refund", req.TransactionReference)
	defer span.End()
	start := time.Now()

	res, err := g.next.Refund(ctx, req)
	g.finish(span, "refund", req.TransactionReference, start, err)
	if res != nil {
		telemetry.SetAttribute(span, "completed", res.Completed)
	}
	return res, err
}

func (g *instrumentedParserGateway) ParseCallback(payload []byte) (*finance.CallbackNotification, error) {
	n, err := g.parser.ParseCallback(payload)
	if err != nil {
		g.logger.Warn("Unparseable gateway callback", zap.Error(err), zap.Int("bytes", len(payload)))
	}
	return n, err
}

func (g *instrumentedParserGateway) AcknowledgeCallback(accepted bool, message string) []byte {
	return g.parser.AcknowledgeCallback(accepted, message)
}

func (g *instrumentedGateway) start(ctx context.Context, op, ref string) (context.Context, trace.Span) {
	return telemetry.StartServiceSpan(ctx, "gateway."+g.next.Method().String(), op,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("payment_ref", ref),
	)
}

func (g *instrumentedGateway) finish(span trace.Span, op, ref string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("payment_ref", ref),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		telemetry.RecordError(span, err)
		g.logger.Error("Gateway call failed", append(fields, zap.Error(err))...)
		return
	}
	g.logger.Debug("Gateway call", fields...)
}
