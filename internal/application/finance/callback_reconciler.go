package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/telemetry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// CallbackQueue hands stored callbacks to the workers that process them
type CallbackQueue interface {
	EnqueueCallback(ctx context.Context, callbackID uuid.UUID) error
}

// IngestResult is what the transport replies with
type IngestResult struct {
	Callback *finance.PaymentCallback
	// Ack is the body the gateway expects; the transport always returns it
	Ack []byte
}

// CallbackReconciler stores gateway callbacks and applies them to payments.
// Ingest only persists and enqueues; Process does the matching and
// resolution on a worker, so the gateway always gets a fast ACK.
type CallbackReconciler struct {
	scope          unitofwork.TransactionScope
	repos          unitofwork.TransactionalRepositories
	gateways       *finance.GatewayRegistry
	payments       *PaymentService
	queue          CallbackQueue
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// CallbackReconcilerConfig holds dependencies for CallbackReconciler
type CallbackReconcilerConfig struct {
	Scope          unitofwork.TransactionScope
	Repos          unitofwork.TransactionalRepositories
	Gateways       *finance.GatewayRegistry
	Payments       *PaymentService
	Queue          CallbackQueue
	Idempotency    shared.IdempotencyStore // optional
	IdempotencyTTL time.Duration
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewCallbackReconciler creates a new CallbackReconciler
func NewCallbackReconciler(cfg CallbackReconcilerConfig) *CallbackReconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	gateways := cfg.Gateways
	if gateways == nil {
		gateways = finance.NewGatewayRegistry()
	}
	return &CallbackReconciler{
		scope:          cfg.Scope,
		repos:          cfg.Repos,
		gateways:       gateways,
		payments:       cfg.Payments,
		queue:          cfg.Queue,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: ttl,
		eventPublisher: cfg.EventPublisher,
		logger:         logger,
	}
}

// SetQueue attaches the queue after construction; the queue's worker needs
// the reconciler, so the two are wired in two steps
func (r *CallbackReconciler) SetQueue(q CallbackQueue) {
	r.queue = q
}

// defaultAck is returned for methods without a callback parser
var defaultAck = []byte(`{"status":"accepted"}`)

// Ingest stores the raw payload before anything else, then enqueues it.
// Unparseable payloads are stored as processed and unsuccessful. The error
// return is for logging only: the transport acknowledges regardless.
func (r *CallbackReconciler) Ingest(ctx context.Context, method finance.PaymentMethod, payload []byte) (*IngestResult, error) {
	result := &IngestResult{Ack: defaultAck}

	var notification *finance.CallbackNotification
	var parseErr error
	parser, err := r.gateways.CallbackParser(method)
	if err != nil {
		parseErr = err
	} else {
		notification, parseErr = parser.ParseCallback(payload)
		result.Ack = parser.AcknowledgeCallback(true, "Accepted")
	}

	cb := finance.NewPaymentCallback(method, payload, notification, parseErr)
	result.Callback = cb
	if err := r.repos.CallbackRepo().Create(ctx, cb); err != nil {
		r.logger.Error("Failed to store payment callback",
			zap.String("method", method.String()),
			zap.Int("payload_bytes", len(payload)),
			zap.Error(err))
		return result, fmt.Errorf("store callback: %w", err)
	}

	if parseErr != nil {
		r.logger.Warn("Stored unparseable payment callback",
			zap.String("callback_id", cb.ID.String()),
			zap.String("method", method.String()),
			zap.Error(parseErr))
		return result, nil
	}

	r.logger.Info("Payment callback received",
		zap.String("callback_id", cb.ID.String()),
		zap.String("method", method.String()),
		zap.String("correlation", string(cb.CorrelationKind)+":"+cb.CorrelationValue),
		zap.String("outcome", string(cb.Outcome)))

	if r.queue == nil {
		return result, nil
	}
	if err := r.queue.EnqueueCallback(ctx, cb.ID); err != nil {
		// the sweeper picks it up later
		r.logger.Warn("Failed to enqueue payment callback",
			zap.String("callback_id", cb.ID.String()),
			zap.Error(err))
	}
	return result, nil
}

func idempotencyKey(callbackID uuid.UUID) string {
	return "callback:" + callbackID.String()
}

// Process matches a stored callback to its payment and resolves it. It is
// safe to run more than once for the same callback. Business failures are
// recorded on the callback and return nil; infrastructure failures are
// returned so the queue retries.
func (r *CallbackReconciler) Process(ctx context.Context, callbackID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "callback", "process",
		telemetry.WithAttribute(telemetry.SpanAttrCallbackID, callbackID))
	defer span.End()

	if err := r.process(ctx, callbackID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}

func (r *CallbackReconciler) process(ctx context.Context, callbackID uuid.UUID) error {
	key := idempotencyKey(callbackID)
	if r.idempotency != nil {
		done, err := r.idempotency.IsProcessed(ctx, key)
		if err != nil {
			r.logger.Warn("Idempotency check failed, falling back to the callback row",
				zap.String("callback_id", callbackID.String()),
				zap.Error(err))
		} else if done {
			return nil
		}
	}

	var events unitofwork.EventBuffer
	var cb *finance.PaymentCallback
	var matched *finance.Payment
	err := r.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		matched = nil
		var err error
		cb, err = repos.CallbackRepo().FindByIDForUpdate(ctx, callbackID)
		if err != nil {
			return err
		}
		if cb.Processed {
			return nil
		}

		payment, err := r.match(ctx, repos, cb)
		if errors.Is(err, shared.ErrNotFound) {
			cb.MarkUnmatched()
			return repos.CallbackRepo().SaveProcessing(ctx, cb)
		}
		if err != nil {
			return err
		}
		matched = payment

		if !cb.Outcome.IsTerminal() {
			cb.MarkMatched(payment.ID, false, fmt.Sprintf("callback carries no final outcome (%s)", cb.Outcome))
			return repos.CallbackRepo().SaveProcessing(ctx, cb)
		}
		if cb.Outcome == finance.OutcomeSuccess && cb.Amount != nil && !cb.Amount.Equal(payment.Amount) {
			return shared.NewValidationError(fmt.Sprintf("callback amount %s does not match payment amount %s",
				cb.Amount.StringFixed(2), payment.Amount.StringFixed(2)))
		}

		actor := shared.SystemActor("callback:" + cb.Method.String())
		if _, _, err := r.payments.resolveIn(ctx, repos, &events, payment.ID, cb.Outcome, cb.TransactionID, cb.ResultMessage, actor); err != nil {
			return err
		}
		cb.MarkMatched(payment.ID, cb.Outcome == finance.OutcomeSuccess, "")
		return repos.CallbackRepo().SaveProcessing(ctx, cb)
	})

	switch {
	case err == nil:
		events.Flush(ctx, r.eventPublisher, r.logger)
		r.markDone(ctx, key)
		if cb != nil && matched != nil {
			r.logger.Info("Payment callback applied",
				zap.String("callback_id", callbackID.String()),
				zap.String("payment_ref", matched.TransactionReference),
				zap.String("outcome", string(cb.Outcome)))
		}
		return nil
	case cb == nil && errors.Is(err, shared.ErrNotFound):
		r.logger.Warn("Queued payment callback does not exist",
			zap.String("callback_id", callbackID.String()))
		return nil
	case isRetryable(err):
		r.recordAttempt(ctx, callbackID, err)
		return fmt.Errorf("process callback %s: %w", callbackID, err)
	default:
		return r.recordRejection(ctx, callbackID, matched, err)
	}
}

func (r *CallbackReconciler) match(ctx context.Context, repos unitofwork.TransactionalRepositories, cb *finance.PaymentCallback) (*finance.Payment, error) {
	if cb.CorrelationValue == "" {
		return nil, shared.ErrNotFound
	}
	switch cb.CorrelationKind {
	case finance.CorrelationMetadata:
		return repos.PaymentRepo().FindByMetadata(ctx, cb.CorrelationKey, cb.CorrelationValue)
	case finance.CorrelationTransactionReference:
		return repos.PaymentRepo().FindByTransactionReference(ctx, cb.CorrelationValue)
	default:
		return nil, shared.ErrNotFound
	}
}

// recordRejection stores a business failure (conflicting outcome,
// over-payment, cancelled sale) on the callback so it is never retried
func (r *CallbackReconciler) recordRejection(ctx context.Context, callbackID uuid.UUID, matched *finance.Payment, cause error) error {
	r.logger.Warn("Payment callback rejected",
		zap.String("callback_id", callbackID.String()),
		zap.Error(cause))
	err := r.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		cb, err := repos.CallbackRepo().FindByIDForUpdate(ctx, callbackID)
		if err != nil {
			return err
		}
		if cb.Processed {
			return nil
		}
		if matched != nil {
			cb.MarkMatched(matched.ID, false, cause.Error())
		} else {
			cb.MarkUnmatched()
			cb.ErrorMessage = cause.Error()
		}
		return repos.CallbackRepo().SaveProcessing(ctx, cb)
	})
	if err != nil {
		return fmt.Errorf("record callback rejection: %w", err)
	}
	r.markDone(ctx, idempotencyKey(callbackID))
	return nil
}

func (r *CallbackReconciler) recordAttempt(ctx context.Context, callbackID uuid.UUID, cause error) {
	r.logger.Warn("Payment callback processing failed, will retry",
		zap.String("callback_id", callbackID.String()),
		zap.Error(cause))
	err := r.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		cb, err := repos.CallbackRepo().FindByIDForUpdate(ctx, callbackID)
		if err != nil {
			return err
		}
		if cb.Processed {
			return nil
		}
		cb.RecordAttempt(cause.Error())
		return repos.CallbackRepo().SaveProcessing(ctx, cb)
	})
	if err != nil {
		r.logger.Debug("Could not record callback attempt",
			zap.String("callback_id", callbackID.String()),
			zap.Error(err))
	}
}

func (r *CallbackReconciler) markDone(ctx context.Context, key string) {
	if r.idempotency == nil {
		return
	}
	if _, err := r.idempotency.MarkProcessed(ctx, key, r.idempotencyTTL); err != nil {
		r.logger.Warn("Failed to mark callback as processed in idempotency store",
			zap.String("key", key),
			zap.Error(err))
	}
}

// Sweep processes callbacks received before now-olderThan that are still
// unprocessed, e.g. because enqueueing failed or the process restarted.
// It returns how many callbacks were handled without error.
func (r *CallbackReconciler) Sweep(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	pending, err := r.repos.CallbackRepo().FindUnprocessed(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("find unprocessed callbacks: %w", err)
	}
	handled := 0
	var errs error
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return handled, multierr.Append(errs, err)
		}
		if err := r.Process(ctx, pending[i].ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		handled++
	}
	if len(pending) > 0 {
		r.logger.Info("Callback sweep finished",
			zap.Int("found", len(pending)),
			zap.Int("handled", handled),
			zap.Int("failed", len(multierr.Errors(errs))))
	}
	return handled, errs
}

// GetCallback returns a stored callback
func (r *CallbackReconciler) GetCallback(ctx context.Context, callbackID uuid.UUID) (*CallbackResponse, error) {
	cb, err := r.repos.CallbackRepo().FindByID(ctx, callbackID)
	if err != nil {
		return nil, err
	}
	resp := ToCallbackResponse(cb)
	return &resp, nil
}

// ListCallbacks lists stored callbacks, newest first; supports the "method"
// and "processed" filter keys
func (r *CallbackReconciler) ListCallbacks(ctx context.Context, filter shared.Filter) (*shared.Paginated[CallbackResponse], error) {
	filter = filter.Normalize()
	callbacks, total, err := r.repos.CallbackRepo().FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]CallbackResponse, len(callbacks))
	for i := range callbacks {
		items[i] = ToCallbackResponse(&callbacks[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}
