package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PaymentService drives payments through their state machine. Gateway
// calls are made outside any transaction; every state change happens under
// the payment row lock.
type PaymentService struct {
	scope          unitofwork.TransactionScope
	repos          unitofwork.TransactionalRepositories
	gateways       *finance.GatewayRegistry
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// PaymentServiceConfig holds dependencies for PaymentService
type PaymentServiceConfig struct {
	Scope          unitofwork.TransactionScope
	Repos          unitofwork.TransactionalRepositories
	Gateways       *finance.GatewayRegistry
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gateways := cfg.Gateways
	if gateways == nil {
		gateways = finance.NewGatewayRegistry()
	}
	return &PaymentService{
		scope:          cfg.Scope,
		repos:          cfg.Repos,
		gateways:       gateways,
		eventPublisher: cfg.EventPublisher,
		logger:         logger,
	}
}

// InitiatePayment creates a payment for part or all of a sale's balance and
// hands it to the method's gateway. Settled gateways (cash) resolve the
// payment immediately; the others leave it processing until a callback or a
// verification resolves it.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiatePaymentRequest, actor shared.Actor) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "initiate",
		telemetry.WithAttribute(telemetry.SpanAttrSaleID, req.SaleID),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentMethod, req.Method),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, req.Amount))
	defer span.End()

	resp, err := s.initiatePayment(ctx, req, actor)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, resp.ID,
		telemetry.SpanAttrPaymentRef, resp.TransactionReference,
		"status", resp.Status)
	telemetry.SetOK(span)
	return resp, nil
}

func (s *PaymentService) initiatePayment(ctx context.Context, req InitiatePaymentRequest, actor shared.Actor) (*PaymentResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	method := finance.PaymentMethod(req.Method)
	if !method.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unknown payment method %q", req.Method))
	}
	if !req.Amount.IsPositive() {
		return nil, shared.NewValidationError("payment amount must be positive")
	}
	gateway, err := s.gateways.Get(method)
	if err != nil {
		return nil, err
	}

	var events unitofwork.EventBuffer
	var payment *finance.Payment
	err = s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, req.SaleID)
		if err != nil {
			return err
		}
		if sale.Status == sales.SaleStatusCancelled {
			return shared.NewDomainError(shared.CodeInvalidTransition,
				fmt.Sprintf("Sale %s is cancelled", sale.SaleNumber))
		}
		if req.Amount.GreaterThan(sale.Balance()) {
			return shared.NewDomainError(shared.CodeOverPayment,
				fmt.Sprintf("Payment of %s exceeds outstanding balance %s", req.Amount.StringFixed(2), sale.Balance().StringFixed(2)))
		}
		payment, err = finance.NewPayment(sale.ID, method, req.Amount, req.PhoneNumber, req.AccountNumber, actor)
		if err != nil {
			return err
		}
		if err := payment.BeginInitiation(actor); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
			return err
		}
		events.Collect(payment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)

	s.logger.Info("Payment initiated",
		zap.String("payment_ref", payment.TransactionReference),
		zap.String("method", method.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("actor", actor.String()))

	result, gwErr := gateway.Initiate(ctx, &finance.InitiateRequest{
		TransactionReference: payment.TransactionReference,
		Amount:               payment.Amount,
		PhoneNumber:          payment.PhoneNumber,
		AccountNumber:        payment.AccountNumber,
		Description:          fmt.Sprintf("Payment %s", payment.TransactionReference),
	})
	if gwErr != nil || result == nil || !result.Accepted {
		msg := "payment was declined by the gateway"
		switch {
		case gwErr != nil:
			msg = gwErr.Error()
		case result != nil && result.Message != "":
			msg = result.Message
		}
		s.logger.Warn("Gateway rejected payment",
			zap.String("payment_ref", payment.TransactionReference),
			zap.String("method", method.String()),
			zap.String("error", msg))
		if _, err := s.fail(ctx, payment.ID, msg, actor); err != nil {
			s.logger.Error("Failed to record gateway failure",
				zap.String("payment_ref", payment.TransactionReference),
				zap.Error(err))
		}
		return nil, shared.NewDomainError(shared.CodeGatewayError, msg)
	}

	if result.Settled {
		resolved, _, err := s.resolve(ctx, payment.ID, finance.OutcomeSuccess, result.ExternalReference, "", actor)
		if err != nil {
			if shared.IsBusinessError(err) {
				if _, failErr := s.fail(ctx, payment.ID, err.Error(), actor); failErr != nil {
					s.logger.Error("Failed to record settlement failure",
						zap.String("payment_ref", payment.TransactionReference),
						zap.Error(failErr))
				}
			}
			return nil, err
		}
		resp := ToPaymentResponse(resolved)
		return &resp, nil
	}

	processing, err := s.markProcessing(ctx, payment.ID, result)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(processing)
	return &resp, nil
}

func (s *PaymentService) markProcessing(ctx context.Context, paymentID uuid.UUID, result *finance.InitiateResult) (*finance.Payment, error) {
	var payment *finance.Payment
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		var err error
		payment, err = repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status.IsTerminal() {
			// a callback resolved it before the gateway call returned
			return nil
		}
		if err := payment.MarkProcessing(result.ExternalReference, result.Metadata); err != nil {
			return err
		}
		return repos.PaymentRepo().Save(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Payment awaiting gateway confirmation",
		zap.String("payment_ref", payment.TransactionReference),
		zap.String("status", string(payment.Status)),
		zap.String("external_ref", payment.ExternalReference))
	return payment, nil
}

// ResolvePayment applies a terminal outcome. Resolving again with the same
// outcome returns the payment unchanged; a different outcome fails with
// CONFLICTING_RESOLUTION. A success credits the sale in the same
// transaction, and an over-payment rolls the whole resolution back.
func (s *PaymentService) ResolvePayment(ctx context.Context, paymentID uuid.UUID, req ResolvePaymentRequest, actor shared.Actor) (*PaymentResponse, error) {
	payment, _, err := s.resolve(ctx, paymentID, req.Outcome, req.ExternalReference, req.ErrorMessage, actor)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// resolve reports whether the payment changed
func (s *PaymentService) resolve(ctx context.Context, paymentID uuid.UUID, outcome finance.Outcome, externalRef, message string, actor shared.Actor) (*finance.Payment, bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "resolve",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID),
		telemetry.WithAttribute(telemetry.SpanAttrOutcome, string(outcome)))
	defer span.End()

	if err := actor.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}

	var events unitofwork.EventBuffer
	var payment *finance.Payment
	changed := false
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		var err error
		payment, changed, err = s.resolveIn(ctx, repos, &events, paymentID, outcome, externalRef, message, actor)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentRef, payment.TransactionReference, "changed", changed)
	telemetry.SetOK(span)

	if changed {
		s.logger.Info("Payment resolved",
			zap.String("payment_ref", payment.TransactionReference),
			zap.String("status", string(payment.Status)),
			zap.String("external_ref", payment.ExternalReference),
			zap.String("actor", actor.String()))
	} else {
		s.logger.Debug("Duplicate payment resolution ignored",
			zap.String("payment_ref", payment.TransactionReference),
			zap.String("status", string(payment.Status)))
	}
	return payment, changed, nil
}

// resolveIn resolves a payment inside the caller's transaction. A success
// credits the sale under its row lock.
func (s *PaymentService) resolveIn(ctx context.Context, repos unitofwork.TransactionalRepositories, events *unitofwork.EventBuffer, paymentID uuid.UUID, outcome finance.Outcome, externalRef, message string, actor shared.Actor) (*finance.Payment, bool, error) {
	payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	changed, err := payment.Resolve(outcome, externalRef, message, actor)
	if err != nil || !changed {
		return payment, false, err
	}

	if payment.Status == finance.PaymentStatusSuccess {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, payment.SaleID)
		if err != nil {
			return nil, false, err
		}
		if err := sale.ApplyPayment(payment.Amount, actor); err != nil {
			return nil, false, err
		}
		if err := repos.SaleRepo().Save(ctx, sale); err != nil {
			return nil, false, err
		}
		events.Collect(sale)
	}

	if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
		return nil, false, err
	}
	events.Collect(payment)
	return payment, true, nil
}

// fail marks a non-terminal payment failed; terminal payments are left alone
func (s *PaymentService) fail(ctx context.Context, paymentID uuid.UUID, message string, actor shared.Actor) (*finance.Payment, error) {
	var payment *finance.Payment
	var events unitofwork.EventBuffer
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		var err error
		payment, err = repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status.IsTerminal() {
			return nil
		}
		if _, err := payment.Resolve(finance.OutcomeFailed, "", message, actor); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
			return err
		}
		events.Collect(payment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)
	return payment, nil
}

// VerifyPayment asks the gateway for the current outcome of a processing
// payment. Terminal payments are returned as they are. A pending verdict or
// a failed status query leaves the payment unchanged and is reported in Note.
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID uuid.UUID, actor shared.Actor) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "verify",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID))
	defer span.End()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	payment, err := s.repos.PaymentRepo().FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		resp := ToPaymentResponse(payment)
		return &resp, nil
	}
	if payment.Status != finance.PaymentStatusProcessing {
		resp := ToPaymentResponse(payment)
		resp.Note = "payment has not been accepted by the gateway yet"
		return &resp, nil
	}

	gateway, err := s.gateways.Get(payment.Method)
	if err != nil {
		return nil, err
	}
	verdict, err := gateway.Verify(ctx, &finance.VerifyRequest{
		TransactionReference: payment.TransactionReference,
		ExternalReference:    payment.ExternalReference,
		Metadata:             payment.MetadataMap(),
	})
	if err != nil {
		s.logger.Warn("Payment status query failed",
			zap.String("payment_ref", payment.TransactionReference),
			zap.String("method", payment.Method.String()),
			zap.Error(err))
		resp := ToPaymentResponse(payment)
		resp.Note = "gateway status query failed: " + err.Error()
		return &resp, nil
	}
	if !verdict.Outcome.IsTerminal() {
		resp := ToPaymentResponse(payment)
		resp.Note = "gateway has not decided yet"
		if verdict.Message != "" {
			resp.Note += ": " + verdict.Message
		}
		return &resp, nil
	}

	resolved, _, err := s.resolve(ctx, paymentID, verdict.Outcome, verdict.ExternalReference, verdict.Message, actor)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(resolved)
	return &resp, nil
}

// GetPayment returns a payment with its metadata
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.repos.PaymentRepo().FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// GetPaymentByReference looks a payment up by its PAY- reference
func (s *PaymentService) GetPaymentByReference(ctx context.Context, reference string) (*PaymentResponse, error) {
	payment, err := s.repos.PaymentRepo().FindByTransactionReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// ListSalePayments lists every payment attempt of a sale
func (s *PaymentService) ListSalePayments(ctx context.Context, saleID uuid.UUID) ([]PaymentResponse, error) {
	payments, err := s.repos.PaymentRepo().FindBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out, nil
}

// ListPendingPayments lists payments still waiting for an outcome, oldest first
func (s *PaymentService) ListPendingPayments(ctx context.Context, filter shared.Filter) (*shared.Paginated[PaymentResponse], error) {
	filter = filter.Normalize()
	payments, total, err := s.repos.PaymentRepo().FindPending(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]PaymentResponse, len(payments))
	for i := range payments {
		items[i] = ToPaymentResponse(&payments[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// isRetryable reports whether a processing error should be retried by the
// caller rather than recorded as a final outcome
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		return true
	}
	return !shared.IsBusinessError(err)
}
