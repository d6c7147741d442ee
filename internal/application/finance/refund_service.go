package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundService handles refund requests and their approval. The refundable
// balance of a payment is its amount minus its completed refunds.
type RefundService struct {
	scope          unitofwork.TransactionScope
	repos          unitofwork.TransactionalRepositories
	gateways       *finance.GatewayRegistry
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// RefundServiceConfig holds dependencies for RefundService
type RefundServiceConfig struct {
	Scope          unitofwork.TransactionScope
	Repos          unitofwork.TransactionalRepositories
	Gateways       *finance.GatewayRegistry
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewRefundService creates a new RefundService
func NewRefundService(cfg RefundServiceConfig) *RefundService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gateways := cfg.Gateways
	if gateways == nil {
		gateways = finance.NewGatewayRegistry()
	}
	return &RefundService{
		scope:          cfg.Scope,
		repos:          cfg.Repos,
		gateways:       gateways,
		eventPublisher: cfg.EventPublisher,
		logger:         logger,
	}
}

// RequestRefund records a pending refund against a successful payment
func (s *RefundService) RequestRefund(ctx context.Context, req RequestRefundRequest, actor shared.Actor) (*RefundResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var refund *finance.Refund
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		refunded, err := repos.RefundRepo().SumByPayment(ctx, payment.ID, finance.RefundStatusCompleted)
		if err != nil {
			return err
		}
		refund, err = finance.NewRefund(payment, req.Amount, payment.Amount.Sub(refunded), req.Reason, actor)
		if err != nil {
			return err
		}
		return repos.RefundRepo().Create(ctx, refund)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Refund requested",
		zap.String("refund_ref", refund.RefundReference),
		zap.String("payment_id", refund.PaymentID.String()),
		zap.String("amount", refund.Amount.StringFixed(2)),
		zap.String("actor", actor.String()))
	resp := ToRefundResponse(refund)
	return &resp, nil
}

// ApproveRefund re-checks the balance, asks the payment's gateway to return
// the money and then completes or fails the refund. Refunds already in
// flight count against the balance so concurrent approvals cannot exceed it.
func (s *RefundService) ApproveRefund(ctx context.Context, refundID uuid.UUID, actor shared.Actor) (*RefundResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var refund *finance.Refund
	var payment *finance.Payment
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		var err error
		refund, err = repos.RefundRepo().FindByIDForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		payment, err = repos.PaymentRepo().FindByIDForUpdate(ctx, refund.PaymentID)
		if err != nil {
			return err
		}
		if err := refund.Approve(actor); err != nil {
			return err
		}
		if payment.Status != finance.PaymentStatusSuccess {
			return shared.NewDomainError(shared.CodeInvalidState,
				fmt.Sprintf("Payment %s is %s and cannot be refunded", payment.TransactionReference, payment.Status))
		}
		committed, err := repos.RefundRepo().SumByPayment(ctx, payment.ID, finance.RefundStatusCompleted, finance.RefundStatusProcessing)
		if err != nil {
			return err
		}
		if refund.Amount.GreaterThan(payment.Amount.Sub(committed)) {
			return shared.NewDomainError(shared.CodeRefundExceedsBalance,
				fmt.Sprintf("Refund of %s exceeds refundable balance %s", refund.Amount.StringFixed(2), payment.Amount.Sub(committed).StringFixed(2)))
		}
		return repos.RefundRepo().Save(ctx, refund)
	})
	if err != nil {
		return nil, err
	}

	gateway, err := s.gateways.Get(payment.Method)
	if err != nil {
		return s.failRefund(ctx, refund, err, err.Error())
	}
	result, gwErr := gateway.Refund(ctx, &finance.RefundRequest{
		RefundReference:      refund.RefundReference,
		TransactionReference: payment.TransactionReference,
		ExternalReference:    payment.ExternalReference,
		Amount:               refund.Amount,
		Reason:               refund.Reason,
		PhoneNumber:          payment.PhoneNumber,
	})
	if gwErr != nil {
		code := shared.CodeGatewayError
		if errors.Is(gwErr, finance.ErrRefundUnsupported) {
			code = shared.CodeGatewayUnsupported
		}
		return s.failRefund(ctx, refund, shared.NewDomainError(code, gwErr.Error()), gwErr.Error())
	}
	if result == nil || !result.Completed {
		msg := "refund was declined by the gateway"
		if result != nil && result.Message != "" {
			msg = result.Message
		}
		return s.failRefund(ctx, refund, shared.NewDomainError(shared.CodeGatewayError, msg), msg)
	}

	completed, err := s.completeRefund(ctx, refund.ID, result.ExternalReference, actor)
	if err != nil {
		return nil, err
	}
	resp := ToRefundResponse(completed)
	return &resp, nil
}

func (s *RefundService) completeRefund(ctx context.Context, refundID uuid.UUID, externalRef string, actor shared.Actor) (*finance.Refund, error) {
	var events unitofwork.EventBuffer
	var refund *finance.Refund
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		events.Reset()
		var err error
		refund, err = repos.RefundRepo().FindByIDForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, refund.PaymentID)
		if err != nil {
			return err
		}
		changed, err := refund.Complete(externalRef, actor)
		if err != nil || !changed {
			return err
		}

		refunded, err := repos.RefundRepo().SumByPayment(ctx, payment.ID, finance.RefundStatusCompleted)
		if err != nil {
			return err
		}
		if refunded.Add(refund.Amount).GreaterThanOrEqual(payment.Amount) {
			if err := payment.MarkRefunded(); err != nil {
				return err
			}
			if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
				return err
			}
		}

		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, payment.SaleID)
		if err != nil {
			return err
		}
		if err := sale.ApplyRefund(refund.Amount); err != nil {
			return err
		}
		if err := repos.SaleRepo().Save(ctx, sale); err != nil {
			return err
		}
		if err := repos.RefundRepo().Save(ctx, refund); err != nil {
			return err
		}
		events.Collect(refund, sale)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Flush(ctx, s.eventPublisher, s.logger)

	s.logger.Info("Refund completed",
		zap.String("refund_ref", refund.RefundReference),
		zap.String("amount", refund.Amount.StringFixed(2)),
		zap.String("external_ref", externalRef),
		zap.String("actor", actor.String()))
	return refund, nil
}

// failRefund records the gateway failure on the refund and returns cause
func (s *RefundService) failRefund(ctx context.Context, refund *finance.Refund, cause error, message string) (*RefundResponse, error) {
	s.logger.Warn("Refund failed",
		zap.String("refund_ref", refund.RefundReference),
		zap.String("error", message))
	err := s.scope.Execute(ctx, func(repos unitofwork.TransactionalRepositories) error {
		locked, err := repos.RefundRepo().FindByIDForUpdate(ctx, refund.ID)
		if err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			return nil
		}
		if err := locked.Fail(message); err != nil {
			return err
		}
		return repos.RefundRepo().Save(ctx, locked)
	})
	if err != nil {
		s.logger.Error("Failed to record refund failure",
			zap.String("refund_ref", refund.RefundReference),
			zap.Error(err))
	}
	return nil, cause
}

// GetRefund returns a refund by ID
func (s *RefundService) GetRefund(ctx context.Context, refundID uuid.UUID) (*RefundResponse, error) {
	refund, err := s.repos.RefundRepo().FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	resp := ToRefundResponse(refund)
	return &resp, nil
}

// ListRefunds lists the refunds of a payment, oldest first
func (s *RefundService) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]RefundResponse, error) {
	refunds, err := s.repos.RefundRepo().FindByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	out := make([]RefundResponse, len(refunds))
	for i := range refunds {
		out[i] = ToRefundResponse(&refunds[i])
	}
	return out, nil
}

// RefundableBalance returns what can still be refunded on a payment
func (s *RefundService) RefundableBalance(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	payment, err := s.repos.PaymentRepo().FindByID(ctx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	if payment.Status != finance.PaymentStatusSuccess {
		return decimal.Zero, nil
	}
	refunded, err := s.repos.RefundRepo().SumByPayment(ctx, paymentID, finance.RefundStatusCompleted)
	if err != nil {
		return decimal.Zero, err
	}
	return payment.Amount.Sub(refunded), nil
}
