package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID loads a payment with its metadata
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByIDForUpdate loads a payment holding its row lock; every status
	// transition goes through it
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByTransactionReference finds a payment by its PAY- reference
	FindByTransactionReference(ctx context.Context, reference string) (*Payment, error)

	// FindByMetadata finds the payment owning a (key, value) correlation record
	FindByMetadata(ctx context.Context, key MetadataKey, value string) (*Payment, error)

	// FindBySale lists the payments of a sale, oldest first
	FindBySale(ctx context.Context, saleID uuid.UUID) ([]Payment, error)

	// FindPending lists payments still pending or processing, oldest first
	FindPending(ctx context.Context, filter shared.Filter) ([]Payment, int64, error)

	// Create inserts a payment with its metadata
	Create(ctx context.Context, payment *Payment) error

	// Save updates a payment with an optimistic version check and upserts its metadata
	Save(ctx context.Context, payment *Payment) error
}

// PaymentCallbackRepository stores raw gateway notifications
type PaymentCallbackRepository interface {
	// Create persists a newly received callback
	Create(ctx context.Context, callback *PaymentCallback) error

	FindByID(ctx context.Context, id uuid.UUID) (*PaymentCallback, error)

	// FindByIDForUpdate loads a callback holding its row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PaymentCallback, error)

	// SaveProcessing updates only the processing columns
	SaveProcessing(ctx context.Context, callback *PaymentCallback) error

	// FindUnprocessed lists callbacks received before cutoff that are still unprocessed
	FindUnprocessed(ctx context.Context, cutoff time.Time, limit int) ([]PaymentCallback, error)

	// FindAll lists callbacks newest first; supports "method" and "processed" filter keys
	FindAll(ctx context.Context, filter shared.Filter) ([]PaymentCallback, int64, error)
}

// RefundRepository defines the interface for refund persistence
type RefundRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Refund, error)

	// FindByIDForUpdate loads a refund holding its row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Refund, error)

	// FindByPayment lists refunds of a payment, oldest first
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]Refund, error)

	// SumByPayment sums refund amounts of a payment in the given statuses
	SumByPayment(ctx context.Context, paymentID uuid.UUID, statuses ...RefundStatus) (decimal.Decimal, error)

	Create(ctx context.Context, refund *Refund) error

	// Save updates a refund with an optimistic version check
	Save(ctx context.Context, refund *Refund) error
}
