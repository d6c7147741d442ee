package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
)

// StockMovementRepository is the append-only ledger store. There is no
// update or delete.
type StockMovementRepository interface {
	// Append stores a new movement
	Append(ctx context.Context, movement *StockMovement) error

	// FindByProduct returns the movements of a product, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]StockMovement, int64, error)

	// FindAll returns movements across products; supports the "movement_type" filter key
	FindAll(ctx context.Context, filter shared.Filter) ([]StockMovement, int64, error)

	// SumQuantityByProduct returns the sum of signed quantities for a product
	SumQuantityByProduct(ctx context.Context, productID uuid.UUID) (int64, error)

	// FindByReference returns all movements carrying a reference number
	FindByReference(ctx context.Context, reference string) ([]StockMovement, error)
}

// StockAlertRepository defines the interface for alert persistence
type StockAlertRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockAlert, error)

	// FindByIDForUpdate loads an alert holding its row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*StockAlert, error)

	// FindActiveByProduct returns the active alert of a product, or shared.ErrNotFound
	FindActiveByProduct(ctx context.Context, productID uuid.UUID) (*StockAlert, error)

	// FindActive lists active alerts, newest first
	FindActive(ctx context.Context, filter shared.Filter) ([]StockAlert, int64, error)

	Save(ctx context.Context, alert *StockAlert) error
}

// StockCountRepository defines the interface for count persistence
type StockCountRepository interface {
	// FindByID loads a count with its items
	FindByID(ctx context.Context, id uuid.UUID) (*StockCount, error)

	// FindByIDForUpdate loads a count with its items, holding the count row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*StockCount, error)

	// FindAll lists counts; supports the "status" filter key
	FindAll(ctx context.Context, filter shared.Filter) ([]StockCount, int64, error)

	// Save creates or updates a count and upserts its items by (count, product)
	Save(ctx context.Context, count *StockCount) error
}
