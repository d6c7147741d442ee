package sales

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
)

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// FindByID loads a sale with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByIDForUpdate loads a sale with its items, holding the sale row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByNumber finds a sale by its sale number
	FindByNumber(ctx context.Context, saleNumber string) (*Sale, error)

	// FindAll lists sales; supports the "status" and "payment_status" filter keys
	FindAll(ctx context.Context, filter shared.Filter) ([]Sale, int64, error)

	// Create inserts a new sale with its items
	Create(ctx context.Context, sale *Sale) error

	// Save updates the sale header with an optimistic version check.
	// Items are immutable and never rewritten.
	Save(ctx context.Context, sale *Sale) error
}
