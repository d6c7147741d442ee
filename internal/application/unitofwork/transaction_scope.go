package unitofwork

import (
	"context"

	"github.com/retailpos/backend/internal/domain/catalog"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/sales"
)

// TransactionScope provides transactional access to every repository.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Row locks taken through the FindByIDForUpdate methods are held until the
// transaction ends, so a workflow that locks a product, sale or payment row
// serializes against every other workflow touching the same row.
type TransactionalRepositories interface {
	ProductRepo() catalog.ProductRepository
	MovementRepo() inventory.StockMovementRepository
	AlertRepo() inventory.StockAlertRepository
	CountRepo() inventory.StockCountRepository
	SaleRepo() sales.SaleRepository
	PaymentRepo() finance.PaymentRepository
	CallbackRepo() finance.PaymentCallbackRepository
	RefundRepo() finance.RefundRepository
}
