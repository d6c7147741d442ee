package persistence

import (
	"context"

	"github.com/retailpos/backend/internal/application/unitofwork"
	"github.com/retailpos/backend/internal/domain/catalog"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/sales"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos unitofwork.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Repositories binds every repository to one *gorm.DB, either the root
// connection or an open transaction.
type Repositories struct {
	db *gorm.DB
}

// NewRepositories creates repositories bound to db
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{db: db}
}

// ProductRepo returns the product repository
func (r *Repositories) ProductRepo() catalog.ProductRepository {
	return NewGormProductRepository(r.db)
}

// MovementRepo returns the stock movement ledger repository
func (r *Repositories) MovementRepo() inventory.StockMovementRepository {
	return NewGormStockMovementRepository(r.db)
}

// AlertRepo returns the stock alert repository
func (r *Repositories) AlertRepo() inventory.StockAlertRepository {
	return NewGormStockAlertRepository(r.db)
}

// CountRepo returns the stock count repository
func (r *Repositories) CountRepo() inventory.StockCountRepository {
	return NewGormStockCountRepository(r.db)
}

// SaleRepo returns the sale repository
func (r *Repositories) SaleRepo() sales.SaleRepository {
	return NewGormSaleRepository(r.db)
}

// PaymentRepo returns the payment repository
func (r *Repositories) PaymentRepo() finance.PaymentRepository {
	return NewGormPaymentRepository(r.db)
}

// CallbackRepo returns the payment callback repository
func (r *Repositories) CallbackRepo() finance.PaymentCallbackRepository {
	return NewGormPaymentCallbackRepository(r.db)
}

// RefundRepo returns the refund repository
func (r *Repositories) RefundRepo() finance.RefundRepository {
	return NewGormRefundRepository(r.db)
}

// Ensure GormTransactionScope implements TransactionScope
var _ unitofwork.TransactionScope = (*GormTransactionScope)(nil)

// Ensure Repositories implements TransactionalRepositories
var _ unitofwork.TransactionalRepositories = (*Repositories)(nil)
