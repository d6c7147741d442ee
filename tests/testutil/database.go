package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/catalog"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AllModels lists every persistence model, in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&models.ProductModel{},
		&models.StockMovementModel{},
		&models.StockAlertModel{},
		&models.StockCountModel{},
		&models.StockCountItemModel{},
		&models.SaleModel{},
		&models.SaleItemModel{},
		&models.PaymentModel{},
		&models.PaymentMetadataModel{},
		&models.PaymentCallbackModel{},
		&models.RefundModel{},
	}
}

// NewSQLiteDB opens an in-memory sqlite database with the full schema.
// The pool is limited to one connection: the in-memory database lives as
// long as that connection, and concurrent transactions queue behind each
// other the way row locks would serialize them on postgres.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open sqlite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(AllModels()...), "Failed to migrate sqlite schema")

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// SeedProduct inserts an active product holding stock units, together with
// the purchase movement that explains that stock, so the ledger invariant
// holds from the start. price and taxRate are decimal strings.
func SeedProduct(t *testing.T, db *gorm.DB, name, price, taxRate string, stock int) *catalog.Product {
	t.Helper()

	actor := shared.SystemActor("seed")
	product, err := catalog.NewProduct(name, "", "", decimal.RequireFromString(price), decimal.Zero,
		decimal.RequireFromString(taxRate), 0, actor)
	require.NoError(t, err)
	product.ClearDomainEvents()

	if stock > 0 {
		movement, err := inventory.NewStockMovement(product.ID, inventory.MovementTypePurchase, stock, 0, "SEED", nil, "", actor)
		require.NoError(t, err)
		product.Stock = stock
		require.NoError(t, db.Create(models.ProductModelFromDomain(product)).Error)
		require.NoError(t, db.Create(models.StockMovementModelFromDomain(movement)).Error)
		return product
	}
	require.NoError(t, db.Create(models.ProductModelFromDomain(product)).Error)
	return product
}

// ProductStock reads the persisted stock of a product
func ProductStock(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var model models.ProductModel
	require.NoError(t, db.First(&model, "id = ?", productID).Error)
	return model.Stock
}

// LedgerSum returns the sum of all movement quantities of a product
func LedgerSum(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var sum struct{ Total int }
	require.NoError(t, db.Model(&models.StockMovementModel{}).
		Select("COALESCE(SUM(quantity), 0) AS total").
		Where("product_id = ?", productID).
		Scan(&sum).Error)
	return sum.Total
}
