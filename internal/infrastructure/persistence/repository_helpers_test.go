package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/catalog"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"github.com/retailpos/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productRows(id uuid.UUID, stock, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "price", "cost_price", "tax_rate", "stock", "low_stock_threshold", "is_active", "version"}).
		AddRow(id, "Sugar", decimal.NewFromInt(100), decimal.NewFromInt(80), decimal.NewFromInt(16), stock, 10, true, version)
}

func TestGormProductRepository_FindByIDForUpdateLocksRow(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	repo := NewGormProductRepository(mdb.DB)
	id := uuid.New()

	mdb.Mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
		WithArgs(id, 1).
		WillReturnRows(productRows(id, 7, 3))

	product, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 7, product.Stock)
	assert.Equal(t, 3, product.GetVersion())
	assert.NoError(t, mdb.Mock.ExpectationsWereMet())
}

func TestGormProductRepository_FindByIDMapsNotFound(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	repo := NewGormProductRepository(mdb.DB)
	id := uuid.New()

	mdb.Mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mdb.Mock.ExpectationsWereMet())
}

func TestGormProductRepository_SaveChecksVersion(t *testing.T) {
	t.Run("stale write is a concurrency conflict", func(t *testing.T) {
		mdb := testutil.NewMockDB(t)
		repo := NewGormProductRepository(mdb.DB)

		product := &catalog.Product{BaseAggregateRoot: shared.NewBaseAggregateRoot(), Name: "Sugar", Stock: 4}
		product.IncrementVersion()

		mdb.Mock.ExpectExec(`UPDATE "products" SET .* WHERE \(id = \$\d+ AND version < \$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(context.Background(), product)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mdb.Mock.ExpectationsWereMet())
	})

	t.Run("fresh write succeeds", func(t *testing.T) {
		mdb := testutil.NewMockDB(t)
		repo := NewGormProductRepository(mdb.DB)

		product := &catalog.Product{BaseAggregateRoot: shared.NewBaseAggregateRoot(), Name: "Sugar", Stock: 4}
		product.IncrementVersion()

		mdb.Mock.ExpectExec(`UPDATE "products" SET .*"stock"=.*WHERE \(id = \$\d+ AND version < \$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), product))
		assert.NoError(t, mdb.Mock.ExpectationsWereMet())
	})
}

func TestGormProductRepository_ExistsBySKU(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	repo := NewGormProductRepository(mdb.DB)

	mdb.Mock.ExpectQuery(`SELECT count\(\*\) FROM "products" WHERE sku = \$1`).
		WithArgs("SUG-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsBySKU(context.Background(), "SUG-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mdb.Mock.ExpectationsWereMet())
}

func TestProductModel_EmptySKUIsNull(t *testing.T) {
	p, err := catalog.NewProduct("Salt", "", "", decimal.NewFromInt(10), decimal.Zero, decimal.Zero, 0, shared.UserActor("u"))
	require.NoError(t, err)

	m := models.ProductModelFromDomain(p)
	assert.Nil(t, m.SKU, "unset SKUs must not collide on the unique index")

	p.SKU = "SALT-1"
	m = models.ProductModelFromDomain(p)
	require.NotNil(t, m.SKU)
	assert.Equal(t, "SALT-1", *m.SKU)
	assert.Equal(t, "SALT-1", m.ToDomain().SKU)
}
