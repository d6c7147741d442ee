package inventory

import (
	"context"
	"testing"

	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/persistence"
	"github.com/retailpos/backend/internal/infrastructure/persistence/models"
	"github.com/retailpos/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCountService(t *testing.T) (*StockCountService, *gorm.DB, *testutil.RecordingPublisher) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	publisher := testutil.NewRecordingPublisher()
	svc := NewStockCountService(StockCountServiceConfig{
		Scope:          persistence.NewGormTransactionScope(db),
		Repos:          persistence.NewRepositories(db),
		EventPublisher: publisher,
	})
	return svc, db, publisher
}

func intPtr(v int) *int { return &v }

func TestStockCountService_CompleteBooksOneAdjustmentPerVariance(t *testing.T) {
	svc, db, publisher := newCountService(t)
	ctx := context.Background()
	clerk := shared.UserActor("clerk-1")
	shrunk := testutil.SeedProduct(t, db, "Soap", "10", "0", 50)
	exact := testutil.SeedProduct(t, db, "Bread", "10", "0", 20)

	count, err := svc.StartCount(ctx, StartCountRequest{Description: "Monthly count"}, clerk)
	require.NoError(t, err)
	assert.Regexp(t, `^COUNT-\d{8}-[0-9A-F]{6}$`, count.CountNumber)
	assert.Equal(t, string(inventory.CountStatusInProgress), count.Status)

	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: shrunk.ID, PhysicalQuantity: intPtr(47)}, clerk)
	require.NoError(t, err)
	withItems, err := svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: exact.ID, PhysicalQuantity: intPtr(20)}, clerk)
	require.NoError(t, err)
	require.Len(t, withItems.Items, 2)

	done, err := svc.CompleteCount(ctx, count.ID, clerk)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.CountStatusCompleted), done.Status)

	var adjustments []models.StockMovementModel
	require.NoError(t, db.Where("movement_type = ?", inventory.MovementTypeAdjustment).Find(&adjustments).Error)
	require.Len(t, adjustments, 1)
	assert.Equal(t, shrunk.ID, adjustments[0].ProductID)
	assert.Equal(t, -3, adjustments[0].Quantity)
	assert.Equal(t, count.CountNumber, adjustments[0].ReferenceNumber)

	assert.Equal(t, 47, testutil.ProductStock(t, db, shrunk.ID))
	assert.Equal(t, 20, testutil.ProductStock(t, db, exact.ID))
	assert.Equal(t, testutil.LedgerSum(t, db, shrunk.ID), testutil.ProductStock(t, db, shrunk.ID))
	assert.Contains(t, publisher.EventTypes(), inventory.EventTypeStockCountCompleted)

	_, err = svc.CompleteCount(ctx, count.ID, clerk)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, 47, testutil.ProductStock(t, db, shrunk.ID), "a second completion books nothing")
}

func TestStockCountService_AddItemReplacesLine(t *testing.T) {
	svc, db, _ := newCountService(t)
	ctx := context.Background()
	clerk := shared.UserActor("clerk-1")
	p := testutil.SeedProduct(t, db, "Soap", "10", "0", 30)

	count, err := svc.StartCount(ctx, StartCountRequest{}, clerk)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID, PhysicalQuantity: intPtr(25)}, clerk)
	require.NoError(t, err)
	resp, err := svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID, PhysicalQuantity: intPtr(28), Notes: "recount"}, clerk)
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, 30, resp.Items[0].SystemQuantity)
	assert.Equal(t, 28, resp.Items[0].PhysicalQuantity)
	assert.Equal(t, -2, resp.Items[0].Variance)

	reloaded, err := svc.GetCount(ctx, count.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, 28, reloaded.Items[0].PhysicalQuantity)
}

func TestStockCountService_AddItemValidation(t *testing.T) {
	svc, db, _ := newCountService(t)
	ctx := context.Background()
	clerk := shared.UserActor("clerk-1")
	p := testutil.SeedProduct(t, db, "Soap", "10", "0", 5)

	count, err := svc.StartCount(ctx, StartCountRequest{}, clerk)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID}, clerk)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID, PhysicalQuantity: intPtr(-1)}, clerk)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestStockCountService_CancelLeavesStockAlone(t *testing.T) {
	svc, db, _ := newCountService(t)
	ctx := context.Background()
	clerk := shared.UserActor("clerk-1")
	p := testutil.SeedProduct(t, db, "Soap", "10", "0", 50)

	count, err := svc.StartCount(ctx, StartCountRequest{}, clerk)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID, PhysicalQuantity: intPtr(10)}, clerk)
	require.NoError(t, err)

	cancelled, err := svc.CancelCount(ctx, count.ID, CancelCountRequest{Reason: "wrong shelf"}, clerk)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.CountStatusCancelled), cancelled.Status)
	assert.Equal(t, 50, testutil.ProductStock(t, db, p.ID))

	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID, PhysicalQuantity: intPtr(10)}, clerk)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.CompleteCount(ctx, count.ID, clerk)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.CancelCount(ctx, count.ID, CancelCountRequest{}, clerk)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestStockCountService_ClosedCountRejectsChanges(t *testing.T) {
	svc, db, _ := newCountService(t)
	ctx := context.Background()
	clerk := shared.UserActor("clerk-1")
	p := testutil.SeedProduct(t, db, "Soap", "10", "0", 12)

	count, err := svc.StartCount(ctx, StartCountRequest{}, clerk)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID, PhysicalQuantity: intPtr(10)}, clerk)
	require.NoError(t, err)
	_, err = svc.CompleteCount(ctx, count.ID, clerk)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, count.ID, AddCountItemRequest{ProductID: p.ID, PhysicalQuantity: intPtr(4)}, clerk)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.NotErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = svc.CompleteCount(ctx, count.ID, clerk)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.NotErrorIs(t, err, shared.ErrInvalidTransition)

	assert.Equal(t, 10, testutil.ProductStock(t, db, p.ID))
	assert.Equal(t, testutil.LedgerSum(t, db, p.ID), testutil.ProductStock(t, db, p.ID))
}

func TestStockCountService_ListCounts(t *testing.T) {
	svc, _, _ := newCountService(t)
	ctx := context.Background()
	clerk := shared.UserActor("clerk-1")

	for i := 0; i < 3; i++ {
		_, err := svc.StartCount(ctx, StartCountRequest{}, clerk)
		require.NoError(t, err)
	}
	page, err := svc.ListCounts(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 3)
}
