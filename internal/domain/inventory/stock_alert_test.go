package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockAlert_Lifecycle(t *testing.T) {
	a := NewStockAlert(uuid.New(), 3, 10, shared.SystemActor("stock-ledger"))
	assert.Equal(t, AlertStatusActive, a.Status)
	require.Len(t, a.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeLowStockAlertRaised, a.GetDomainEvents()[0].EventType())

	require.NoError(t, a.Resolve(testActor))
	assert.Equal(t, AlertStatusResolved, a.Status)
	assert.Equal(t, "user:clerk-7", a.ResolvedBy)
	assert.NotNil(t, a.ResolvedAt)

	assert.ErrorIs(t, a.Ignore(testActor), shared.ErrInvalidTransition)
}

func TestStockAlert_Ignore(t *testing.T) {
	a := NewStockAlert(uuid.New(), 0, 5, testActor)
	require.NoError(t, a.Ignore(testActor))
	assert.Equal(t, AlertStatusIgnored, a.Status)
	assert.ErrorIs(t, a.Resolve(testActor), shared.ErrInvalidTransition)
}
