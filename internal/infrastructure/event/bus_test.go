package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/tests/testutil"
)

// panickingHandler records the event and then panics
type panickingHandler struct {
	*testutil.MockEventHandler
}

func (h panickingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	_ = h.MockEventHandler.Handle(ctx, event)
	panic("nil map")
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	typed := testutil.NewMockEventHandler(sales.EventTypeSaleCreated)
	other := testutil.NewMockEventHandler(sales.EventTypeSaleCancelled)
	wildcard := testutil.NewMockEventHandler()
	bus.Subscribe(typed, typed.EventTypes()...)
	bus.Subscribe(other, other.EventTypes()...)
	bus.Subscribe(wildcard)

	require.NoError(t, bus.Publish(context.Background(),
		testutil.NewTestEvent(sales.EventTypeSaleCreated),
		testutil.NewTestEvent(sales.EventTypeSaleCreated),
		testutil.NewTestEvent("SomethingElse")))

	assert.Equal(t, 2, typed.HandledCount())
	assert.Equal(t, 0, other.HandledCount())
	assert.Equal(t, 3, wildcard.HandledCount())
}

func TestInMemoryEventBus_FailingHandlersAreIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := testutil.NewMockEventHandler()
	failing.SetError(errors.New("boom"))
	panicking := panickingHandler{testutil.NewMockEventHandler()}
	healthy := testutil.NewMockEventHandler()
	bus.Subscribe(failing, "SaleCreated")
	bus.Subscribe(panicking, "SaleCreated")
	bus.Subscribe(healthy, "SaleCreated")

	require.NoError(t, bus.Publish(context.Background(), testutil.NewTestEvent("SaleCreated")))
	assert.Equal(t, 1, failing.HandledCount())
	assert.Equal(t, 1, panicking.HandledCount())
	assert.Equal(t, 1, healthy.HandledCount())
	assert.Equal(t, 2, logs.FilterMessage("Event handler failed").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := testutil.NewMockEventHandler()
	bus.Subscribe(h, "SaleCreated")
	_ = bus.Publish(context.Background(), testutil.NewTestEvent("SaleCreated"))
	bus.Unsubscribe(h)
	_ = bus.Publish(context.Background(), testutil.NewTestEvent("SaleCreated"))
	assert.Equal(t, 1, h.HandledCount())
}

func TestInMemoryEventBus_StopDropsEvents(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := testutil.NewMockEventHandler()
	bus.Subscribe(h, "SaleCreated")
	ctx := context.Background()

	require.NoError(t, bus.Stop(ctx))
	require.NoError(t, bus.Publish(ctx, testutil.NewTestEvent("SaleCreated")))
	assert.Equal(t, 0, h.HandledCount())

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, testutil.NewTestEvent("SaleCreated")))
	assert.Equal(t, 1, h.HandledCount())
	assert.Equal(t, "SaleCreated", h.Handled()[0].EventType())
}
