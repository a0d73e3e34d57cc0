package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
	"trails/domain/events"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	canvasID := valueobjects.NewCanvasID()

	var received []events.DomainEvent
	bus.Subscribe("canvas.node_added", func(ctx context.Context, event events.DomainEvent) {
		received = append(received, event)
	})

	event := events.NewNodeAdded(canvasID, valueobjects.NewNodeID(), entities.KindPrompt)
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, received, 1)
	assert.Equal(t, "canvas.node_added", received[0].GetEventType())
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := NewBus(zap.NewNop())
	canvasID := valueobjects.NewCanvasID()

	calls := 0
	bus.Subscribe("canvas.deleted", func(ctx context.Context, event events.DomainEvent) {
		calls++
	})

	require.NoError(t, bus.Publish(context.Background(), events.NewCanvasCreated(canvasID, "x")))
	assert.Equal(t, 0, calls)

	require.NoError(t, bus.Publish(context.Background(), events.NewCanvasDeleted(canvasID)))
	assert.Equal(t, 1, calls)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())
	canvasID := valueobjects.NewCanvasID()

	calls := 0
	unsubscribe := bus.Subscribe("canvas.created", func(ctx context.Context, event events.DomainEvent) {
		calls++
	})

	require.NoError(t, bus.Publish(context.Background(), events.NewCanvasCreated(canvasID, "a")))
	unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), events.NewCanvasCreated(canvasID, "b")))

	assert.Equal(t, 1, calls)
}

func TestBus_RecoversPanickingHandler(t *testing.T) {
	bus := NewBus(zap.NewNop())
	canvasID := valueobjects.NewCanvasID()

	healthyCalls := 0
	bus.Subscribe("canvas.created", func(ctx context.Context, event events.DomainEvent) {
		panic("boom")
	})
	bus.Subscribe("canvas.created", func(ctx context.Context, event events.DomainEvent) {
		healthyCalls++
	})

	require.NoError(t, bus.Publish(context.Background(), events.NewCanvasCreated(canvasID, "x")))

	// One bad subscriber never blocks the rest.
	assert.Equal(t, 1, healthyCalls)
}
