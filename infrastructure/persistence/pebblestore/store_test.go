package pebblestore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trails/application/ports"
	"trails/domain/core/aggregates"
	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewMemStore(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func canvasSnap(id, name string) aggregates.CanvasSnapshot {
	canvas := aggregates.NewCanvas(name)
	snap := canvas.Snapshot()
	snap.ID = id
	return snap
}

func TestStore_FreshDatabaseLoadsEmptyState(t *testing.T) {
	store := newMemStore(t)

	state, err := store.Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, state.Canvases)
	assert.Empty(t, state.APIKeys)
	assert.Empty(t, state.Personas)
	assert.Empty(t, state.LastUsedModelID)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	canvas := aggregates.NewCanvas("exploration")
	root, err := canvas.AddPromptNode("root question", "gpt-4o", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	require.NoError(t, err)
	_, err = canvas.AddResponseNode(root.ID(), "the answer", "gpt-4o", valueobjects.NewPosition(0, 250))
	require.NoError(t, err)

	saved := ports.State{
		Canvases: []aggregates.CanvasSnapshot{canvas.Snapshot()},
		APIKeys:  map[string]string{"openai": "sk-1", "groq": "gk-2"},
		Settings: entities.Settings{Theme: "acrylic", LLMCouncil: true, PanningSpeed: 1.5},
		Personas: []entities.Persona{
			{ID: "p1", Name: "Reviewer", Content: "You review code."},
		},
		LastUsedModelID: "gpt-4o",
	}
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Canvases, 1)
	assert.Equal(t, canvas.ID().String(), loaded.Canvases[0].ID)
	assert.Equal(t, "exploration", loaded.Canvases[0].Name)
	assert.Len(t, loaded.Canvases[0].Nodes, 2)
	assert.Len(t, loaded.Canvases[0].Edges, 1)
	assert.Equal(t, saved.APIKeys, loaded.APIKeys)
	assert.Equal(t, saved.Settings, loaded.Settings)
	assert.Equal(t, saved.Personas, loaded.Personas)
	assert.Equal(t, "gpt-4o", loaded.LastUsedModelID)
}

func TestStore_PreservesCanvasOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	// Deliberately not in lexicographic key order.
	state := ports.State{Canvases: []aggregates.CanvasSnapshot{
		canvasSnap("zz-first", "first"),
		canvasSnap("aa-second", "second"),
		canvasSnap("mm-third", "third"),
	}}
	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Canvases, 3)
	assert.Equal(t, "zz-first", loaded.Canvases[0].ID)
	assert.Equal(t, "aa-second", loaded.Canvases[1].ID)
	assert.Equal(t, "mm-third", loaded.Canvases[2].ID)
}

func TestStore_SaveDeletesRemovedCanvases(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	require.NoError(t, store.Save(ctx, ports.State{Canvases: []aggregates.CanvasSnapshot{
		canvasSnap("c1", "one"),
		canvasSnap("c2", "two"),
	}}))
	require.NoError(t, store.Save(ctx, ports.State{Canvases: []aggregates.CanvasSnapshot{
		canvasSnap("c2", "two"),
	}}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Canvases, 1)
	assert.Equal(t, "c2", loaded.Canvases[0].ID)
}

func TestStore_SaveOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	require.NoError(t, store.Save(ctx, ports.State{
		Canvases:        []aggregates.CanvasSnapshot{canvasSnap("c1", "before")},
		LastUsedModelID: "alpha",
	}))
	require.NoError(t, store.Save(ctx, ports.State{
		Canvases:        []aggregates.CanvasSnapshot{canvasSnap("c1", "after")},
		LastUsedModelID: "beta",
	}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Canvases, 1)
	assert.Equal(t, "after", loaded.Canvases[0].Name)
	assert.Equal(t, "beta", loaded.LastUsedModelID)
}

func TestStore_LoadAppendsCanvasesMissingFromOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	require.NoError(t, store.Save(ctx, ports.State{Canvases: []aggregates.CanvasSnapshot{
		canvasSnap("c1", "ordered"),
	}}))

	// A canvas record written outside Save has no order entry. It must still
	// surface on load.
	stray := canvasSnap("c9", "stray")
	data, err := json.Marshal(stray)
	require.NoError(t, err)
	require.NoError(t, store.db.Set([]byte(canvasPrefix+"c9"), data, nil))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Canvases, 2)
	assert.Equal(t, "c1", loaded.Canvases[0].ID)
	assert.Equal(t, "c9", loaded.Canvases[1].ID)
}
