package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
)

func TestNewGraphService_FirstRunCreatesDefaultCanvas(t *testing.T) {
	graph, repo := newTestGraph(t)

	canvases := graph.Canvases()
	require.Len(t, canvases, 1)
	assert.Equal(t, DefaultCanvasName, canvases[0].Name)
	assert.True(t, canvases[0].Active)

	// Hydration persists the fresh default so a restart finds it.
	assert.GreaterOrEqual(t, repo.saveCount(), 1)
	assert.Len(t, repo.lastState().Canvases, 1)
}

func TestGraphService_EveryMutationWritesThrough(t *testing.T) {
	ctx := context.Background()
	graph, repo := newTestGraph(t)
	canvasID := graph.ActiveCanvasID()
	before := repo.saveCount()

	_, err := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "hello", ModelID: "alpha"})
	require.NoError(t, err)

	assert.Equal(t, before+1, repo.saveCount())
	state := repo.lastState()
	require.Len(t, state.Canvases, 1)
	require.Len(t, state.Canvases[0].Nodes, 1)
	assert.Equal(t, "hello", state.Canvases[0].Nodes[0].Content)
	assert.Equal(t, "alpha", state.LastUsedModelID)
}

func TestGraphService_ReloadRestoresState(t *testing.T) {
	ctx := context.Background()
	graph, repo := newTestGraph(t)
	canvasID := graph.ActiveCanvasID()

	_, err := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "persist me", ModelID: "alpha"})
	require.NoError(t, err)
	require.NoError(t, graph.SetAPIKey(ctx, "openai", "sk-test"))

	// A second service over the same repository sees the same workspace.
	reloaded, err := NewGraphService(ctx, repo, nil, zap.NewNop())
	require.NoError(t, err)

	snap, err := reloaded.CanvasSnapshot(canvasID)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "persist me", snap.Nodes[0].Content)
	assert.Equal(t, map[string]string{"openai": "sk-test"}, reloaded.APIKeys())
	assert.Equal(t, "alpha", reloaded.LastUsedModelID())
}

func TestGraphService_DeleteLastCanvasLeavesFreshDefault(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	original := graph.ActiveCanvasID()

	require.NoError(t, graph.DeleteCanvas(ctx, original))

	canvases := graph.Canvases()
	require.Len(t, canvases, 1)
	assert.Equal(t, DefaultCanvasName, canvases[0].Name)
	assert.NotEqual(t, original.String(), canvases[0].ID)
}

func TestGraphService_DeleteActiveCanvasActivatesNext(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	first := graph.ActiveCanvasID()

	second, err := graph.CreateCanvas(ctx, "second")
	require.NoError(t, err)
	secondID, _ := valueobjects.NewCanvasIDFromString(second.ID)
	require.True(t, graph.ActiveCanvasID().Equals(secondID))

	require.NoError(t, graph.DeleteCanvas(ctx, secondID))
	assert.True(t, graph.ActiveCanvasID().Equals(first))
}

func TestGraphService_MergeNodes_PrefillSkipsPromptSources(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	canvasID, first := buildChain(t, graph, "question", "first answer")
	_, second := buildChain(t, graph, "other question", "second answer")

	merge, err := graph.MergeNodes(ctx, canvasID,
		[]valueobjects.NodeID{first[0], first[1], second[1]}, "")
	require.NoError(t, err)

	// The prompt source is still merged but contributes no digest section.
	assert.Equal(t, entities.KindMerge, merge.Kind)
	assert.Equal(t,
		"### From Response Node:\nfirst answer\n\n---\n\n### From Response Node:\nsecond answer",
		merge.Content)
	assert.Equal(t,
		[]string{first[0].String(), first[1].String(), second[1].String()},
		merge.SourceIDs)
}

func TestGraphService_MergeNodes_UserContentWins(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	canvasID, first := buildChain(t, graph, "question", "first answer")
	_, second := buildChain(t, graph, "other question", "second answer")

	merge, err := graph.MergeNodes(ctx, canvasID,
		[]valueobjects.NodeID{first[1], second[1]}, "my own digest")
	require.NoError(t, err)

	assert.Equal(t, "my own digest", merge.Content)
}

func TestGraphService_MergeNodes_DropsUnresolvedSources(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	canvasID := graph.ActiveCanvasID()

	a, err := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "survivor"})
	require.NoError(t, err)
	aID, _ := valueobjects.NewNodeIDFromString(a.ID)

	merge, err := graph.MergeNodes(ctx, canvasID,
		[]valueobjects.NodeID{aID, valueobjects.NewNodeID()}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, merge.SourceIDs)

	_, err = graph.MergeNodes(ctx, canvasID,
		[]valueobjects.NodeID{valueobjects.NewNodeID()}, "")
	assert.Error(t, err)
}

func TestGraphService_MergeSelection(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	canvasID := graph.ActiveCanvasID()

	a, _ := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "a"})
	b, _ := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "b"})
	graph.SetSelection([]string{a.ID, b.ID})

	merge, err := graph.MergeSelection(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, entities.KindMerge, merge.Kind)

	// Merging consumes the selection.
	assert.Empty(t, graph.Selection())
}

func TestGraphService_MergeSelection_NeedsTwoNodes(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	canvasID := graph.ActiveCanvasID()

	a, _ := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "a"})
	graph.SetSelection([]string{a.ID})

	_, err := graph.MergeSelection(ctx, "")
	assert.Error(t, err)
}

func TestGraphService_SelectionScopedToActiveCanvas(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	first := graph.ActiveCanvasID()

	a, _ := graph.AddPromptNode(ctx, first, AddPromptParams{Content: "a"})
	graph.SetSelection([]string{a.ID})
	require.Len(t, graph.Selection(), 1)

	// Switching canvases clears the selection.
	_, err := graph.CreateCanvas(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, graph.Selection())

	require.NoError(t, graph.SetActiveCanvas(ctx, first))
	assert.Empty(t, graph.Selection())
}

func TestGraphService_SearchNodes(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	first := graph.ActiveCanvasID()

	_, err := graph.AddPromptNode(ctx, first, AddPromptParams{Content: "the quick brown fox"})
	require.NoError(t, err)

	second, err := graph.CreateCanvas(ctx, "second")
	require.NoError(t, err)
	secondID, _ := valueobjects.NewCanvasIDFromString(second.ID)
	_, err = graph.AddPromptNode(ctx, secondID, AddPromptParams{Content: "a lazy Fox sleeps"})
	require.NoError(t, err)

	// Default scope is the active canvas only.
	results := graph.SearchNodes("fox")
	require.Len(t, results, 1)
	assert.Equal(t, secondID.String(), results[0].CanvasID)

	// The memory-search setting widens the scope to every canvas.
	settings := graph.Settings()
	settings.MemorySearch = true
	require.NoError(t, graph.UpdateSettings(ctx, settings))

	results = graph.SearchNodes("FOX")
	assert.Len(t, results, 2)

	assert.Empty(t, graph.SearchNodes("   "))
}

func TestGraphService_PersonaCRUD(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)

	persona, err := graph.CreatePersona(ctx, "Reviewer", "You review code.", "strict reviewer", "#ff0000")
	require.NoError(t, err)
	assert.NotEmpty(t, persona.ID)

	persona.Content = "You review Go code."
	require.NoError(t, graph.UpdatePersona(ctx, persona))

	got, err := graph.Persona(persona.ID)
	require.NoError(t, err)
	assert.Equal(t, "You review Go code.", got.Content)

	require.NoError(t, graph.DeletePersona(ctx, persona.ID))
	_, err = graph.Persona(persona.ID)
	assert.Error(t, err)
}

func TestGraphService_ApplyNodeChanges(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	canvasID := graph.ActiveCanvasID()

	a, _ := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "a"})
	b, _ := graph.AddPromptNode(ctx, canvasID, AddPromptParams{Content: "b"})

	err := graph.ApplyNodeChanges(ctx, canvasID, []NodeChange{
		{NodeID: a.ID, Type: ChangePosition, X: 42, Y: 84},
		{NodeID: a.ID, Type: ChangeSelect, Selected: true},
		{NodeID: b.ID, Type: ChangeRemove},
		{NodeID: "missing", Type: ChangePosition, X: 1, Y: 1},
	})
	require.NoError(t, err)

	snap, err := graph.CanvasSnapshot(canvasID)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, 42.0, snap.Nodes[0].X)
	assert.Equal(t, 84.0, snap.Nodes[0].Y)
	assert.Equal(t, []string{a.ID}, graph.Selection())
}

func TestGraphService_SetAPIKey_EmptyRemoves(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)

	require.NoError(t, graph.SetAPIKey(ctx, "groq", "gk-1"))
	require.NoError(t, graph.SetAPIKey(ctx, "groq", ""))

	assert.Empty(t, graph.APIKeys())
}

func TestGraphService_UnknownIdsDegradeToNoOps(t *testing.T) {
	ctx := context.Background()
	graph, _ := newTestGraph(t)
	active := graph.ActiveCanvasID()
	ghost := valueobjects.NewCanvasID()

	// Rename, activation, and content edits tolerate ids that raced a
	// deletion; the workspace is left untouched.
	require.NoError(t, graph.RenameCanvas(ctx, ghost, "ghost"))
	require.NoError(t, graph.SetActiveCanvas(ctx, ghost))
	assert.True(t, graph.ActiveCanvasID().Equals(active))

	require.NoError(t, graph.UpdateNodeContent(ctx, active, valueobjects.NewNodeID(), "edit"))

	snap, err := graph.CanvasSnapshot(active)
	require.NoError(t, err)
	assert.Equal(t, DefaultCanvasName, snap.Name)
	assert.Empty(t, snap.Nodes)
}

func TestGraphService_DeleteCanvasPublishesEvent(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	repo := &memRepo{}
	graph, err := NewGraphService(ctx, repo, bus, zap.NewNop())
	require.NoError(t, err)

	doomed, err := graph.CreateCanvas(ctx, "doomed")
	require.NoError(t, err)
	doomedID, _ := valueobjects.NewCanvasIDFromString(doomed.ID)

	require.NoError(t, graph.DeleteCanvas(ctx, doomedID))

	deleted := bus.ofType("canvas.deleted")
	require.Len(t, deleted, 1)
	assert.Equal(t, doomed.ID, deleted[0].GetAggregateID())
}
