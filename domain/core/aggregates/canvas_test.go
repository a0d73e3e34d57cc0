package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
)

func TestCanvas_AddPromptNode_WiresParentEdge(t *testing.T) {
	canvas := NewCanvas("test")
	root, err := canvas.AddPromptNode("root", "gpt-4o", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	require.NoError(t, err)

	child, err := canvas.AddPromptNode("follow up", "gpt-4o", valueobjects.NewPosition(400, 100), root.ID(), "", nil)
	require.NoError(t, err)

	edges := canvas.Edges()
	require.Len(t, edges, 1)
	assert.True(t, edges[0].SourceID.Equals(root.ID()))
	assert.True(t, edges[0].TargetID.Equals(child.ID()))

	parent, ok := canvas.ParentOf(child.ID())
	require.True(t, ok)
	assert.True(t, parent.Equals(root.ID()))
}

func TestCanvas_AddPromptNode_MissingParent(t *testing.T) {
	canvas := NewCanvas("test")

	_, err := canvas.AddPromptNode("orphan", "gpt-4o", valueobjects.NewPosition(0, 0), valueobjects.NewNodeID(), "", nil)

	assert.Error(t, err)
	assert.Equal(t, 0, canvas.NodeCount())
}

func TestCanvas_AddResponseNode(t *testing.T) {
	canvas := NewCanvas("test")
	prompt, err := canvas.AddPromptNode("q", "gpt-4o", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	require.NoError(t, err)

	resp, err := canvas.AddResponseNode(prompt.ID(), "a", "gpt-4o", valueobjects.NewPosition(0, 250))
	require.NoError(t, err)

	assert.Equal(t, entities.KindResponse, resp.Kind())
	assert.Equal(t, entities.StatusComplete, resp.Status())

	parent, ok := canvas.ParentOf(resp.ID())
	require.True(t, ok)
	assert.True(t, parent.Equals(prompt.ID()))
}

func TestCanvas_AddMergeNode_PositionAndFanIn(t *testing.T) {
	canvas := NewCanvas("test")
	left, err := canvas.AddPromptNode("left", "m", valueobjects.NewPosition(100, 300), valueobjects.NodeID{}, "", nil)
	require.NoError(t, err)
	right, err := canvas.AddPromptNode("right", "m", valueobjects.NewPosition(500, 700), valueobjects.NodeID{}, "", nil)
	require.NoError(t, err)

	merge, err := canvas.AddMergeNode("digest", []valueobjects.NodeID{left.ID(), right.ID()})
	require.NoError(t, err)

	// Average x of sources, deepest y plus the merge offset.
	assert.Equal(t, valueobjects.NewPosition(300, 700+MergeOffsetY), merge.Position())

	// One incoming edge per source.
	incoming := 0
	for _, e := range canvas.Edges() {
		if e.TargetID.Equals(merge.ID()) {
			incoming++
		}
	}
	assert.Equal(t, 2, incoming)
}

func TestCanvas_AddMergeNode_SingleSourceSucceeds(t *testing.T) {
	canvas := NewCanvas("test")
	only, err := canvas.AddPromptNode("solo", "m", valueobjects.NewPosition(100, 40), valueobjects.NodeID{}, "", nil)
	require.NoError(t, err)

	merge, err := canvas.AddMergeNode("digest", []valueobjects.NodeID{only.ID()})
	require.NoError(t, err)

	assert.Equal(t, valueobjects.NewPosition(100, 40+MergeOffsetY), merge.Position())
}

func TestCanvas_AddMergeNode_SkipsUnresolvedSources(t *testing.T) {
	canvas := NewCanvas("test")
	live, err := canvas.AddPromptNode("live", "m", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	require.NoError(t, err)

	// The vanished source is dropped; the merge lands on what remains.
	merge, err := canvas.AddMergeNode("digest", []valueobjects.NodeID{live.ID(), valueobjects.NewNodeID()})
	require.NoError(t, err)

	incoming := 0
	for _, e := range canvas.Edges() {
		if e.TargetID.Equals(merge.ID()) {
			incoming++
		}
	}
	assert.Equal(t, 1, incoming)

	// Nothing resolvable fails the merge outright.
	_, err = canvas.AddMergeNode("digest", []valueobjects.NodeID{valueobjects.NewNodeID()})
	assert.Error(t, err)
}

func TestCanvas_DeleteNode_CascadesIncidentEdgesOnly(t *testing.T) {
	canvas := NewCanvas("test")
	root, _ := canvas.AddPromptNode("root", "m", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	mid, _ := canvas.AddResponseNode(root.ID(), "a", "m", valueobjects.NewPosition(0, 250))
	leaf, err := canvas.AddPromptNode("leaf", "m", valueobjects.NewPosition(0, 500), mid.ID(), "", nil)
	require.NoError(t, err)

	require.NoError(t, canvas.DeleteNode(mid.ID()))

	// The descendant survives as an orphan; both incident edges are gone.
	assert.True(t, canvas.HasNode(leaf.ID()))
	assert.True(t, canvas.HasNode(root.ID()))
	assert.Empty(t, canvas.Edges())

	_, ok := canvas.ParentOf(leaf.ID())
	assert.False(t, ok)
}

func TestCanvas_DeleteNode_NotFound(t *testing.T) {
	canvas := NewCanvas("test")

	err := canvas.DeleteNode(valueobjects.NewNodeID())

	assert.Error(t, err)
}

func TestCanvas_ParentOf_FirstIncomingEdgeWins(t *testing.T) {
	canvas := NewCanvas("test")
	a, _ := canvas.AddPromptNode("a", "m", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	b, _ := canvas.AddPromptNode("b", "m", valueobjects.NewPosition(100, 0), valueobjects.NodeID{}, "", nil)
	resp, err := canvas.AddResponseNode(a.ID(), "r", "m", valueobjects.NewPosition(0, 250))
	require.NoError(t, err)

	// A second stray edge into the same node must not change ancestry.
	canvas.insertEdge(b.ID(), resp.ID())

	parent, ok := canvas.ParentOf(resp.ID())
	require.True(t, ok)
	assert.True(t, parent.Equals(a.ID()))
}

func TestCanvas_SetNodeHidden_KeepsTopology(t *testing.T) {
	canvas := NewCanvas("test")
	root, _ := canvas.AddPromptNode("root", "m", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	resp, _ := canvas.AddResponseNode(root.ID(), "r", "m", valueobjects.NewPosition(0, 250))

	require.NoError(t, canvas.SetNodeHidden(resp.ID(), true))

	node, err := canvas.Node(resp.ID())
	require.NoError(t, err)
	assert.True(t, node.Hidden())
	assert.Len(t, canvas.Edges(), 1)
}

func TestCanvas_SnapshotRoundTrip(t *testing.T) {
	canvas := NewCanvas("exploration")
	root, _ := canvas.AddPromptNode("root", "gpt-4o", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	resp, _ := canvas.AddResponseNode(root.ID(), "answer", "gpt-4o", valueobjects.NewPosition(0, 250))
	branch, err := canvas.AddPromptNode("branch", "gpt-4o", valueobjects.NewPosition(400, 350), resp.ID(), "", nil)
	require.NoError(t, err)

	snap := canvas.Snapshot()
	rebuilt, err := ReconstructCanvas(snap)
	require.NoError(t, err)

	assert.Equal(t, canvas.ID().String(), rebuilt.ID().String())
	assert.Equal(t, "exploration", rebuilt.Name())
	assert.Equal(t, 3, rebuilt.NodeCount())
	assert.Len(t, rebuilt.Edges(), 2)

	// Insertion order survives so ancestry resolution stays deterministic.
	nodes := rebuilt.Nodes()
	assert.True(t, nodes[0].ID().Equals(root.ID()))
	assert.True(t, nodes[1].ID().Equals(resp.ID()))
	assert.True(t, nodes[2].ID().Equals(branch.ID()))

	parent, ok := rebuilt.ParentOf(branch.ID())
	require.True(t, ok)
	assert.True(t, parent.Equals(resp.ID()))
}

func TestReconstructCanvas_DropsDanglingEdges(t *testing.T) {
	canvas := NewCanvas("test")
	root, _ := canvas.AddPromptNode("root", "m", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	resp, _ := canvas.AddResponseNode(root.ID(), "r", "m", valueobjects.NewPosition(0, 250))
	_ = resp

	snap := canvas.Snapshot()
	snap.Edges = append(snap.Edges, EdgeSnapshot{ID: "e-ghost", Source: "missing", Target: root.ID().String()})

	rebuilt, err := ReconstructCanvas(snap)
	require.NoError(t, err)
	assert.Len(t, rebuilt.Edges(), 1)
}
