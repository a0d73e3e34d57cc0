package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trails/domain/core/valueobjects"
)

func TestNewPromptNode_StartsIdle(t *testing.T) {
	node := NewPromptNode("hello", "gpt-4o", valueobjects.NewPosition(10, 20), valueobjects.NodeID{}, "", nil)

	assert.Equal(t, KindPrompt, node.Kind())
	assert.Equal(t, StatusIdle, node.Status())
	assert.Equal(t, "hello", node.Content())
	assert.Equal(t, "gpt-4o", node.ModelID())
	assert.False(t, node.Hidden())
}

func TestNewPromptNode_AllowsEmptyContent(t *testing.T) {
	node := NewPromptNode("", "", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)

	assert.Equal(t, "", node.Content())
	assert.Equal(t, StatusIdle, node.Status())
}

func TestNewResponseNode_RequiresPromptID(t *testing.T) {
	_, err := NewResponseNode(valueobjects.NodeID{}, "text", "gpt-4o", valueobjects.NewPosition(0, 0))

	assert.Error(t, err)
}

func TestNewMergeNode_RequiresSources(t *testing.T) {
	_, err := NewMergeNode("digest", nil, valueobjects.NewPosition(0, 0))

	assert.Error(t, err)
}

func TestNode_StatusStateMachine(t *testing.T) {
	node := NewPromptNode("q", "m", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)

	// idle -> complete is not a legal settle; nothing was dispatched
	assert.Error(t, node.TransitionTo(StatusComplete))
	assert.Error(t, node.TransitionTo(StatusError))

	// idle -> loading -> complete
	require.NoError(t, node.TransitionTo(StatusLoading))
	require.NoError(t, node.TransitionTo(StatusComplete))
	assert.Equal(t, StatusComplete, node.Status())

	// resubmission resets the cycle
	require.NoError(t, node.TransitionTo(StatusLoading))
	require.NoError(t, node.TransitionTo(StatusError))
	assert.Equal(t, StatusError, node.Status())

	// error -> loading again is allowed, back to idle never is
	require.NoError(t, node.TransitionTo(StatusLoading))
	assert.Error(t, node.TransitionTo(StatusIdle))
}

func TestPromptContent_HasImages(t *testing.T) {
	withImage := PromptContent{Attachments: []Attachment{
		{ID: "a1", Kind: AttachmentFile, Name: "notes.txt"},
		{ID: "a2", Kind: AttachmentImage, Name: "chart.png"},
	}}
	fileOnly := PromptContent{Attachments: []Attachment{
		{ID: "a1", Kind: AttachmentFile, Name: "notes.txt"},
	}}

	assert.True(t, withImage.HasImages())
	assert.False(t, fileOnly.HasImages())
	assert.False(t, PromptContent{}.HasImages())
}

func TestNode_UpdateContent(t *testing.T) {
	node := NewPromptNode("before", "m", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)

	node.UpdateContent("after")

	assert.Equal(t, "after", node.Content())
	prompt, ok := node.Prompt()
	require.True(t, ok)
	assert.Equal(t, "after", prompt.Content)
	assert.Equal(t, "m", prompt.ModelID)
}

func TestNode_SnapshotRoundTrip(t *testing.T) {
	parent := NewPromptNode("root", "gpt-4o", valueobjects.NewPosition(0, 0), valueobjects.NodeID{}, "", nil)
	node := NewPromptNode("child", "claude-3-opus-20240229", valueobjects.NewPosition(400, 100), parent.ID(), "persona-1", []Attachment{
		{ID: "a1", Kind: AttachmentImage, Name: "img.png", MimeType: "image/png", Payload: "data:image/png;base64,xxx"},
	})
	node.SetHidden(true)

	snap := node.Snapshot()
	rebuilt, err := ReconstructNode(snap)
	require.NoError(t, err)

	assert.Equal(t, node.ID().String(), rebuilt.ID().String())
	assert.Equal(t, KindPrompt, rebuilt.Kind())
	assert.Equal(t, StatusIdle, rebuilt.Status())
	assert.True(t, rebuilt.Hidden())
	assert.Equal(t, valueobjects.NewPosition(400, 100), rebuilt.Position())

	prompt, ok := rebuilt.Prompt()
	require.True(t, ok)
	assert.Equal(t, "child", prompt.Content)
	assert.Equal(t, "persona-1", prompt.PersonaID)
	assert.True(t, prompt.ParentID.Equals(parent.ID()))
	require.Len(t, prompt.Attachments, 1)
	assert.Equal(t, AttachmentImage, prompt.Attachments[0].Kind)
}

func TestReconstructNode_UnknownKind(t *testing.T) {
	_, err := ReconstructNode(NodeSnapshot{ID: "n1", Kind: NodeKind("banner")})

	assert.Error(t, err)
}

func TestReconstructNode_ResponseNeedsPromptID(t *testing.T) {
	_, err := ReconstructNode(NodeSnapshot{ID: "n1", Kind: KindResponse, Content: "text"})

	assert.Error(t, err)
}
