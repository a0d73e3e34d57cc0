package entities

import (
	"time"

	"trails/domain/core/valueobjects"
	pkgerrors "trails/pkg/errors"
)

// NodeKind discriminates the node payload union
type NodeKind string

const (
	KindPrompt   NodeKind = "prompt"
	KindResponse NodeKind = "response"
	KindMerge    NodeKind = "merge"
)

// NodeStatus represents the request-cycle state of a node
type NodeStatus string

const (
	StatusIdle     NodeStatus = "idle"
	StatusLoading  NodeStatus = "loading"
	StatusComplete NodeStatus = "complete"
	StatusError    NodeStatus = "error"
)

// AttachmentKind discriminates attachment payloads
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is a file or image attached to a prompt. Payload holds the
// base64 data URL as supplied by the rendering layer.
type Attachment struct {
	ID       string         `json:"id"`
	Kind     AttachmentKind `json:"kind"`
	Name     string         `json:"name"`
	MimeType string         `json:"mimeType"`
	Payload  string         `json:"payload"`
}

// PromptContent is the payload of a user-authored turn
type PromptContent struct {
	Content     string
	ModelID     string
	PersonaID   string
	ParentID    valueobjects.NodeID
	Attachments []Attachment
}

// HasImages reports whether the prompt carries at least one image attachment
func (p PromptContent) HasImages() bool {
	for _, att := range p.Attachments {
		if att.Kind == AttachmentImage {
			return true
		}
	}
	return false
}

// ResponseContent is the payload of a model-authored turn
type ResponseContent struct {
	Content  string
	ModelID  string
	PromptID valueobjects.NodeID
}

// MergeContent is the payload of a synthesized multi-branch node
type MergeContent struct {
	Content   string
	SourceIDs []valueobjects.NodeID
}

// nodePayload is the closed set of node payload variants
type nodePayload interface {
	kind() NodeKind
}

func (PromptContent) kind() NodeKind   { return KindPrompt }
func (ResponseContent) kind() NodeKind { return KindResponse }
func (MergeContent) kind() NodeKind    { return KindMerge }

// Node is a single turn on the canvas: a prompt, a response, or a merge.
// The payload union is accessed through the typed accessors so every
// consumer matches exhaustively on Kind instead of casting.
type Node struct {
	id        valueobjects.NodeID
	status    NodeStatus
	hidden    bool
	position  valueobjects.Position
	createdAt time.Time
	payload   nodePayload
}

// NewPromptNode creates a user-authored prompt node with status idle.
// Empty content is allowed: the rendering layer creates placeholder prompts
// when a connection is dragged onto empty canvas.
func NewPromptNode(content, modelID string, position valueobjects.Position, parentID valueobjects.NodeID, personaID string, attachments []Attachment) *Node {
	return &Node{
		id:        valueobjects.NewNodeID(),
		status:    StatusIdle,
		position:  position,
		createdAt: time.Now(),
		payload: PromptContent{
			Content:     content,
			ModelID:     modelID,
			PersonaID:   personaID,
			ParentID:    parentID,
			Attachments: attachments,
		},
	}
}

// NewResponseNode creates a model-authored response node with status complete
func NewResponseNode(promptID valueobjects.NodeID, content, modelID string, position valueobjects.Position) (*Node, error) {
	if promptID.IsZero() {
		return nil, pkgerrors.NewValidationError("promptID cannot be empty")
	}
	return &Node{
		id:        valueobjects.NewNodeID(),
		status:    StatusComplete,
		position:  position,
		createdAt: time.Now(),
		payload: ResponseContent{
			Content:  content,
			ModelID:  modelID,
			PromptID: promptID,
		},
	}, nil
}

// NewMergeNode creates a merge node combining the given sources
func NewMergeNode(content string, sourceIDs []valueobjects.NodeID, position valueobjects.Position) (*Node, error) {
	if len(sourceIDs) == 0 {
		return nil, pkgerrors.NewValidationError("merge requires at least one source node")
	}
	sources := make([]valueobjects.NodeID, len(sourceIDs))
	copy(sources, sourceIDs)
	return &Node{
		id:        valueobjects.NewNodeID(),
		status:    StatusComplete,
		position:  position,
		createdAt: time.Now(),
		payload: MergeContent{
			Content:   content,
			SourceIDs: sources,
		},
	}, nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Kind returns the payload discriminator
func (n *Node) Kind() NodeKind {
	return n.payload.kind()
}

// Status returns the node's current status
func (n *Node) Status() NodeStatus {
	return n.status
}

// Hidden reports whether the node is excluded from context assembly
func (n *Node) Hidden() bool {
	return n.hidden
}

// SetHidden toggles exclusion from context assembly. Hiding never touches
// graph topology; traversal walks past hidden nodes.
func (n *Node) SetHidden(hidden bool) {
	n.hidden = hidden
}

// Position returns the node's canvas position
func (n *Node) Position() valueobjects.Position {
	return n.position
}

// MoveTo moves the node to a new position
func (n *Node) MoveTo(position valueobjects.Position) {
	n.position = position
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// Prompt returns the prompt payload when Kind is prompt
func (n *Node) Prompt() (PromptContent, bool) {
	p, ok := n.payload.(PromptContent)
	return p, ok
}

// Response returns the response payload when Kind is response
func (n *Node) Response() (ResponseContent, bool) {
	r, ok := n.payload.(ResponseContent)
	return r, ok
}

// Merge returns the merge payload when Kind is merge
func (n *Node) Merge() (MergeContent, bool) {
	m, ok := n.payload.(MergeContent)
	return m, ok
}

// Content returns the text content common to all node kinds
func (n *Node) Content() string {
	switch p := n.payload.(type) {
	case PromptContent:
		return p.Content
	case ResponseContent:
		return p.Content
	case MergeContent:
		return p.Content
	}
	return ""
}

// ModelID returns the model attribution for prompt and response nodes,
// or "" for merge nodes.
func (n *Node) ModelID() string {
	switch p := n.payload.(type) {
	case PromptContent:
		return p.ModelID
	case ResponseContent:
		return p.ModelID
	}
	return ""
}

// UpdateContent replaces the node's text content in place
func (n *Node) UpdateContent(content string) {
	switch p := n.payload.(type) {
	case PromptContent:
		p.Content = content
		n.payload = p
	case ResponseContent:
		p.Content = content
		n.payload = p
	case MergeContent:
		p.Content = content
		n.payload = p
	}
}

// TransitionTo applies the node status state machine:
// idle -> loading -> {complete, error}. Complete and error are terminal for
// a request cycle but a new submission resets the node to loading.
func (n *Node) TransitionTo(status NodeStatus) error {
	switch status {
	case StatusLoading:
		// Any state may enter loading; resubmission resets the cycle.
		n.status = StatusLoading
		return nil
	case StatusComplete, StatusError:
		if n.status != StatusLoading {
			return pkgerrors.NewValidationError("node is not loading; cannot settle a request that was never dispatched")
		}
		n.status = status
		return nil
	case StatusIdle:
		return pkgerrors.NewValidationError("nodes cannot return to idle")
	default:
		return pkgerrors.NewValidationError("unknown node status: " + string(status))
	}
}
