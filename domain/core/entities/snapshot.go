package entities

import (
	"time"

	"trails/domain/core/valueobjects"
	pkgerrors "trails/pkg/errors"
)

// NodeSnapshot is the flat persistence form of a Node. The repository and
// the rendering contract both speak snapshots; the entity stays encapsulated.
type NodeSnapshot struct {
	ID        string     `json:"id"`
	Kind      NodeKind   `json:"kind"`
	Status    NodeStatus `json:"status"`
	Hidden    bool       `json:"hidden,omitempty"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	CreatedAt int64      `json:"createdAt"`

	Content     string       `json:"content"`
	ModelID     string       `json:"modelId,omitempty"`
	PersonaID   string       `json:"personaId,omitempty"`
	ParentID    string       `json:"parentId,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	PromptID    string       `json:"promptId,omitempty"`
	SourceIDs   []string     `json:"sourceIds,omitempty"`
}

// Snapshot returns the node's persistence form
func (n *Node) Snapshot() NodeSnapshot {
	snap := NodeSnapshot{
		ID:        n.id.String(),
		Kind:      n.Kind(),
		Status:    n.status,
		Hidden:    n.hidden,
		X:         n.position.X,
		Y:         n.position.Y,
		CreatedAt: n.createdAt.UnixMilli(),
		Content:   n.Content(),
	}

	switch p := n.payload.(type) {
	case PromptContent:
		snap.ModelID = p.ModelID
		snap.PersonaID = p.PersonaID
		if !p.ParentID.IsZero() {
			snap.ParentID = p.ParentID.String()
		}
		snap.Attachments = p.Attachments
	case ResponseContent:
		snap.ModelID = p.ModelID
		snap.PromptID = p.PromptID.String()
	case MergeContent:
		snap.SourceIDs = make([]string, 0, len(p.SourceIDs))
		for _, id := range p.SourceIDs {
			snap.SourceIDs = append(snap.SourceIDs, id.String())
		}
	}

	return snap
}

// ReconstructNode rebuilds a node from its persistence form with preserved
// id, timestamps, and status.
func ReconstructNode(snap NodeSnapshot) (*Node, error) {
	id, err := valueobjects.NewNodeIDFromString(snap.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("node snapshot missing id")
	}

	var payload nodePayload
	switch snap.Kind {
	case KindPrompt:
		var parentID valueobjects.NodeID
		if snap.ParentID != "" {
			parentID, _ = valueobjects.NewNodeIDFromString(snap.ParentID)
		}
		payload = PromptContent{
			Content:     snap.Content,
			ModelID:     snap.ModelID,
			PersonaID:   snap.PersonaID,
			ParentID:    parentID,
			Attachments: snap.Attachments,
		}
	case KindResponse:
		promptID, err := valueobjects.NewNodeIDFromString(snap.PromptID)
		if err != nil {
			return nil, pkgerrors.NewValidationError("response snapshot missing promptId")
		}
		payload = ResponseContent{
			Content:  snap.Content,
			ModelID:  snap.ModelID,
			PromptID: promptID,
		}
	case KindMerge:
		sources := make([]valueobjects.NodeID, 0, len(snap.SourceIDs))
		for _, sid := range snap.SourceIDs {
			src, err := valueobjects.NewNodeIDFromString(sid)
			if err != nil {
				continue
			}
			sources = append(sources, src)
		}
		payload = MergeContent{
			Content:   snap.Content,
			SourceIDs: sources,
		}
	default:
		return nil, pkgerrors.NewValidationError("unknown node kind: " + string(snap.Kind))
	}

	return &Node{
		id:        id,
		status:    snap.Status,
		hidden:    snap.Hidden,
		position:  valueobjects.NewPosition(snap.X, snap.Y),
		createdAt: time.UnixMilli(snap.CreatedAt),
		payload:   payload,
	}, nil
}
