package services

import (
	"context"
	"strings"

	"trails/domain/core/aggregates"
	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
	pkgerrors "trails/pkg/errors"
)

// AddPromptParams carries everything needed to place a prompt node
type AddPromptParams struct {
	Content     string
	ModelID     string
	PersonaID   string
	ParentID    valueobjects.NodeID
	Position    *valueobjects.Position
	Attachments []entities.Attachment
}

// AddPromptNode places a prompt on the canvas. Without an explicit position
// a branch prompt lands at the fork offset from its parent and a root prompt
// lands at the origin.
func (s *GraphService) AddPromptNode(ctx context.Context, canvasID valueobjects.CanvasID, params AddPromptParams) (entities.NodeSnapshot, error) {
	var snap entities.NodeSnapshot
	err := s.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		position := valueobjects.NewPosition(0, 0)
		if params.Position != nil {
			position = *params.Position
		} else if !params.ParentID.IsZero() {
			parent, err := canvas.Node(params.ParentID)
			if err != nil {
				return err
			}
			position = parent.Position().Offset(aggregates.ForkOffsetX, aggregates.ForkOffsetY)
		}

		node, err := canvas.AddPromptNode(params.Content, params.ModelID, position, params.ParentID, params.PersonaID, params.Attachments)
		if err != nil {
			return err
		}
		snap = node.Snapshot()
		return nil
	})
	if err != nil {
		return entities.NodeSnapshot{}, err
	}
	s.rememberModel(params.ModelID)
	return snap, nil
}

// UpdateNodeContent edits a node's text in place. Unknown ids are ignored;
// an edit racing a deletion settles as a no-op.
func (s *GraphService) UpdateNodeContent(ctx context.Context, canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID, content string) error {
	err := s.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		return canvas.UpdateNodeContent(nodeID, content)
	})
	if pkgerrors.IsNotFound(err) {
		return nil
	}
	return err
}

// SetNodeHidden toggles a node's exclusion from context assembly
func (s *GraphService) SetNodeHidden(ctx context.Context, canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID, hidden bool) error {
	return s.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		return canvas.SetNodeHidden(nodeID, hidden)
	})
}

// DeleteNode removes a node and its incident edges
func (s *GraphService) DeleteNode(ctx context.Context, canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID) error {
	err := s.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		return canvas.DeleteNode(nodeID)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.selection, nodeID.String())
	s.mu.Unlock()
	return nil
}

// MergeNodes collapses the given source nodes into a merge node. The content
// is the user-edited aggregate text; when empty it defaults to a sectioned
// digest of the response and merge sources. Prompt sources contribute nothing
// to the digest. The canvas decides placement.
func (s *GraphService) MergeNodes(ctx context.Context, canvasID valueobjects.CanvasID, sourceIDs []valueobjects.NodeID, content string) (entities.NodeSnapshot, error) {
	var snap entities.NodeSnapshot
	err := s.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		if content == "" {
			content = mergePrefill(canvas, sourceIDs)
		}
		node, err := canvas.AddMergeNode(content, sourceIDs)
		if err != nil {
			return err
		}
		snap = node.Snapshot()
		return nil
	})
	if err != nil {
		return entities.NodeSnapshot{}, err
	}
	return snap, nil
}

// mergePrefill builds the suggested merge text: one section per response or
// merge source, separated by horizontal rules. Prompt sources and ids that no
// longer resolve are skipped.
func mergePrefill(canvas *aggregates.Canvas, sourceIDs []valueobjects.NodeID) string {
	var sections []string
	for _, sid := range sourceIDs {
		node, err := canvas.Node(sid)
		if err != nil {
			continue
		}
		switch node.Kind() {
		case entities.KindResponse:
			sections = append(sections, "### From Response Node:\n"+node.Content())
		case entities.KindMerge:
			sections = append(sections, "### From Merge Node:\n"+node.Content())
		}
	}
	return strings.Join(sections, "\n\n---\n\n")
}

// MergeSelection merges the currently selected nodes on the active canvas
func (s *GraphService) MergeSelection(ctx context.Context, content string) (entities.NodeSnapshot, error) {
	s.mu.Lock()
	canvasID := s.activeID
	sourceIDs := make([]valueobjects.NodeID, 0, len(s.selection))
	if canvas, ok := s.canvases[canvasID.String()]; ok {
		// Resolve in node insertion order so the merge digest is stable.
		for _, node := range canvas.Nodes() {
			if _, selected := s.selection[node.ID().String()]; selected {
				sourceIDs = append(sourceIDs, node.ID())
			}
		}
	}
	s.mu.Unlock()

	if len(sourceIDs) < 2 {
		return entities.NodeSnapshot{}, pkgerrors.NewValidationError("select at least two nodes to merge")
	}

	snap, err := s.MergeNodes(ctx, canvasID, sourceIDs, content)
	if err != nil {
		return entities.NodeSnapshot{}, err
	}
	s.ClearSelection()
	return snap, nil
}

// NodeChangeType discriminates batched rendering-layer changes
type NodeChangeType string

const (
	ChangePosition NodeChangeType = "position"
	ChangeSelect   NodeChangeType = "select"
	ChangeRemove   NodeChangeType = "remove"
)

// NodeChange is one entry of a batched rendering-layer update
type NodeChange struct {
	NodeID   string         `json:"nodeId"`
	Type     NodeChangeType `json:"type"`
	X        float64        `json:"x,omitempty"`
	Y        float64        `json:"y,omitempty"`
	Selected bool           `json:"selected,omitempty"`
}

// ApplyNodeChanges applies a batch of rendering-layer changes under one lock
// and one snapshot write. Changes referencing missing nodes are skipped so a
// stale batch never poisons the rest.
func (s *GraphService) ApplyNodeChanges(ctx context.Context, canvasID valueobjects.CanvasID, changes []NodeChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, err := s.canvasLocked(canvasID)
	if err != nil {
		return err
	}

	for _, change := range changes {
		nodeID, err := valueobjects.NewNodeIDFromString(change.NodeID)
		if err != nil {
			continue
		}
		switch change.Type {
		case ChangePosition:
			if err := canvas.MoveNode(nodeID, valueobjects.NewPosition(change.X, change.Y)); err != nil {
				continue
			}
		case ChangeSelect:
			if !canvasID.Equals(s.activeID) {
				continue
			}
			if change.Selected {
				s.selection[change.NodeID] = struct{}{}
			} else {
				delete(s.selection, change.NodeID)
			}
		case ChangeRemove:
			if err := canvas.DeleteNode(nodeID); err != nil {
				continue
			}
			delete(s.selection, change.NodeID)
		}
	}

	s.drainEventsLocked(canvas)
	return s.persistLocked(ctx)
}

// Selection returns the selected node ids on the active canvas in insertion
// order
func (s *GraphService) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, ok := s.canvases[s.activeID.String()]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.selection))
	for _, node := range canvas.Nodes() {
		if _, selected := s.selection[node.ID().String()]; selected {
			out = append(out, node.ID().String())
		}
	}
	return out
}

// SetSelection replaces the selection on the active canvas. Ids that do not
// resolve to live nodes are dropped.
func (s *GraphService) SetSelection(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, ok := s.canvases[s.activeID.String()]
	if !ok {
		return
	}
	s.selection = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		nodeID, err := valueobjects.NewNodeIDFromString(id)
		if err != nil || !canvas.HasNode(nodeID) {
			continue
		}
		s.selection[id] = struct{}{}
	}
}

// ClearSelection empties the selection
func (s *GraphService) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[string]struct{})
}

// SearchResult is one memory-search hit
type SearchResult struct {
	CanvasID   string                `json:"canvasId"`
	CanvasName string                `json:"canvasName"`
	Node       entities.NodeSnapshot `json:"node"`
}

// SearchNodes finds nodes whose content contains the query, case-insensitive.
// The active canvas is always searched; the memory-search setting widens the
// scope to every canvas in the catalog.
func (s *GraphService) SearchNodes(query string) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SearchResult
	for _, id := range s.canvasOrder {
		if id != s.activeID.String() && !s.settings.MemorySearch {
			continue
		}
		canvas := s.canvases[id]
		for _, node := range canvas.Nodes() {
			if strings.Contains(strings.ToLower(node.Content()), query) {
				out = append(out, SearchResult{
					CanvasID:   canvas.ID().String(),
					CanvasName: canvas.Name(),
					Node:       node.Snapshot(),
				})
			}
		}
	}
	return out
}
