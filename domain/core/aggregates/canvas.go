package aggregates

import (
	"time"

	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
	"trails/domain/events"
	pkgerrors "trails/pkg/errors"
)

// Layout offsets applied when the engine places nodes itself. The rendering
// layer may move nodes afterwards; these only fix the initial placement.
const (
	ForkOffsetX     = 400.0
	ForkOffsetY     = 100.0
	ParallelSpreadX = 450.0
	ResponseOffsetY = 250.0
	MergeOffsetY    = 200.0
)

// Edge is a directed parent-to-child connection between two nodes
type Edge struct {
	ID       string              `json:"id"`
	SourceID valueobjects.NodeID `json:"source"`
	TargetID valueobjects.NodeID `json:"target"`
}

// Canvas is the aggregate root for one conversation graph. All node and edge
// mutations go through the canvas so the graph invariants hold: edges only
// reference nodes that exist, deleting a node cascades to its incident edges
// and nothing else, and ancestry resolution is deterministic (first incoming
// edge in insertion order wins).
type Canvas struct {
	id        valueobjects.CanvasID
	name      string
	createdAt time.Time

	nodes     map[string]*entities.Node
	nodeOrder []string
	edges     []Edge

	uncommittedEvents []events.DomainEvent
}

// NewCanvas creates an empty canvas
func NewCanvas(name string) *Canvas {
	c := &Canvas{
		id:        valueobjects.NewCanvasID(),
		name:      name,
		createdAt: time.Now(),
		nodes:     make(map[string]*entities.Node),
	}
	c.addEvent(events.NewCanvasCreated(c.id, name))
	return c
}

// ID returns the canvas identifier
func (c *Canvas) ID() valueobjects.CanvasID {
	return c.id
}

// Name returns the canvas name
func (c *Canvas) Name() string {
	return c.name
}

// Rename changes the canvas name
func (c *Canvas) Rename(name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("canvas name cannot be empty")
	}
	c.name = name
	c.addEvent(events.NewCanvasRenamed(c.id, name))
	return nil
}

// CreatedAt returns when the canvas was created
func (c *Canvas) CreatedAt() time.Time {
	return c.createdAt
}

// NodeCount returns the number of nodes on the canvas
func (c *Canvas) NodeCount() int {
	return len(c.nodes)
}

// Node returns the node with the given id
func (c *Canvas) Node(id valueobjects.NodeID) (*entities.Node, error) {
	node, ok := c.nodes[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}
	return node, nil
}

// HasNode reports whether the node exists on this canvas
func (c *Canvas) HasNode(id valueobjects.NodeID) bool {
	_, ok := c.nodes[id.String()]
	return ok
}

// Nodes returns all nodes in insertion order
func (c *Canvas) Nodes() []*entities.Node {
	out := make([]*entities.Node, 0, len(c.nodeOrder))
	for _, id := range c.nodeOrder {
		out = append(out, c.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order
func (c *Canvas) Edges() []Edge {
	out := make([]Edge, len(c.edges))
	copy(out, c.edges)
	return out
}

// ParentOf resolves the node's ancestor for context traversal. For prompt
// nodes the embedded parent reference wins; otherwise the first incoming
// edge in insertion order decides, which keeps assembly deterministic when
// stray extra edges point at the same node.
func (c *Canvas) ParentOf(id valueobjects.NodeID) (valueobjects.NodeID, bool) {
	if node, ok := c.nodes[id.String()]; ok {
		if p, isPrompt := node.Prompt(); isPrompt && !p.ParentID.IsZero() {
			if c.HasNode(p.ParentID) {
				return p.ParentID, true
			}
		}
	}
	for _, e := range c.edges {
		if e.TargetID.Equals(id) && c.HasNode(e.SourceID) {
			return e.SourceID, true
		}
	}
	return valueobjects.NodeID{}, false
}

// ChildrenOf returns the ids of nodes reachable by one outgoing edge,
// in edge insertion order.
func (c *Canvas) ChildrenOf(id valueobjects.NodeID) []valueobjects.NodeID {
	var out []valueobjects.NodeID
	for _, e := range c.edges {
		if e.SourceID.Equals(id) {
			out = append(out, e.TargetID)
		}
	}
	return out
}

// AddPromptNode adds a user-authored prompt. When parentID is set the parent
// must exist and an edge parent -> prompt is created, attaching the prompt to
// that branch of the conversation.
func (c *Canvas) AddPromptNode(content, modelID string, position valueobjects.Position, parentID valueobjects.NodeID, personaID string, attachments []entities.Attachment) (*entities.Node, error) {
	if !parentID.IsZero() && !c.HasNode(parentID) {
		return nil, pkgerrors.NewNotFoundError("parent node " + parentID.String())
	}

	node := entities.NewPromptNode(content, modelID, position, parentID, personaID, attachments)
	c.insertNode(node)
	if !parentID.IsZero() {
		c.insertEdge(parentID, node.ID())
	}
	c.addEvent(events.NewNodeAdded(c.id, node.ID(), entities.KindPrompt))
	return node, nil
}

// AddResponseNode adds a model-authored response below its prompt and wires
// the prompt -> response edge.
func (c *Canvas) AddResponseNode(promptID valueobjects.NodeID, content, modelID string, position valueobjects.Position) (*entities.Node, error) {
	if !c.HasNode(promptID) {
		return nil, pkgerrors.NewNotFoundError("prompt node " + promptID.String())
	}

	node, err := entities.NewResponseNode(promptID, content, modelID, position)
	if err != nil {
		return nil, err
	}
	c.insertNode(node)
	c.insertEdge(promptID, node.ID())
	c.addEvent(events.NewNodeAdded(c.id, node.ID(), entities.KindResponse))
	return node, nil
}

// AddMergeNode collapses the given source branches into one merge node placed
// below them (average x, max y plus the merge offset), with one edge from
// each source. Source ids that no longer resolve are skipped; the merge only
// fails when nothing resolves.
func (c *Canvas) AddMergeNode(content string, sourceIDs []valueobjects.NodeID) (*entities.Node, error) {
	resolved := make([]valueobjects.NodeID, 0, len(sourceIDs))
	for _, sid := range sourceIDs {
		if c.HasNode(sid) {
			resolved = append(resolved, sid)
		}
	}
	if len(resolved) == 0 {
		return nil, pkgerrors.NewNotFoundError("merge sources")
	}

	var sumX, maxY float64
	for i, sid := range resolved {
		pos := c.nodes[sid.String()].Position()
		sumX += pos.X
		if i == 0 || pos.Y > maxY {
			maxY = pos.Y
		}
	}
	position := valueobjects.NewPosition(sumX/float64(len(resolved)), maxY+MergeOffsetY)

	node, err := entities.NewMergeNode(content, resolved, position)
	if err != nil {
		return nil, err
	}
	c.insertNode(node)
	for _, sid := range resolved {
		c.insertEdge(sid, node.ID())
	}
	c.addEvent(events.NewNodesMerged(c.id, node.ID(), resolved))
	return node, nil
}

// UpdateNodeContent replaces a node's text content in place
func (c *Canvas) UpdateNodeContent(id valueobjects.NodeID, content string) error {
	node, err := c.Node(id)
	if err != nil {
		return err
	}
	node.UpdateContent(content)
	c.addEvent(events.NewNodeContentUpdated(c.id, id))
	return nil
}

// SetNodeStatus applies a status transition to the node
func (c *Canvas) SetNodeStatus(id valueobjects.NodeID, status entities.NodeStatus) error {
	node, err := c.Node(id)
	if err != nil {
		return err
	}
	if err := node.TransitionTo(status); err != nil {
		return err
	}
	c.addEvent(events.NewNodeStatusChanged(c.id, id, status))
	return nil
}

// SetNodeHidden toggles a node's exclusion from context assembly. Topology
// is untouched: traversal continues through hidden nodes to their ancestors.
func (c *Canvas) SetNodeHidden(id valueobjects.NodeID, hidden bool) error {
	node, err := c.Node(id)
	if err != nil {
		return err
	}
	node.SetHidden(hidden)
	c.addEvent(events.NewNodeHidden(c.id, id, hidden))
	return nil
}

// MoveNode repositions a node on the canvas
func (c *Canvas) MoveNode(id valueobjects.NodeID, position valueobjects.Position) error {
	node, err := c.Node(id)
	if err != nil {
		return err
	}
	node.MoveTo(position)
	return nil
}

// DeleteNode removes the node and every edge incident to it. Descendant
// nodes survive as orphans; their context walks simply terminate earlier.
func (c *Canvas) DeleteNode(id valueobjects.NodeID) error {
	key := id.String()
	if _, ok := c.nodes[key]; !ok {
		return pkgerrors.NewNotFoundError("node " + key)
	}

	delete(c.nodes, key)
	for i, nid := range c.nodeOrder {
		if nid == key {
			c.nodeOrder = append(c.nodeOrder[:i], c.nodeOrder[i+1:]...)
			break
		}
	}

	kept := c.edges[:0]
	removed := 0
	for _, e := range c.edges {
		if e.SourceID.Equals(id) || e.TargetID.Equals(id) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	c.edges = kept

	c.addEvent(events.NewNodeRemoved(c.id, id, removed))
	return nil
}

func (c *Canvas) insertNode(node *entities.Node) {
	c.nodes[node.ID().String()] = node
	c.nodeOrder = append(c.nodeOrder, node.ID().String())
}

func (c *Canvas) insertEdge(source, target valueobjects.NodeID) {
	c.edges = append(c.edges, Edge{
		ID:       "e-" + source.String() + "-" + target.String(),
		SourceID: source,
		TargetID: target,
	})
}

// GetUncommittedEvents returns events raised since the last commit
func (c *Canvas) GetUncommittedEvents() []events.DomainEvent {
	return c.uncommittedEvents
}

// MarkEventsAsCommitted clears the uncommitted events after publishing
func (c *Canvas) MarkEventsAsCommitted() {
	c.uncommittedEvents = nil
}

func (c *Canvas) addEvent(event events.DomainEvent) {
	c.uncommittedEvents = append(c.uncommittedEvents, event)
}
