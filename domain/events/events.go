package events

import (
	"time"

	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func newBase(canvasID valueobjects.CanvasID, eventType string) BaseEvent {
	return BaseEvent{
		AggregateID: canvasID.String(),
		EventType:   eventType,
		Timestamp:   time.Now(),
	}
}

// Node events

// NodeAdded is raised when a node of any kind joins the canvas
type NodeAdded struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Kind   entities.NodeKind   `json:"kind"`
}

// NewNodeAdded creates a NodeAdded event
func NewNodeAdded(canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID, kind entities.NodeKind) NodeAdded {
	return NodeAdded{
		BaseEvent: newBase(canvasID, "canvas.node_added"),
		NodeID:    nodeID,
		Kind:      kind,
	}
}

// NodeContentUpdated is raised when node content is edited in place
type NodeContentUpdated struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
}

// NewNodeContentUpdated creates a NodeContentUpdated event
func NewNodeContentUpdated(canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID) NodeContentUpdated {
	return NodeContentUpdated{
		BaseEvent: newBase(canvasID, "canvas.node_content_updated"),
		NodeID:    nodeID,
	}
}

// NodeStatusChanged is raised on every status transition
type NodeStatusChanged struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Status entities.NodeStatus `json:"status"`
}

// NewNodeStatusChanged creates a NodeStatusChanged event
func NewNodeStatusChanged(canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID, status entities.NodeStatus) NodeStatusChanged {
	return NodeStatusChanged{
		BaseEvent: newBase(canvasID, "canvas.node_status_changed"),
		NodeID:    nodeID,
		Status:    status,
	}
}

// NodeHidden is raised when a node is hidden from or restored to context
type NodeHidden struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Hidden bool                `json:"hidden"`
}

// NewNodeHidden creates a NodeHidden event
func NewNodeHidden(canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID, hidden bool) NodeHidden {
	return NodeHidden{
		BaseEvent: newBase(canvasID, "canvas.node_hidden"),
		NodeID:    nodeID,
		Hidden:    hidden,
	}
}

// NodeRemoved is raised when a node and its incident edges are deleted
type NodeRemoved struct {
	BaseEvent
	NodeID       valueobjects.NodeID `json:"node_id"`
	RemovedEdges int                 `json:"removed_edges"`
}

// NewNodeRemoved creates a NodeRemoved event
func NewNodeRemoved(canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID, removedEdges int) NodeRemoved {
	return NodeRemoved{
		BaseEvent:    newBase(canvasID, "canvas.node_removed"),
		NodeID:       nodeID,
		RemovedEdges: removedEdges,
	}
}

// NodesMerged is raised when several branches collapse into one merge node
type NodesMerged struct {
	BaseEvent
	MergeID   valueobjects.NodeID   `json:"merge_id"`
	SourceIDs []valueobjects.NodeID `json:"source_ids"`
}

// NewNodesMerged creates a NodesMerged event
func NewNodesMerged(canvasID valueobjects.CanvasID, mergeID valueobjects.NodeID, sourceIDs []valueobjects.NodeID) NodesMerged {
	return NodesMerged{
		BaseEvent: newBase(canvasID, "canvas.nodes_merged"),
		MergeID:   mergeID,
		SourceIDs: sourceIDs,
	}
}

// Canvas events

// CanvasCreated is raised when a new canvas joins the catalog
type CanvasCreated struct {
	BaseEvent
	Name string `json:"name"`
}

// NewCanvasCreated creates a CanvasCreated event
func NewCanvasCreated(canvasID valueobjects.CanvasID, name string) CanvasCreated {
	return CanvasCreated{
		BaseEvent: newBase(canvasID, "canvas.created"),
		Name:      name,
	}
}

// CanvasRenamed is raised when a canvas is renamed
type CanvasRenamed struct {
	BaseEvent
	Name string `json:"name"`
}

// NewCanvasRenamed creates a CanvasRenamed event
func NewCanvasRenamed(canvasID valueobjects.CanvasID, name string) CanvasRenamed {
	return CanvasRenamed{
		BaseEvent: newBase(canvasID, "canvas.renamed"),
		Name:      name,
	}
}

// CanvasDeleted is raised when a canvas leaves the catalog
type CanvasDeleted struct {
	BaseEvent
}

// NewCanvasDeleted creates a CanvasDeleted event
func NewCanvasDeleted(canvasID valueobjects.CanvasID) CanvasDeleted {
	return CanvasDeleted{
		BaseEvent: newBase(canvasID, "canvas.deleted"),
	}
}
