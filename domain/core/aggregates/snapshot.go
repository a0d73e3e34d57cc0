package aggregates

import (
	"time"

	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
	pkgerrors "trails/pkg/errors"
)

// EdgeSnapshot is the flat persistence form of an edge
type EdgeSnapshot struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// CanvasSnapshot is the flat persistence form of a canvas. Node and edge
// order is insertion order so reconstruction preserves ancestry resolution.
type CanvasSnapshot struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	CreatedAt int64                   `json:"createdAt"`
	Nodes     []entities.NodeSnapshot `json:"nodes"`
	Edges     []EdgeSnapshot          `json:"edges"`
}

// Snapshot returns the canvas's persistence form
func (c *Canvas) Snapshot() CanvasSnapshot {
	snap := CanvasSnapshot{
		ID:        c.id.String(),
		Name:      c.name,
		CreatedAt: c.createdAt.UnixMilli(),
		Nodes:     make([]entities.NodeSnapshot, 0, len(c.nodeOrder)),
		Edges:     make([]EdgeSnapshot, 0, len(c.edges)),
	}
	for _, id := range c.nodeOrder {
		snap.Nodes = append(snap.Nodes, c.nodes[id].Snapshot())
	}
	for _, e := range c.edges {
		snap.Edges = append(snap.Edges, EdgeSnapshot{
			ID:     e.ID,
			Source: e.SourceID.String(),
			Target: e.TargetID.String(),
		})
	}
	return snap
}

// ReconstructCanvas rebuilds a canvas from its persistence form. Edges that
// reference missing nodes are dropped rather than failing the whole load.
func ReconstructCanvas(snap CanvasSnapshot) (*Canvas, error) {
	id, err := valueobjects.NewCanvasIDFromString(snap.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("canvas snapshot missing id")
	}

	c := &Canvas{
		id:        id,
		name:      snap.Name,
		createdAt: time.UnixMilli(snap.CreatedAt),
		nodes:     make(map[string]*entities.Node, len(snap.Nodes)),
	}

	for _, ns := range snap.Nodes {
		node, err := entities.ReconstructNode(ns)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "reconstructing node "+ns.ID)
		}
		c.insertNode(node)
	}

	for _, es := range snap.Edges {
		source, serr := valueobjects.NewNodeIDFromString(es.Source)
		target, terr := valueobjects.NewNodeIDFromString(es.Target)
		if serr != nil || terr != nil {
			continue
		}
		if !c.HasNode(source) || !c.HasNode(target) {
			continue
		}
		edgeID := es.ID
		if edgeID == "" {
			edgeID = "e-" + es.Source + "-" + es.Target
		}
		c.edges = append(c.edges, Edge{ID: edgeID, SourceID: source, TargetID: target})
	}

	return c, nil
}
