package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"trails/application/ports"
	"trails/domain/core/aggregates"
	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
	"trails/domain/events"
	pkgerrors "trails/pkg/errors"
)

// DefaultCanvasName is the name given to auto-created canvases
const DefaultCanvasName = "New Exploration"

// GraphService owns the workspace: the canvas catalog, the active canvas,
// the node selection, and the persisted preferences. Every mutation runs
// under one mutex and writes the full state through to the repository before
// returning, so a crash at any point loses at most the mutation in flight.
type GraphService struct {
	mu sync.Mutex

	canvases    map[string]*aggregates.Canvas
	canvasOrder []string
	activeID    valueobjects.CanvasID
	selection   map[string]struct{}

	apiKeys         map[string]string
	settings        entities.Settings
	personas        []entities.Persona
	lastUsedModelID string

	repo   ports.SnapshotRepository
	bus    ports.EventBus
	logger *zap.Logger
}

// NewGraphService creates the service and hydrates it from the repository.
// A first run starts with one empty default canvas.
func NewGraphService(ctx context.Context, repo ports.SnapshotRepository, bus ports.EventBus, logger *zap.Logger) (*GraphService, error) {
	s := &GraphService{
		canvases:  make(map[string]*aggregates.Canvas),
		selection: make(map[string]struct{}),
		apiKeys:   make(map[string]string),
		settings:  entities.DefaultSettings(),
		repo:      repo,
		bus:       bus,
		logger:    logger,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GraphService) load(ctx context.Context) error {
	state, err := s.repo.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "loading workspace state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range state.Canvases {
		canvas, err := aggregates.ReconstructCanvas(snap)
		if err != nil {
			s.logger.Warn("skipping corrupt canvas snapshot",
				zap.String("canvas_id", snap.ID),
				zap.Error(err))
			continue
		}
		s.canvases[canvas.ID().String()] = canvas
		s.canvasOrder = append(s.canvasOrder, canvas.ID().String())
	}
	if state.APIKeys != nil {
		s.apiKeys = state.APIKeys
	}
	if state.Settings != (entities.Settings{}) {
		s.settings = state.Settings
	}
	s.personas = state.Personas
	s.lastUsedModelID = state.LastUsedModelID

	s.ensureActiveLocked()
	return s.persistLocked(ctx)
}

// ensureActiveLocked guarantees at least one canvas exists and the active id
// points at a live canvas. Callers hold the mutex.
func (s *GraphService) ensureActiveLocked() {
	if len(s.canvasOrder) == 0 {
		canvas := aggregates.NewCanvas(DefaultCanvasName)
		s.canvases[canvas.ID().String()] = canvas
		s.canvasOrder = append(s.canvasOrder, canvas.ID().String())
		s.activeID = canvas.ID()
		s.drainEventsLocked(canvas)
		return
	}
	if _, ok := s.canvases[s.activeID.String()]; !ok {
		id, _ := valueobjects.NewCanvasIDFromString(s.canvasOrder[0])
		s.activeID = id
	}
}

// persistLocked writes the full workspace state through to the repository.
// Callers hold the mutex.
func (s *GraphService) persistLocked(ctx context.Context) error {
	state := ports.State{
		Canvases:        make([]aggregates.CanvasSnapshot, 0, len(s.canvasOrder)),
		APIKeys:         s.apiKeys,
		Settings:        s.settings,
		Personas:        s.personas,
		LastUsedModelID: s.lastUsedModelID,
	}
	for _, id := range s.canvasOrder {
		state.Canvases = append(state.Canvases, s.canvases[id].Snapshot())
	}
	if err := s.repo.Save(ctx, state); err != nil {
		return pkgerrors.Wrap(err, "persisting workspace state")
	}
	return nil
}

// drainEventsLocked publishes and clears a canvas's uncommitted events.
// Callers hold the mutex.
func (s *GraphService) drainEventsLocked(canvas *aggregates.Canvas) {
	if s.bus == nil {
		canvas.MarkEventsAsCommitted()
		return
	}
	for _, event := range canvas.GetUncommittedEvents() {
		if err := s.bus.Publish(context.Background(), event); err != nil {
			s.logger.Warn("event publish failed",
				zap.String("event_type", event.GetEventType()),
				zap.Error(err))
		}
	}
	canvas.MarkEventsAsCommitted()
}

func (s *GraphService) canvasLocked(id valueobjects.CanvasID) (*aggregates.Canvas, error) {
	canvas, ok := s.canvases[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("canvas " + id.String())
	}
	return canvas, nil
}

// Mutate runs fn against the canvas under the service lock, then publishes
// events and persists. The orchestrator applies dispatch results through
// this so graph writes and snapshots never interleave.
func (s *GraphService) Mutate(ctx context.Context, canvasID valueobjects.CanvasID, fn func(*aggregates.Canvas) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, err := s.canvasLocked(canvasID)
	if err != nil {
		return err
	}
	if err := fn(canvas); err != nil {
		return err
	}
	s.drainEventsLocked(canvas)
	return s.persistLocked(ctx)
}

// Read runs fn against the canvas under the service lock without persisting
func (s *GraphService) Read(canvasID valueobjects.CanvasID, fn func(*aggregates.Canvas) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, err := s.canvasLocked(canvasID)
	if err != nil {
		return err
	}
	return fn(canvas)
}

// Canvas catalog

// CanvasSummary is a catalog listing entry
type CanvasSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NodeCount int    `json:"nodeCount"`
	CreatedAt int64  `json:"createdAt"`
	Active    bool   `json:"active"`
}

// CreateCanvas adds a canvas to the catalog and makes it active.
// An empty name falls back to the default.
func (s *GraphService) CreateCanvas(ctx context.Context, name string) (CanvasSummary, error) {
	if name == "" {
		name = DefaultCanvasName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	canvas := aggregates.NewCanvas(name)
	s.canvases[canvas.ID().String()] = canvas
	s.canvasOrder = append(s.canvasOrder, canvas.ID().String())
	s.activeID = canvas.ID()
	s.selection = make(map[string]struct{})
	s.drainEventsLocked(canvas)

	if err := s.persistLocked(ctx); err != nil {
		return CanvasSummary{}, err
	}
	return s.summaryLocked(canvas), nil
}

// Canvases lists the catalog in creation order
func (s *GraphService) Canvases() []CanvasSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CanvasSummary, 0, len(s.canvasOrder))
	for _, id := range s.canvasOrder {
		out = append(out, s.summaryLocked(s.canvases[id]))
	}
	return out
}

func (s *GraphService) summaryLocked(canvas *aggregates.Canvas) CanvasSummary {
	return CanvasSummary{
		ID:        canvas.ID().String(),
		Name:      canvas.Name(),
		NodeCount: canvas.NodeCount(),
		CreatedAt: canvas.CreatedAt().UnixMilli(),
		Active:    canvas.ID().Equals(s.activeID),
	}
}

// ActiveCanvasID returns the id of the active canvas
func (s *GraphService) ActiveCanvasID() valueobjects.CanvasID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetActiveCanvas switches the active canvas and clears the node selection,
// which is scoped to the canvas it was made on. An unknown id is ignored so
// a switch racing a deletion settles as a no-op.
func (s *GraphService) SetActiveCanvas(ctx context.Context, id valueobjects.CanvasID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[id.String()]; !ok {
		s.logger.Debug("ignoring switch to unknown canvas",
			zap.String("canvas_id", id.String()))
		return nil
	}
	s.activeID = id
	s.selection = make(map[string]struct{})
	return s.persistLocked(ctx)
}

// RenameCanvas renames a canvas. An unknown id is ignored.
func (s *GraphService) RenameCanvas(ctx context.Context, id valueobjects.CanvasID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, ok := s.canvases[id.String()]
	if !ok {
		s.logger.Debug("ignoring rename of unknown canvas",
			zap.String("canvas_id", id.String()))
		return nil
	}
	if err := canvas.Rename(name); err != nil {
		return err
	}
	s.drainEventsLocked(canvas)
	return s.persistLocked(ctx)
}

// DeleteCanvas removes a canvas from the catalog. Deleting the active canvas
// activates the next remaining one; deleting the last canvas replaces it
// with a fresh default so the workspace is never empty.
func (s *GraphService) DeleteCanvas(ctx context.Context, id valueobjects.CanvasID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.canvasLocked(id); err != nil {
		return err
	}

	delete(s.canvases, id.String())
	for i, cid := range s.canvasOrder {
		if cid == id.String() {
			s.canvasOrder = append(s.canvasOrder[:i], s.canvasOrder[i+1:]...)
			break
		}
	}
	if s.activeID.Equals(id) {
		s.selection = make(map[string]struct{})
	}
	if s.bus != nil {
		if err := s.bus.Publish(context.Background(), events.NewCanvasDeleted(id)); err != nil {
			s.logger.Warn("event publish failed",
				zap.String("event_type", "canvas.deleted"),
				zap.Error(err))
		}
	}
	s.ensureActiveLocked()
	return s.persistLocked(ctx)
}

// CanvasSnapshot returns the canvas in rendering form
func (s *GraphService) CanvasSnapshot(id valueobjects.CanvasID) (aggregates.CanvasSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	canvas, err := s.canvasLocked(id)
	if err != nil {
		return aggregates.CanvasSnapshot{}, err
	}
	return canvas.Snapshot(), nil
}
