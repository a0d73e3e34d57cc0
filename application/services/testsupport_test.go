package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trails/application/ports"
	"trails/domain/events"
	pkgerrors "trails/pkg/errors"
)

// memRepo is an in-memory SnapshotRepository that counts saves so tests can
// assert the write-through behavior.
type memRepo struct {
	mu    sync.Mutex
	state ports.State
	saves int
}

func (r *memRepo) Load(ctx context.Context) (ports.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

func (r *memRepo) Save(ctx context.Context, state ports.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.saves++
	return nil
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *memRepo) lastState() ports.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// recordingBus captures published events for assertions
type recordingBus struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (b *recordingBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Subscribe(eventType string, handler func(ctx context.Context, event events.DomainEvent)) func() {
	return func() {}
}

func (b *recordingBus) ofType(eventType string) []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.DomainEvent
	for _, e := range b.events {
		if e.GetEventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeCatalog resolves a fixed model set
type fakeCatalog struct {
	models []ports.ModelInfo
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{models: []ports.ModelInfo{
		{ID: "alpha", Name: "Alpha", Provider: "openai", Vision: true},
		{ID: "beta", Name: "Beta", Provider: "anthropic", Vision: true},
		{ID: "gamma", Name: "Gamma", Provider: "groq"},
	}}
}

func (c *fakeCatalog) Models() []ports.ModelInfo { return c.models }

func (c *fakeCatalog) Lookup(modelID string) (ports.ModelInfo, bool) {
	for _, m := range c.models {
		if m.ID == modelID {
			return m, true
		}
	}
	return ports.ModelInfo{}, false
}

func (c *fakeCatalog) SupportsVision(modelID string) bool {
	m, ok := c.Lookup(modelID)
	return ok && m.Vision
}

// fakeProvider scripts completions per model and records calls
type fakeProvider struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]bool
	calls   []string
	block   chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		replies: make(map[string]string),
		fail:    make(map[string]bool),
	}
}

func (p *fakeProvider) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req.ModelID)
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[req.ModelID] {
		return "", pkgerrors.NewTransportFailureError(500, "scripted failure")
	}
	if reply, ok := p.replies[req.ModelID]; ok {
		return reply, nil
	}
	return "reply from " + req.ModelID, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestGraph(t *testing.T) (*GraphService, *memRepo) {
	t.Helper()
	repo := &memRepo{}
	graph, err := NewGraphService(context.Background(), repo, nil, zap.NewNop())
	require.NoError(t, err)
	return graph, repo
}
