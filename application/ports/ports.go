package ports

import (
	"context"

	"trails/domain/core/aggregates"
	"trails/domain/core/entities"
	"trails/domain/events"
)

// Role labels a message in an assembled conversation context
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartKind discriminates message content parts
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// ContentPart is one piece of a multimodal message. Text parts carry Text;
// image parts carry the data URL in Data plus its mime type.
type ContentPart struct {
	Kind     PartKind `json:"kind"`
	Text     string   `json:"text,omitempty"`
	Data     string   `json:"data,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// ImagePart builds an image content part
func ImagePart(data, mimeType string) ContentPart {
	return ContentPart{Kind: PartImage, Data: data, MimeType: mimeType}
}

// Message is one turn of assembled context in provider-neutral form
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// Text returns the concatenated text of all text parts
func (m Message) Text() string {
	out := ""
	for _, p := range m.Parts {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// HasImages reports whether the message carries at least one image part
func (m Message) HasImages() bool {
	for _, p := range m.Parts {
		if p.Kind == PartImage {
			return true
		}
	}
	return false
}

// State is the full persisted workspace: every canvas plus the cross-canvas
// preferences. The store writes it through on every mutation and loads it
// once at startup.
type State struct {
	Canvases        []aggregates.CanvasSnapshot `json:"canvases"`
	APIKeys         map[string]string           `json:"apiKeys"`
	Settings        entities.Settings           `json:"settings"`
	Personas        []entities.Persona          `json:"personas"`
	LastUsedModelID string                      `json:"lastUsedModelId"`
}

// SnapshotRepository persists the workspace state
type SnapshotRepository interface {
	// Load returns the persisted state, or an empty state on first run.
	Load(ctx context.Context) (State, error)
	// Save writes the full state atomically.
	Save(ctx context.Context, state State) error
	// Close releases the underlying store.
	Close() error
}

// ModelInfo describes one entry of the model catalog
type ModelInfo struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
	Vision   bool   `json:"vision" yaml:"vision"`
}

// ModelCatalog resolves model ids to providers and capabilities
type ModelCatalog interface {
	// Models returns every known model.
	Models() []ModelInfo
	// Lookup resolves a model id, reporting whether it is known.
	Lookup(modelID string) (ModelInfo, bool)
	// SupportsVision reports whether the model accepts image input.
	// Unknown models resolve through name-prefix matching.
	SupportsVision(modelID string) bool
}

// CompletionRequest is one provider call: assembled context plus routing
type CompletionRequest struct {
	ModelID     string
	Messages    []Message
	Credentials map[string]string
}

// CompletionProvider executes a single model completion
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// EventBus publishes domain events to interested subscribers
type EventBus interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	Subscribe(eventType string, handler func(ctx context.Context, event events.DomainEvent)) func()
}
