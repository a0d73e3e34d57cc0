package entities

import (
	"github.com/google/uuid"

	pkgerrors "trails/pkg/errors"
)

// Persona is a reusable system-prompt template. A chain adopts a persona by
// referencing it from the chain's root prompt node; the context assembler
// resolves it into one leading system message.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// NewPersona creates a persona with a generated id
func NewPersona(name, content string) (Persona, error) {
	if name == "" {
		return Persona{}, pkgerrors.NewValidationError("persona name cannot be empty")
	}
	return Persona{
		ID:      uuid.New().String(),
		Name:    name,
		Content: content,
	}, nil
}
