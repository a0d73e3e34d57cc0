package services

import (
	"context"

	"trails/domain/core/entities"
	pkgerrors "trails/pkg/errors"
)

// Workspace preferences: personas, settings, provider credentials, and the
// sticky last-used model. All persist through the same write-through path
// as the canvases.

// Personas returns the persona library
func (s *GraphService) Personas() []entities.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entities.Persona, len(s.personas))
	copy(out, s.personas)
	return out
}

// Persona returns one persona by id
func (s *GraphService) Persona(id string) (entities.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personaLocked(id)
}

func (s *GraphService) personaLocked(id string) (entities.Persona, error) {
	for _, p := range s.personas {
		if p.ID == id {
			return p, nil
		}
	}
	return entities.Persona{}, pkgerrors.NewNotFoundError("persona " + id)
}

// CreatePersona adds a persona to the library
func (s *GraphService) CreatePersona(ctx context.Context, name, content, description, color string) (entities.Persona, error) {
	persona, err := entities.NewPersona(name, content)
	if err != nil {
		return entities.Persona{}, err
	}
	persona.Description = description
	persona.Color = color

	s.mu.Lock()
	defer s.mu.Unlock()

	s.personas = append(s.personas, persona)
	if err := s.persistLocked(ctx); err != nil {
		return entities.Persona{}, err
	}
	return persona, nil
}

// UpdatePersona replaces a persona's fields. Prompts referencing the persona
// pick up the new content on their next context assembly.
func (s *GraphService) UpdatePersona(ctx context.Context, persona entities.Persona) error {
	if persona.Name == "" {
		return pkgerrors.NewValidationError("persona name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.personas {
		if p.ID == persona.ID {
			s.personas[i] = persona
			return s.persistLocked(ctx)
		}
	}
	return pkgerrors.NewNotFoundError("persona " + persona.ID)
}

// DeletePersona removes a persona. Prompts that still reference it fall back
// to no system message.
func (s *GraphService) DeletePersona(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.personas {
		if p.ID == id {
			s.personas = append(s.personas[:i], s.personas[i+1:]...)
			return s.persistLocked(ctx)
		}
	}
	return pkgerrors.NewNotFoundError("persona " + id)
}

// Settings returns the current settings
func (s *GraphService) Settings() entities.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the settings wholesale
func (s *GraphService) UpdateSettings(ctx context.Context, settings entities.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	return s.persistLocked(ctx)
}

// APIKeys returns a copy of the provider credential map
func (s *GraphService) APIKeys() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.apiKeys))
	for k, v := range s.apiKeys {
		out[k] = v
	}
	return out
}

// SetAPIKey stores a provider credential. An empty key removes the entry.
func (s *GraphService) SetAPIKey(ctx context.Context, provider, key string) error {
	if provider == "" {
		return pkgerrors.NewValidationError("provider cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		delete(s.apiKeys, provider)
	} else {
		s.apiKeys[provider] = key
	}
	return s.persistLocked(ctx)
}

// LastUsedModelID returns the model the last prompt was dispatched with
func (s *GraphService) LastUsedModelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedModelID
}

// rememberModel records the last used model. The write rides along with the
// next persisted mutation rather than forcing one of its own.
func (s *GraphService) rememberModel(modelID string) {
	if modelID == "" {
		return
	}
	s.mu.Lock()
	s.lastUsedModelID = modelID
	s.mu.Unlock()
}
