package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trails/application/ports"
	"trails/application/services"
	"trails/domain/core/entities"
	"trails/pkg/common"
	"trails/pkg/utils"
)

// WorkspaceHandler handles preference and catalog HTTP requests
type WorkspaceHandler struct {
	graph   *services.GraphService
	catalog ports.ModelCatalog
	logger  *zap.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(graph *services.GraphService, catalog ports.ModelCatalog, logger *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{graph: graph, catalog: catalog, logger: logger}
}

// PersonaRequest represents the request body for creating or updating a persona
type PersonaRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
	Color       string `json:"color,omitempty" validate:"omitempty,max=32"`
}

// APIKeyRequest represents the request body for storing a provider key
type APIKeyRequest struct {
	Key string `json:"key"`
}

// ListModels handles GET /models
func (h *WorkspaceHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"models":          h.catalog.Models(),
		"lastUsedModelId": h.graph.LastUsedModelID(),
	})
}

// ListPersonas handles GET /personas
func (h *WorkspaceHandler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"personas": h.graph.Personas()})
}

// CreatePersona handles POST /personas
func (h *WorkspaceHandler) CreatePersona(w http.ResponseWriter, r *http.Request) {
	var req PersonaRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
		return
	}

	persona, err := h.graph.CreatePersona(r.Context(), req.Name, req.Content, req.Description, req.Color)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, persona)
}

// UpdatePersona handles PUT /personas/{personaID}
func (h *WorkspaceHandler) UpdatePersona(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")
	if personaID == "" {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "persona id is required")
		return
	}

	var req PersonaRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
		return
	}

	persona := entities.Persona{
		ID:          personaID,
		Name:        req.Name,
		Content:     req.Content,
		Description: req.Description,
		Color:       req.Color,
	}
	if err := h.graph.UpdatePersona(r.Context(), persona); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, persona)
}

// DeletePersona handles DELETE /personas/{personaID}
func (h *WorkspaceHandler) DeletePersona(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")
	if personaID == "" {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "persona id is required")
		return
	}

	if err := h.graph.DeletePersona(r.Context(), personaID); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "persona deleted"})
}

// GetSettings handles GET /settings
func (h *WorkspaceHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.graph.Settings())
}

// UpdateSettings handles PUT /settings
func (h *WorkspaceHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings entities.Settings
	if err := common.ParseJSONBody(r, &settings, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.graph.UpdateSettings(r.Context(), settings); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, settings)
}

// SetAPIKey handles PUT /keys/{provider}
func (h *WorkspaceHandler) SetAPIKey(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req APIKeyRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.graph.SetAPIKey(r.Context(), provider, req.Key); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"provider": provider})
}

// ListAPIKeyProviders handles GET /keys: which providers have a stored key.
// Key material itself never leaves the server.
func (h *WorkspaceHandler) ListAPIKeyProviders(w http.ResponseWriter, r *http.Request) {
	keys := h.graph.APIKeys()
	providers := make([]string, 0, len(keys))
	for provider := range keys {
		providers = append(providers, provider)
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"configured": providers})
}
