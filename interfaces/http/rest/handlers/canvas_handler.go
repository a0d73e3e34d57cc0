package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trails/application/services"
	"trails/domain/core/valueobjects"
	"trails/pkg/common"
	"trails/pkg/utils"
)

const maxBodyBytes = 32 << 20 // attachments ride inside node payloads

// CanvasHandler handles canvas catalog HTTP requests
type CanvasHandler struct {
	graph     *services.GraphService
	lifecycle *services.Lifecycle
	logger    *zap.Logger
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(graph *services.GraphService, lifecycle *services.Lifecycle, logger *zap.Logger) *CanvasHandler {
	return &CanvasHandler{graph: graph, lifecycle: lifecycle, logger: logger}
}

// CreateCanvasRequest represents the request body for creating a canvas
type CreateCanvasRequest struct {
	Name string `json:"name,omitempty" validate:"omitempty,max=200"`
}

// RenameCanvasRequest represents the request body for renaming a canvas
type RenameCanvasRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// ListCanvases handles GET /canvases
func (h *CanvasHandler) ListCanvases(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"canvases": h.graph.Canvases(),
		"activeId": h.graph.ActiveCanvasID().String(),
	})
}

// CreateCanvas handles POST /canvases
func (h *CanvasHandler) CreateCanvas(w http.ResponseWriter, r *http.Request) {
	var req CreateCanvasRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
			return
		}
	}

	summary, err := h.graph.CreateCanvas(r.Context(), req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, summary)
}

// GetCanvas handles GET /canvases/{canvasID}
func (h *CanvasHandler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	snap, err := h.graph.CanvasSnapshot(canvasID)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, snap)
}

// RenameCanvas handles PUT /canvases/{canvasID}
func (h *CanvasHandler) RenameCanvas(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	var req RenameCanvasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
		return
	}

	if err := h.graph.RenameCanvas(r.Context(), canvasID, req.Name); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"id": canvasID.String(), "name": req.Name})
}

// DeleteCanvas handles DELETE /canvases/{canvasID}
func (h *CanvasHandler) DeleteCanvas(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	if err := h.lifecycle.DeleteCanvas(r.Context(), canvasID); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "canvas deleted"})
}

// ActivateCanvas handles POST /canvases/{canvasID}/activate
func (h *CanvasHandler) ActivateCanvas(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	if err := h.graph.SetActiveCanvas(r.Context(), canvasID); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"activeId": canvasID.String()})
}

// ApplyChangesRequest represents a batch of rendering-layer node changes
type ApplyChangesRequest struct {
	Changes []services.NodeChange `json:"changes" validate:"required,dive"`
}

// ApplyChanges handles POST /canvases/{canvasID}/changes
func (h *CanvasHandler) ApplyChanges(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	var req ApplyChangesRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.graph.ApplyNodeChanges(r.Context(), canvasID, req.Changes); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]int{"applied": len(req.Changes)})
}

// CancelCanvas handles POST /canvases/{canvasID}/cancel
func (h *CanvasHandler) CancelCanvas(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	if err := h.lifecycle.CancelCanvas(r.Context(), canvasID); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "dispatches cancelled"})
}

// Search handles GET /search?q=
func (h *CanvasHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	results := h.graph.SearchNodes(query)
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}
