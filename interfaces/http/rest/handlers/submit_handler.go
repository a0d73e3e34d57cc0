package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trails/application/services"
	"trails/domain/core/valueobjects"
	"trails/pkg/common"
	"trails/pkg/utils"
)

// SubmitHandler handles dispatch HTTP requests
type SubmitHandler struct {
	lifecycle    *services.Lifecycle
	orchestrator *services.Orchestrator
	logger       *zap.Logger
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(lifecycle *services.Lifecycle, orchestrator *services.Orchestrator, logger *zap.Logger) *SubmitHandler {
	return &SubmitHandler{lifecycle: lifecycle, orchestrator: orchestrator, logger: logger}
}

// SubmitRequest represents the request body for dispatching a prompt
type SubmitRequest struct {
	ModelIDs []string `json:"modelIds,omitempty" validate:"omitempty,max=16"`
}

// SubmitPromptRequest places and dispatches a prompt in one call
type SubmitPromptRequest struct {
	CreatePromptRequest
	ModelIDs []string `json:"modelIds,omitempty" validate:"omitempty,max=16"`
}

// Submit handles POST /canvases/{canvasID}/nodes/{nodeID}/submit
func (h *SubmitHandler) Submit(w http.ResponseWriter, r *http.Request) {
	canvasID, nodeID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if r.ContentLength > 0 {
		if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
			return
		}
	}

	result, err := h.orchestrator.Submit(r.Context(), canvasID, services.SubmitParams{
		PromptID: nodeID,
		ModelIDs: req.ModelIDs,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Resubmit handles POST /canvases/{canvasID}/nodes/{nodeID}/resubmit
func (h *SubmitHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	canvasID, nodeID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if r.ContentLength > 0 {
		if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
			return
		}
	}

	result, err := h.orchestrator.Resubmit(r.Context(), canvasID, services.SubmitParams{
		PromptID: nodeID,
		ModelIDs: req.ModelIDs,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// SubmitPrompt handles POST /canvases/{canvasID}/prompts: place a prompt
// node and run its dispatch cycle in one round trip.
func (h *SubmitHandler) SubmitPrompt(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	var req SubmitPromptRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
		return
	}

	params := services.AddPromptParams{
		Content:     req.Content,
		ModelID:     req.ModelID,
		PersonaID:   req.PersonaID,
		Attachments: convertAttachments(req.Attachments),
	}
	if req.ParentID != "" {
		parentID, err := valueobjects.NewNodeIDFromString(req.ParentID)
		if err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "invalid parent id")
			return
		}
		params.ParentID = parentID
	}
	if req.X != nil && req.Y != nil {
		pos := valueobjects.NewPosition(*req.X, *req.Y)
		params.Position = &pos
	}

	prompt, result, err := h.lifecycle.SubmitPrompt(r.Context(), canvasID, params, req.ModelIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"prompt": prompt,
		"result": result,
	})
}

func (h *SubmitHandler) pathIDs(w http.ResponseWriter, r *http.Request) (valueobjects.CanvasID, valueobjects.NodeID, bool) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return valueobjects.CanvasID{}, valueobjects.NodeID{}, false
	}
	nodeID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "node id is required")
		return valueobjects.CanvasID{}, valueobjects.NodeID{}, false
	}
	return canvasID, nodeID, true
}
