package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trails/application/services"
	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
	"trails/pkg/common"
	"trails/pkg/utils"
)

// NodeHandler handles node-level HTTP requests
type NodeHandler struct {
	graph  *services.GraphService
	logger *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(graph *services.GraphService, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{graph: graph, logger: logger}
}

// AttachmentRequest is one attachment on a prompt creation request
type AttachmentRequest struct {
	ID       string `json:"id,omitempty"`
	Kind     string `json:"kind" validate:"required,oneof=image file"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Payload  string `json:"payload" validate:"required"`
}

// CreatePromptRequest represents the request body for placing a prompt node
type CreatePromptRequest struct {
	Content     string              `json:"content"`
	ModelID     string              `json:"modelId,omitempty"`
	PersonaID   string              `json:"personaId,omitempty"`
	ParentID    string              `json:"parentId,omitempty"`
	X           *float64            `json:"x,omitempty"`
	Y           *float64            `json:"y,omitempty"`
	Attachments []AttachmentRequest `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// UpdateNodeRequest represents the request body for editing node content
type UpdateNodeRequest struct {
	Content string `json:"content"`
}

// HideNodeRequest represents the request body for toggling node visibility
type HideNodeRequest struct {
	Hidden bool `json:"hidden"`
}

// MergeNodesRequest represents the request body for merging branches. Content
// is the user-edited merge text; empty content falls back to the generated
// digest.
type MergeNodesRequest struct {
	SourceIDs []string `json:"sourceIds" validate:"required,min=1"`
	Content   string   `json:"content,omitempty"`
}

// MergeSelectionRequest optionally overrides the generated merge text
type MergeSelectionRequest struct {
	Content string `json:"content,omitempty"`
}

// SetSelectionRequest represents the request body for replacing the selection
type SetSelectionRequest struct {
	NodeIDs []string `json:"nodeIds"`
}

// CreatePrompt handles POST /canvases/{canvasID}/nodes
func (h *NodeHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	var req CreatePromptRequest
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

	snap, err := h.graph.AddPromptNode(r.Context(), canvasID, params)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, snap)
}

func convertAttachments(reqs []AttachmentRequest) []entities.Attachment {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]entities.Attachment, 0, len(reqs))
	for _, a := range reqs {
		out = append(out, entities.Attachment{
			ID:       a.ID,
			Kind:     entities.AttachmentKind(a.Kind),
			Name:     a.Name,
			MimeType: a.MimeType,
			Payload:  a.Payload,
		})
	}
	return out
}

// UpdateNode handles PUT /canvases/{canvasID}/nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	canvasID, nodeID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req UpdateNodeRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.graph.UpdateNodeContent(r.Context(), canvasID, nodeID, req.Content); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"id": nodeID.String()})
}

// HideNode handles POST /canvases/{canvasID}/nodes/{nodeID}/hide
func (h *NodeHandler) HideNode(w http.ResponseWriter, r *http.Request) {
	canvasID, nodeID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req HideNodeRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.graph.SetNodeHidden(r.Context(), canvasID, nodeID, req.Hidden); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"id": nodeID.String(), "hidden": req.Hidden})
}

// DeleteNode handles DELETE /canvases/{canvasID}/nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	canvasID, nodeID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.graph.DeleteNode(r.Context(), canvasID, nodeID); err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "node deleted"})
}

// MergeNodes handles POST /canvases/{canvasID}/merge
func (h *NodeHandler) MergeNodes(w http.ResponseWriter, r *http.Request) {
	canvasID, err := valueobjects.NewCanvasIDFromString(chi.URLParam(r, "canvasID"))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "canvas id is required")
		return
	}

	var req MergeNodesRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
		return
	}

	sourceIDs := make([]valueobjects.NodeID, 0, len(req.SourceIDs))
	for _, raw := range req.SourceIDs {
		id, err := valueobjects.NewNodeIDFromString(raw)
		if err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "invalid source id")
			return
		}
		sourceIDs = append(sourceIDs, id)
	}

	snap, err := h.graph.MergeNodes(r.Context(), canvasID, sourceIDs, req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, snap)
}

// GetSelection handles GET /selection
func (h *NodeHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"nodeIds": h.graph.Selection()})
}

// SetSelection handles PUT /selection
func (h *NodeHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SetSelectionRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.graph.SetSelection(req.NodeIDs)
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"nodeIds": h.graph.Selection()})
}

// MergeSelection handles POST /selection/merge. The body is optional; when
// present its content replaces the generated merge text.
func (h *NodeHandler) MergeSelection(w http.ResponseWriter, r *http.Request) {
	var req MergeSelectionRequest
	if r.ContentLength > 0 {
		if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
			common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	snap, err := h.graph.MergeSelection(r.Context(), req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, snap)
}

func (h *NodeHandler) pathIDs(w http.ResponseWriter, r *http.Request) (valueobjects.CanvasID, valueobjects.NodeID, bool) {
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
