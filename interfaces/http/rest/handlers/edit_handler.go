package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// EditHandler serves selection, clipboard and grouping
type EditHandler struct {
	base
}

// NewEditHandler creates a new edit handler
func NewEditHandler(sessions *services.SessionService, logger *zap.Logger) *EditHandler {
	return &EditHandler{base{sessions: sessions, logger: logger}}
}

// SelectRequest replaces the selection
type SelectRequest struct {
	Nodes []valueobjects.NodeID `json:"nodes"`
	Edges []valueobjects.EdgeID `json:"edges"`
	All   bool                  `json:"all,omitempty"`
}

// DuplicateRequest names the nodes to duplicate
type DuplicateRequest struct {
	IDs []valueobjects.NodeID `json:"ids" validate:"required,min=1"`
}

// GroupRequest groups the current selection
type GroupRequest struct {
	Label string `json:"label" validate:"max=120"`
}

// CreatedResponse lists nodes created by a paste or duplicate
type CreatedResponse struct {
	IDs []valueobjects.NodeID `json:"ids"`
}

// CountResponse reports how many nodes an operation touched
type CountResponse struct {
	Count int `json:"count"`
}

// Select handles PUT /graphs/{graphID}/selection
func (h *EditHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.All {
		sess.Store.SelectAll()
	} else {
		sess.Store.Select(req.Nodes, req.Edges)
	}
	h.respondJSON(w, http.StatusOK, sess.Store.Selection())
}

// DeleteSelection handles DELETE /graphs/{graphID}/selection
func (h *EditHandler) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	sess.Store.DeleteSelection()
	w.WriteHeader(http.StatusNoContent)
}

// Copy handles POST /graphs/{graphID}/copy
func (h *EditHandler) Copy(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, CountResponse{Count: sess.Store.Copy()})
}

// Cut handles POST /graphs/{graphID}/cut
func (h *EditHandler) Cut(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, CountResponse{Count: sess.Store.Cut()})
}

// Paste handles POST /graphs/{graphID}/paste
func (h *EditHandler) Paste(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	ids := sess.Store.Paste()
	if ids == nil {
		ids = []valueobjects.NodeID{}
	}
	h.respondJSON(w, http.StatusOK, CreatedResponse{IDs: ids})
}

// Duplicate handles POST /graphs/{graphID}/duplicate
func (h *EditHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	var req DuplicateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	ids := sess.Store.Duplicate(req.IDs)
	if ids == nil {
		ids = []valueobjects.NodeID{}
	}
	h.respondJSON(w, http.StatusCreated, CreatedResponse{IDs: ids})
}

// Group handles POST /graphs/{graphID}/groups
func (h *EditHandler) Group(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id, ok := sess.Store.GroupSelection(req.Label)
	if !ok {
		h.respondError(w, r, appErrors.NewValidationError("nothing selected to group"))
		return
	}
	node, _ := sess.Store.Node(id)
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"group":   node,
		"members": sess.Store.GroupMembers(id),
	})
}

// Ungroup handles DELETE /graphs/{graphID}/groups/{nodeID}
func (h *EditHandler) Ungroup(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !sess.Store.Ungroup(valueobjects.NodeID(chi.URLParam(r, "nodeID"))) {
		h.respondError(w, r, appErrors.NewNotFoundError("group"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
