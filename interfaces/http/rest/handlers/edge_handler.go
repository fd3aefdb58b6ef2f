package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// EdgeHandler handles connections between nodes
type EdgeHandler struct {
	base
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(sessions *services.SessionService, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{base{sessions: sessions, logger: logger}}
}

// ConnectRequest proposes an edge
type ConnectRequest struct {
	Source       valueobjects.NodeID   `json:"source" validate:"required"`
	SourceHandle valueobjects.HandleID `json:"sourceHandle" validate:"handle"`
	Target       valueobjects.NodeID   `json:"target" validate:"required"`
	TargetHandle valueobjects.HandleID `json:"targetHandle" validate:"required,handle"`
}

// ValidateResponse answers a dry-run connection check
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

func (req ConnectRequest) edge() entities.Edge {
	return entities.NewEdge(req.Source, req.SourceHandle, req.Target, req.TargetHandle)
}

// Connect handles POST /graphs/{graphID}/edges. A connection the rules
// refuse is answered with 422 and leaves the graph untouched.
func (h *EdgeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	edge := req.edge()
	if !sess.Store.Connect(edge) {
		rejected := appErrors.NewValidationError("connection rejected").
			WithCode("CONNECTION_REJECTED").
			WithDetails(map[string]interface{}{
				"source":       req.Source,
				"target":       req.Target,
				"targetHandle": req.TargetHandle,
			})
		rejected.HTTPStatus = http.StatusUnprocessableEntity
		h.respondError(w, r, rejected)
		return
	}
	h.respondJSON(w, http.StatusCreated, edge)
}

// Validate handles POST /graphs/{graphID}/edges/validate
func (h *EdgeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, ValidateResponse{Valid: sess.Store.IsValidConnection(req.edge())})
}

// Disconnect handles DELETE /graphs/{graphID}/edges/{edgeID}. Removing a
// missing edge succeeds.
func (h *EdgeHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	sess.Store.RemoveEdge(valueobjects.EdgeID(chi.URLParam(r, "edgeID")))
	w.WriteHeader(http.StatusNoContent)
}
