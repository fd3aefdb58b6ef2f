package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/jobs"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// JobHandler starts and stops generation jobs
type JobHandler struct {
	base
}

// NewJobHandler creates a new job handler
func NewJobHandler(sessions *services.SessionService, logger *zap.Logger) *JobHandler {
	return &JobHandler{base{sessions: sessions, logger: logger}}
}

// RunAllRequest names the nodes to generate; empty means every runnable
// generator on the canvas
type RunAllRequest struct {
	IDs []valueobjects.NodeID `json:"ids"`
}

// JobAccepted acknowledges started jobs
type JobAccepted struct {
	IDs []valueobjects.NodeID `json:"ids"`
}

// Generate handles POST /graphs/{graphID}/nodes/{nodeID}/generate. The
// request is checked up front and the job itself runs after the response;
// progress arrives on the change feed.
func (h *JobHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id := valueobjects.NodeID(chi.URLParam(r, "nodeID"))
	if err := h.runnable(sess, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := sess.Jobs.Generate(ctx, id); err != nil {
			h.logger.Info("Generation ended with error",
				zap.String("graphID", sess.ID),
				zap.String("nodeID", id.String()),
				zap.Error(err))
		}
	}()
	h.respondJSON(w, http.StatusAccepted, JobAccepted{IDs: []valueobjects.NodeID{id}})
}

// Cancel handles POST /graphs/{graphID}/nodes/{nodeID}/cancel
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := sess.Jobs.Cancel(r.Context(), valueobjects.NodeID(chi.URLParam(r, "nodeID"))); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunAll handles POST /graphs/{graphID}/run. Nodes that cannot run are
// skipped; the response lists the ones started.
func (h *JobHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	var req RunAllRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	candidates := req.IDs
	if len(candidates) == 0 {
		for _, n := range sess.Store.Snapshot().Nodes {
			if n.Kind.IsGenerator() {
				candidates = append(candidates, n.ID)
			}
		}
	}
	ids := make([]valueobjects.NodeID, 0, len(candidates))
	for _, id := range candidates {
		if h.runnable(sess, id) == nil {
			ids = append(ids, id)
		}
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		failed := 0
		for _, res := range sess.Jobs.RunAll(ctx, ids) {
			if res.Err != nil {
				failed++
			}
		}
		h.logger.Info("Run all finished",
			zap.String("graphID", sess.ID),
			zap.Int("jobs", len(ids)),
			zap.Int("failed", failed))
	}()
	h.respondJSON(w, http.StatusAccepted, JobAccepted{IDs: ids})
}

// runnable reports why node id cannot be generated, or nil
func (h *JobHandler) runnable(sess *services.Session, id valueobjects.NodeID) error {
	node, ok := sess.Store.Node(id)
	if !ok {
		return appErrors.NewNotFoundError("node " + id.String())
	}
	_, err := jobs.BuildRequest(node, sess.Store.GetConnectedInputs(id))
	return err
}
