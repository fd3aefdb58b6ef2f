package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/editor"
	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	domainservices "github.com/realaman90/koda-sub002/domain/services"
	"github.com/realaman90/koda-sub002/pkg/auth"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// GraphHandler serves whole-canvas operations
type GraphHandler struct {
	base
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(sessions *services.SessionService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{base{sessions: sessions, logger: logger}}
}

// GraphView is the canvas as returned to clients
type GraphView struct {
	ID        string                          `json:"id"`
	OwnerID   string                          `json:"ownerId,omitempty"`
	Nodes     []entities.Node                 `json:"nodes"`
	Edges     []entities.Edge                 `json:"edges"`
	Viewport  editor.Viewport                 `json:"viewport"`
	Selection editor.Selection                `json:"selection"`
	CanUndo   bool                            `json:"canUndo"`
	CanRedo   bool                            `json:"canRedo"`
	Running   []valueobjects.NodeID           `json:"running"`
	Migration *domainservices.MigrationReport `json:"migration,omitempty"`
}

// HistoryResponse answers undo and redo
type HistoryResponse struct {
	Applied bool `json:"applied"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// ViewportRequest sets the viewport
type ViewportRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Zoom   float64 `json:"zoom" validate:"gt=0"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// NewGraphView renders a session for clients
func NewGraphView(sess *services.Session) GraphView {
	snapshot := sess.Store.Snapshot()
	view := GraphView{
		ID:        sess.ID,
		OwnerID:   sess.OwnerID,
		Nodes:     snapshot.Nodes,
		Edges:     snapshot.Edges,
		Viewport:  sess.Store.Viewport(),
		Selection: sess.Store.Selection(),
		CanUndo:   sess.Store.CanUndo(),
		CanRedo:   sess.Store.CanRedo(),
		Running:   []valueobjects.NodeID{},
	}
	for _, n := range snapshot.Nodes {
		if sess.Jobs.IsRunning(n.ID) {
			view.Running = append(view.Running, n.ID)
		}
	}
	if sess.Migration.HasChanges() {
		report := sess.Migration
		view.Migration = &report
	}
	return view
}

// ListGraphs handles GET /graphs
func (h *GraphHandler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, r, appErrors.NewUnauthorizedError(""))
		return
	}
	graphs, err := h.sessions.List(r.Context(), user.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"graphs": graphs})
}

// GetGraph handles GET /graphs/{graphID}
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, NewGraphView(sess))
}

// ImportGraph handles PUT /graphs/{graphID}
func (h *GraphHandler) ImportGraph(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, r, appErrors.NewUnauthorizedError(""))
		return
	}

	var doc ports.GraphDocument
	if err := h.decode(w, r, &doc); err != nil {
		h.respondError(w, r, err)
		return
	}

	sess, err := h.sessions.Import(r.Context(), chi.URLParam(r, "graphID"), user.UserID, doc)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, NewGraphView(sess))
}

// SaveGraph handles POST /graphs/{graphID}/save
func (h *GraphHandler) SaveGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.sessions.Save(r.Context(), sess.ID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseGraph handles POST /graphs/{graphID}/close
func (h *GraphHandler) CloseGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.sessions.Close(r.Context(), sess.ID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteGraph handles DELETE /graphs/{graphID}
func (h *GraphHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Undo handles POST /graphs/{graphID}/undo
func (h *GraphHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*editor.Store).Undo)
}

// Redo handles POST /graphs/{graphID}/redo
func (h *GraphHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*editor.Store).Redo)
}

func (h *GraphHandler) history(w http.ResponseWriter, r *http.Request, step func(*editor.Store) bool) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	applied := step(sess.Store)
	h.respondJSON(w, http.StatusOK, HistoryResponse{
		Applied: applied,
		CanUndo: sess.Store.CanUndo(),
		CanRedo: sess.Store.CanRedo(),
	})
}

// ClearCanvas handles POST /graphs/{graphID}/clear
func (h *GraphHandler) ClearCanvas(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	sess.Store.ClearCanvas()
	h.respondJSON(w, http.StatusOK, NewGraphView(sess))
}

// SetViewport handles PUT /graphs/{graphID}/viewport
func (h *GraphHandler) SetViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	sess.Store.SetViewport(editor.Viewport{X: req.X, Y: req.Y, Zoom: req.Zoom, Width: req.Width, Height: req.Height})
	h.respondJSON(w, http.StatusOK, sess.Store.Viewport())
}

// FitView handles POST /graphs/{graphID}/fit-view
func (h *GraphHandler) FitView(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	sess.Store.FitView()
	h.respondJSON(w, http.StatusOK, sess.Store.Viewport())
}
