package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/planner"
	"github.com/realaman90/koda-sub002/application/services"
)

// PlannerHandler builds storyboards on a canvas
type PlannerHandler struct {
	base
}

// NewPlannerHandler creates a new planner handler
func NewPlannerHandler(sessions *services.SessionService, logger *zap.Logger) *PlannerHandler {
	return &PlannerHandler{base{sessions: sessions, logger: logger}}
}

// BriefRequest asks the plan source for a storyboard
type BriefRequest struct {
	Brief string `json:"brief" validate:"required,max=4000"`
}

// StoryboardResponse reports what was built
type StoryboardResponse struct {
	Layout    planner.Layout `json:"layout"`
	Reasoning string         `json:"reasoning,omitempty"`
	Plan      *planner.Plan  `json:"plan,omitempty"`
}

// Build handles POST /graphs/{graphID}/storyboard with an explicit plan
func (h *PlannerHandler) Build(w http.ResponseWriter, r *http.Request) {
	var plan planner.Plan
	if err := h.decodeBody(w, r, &plan); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	layout, err := sess.Planner.Build(r.Context(), plan)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, StoryboardResponse{Layout: layout})
}

// Generate handles POST /graphs/{graphID}/storyboard/generate. The plan is
// streamed from the model and built when complete.
func (h *PlannerHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req BriefRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, layout, err := sess.Planner.Storyboard(r.Context(), req.Brief)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, StoryboardResponse{
		Layout:    layout,
		Reasoning: result.Reasoning,
		Plan:      &result.Plan,
	})
}
