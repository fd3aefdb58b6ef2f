package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/builder"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// NodeHandler handles node related requests
type NodeHandler struct {
	base
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(sessions *services.SessionService, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{base{sessions: sessions, logger: logger}}
}

// CreateNodesRequest creates one or more nodes as a single undo step
type CreateNodesRequest struct {
	Nodes []builder.CreateNodeInput `json:"nodes" validate:"required,min=1,max=200,dive"`
	// Select replaces the selection with the created nodes
	Select bool `json:"select,omitempty"`
}

// CreateNodesResponse lists the created nodes in request order
type CreateNodesResponse struct {
	Nodes []entities.Node `json:"nodes"`
}

// MoveNodeRequest moves a node
type MoveNodeRequest struct {
	Position valueobjects.Position `json:"position"`
}

// RemoveNodesRequest removes several nodes as one undo step
type RemoveNodesRequest struct {
	IDs []valueobjects.NodeID `json:"ids" validate:"required,min=1"`
}

// CreateNodes handles POST /graphs/{graphID}/nodes
func (h *NodeHandler) CreateNodes(w http.ResponseWriter, r *http.Request) {
	var req CreateNodesRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var ids []valueobjects.NodeID
	err = sess.Builder.Run(r.Context(), "create nodes", func(tx *builder.Tx) error {
		var err error
		ids, err = tx.CreateNodes(req.Nodes)
		if err == nil && req.Select {
			tx.SelectCreated()
		}
		return err
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := CreateNodesResponse{Nodes: make([]entities.Node, 0, len(ids))}
	for _, id := range ids {
		if n, ok := sess.Store.Node(id); ok {
			resp.Nodes = append(resp.Nodes, n)
		}
	}
	h.respondJSON(w, http.StatusCreated, resp)
}

// GetNode handles GET /graphs/{graphID}/nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	_, node, err := h.node(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

// UpdateNode handles PATCH /graphs/{graphID}/nodes/{nodeID}. The body is a
// shallow patch of the node's data.
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var patch entities.Patch
	if err := h.decodeBody(w, r, &patch); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, node, err := h.node(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if _, err := sess.Store.UpdateNodeData(node.ID, patch); err != nil {
		h.respondError(w, r, err)
		return
	}
	updated, _ := sess.Store.Node(node.ID)
	h.respondJSON(w, http.StatusOK, updated)
}

// MoveNode handles PUT /graphs/{graphID}/nodes/{nodeID}/position
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req MoveNodeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if !req.Position.IsValid() {
		h.respondError(w, r, appErrors.NewValidationError("invalid coordinates: must be finite numbers"))
		return
	}
	sess, node, err := h.node(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	sess.Store.MoveNode(node.ID, req.Position)
	moved, _ := sess.Store.Node(node.ID)
	h.respondJSON(w, http.StatusOK, moved)
}

// DeleteNode handles DELETE /graphs/{graphID}/nodes/{nodeID}. Deleting a
// missing node succeeds.
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	sess.Store.RemoveNode(valueobjects.NodeID(chi.URLParam(r, "nodeID")))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNodes handles POST /graphs/{graphID}/nodes/bulk-delete
func (h *NodeHandler) DeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req RemoveNodesRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	removed := sess.Store.RemoveNodes(req.IDs)
	h.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// GetInputs handles GET /graphs/{graphID}/nodes/{nodeID}/inputs
func (h *NodeHandler) GetInputs(w http.ResponseWriter, r *http.Request) {
	sess, node, err := h.node(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sess.Store.GetConnectedInputs(node.ID))
}

func (h *NodeHandler) node(r *http.Request) (*services.Session, entities.Node, error) {
	sess, err := h.session(r)
	if err != nil {
		return nil, entities.Node{}, err
	}
	id := valueobjects.NodeID(chi.URLParam(r, "nodeID"))
	node, ok := sess.Store.Node(id)
	if !ok {
		return nil, entities.Node{}, appErrors.NewNotFoundError("node " + id.String())
	}
	return sess, node, nil
}
