package events

import "github.com/realaman90/koda-sub002/domain/core/valueobjects"

// ChangeType classifies a mutation of the graph
type ChangeType string

const (
	NodeAdded     ChangeType = "node.added"
	NodeRemoved   ChangeType = "node.removed"
	NodeUpdated   ChangeType = "node.updated"
	NodeMoved     ChangeType = "node.moved"
	EdgeAdded     ChangeType = "edge.added"
	EdgeRemoved   ChangeType = "edge.removed"
	GraphRestored ChangeType = "graph.restored"
	GraphCleared  ChangeType = "graph.cleared"
)

// Change describes one applied mutation. Subscribers re-read the graph for
// details; a change never carries live references into it.
type Change struct {
	Type   ChangeType          `json:"type"`
	NodeID valueobjects.NodeID `json:"nodeId,omitempty"`
	EdgeID valueobjects.EdgeID `json:"edgeId,omitempty"`
}

// IsStructural reports whether the change alters which nodes or edges exist
func (c Change) IsStructural() bool {
	switch c.Type {
	case NodeAdded, NodeRemoved, EdgeAdded, EdgeRemoved, GraphRestored, GraphCleared:
		return true
	}
	return false
}
