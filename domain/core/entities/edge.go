package entities

import "github.com/realaman90/koda-sub002/domain/core/valueobjects"

// Edge connects an output handle of one node to an input handle of another
type Edge struct {
	ID           valueobjects.EdgeID   `json:"id"`
	Source       valueobjects.NodeID   `json:"source"`
	SourceHandle valueobjects.HandleID `json:"sourceHandle"`
	Target       valueobjects.NodeID   `json:"target"`
	TargetHandle valueobjects.HandleID `json:"targetHandle"`
}

// NewEdge creates an edge with a fresh id
func NewEdge(source valueobjects.NodeID, sourceHandle valueobjects.HandleID, target valueobjects.NodeID, targetHandle valueobjects.HandleID) Edge {
	if sourceHandle == "" {
		sourceHandle = valueobjects.HandleOutput
	}
	return Edge{
		ID:           valueobjects.NewEdgeID(),
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}
}

// Touches reports whether the edge has id as either endpoint
func (e Edge) Touches(id valueobjects.NodeID) bool {
	return e.Source == id || e.Target == id
}

// IsSelfLoop reports whether both endpoints are the same node
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// SameSocket reports whether both edges feed the same target handle
func (e Edge) SameSocket(other Edge) bool {
	return e.Target == other.Target && e.TargetHandle == other.TargetHandle
}
