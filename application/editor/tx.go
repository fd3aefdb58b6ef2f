package editor

import (
	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// Tx is the view of a Store handed to a Batch callback. It is only valid
// for the duration of the callback.
type Tx struct {
	s *Store
}

// AddNode adds a node
func (tx *Tx) AddNode(node entities.Node) bool {
	return tx.s.addNode(node)
}

// RemoveNode removes a node and its edges
func (tx *Tx) RemoveNode(id valueobjects.NodeID) bool {
	return tx.s.removeNodes([]valueobjects.NodeID{id}, OpRemoveNodes) > 0
}

// UpdateNodeData shallow-merges patch into a node's data
func (tx *Tx) UpdateNodeData(id valueobjects.NodeID, patch entities.Patch) (bool, error) {
	return tx.s.updateNodeData(id, patch)
}

// AddEdge adds an edge without consulting the connection rules
func (tx *Tx) AddEdge(edge entities.Edge) bool {
	return tx.s.addEdge(edge)
}

// Connect adds an edge if the connection rules accept it
func (tx *Tx) Connect(edge entities.Edge) bool {
	return tx.s.connect(edge)
}

// Node returns a node by id
func (tx *Tx) Node(id valueobjects.NodeID) (entities.Node, bool) {
	return tx.s.graph.Node(id)
}

// Snapshot returns a detached copy of the graph as it stands inside the batch
func (tx *Tx) Snapshot() aggregates.Snapshot {
	return tx.s.graph.Snapshot()
}

// Counts returns the number of nodes and edges
func (tx *Tx) Counts() (nodes, edges int) {
	return tx.s.graph.NodeCount(), tx.s.graph.EdgeCount()
}

// Limits returns the node and edge capacity of the graph
func (tx *Tx) Limits() (nodes, edges int) {
	return tx.s.cfg.MaxNodesPerGraph, tx.s.cfg.MaxEdgesPerGraph
}

// Viewport returns the current viewport
func (tx *Tx) Viewport() Viewport {
	return tx.s.viewport
}

// SelectNodes replaces the selection
func (tx *Tx) SelectNodes(ids []valueobjects.NodeID) {
	tx.s.selection.set(ids, nil)
	tx.s.selection.prune(tx.s.graph)
}

// FitView moves the viewport to show every node
func (tx *Tx) FitView() bool {
	bounds, ok := tx.s.graph.Bounds()
	if !ok {
		return false
	}
	tx.s.viewport = tx.s.viewport.Fit(bounds)
	return true
}
