package editor

import (
	"slices"

	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// Selection is the set of selected nodes and edges, in selection order
type Selection struct {
	Nodes []valueobjects.NodeID `json:"nodes"`
	Edges []valueobjects.EdgeID `json:"edges"`
}

// IsEmpty reports whether nothing is selected
func (s Selection) IsEmpty() bool {
	return len(s.Nodes) == 0 && len(s.Edges) == 0
}

type selection struct {
	nodes []valueobjects.NodeID
	edges []valueobjects.EdgeID
}

func (sel *selection) set(nodes []valueobjects.NodeID, edges []valueobjects.EdgeID) {
	sel.nodes = dedupe(nodes)
	sel.edges = dedupe(edges)
}

func (sel *selection) clear() {
	sel.nodes = nil
	sel.edges = nil
}

// prune drops ids that no longer exist in g
func (sel *selection) prune(g *aggregates.Graph) {
	sel.nodes = slices.DeleteFunc(sel.nodes, func(id valueobjects.NodeID) bool { return !g.HasNode(id) })
	sel.edges = slices.DeleteFunc(sel.edges, func(id valueobjects.EdgeID) bool {
		_, ok := g.Edge(id)
		return !ok
	})
}

func (sel *selection) view() Selection {
	return Selection{Nodes: slices.Clone(sel.nodes), Edges: slices.Clone(sel.edges)}
}

func dedupe[T comparable](ids []T) []T {
	seen := make(map[T]bool, len(ids))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Select replaces the selection. Unknown ids are ignored.
func (s *Store) Select(nodes []valueobjects.NodeID, edges []valueobjects.EdgeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.set(nodes, edges)
	s.selection.prune(s.graph)
}

// SelectAll selects every node and edge
func (s *Store) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []valueobjects.NodeID
	for _, n := range s.graph.Nodes() {
		nodes = append(nodes, n.ID)
	}
	var edges []valueobjects.EdgeID
	for _, e := range s.graph.Edges() {
		edges = append(edges, e.ID)
	}
	s.selection.set(nodes, edges)
}

// ClearSelection deselects everything
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.clear()
}

// Selection returns the current selection
func (s *Store) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.view()
}

// DeleteSelection removes the selected nodes and edges as one history step
func (s *Store) DeleteSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := slices.Clone(s.selection.nodes)
	edges := slices.Clone(s.selection.edges)
	return s.apply(OpRemoveNodes, func(g *aggregates.Graph) bool {
		changed := false
		for _, id := range edges {
			changed = g.RemoveEdge(id) || changed
		}
		for _, id := range nodes {
			changed = g.RemoveNode(id) || changed
		}
		return changed
	})
}
