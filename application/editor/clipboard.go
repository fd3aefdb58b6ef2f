package editor

import (
	"slices"

	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
)

// Clipboard is a detached copy of earlier selected nodes. Edges are kept
// only when both endpoints were copied.
type Clipboard struct {
	Nodes []entities.Node `json:"nodes"`
	Edges []entities.Edge `json:"edges"`
}

// IsEmpty reports whether the clipboard holds no nodes
func (c Clipboard) IsEmpty() bool {
	return len(c.Nodes) == 0
}

func (c Clipboard) clone() Clipboard {
	return Clipboard{Nodes: slices.Clone(c.Nodes), Edges: slices.Clone(c.Edges)}
}

// Clipboard returns the current clipboard contents
func (s *Store) Clipboard() Clipboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipboard.clone()
}

// Copy puts the selected nodes on the clipboard and returns how many were
// copied. Selected groups bring their spatial members along.
func (s *Store) Copy() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip := s.collect(s.selection.nodes)
	if clip.IsEmpty() {
		return 0
	}
	s.clipboard = clip
	s.pastes = 0
	return len(clip.Nodes)
}

// Cut copies the selection and removes it as one history step. The first
// paste after a cut lands in place.
func (s *Store) Cut() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip := s.collect(s.selection.nodes)
	if clip.IsEmpty() {
		return 0
	}
	s.clipboard = clip
	s.pastes = -1

	ids := make([]valueobjects.NodeID, len(clip.Nodes))
	for i, n := range clip.Nodes {
		ids[i] = n.ID
	}
	s.removeNodes(ids, OpCut)
	return len(clip.Nodes)
}

// Paste inserts a fresh copy of the clipboard, offset further with each
// consecutive paste, and selects it. Returns the new ids in clipboard order.
func (s *Store) Paste() []valueobjects.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clipboard.IsEmpty() {
		return nil
	}
	s.pastes++
	offset := s.cfg.PasteOffset * float64(s.pastes)
	return s.insertCopy(s.clipboard, offset, OpPaste)
}

// Duplicate inserts a copy of the given nodes next to the originals. The
// clipboard is left untouched.
func (s *Store) Duplicate(ids []valueobjects.NodeID) []valueobjects.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip := s.collect(ids)
	if clip.IsEmpty() {
		return nil
	}
	return s.insertCopy(clip, s.cfg.PasteOffset, OpDuplicate)
}

// GroupSelection frames the selected nodes with a new group node and
// selects it
func (s *Store) GroupSelection(label string) (valueobjects.NodeID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var corners []valueobjects.Position
	for _, id := range s.selection.nodes {
		n, ok := s.graph.Node(id)
		if !ok {
			continue
		}
		b := n.Bounds()
		corners = append(corners,
			valueobjects.Position{X: b.X, Y: b.Y},
			valueobjects.Position{X: b.X + b.Width, Y: b.Y + b.Height})
	}
	bounds, ok := valueobjects.BoundingRect(corners)
	if !ok {
		return "", false
	}
	frame := bounds.Expand(s.cfg.GroupPadding)

	group, err := entities.NewNode(entities.KindGroup,
		valueobjects.Position{X: frame.X, Y: frame.Y},
		entities.GroupData{Label: label, Width: frame.Width, Height: frame.Height})
	if err != nil {
		s.logger.Warn("Failed to create group", zap.Error(err))
		return "", false
	}
	if !s.addNode(group) {
		return "", false
	}
	s.selection.set([]valueobjects.NodeID{group.ID}, nil)
	return group.ID, true
}

// Ungroup removes a group node and leaves its members in place
func (s *Store) Ungroup(id valueobjects.NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.graph.Node(id)
	if !ok || n.Kind != entities.KindGroup {
		return false
	}
	return s.removeNodes([]valueobjects.NodeID{id}, OpUngroup) > 0
}

// GroupMembers returns the nodes currently inside a group's frame
func (s *Store) GroupMembers(id valueobjects.NodeID) []valueobjects.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.GroupMembers(id)
}

// collect copies ids, plus the members of any group among them, in canvas
// order along with the edges internal to that set
func (s *Store) collect(ids []valueobjects.NodeID) Clipboard {
	want := make(map[valueobjects.NodeID]bool, len(ids))
	for _, id := range ids {
		n, ok := s.graph.Node(id)
		if !ok {
			continue
		}
		want[id] = true
		if n.Kind == entities.KindGroup {
			for _, member := range s.graph.GroupMembers(id) {
				want[member] = true
			}
		}
	}

	var clip Clipboard
	for _, n := range s.graph.Nodes() {
		if want[n.ID] {
			clip.Nodes = append(clip.Nodes, n)
		}
	}
	for _, e := range s.graph.Edges() {
		if want[e.Source] && want[e.Target] {
			clip.Edges = append(clip.Edges, e)
		}
	}
	return clip
}

// insertCopy adds clip under fresh ids as one history step. Internal edges
// are re-targeted to the copies and generation state is reset.
func (s *Store) insertCopy(clip Clipboard, offset float64, op string) []valueobjects.NodeID {
	nodes, edges := remap(clip, offset)

	if s.graph.NodeCount()+len(nodes) > s.cfg.MaxNodesPerGraph {
		s.logger.Warn("Node limit reached, copy not inserted",
			zap.Int("nodes", len(nodes)),
			zap.Int("limit", s.cfg.MaxNodesPerGraph))
		return nil
	}

	var ids []valueobjects.NodeID
	s.apply(op, func(g *aggregates.Graph) bool {
		for _, n := range nodes {
			if g.AddNode(n) {
				ids = append(ids, n.ID)
			}
		}
		for _, e := range edges {
			g.AddEdge(e)
		}
		return len(ids) > 0
	})
	s.selection.set(ids, nil)
	return ids
}

func remap(clip Clipboard, offset float64) ([]entities.Node, []entities.Edge) {
	ids := make(map[valueobjects.NodeID]valueobjects.NodeID, len(clip.Nodes))
	nodes := make([]entities.Node, 0, len(clip.Nodes))
	for _, n := range clip.Nodes {
		fresh := valueobjects.NewNodeID()
		ids[n.ID] = fresh

		n.ID = fresh
		n.Position = n.Position.Translate(offset, offset)
		if gen, ok := n.Generator(); ok {
			status := gen.Generation().Clone()
			status.IsGenerating = false
			status.Progress = 0
			status.ClearTask()
			n.Data = entities.WithGeneration(n.Data, status)
		}
		nodes = append(nodes, n)
	}

	edges := make([]entities.Edge, 0, len(clip.Edges))
	for _, e := range clip.Edges {
		e.ID = valueobjects.NewEdgeID()
		e.Source = ids[e.Source]
		e.Target = ids[e.Target]
		edges = append(edges, e)
	}
	return nodes, edges
}
