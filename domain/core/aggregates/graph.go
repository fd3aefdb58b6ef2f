package aggregates

import (
	"errors"
	"slices"

	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/realaman90/koda-sub002/domain/events"
)

// Snapshot is a detached copy of a graph's nodes and edges, in canvas order.
// Node payloads are immutable values, so copying the slices is enough to
// make a snapshot independent of later mutation.
type Snapshot struct {
	Nodes []entities.Node `json:"nodes"`
	Edges []entities.Edge `json:"edges"`
}

// Clone returns a snapshot that shares no slices with s
func (s Snapshot) Clone() Snapshot {
	nodes := make([]entities.Node, len(s.Nodes))
	copy(nodes, s.Nodes)
	edges := make([]entities.Edge, len(s.Edges))
	copy(edges, s.Edges)
	return Snapshot{Nodes: nodes, Edges: edges}
}

// Node finds a node in the snapshot
func (s Snapshot) Node(id valueobjects.NodeID) (entities.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return entities.Node{}, false
}

// Graph is the aggregate root owning every node and edge of one canvas.
// All mutations are total: operating on a missing id is a no-op reported
// through the boolean result, never an error.
type Graph struct {
	nodes     []entities.Node
	edges     []entities.Edge
	nodeIndex map[valueobjects.NodeID]int
	edgeIndex map[valueobjects.EdgeID]int

	// Changes applied since the last TakeChanges call
	changes []events.Change
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		nodes:     []entities.Node{},
		edges:     []entities.Edge{},
		nodeIndex: make(map[valueobjects.NodeID]int),
		edgeIndex: make(map[valueobjects.EdgeID]int),
	}
}

// FromSnapshot builds a graph from s, dropping anything that would violate
// the graph invariants (duplicate ids, dangling or self edges, a second
// edge on an occupied socket).
func FromSnapshot(s Snapshot) *Graph {
	g := NewGraph()
	g.load(s)
	g.changes = nil
	return g
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Node retrieves a node by ID
func (g *Graph) Node(id valueobjects.NodeID) (entities.Node, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return entities.Node{}, false
	}
	return g.nodes[i], true
}

// HasNode checks if a node exists
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	_, ok := g.nodeIndex[id]
	return ok
}

// Edge retrieves an edge by ID
func (g *Graph) Edge(id valueobjects.EdgeID) (entities.Edge, bool) {
	i, ok := g.edgeIndex[id]
	if !ok {
		return entities.Edge{}, false
	}
	return g.edges[i], true
}

// Nodes returns all nodes in canvas order
func (g *Graph) Nodes() []entities.Node {
	return slices.Clone(g.nodes)
}

// Edges returns all edges in creation order
func (g *Graph) Edges() []entities.Edge {
	return slices.Clone(g.edges)
}

// IncomingEdges returns the edges targeting id, in creation order
func (g *Graph) IncomingEdges(id valueobjects.NodeID) []entities.Edge {
	var in []entities.Edge
	for _, e := range g.edges {
		if e.Target == id {
			in = append(in, e)
		}
	}
	return in
}

// OutgoingEdges returns the edges leaving id, in creation order
func (g *Graph) OutgoingEdges(id valueobjects.NodeID) []entities.Edge {
	var out []entities.Edge
	for _, e := range g.edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgeAt returns the edge occupying a target socket
func (g *Graph) EdgeAt(target valueobjects.NodeID, handle valueobjects.HandleID) (entities.Edge, bool) {
	for _, e := range g.edges {
		if e.Target == target && e.TargetHandle == handle {
			return e, true
		}
	}
	return entities.Edge{}, false
}

// AddNode appends a node. Nodes with an empty or duplicate id, or whose
// data does not match their kind, are ignored.
func (g *Graph) AddNode(node entities.Node) bool {
	if node.ID.IsZero() || node.Data == nil || node.Data.Kind() != node.Kind {
		return false
	}
	if g.HasNode(node.ID) {
		return false
	}

	g.nodeIndex[node.ID] = len(g.nodes)
	g.nodes = append(g.nodes, node)
	g.record(events.Change{Type: events.NodeAdded, NodeID: node.ID})
	return true
}

// RemoveNode removes a node and every edge that references it
func (g *Graph) RemoveNode(id valueobjects.NodeID) bool {
	i, ok := g.nodeIndex[id]
	if !ok {
		return false
	}

	kept := g.edges[:0:0]
	for _, e := range g.edges {
		if e.Touches(id) {
			g.record(events.Change{Type: events.EdgeRemoved, EdgeID: e.ID})
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	g.reindexEdges()

	g.nodes = slices.Delete(slices.Clone(g.nodes), i, i+1)
	g.reindexNodes()
	g.record(events.Change{Type: events.NodeRemoved, NodeID: id})
	return true
}

// UpdateNodeData shallow-merges patch into the node's data. Position and
// kind are never touched.
func (g *Graph) UpdateNodeData(id valueobjects.NodeID, patch entities.Patch) (bool, error) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return false, nil
	}
	merged, err := entities.ApplyPatch(g.nodes[i].Data, patch)
	if err != nil {
		return false, err
	}
	return g.ReplaceNodeData(id, merged), nil
}

// ReplaceNodeData swaps the node's data for another payload of the same kind
func (g *Graph) ReplaceNodeData(id valueobjects.NodeID, data entities.NodeData) bool {
	i, ok := g.nodeIndex[id]
	if !ok || data == nil || data.Kind() != g.nodes[i].Kind {
		return false
	}
	g.nodes = slices.Clone(g.nodes)
	g.nodes[i].Data = data
	g.record(events.Change{Type: events.NodeUpdated, NodeID: id})
	return true
}

// MoveNode sets a node's position
func (g *Graph) MoveNode(id valueobjects.NodeID, position valueobjects.Position) bool {
	i, ok := g.nodeIndex[id]
	if !ok || !position.IsValid() || g.nodes[i].Position.Equals(position) {
		return false
	}
	g.nodes = slices.Clone(g.nodes)
	g.nodes[i].Position = position
	g.record(events.Change{Type: events.NodeMoved, NodeID: id})
	return true
}

// AddEdge appends an edge. Self loops, dangling endpoints and duplicate ids
// are ignored. An edge already feeding the same target socket is replaced,
// so each (target, targetHandle) pair holds at most one edge.
func (g *Graph) AddEdge(edge entities.Edge) bool {
	if edge.ID.IsZero() || edge.IsSelfLoop() {
		return false
	}
	if _, exists := g.edgeIndex[edge.ID]; exists {
		return false
	}
	if !g.HasNode(edge.Source) || !g.HasNode(edge.Target) {
		return false
	}

	if occupied, ok := g.EdgeAt(edge.Target, edge.TargetHandle); ok {
		g.RemoveEdge(occupied.ID)
	}

	g.edges = append(slices.Clip(g.edges), edge)
	g.edgeIndex[edge.ID] = len(g.edges) - 1
	g.record(events.Change{Type: events.EdgeAdded, EdgeID: edge.ID})
	return true
}

// RemoveEdge removes an edge by ID
func (g *Graph) RemoveEdge(id valueobjects.EdgeID) bool {
	i, ok := g.edgeIndex[id]
	if !ok {
		return false
	}
	g.edges = slices.Delete(slices.Clone(g.edges), i, i+1)
	g.reindexEdges()
	g.record(events.Change{Type: events.EdgeRemoved, EdgeID: id})
	return true
}

// Clear removes every node and edge
func (g *Graph) Clear() bool {
	if len(g.nodes) == 0 && len(g.edges) == 0 {
		return false
	}
	g.nodes = []entities.Node{}
	g.edges = []entities.Edge{}
	g.reindexNodes()
	g.reindexEdges()
	g.record(events.Change{Type: events.GraphCleared})
	return true
}

// Snapshot returns a detached copy of the current state
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Nodes: slices.Clone(g.nodes), Edges: slices.Clone(g.edges)}.Clone()
}

// Restore atomically replaces the whole graph with s
func (g *Graph) Restore(s Snapshot) {
	g.load(s)
	g.record(events.Change{Type: events.GraphRestored})
}

// GroupMembers returns the nodes whose position lies inside the group's
// frame. Membership is computed on demand and follows node movement.
func (g *Graph) GroupMembers(groupID valueobjects.NodeID) []valueobjects.NodeID {
	group, ok := g.Node(groupID)
	if !ok || group.Kind != entities.KindGroup {
		return nil
	}
	frame := group.Bounds()

	var members []valueobjects.NodeID
	for _, n := range g.nodes {
		if n.ID == groupID {
			continue
		}
		if frame.Contains(n.Position) {
			members = append(members, n.ID)
		}
	}
	return members
}

// Bounds returns the bounding box of every node footprint
func (g *Graph) Bounds() (valueobjects.Rect, bool) {
	points := make([]valueobjects.Position, 0, len(g.nodes)*2)
	for _, n := range g.nodes {
		b := n.Bounds()
		points = append(points,
			valueobjects.Position{X: b.X, Y: b.Y},
			valueobjects.Position{X: b.X + b.Width, Y: b.Y + b.Height},
		)
	}
	return valueobjects.BoundingRect(points)
}

// Validate ensures graph invariants
func (g *Graph) Validate() error {
	sockets := make(map[string]bool, len(g.edges))
	for _, e := range g.edges {
		if e.IsSelfLoop() {
			return errors.New("edge connects a node to itself")
		}
		if !g.HasNode(e.Source) {
			return errors.New("edge references non-existent source node")
		}
		if !g.HasNode(e.Target) {
			return errors.New("edge references non-existent target node")
		}
		key := e.Target.String() + "/" + e.TargetHandle.String()
		if sockets[key] {
			return errors.New("more than one edge feeds the same socket")
		}
		sockets[key] = true
	}
	if len(g.nodeIndex) != len(g.nodes) || len(g.edgeIndex) != len(g.edges) {
		return errors.New("index out of sync")
	}
	return nil
}

// TakeChanges returns and clears the changes applied since the last call
func (g *Graph) TakeChanges() []events.Change {
	changes := g.changes
	g.changes = nil
	return changes
}

// Private helper methods

func (g *Graph) load(s Snapshot) {
	g.nodes = make([]entities.Node, 0, len(s.Nodes))
	g.edges = make([]entities.Edge, 0, len(s.Edges))
	g.nodeIndex = make(map[valueobjects.NodeID]int, len(s.Nodes))
	g.edgeIndex = make(map[valueobjects.EdgeID]int, len(s.Edges))

	for _, n := range s.Nodes {
		if n.ID.IsZero() || n.Data == nil || n.Data.Kind() != n.Kind || g.HasNode(n.ID) {
			continue
		}
		g.nodeIndex[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}

	sockets := make(map[string]bool, len(s.Edges))
	for _, e := range s.Edges {
		if e.ID.IsZero() || e.IsSelfLoop() || !g.HasNode(e.Source) || !g.HasNode(e.Target) {
			continue
		}
		if _, dup := g.edgeIndex[e.ID]; dup {
			continue
		}
		key := e.Target.String() + "/" + e.TargetHandle.String()
		if sockets[key] {
			continue
		}
		sockets[key] = true
		g.edgeIndex[e.ID] = len(g.edges)
		g.edges = append(g.edges, e)
	}
}

func (g *Graph) reindexNodes() {
	g.nodeIndex = make(map[valueobjects.NodeID]int, len(g.nodes))
	for i, n := range g.nodes {
		g.nodeIndex[n.ID] = i
	}
}

func (g *Graph) reindexEdges() {
	g.edgeIndex = make(map[valueobjects.EdgeID]int, len(g.edges))
	for i, e := range g.edges {
		g.edgeIndex[e.ID] = i
	}
}

func (g *Graph) record(change events.Change) {
	g.changes = append(g.changes, change)
}
