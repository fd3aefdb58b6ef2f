// Package editor owns a single canvas: its graph, selection, clipboard,
// viewport and undo history.
package editor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/history"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/config"
	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/realaman90/koda-sub002/domain/events"
	"github.com/realaman90/koda-sub002/domain/services"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

// Operation labels used for history entries and metrics
const (
	OpAddNode        = "add_node"
	OpRemoveNodes    = "remove_nodes"
	OpUpdateNode     = "update_node"
	OpMoveNode       = "move_node"
	OpAddEdge        = "add_edge"
	OpRemoveEdge     = "remove_edge"
	OpClearCanvas    = "clear_canvas"
	OpCut            = "cut"
	OpPaste          = "paste"
	OpDuplicate      = "duplicate"
	OpGroup          = "group"
	OpUngroup        = "ungroup"
	OpUndo           = "undo"
	OpRedo           = "redo"
	OpLoad           = "load"
	OpGenerationSync = "generation"
)

// gesture coalesces every mutation made while it is open into one history
// entry, recorded at the first change.
type gesture struct {
	label    string
	depth    int
	recorded bool
}

// Store is the single owner of a canvas. All access goes through its
// methods, which are safe for concurrent use; every reader sees a
// consistent state.
type Store struct {
	mu sync.Mutex

	graph     *aggregates.Graph
	history   *history.Manager
	selection selection
	clipboard Clipboard
	pastes    int
	viewport  Viewport
	gesture   *gesture

	caps    capabilities.Source
	cfg     *config.DomainConfig
	feed    *feed
	logger  *zap.Logger
	metrics *observability.Collector
}

// Option configures a Store
type Option func(*Store)

// WithMetrics records store activity on c
func WithMetrics(c *observability.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// WithViewport sets the initial viewport
func WithViewport(v Viewport) Option {
	return func(s *Store) { s.viewport = v }
}

// NewStore creates an empty canvas
func NewStore(cfg *config.DomainConfig, caps capabilities.Source, logger *zap.Logger, opts ...Option) *Store {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		graph:    aggregates.NewGraph(),
		history:  history.NewManager(cfg.HistoryLimit),
		viewport: DefaultViewport(),
		caps:     caps,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.feed = newFeed(cfg.SubscriberBuffer, s.metrics.RecordDroppedChange)
	return s
}

// Subscribe returns a channel of applied changes. It is closed when ctx
// ends or the store is closed.
func (s *Store) Subscribe(ctx context.Context) <-chan events.Change {
	return s.feed.subscribe(ctx)
}

// Close releases all subscribers
func (s *Store) Close() {
	s.feed.close()
}

// Reads

// Snapshot returns a detached copy of the graph
func (s *Store) Snapshot() aggregates.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Snapshot()
}

// Node returns a node by id
func (s *Store) Node(id valueobjects.NodeID) (entities.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Node(id)
}

// Edge returns an edge by id
func (s *Store) Edge(id valueobjects.EdgeID) (entities.Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Edge(id)
}

// Counts returns the number of nodes and edges
func (s *Store) Counts() (nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.NodeCount(), s.graph.EdgeCount()
}

// GetConnectedInputs resolves the upstream values feeding id
func (s *Store) GetConnectedInputs(id valueobjects.NodeID) services.ResolvedInputs {
	s.mu.Lock()
	snapshot := s.graph.Snapshot()
	s.mu.Unlock()
	return services.GetConnectedInputs(snapshot, id)
}

// IsValidConnection reports whether candidate would be accepted by Connect
func (s *Store) IsValidConnection(candidate entities.Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return services.IsValidConnection(candidate, s.graph, s.caps)
}

// Mutations. Each is total: a missing id is a no-op reported as false.

// AddNode adds a node as one history step
func (s *Store) AddNode(node entities.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNode(node)
}

// RemoveNode removes a node and its edges as one history step
func (s *Store) RemoveNode(id valueobjects.NodeID) bool {
	return s.RemoveNodes([]valueobjects.NodeID{id}) > 0
}

// RemoveNodes removes several nodes as one history step and returns how
// many existed
func (s *Store) RemoveNodes(ids []valueobjects.NodeID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeNodes(ids, OpRemoveNodes)
}

// UpdateNodeData shallow-merges patch into the node's data. Generation
// status is not editable here; it only changes through UpdateGeneration.
// An empty patch is a no-op.
func (s *Store) UpdateNodeData(id valueobjects.NodeID, patch entities.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateNodeData(id, patch)
}

// MoveNode repositions a node
func (s *Store) MoveNode(id valueobjects.NodeID, position valueobjects.Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(OpMoveNode, func(g *aggregates.Graph) bool {
		return g.MoveNode(id, position)
	})
}

// AddEdge adds an edge without consulting the connection rules
func (s *Store) AddEdge(edge entities.Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEdge(edge)
}

// Connect adds edge only if the connection rules accept it. A refused
// connection is not an error.
func (s *Store) Connect(edge entities.Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect(edge)
}

// RemoveEdge removes an edge
func (s *Store) RemoveEdge(id valueobjects.EdgeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(OpRemoveEdge, func(g *aggregates.Graph) bool {
		return g.RemoveEdge(id)
	})
}

// ClearCanvas removes everything as one history step
func (s *Store) ClearCanvas() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(OpClearCanvas, func(g *aggregates.Graph) bool {
		return g.Clear()
	})
}

// Load replaces the graph with snapshot and starts a fresh history
func (s *Store) Load(snapshot aggregates.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph.Restore(snapshot)
	s.history.Clear()
	s.selection.clear()
	s.pastes = 0
	s.gesture = nil
	s.publish(OpLoad)
	s.metrics.SetHistoryDepth(0)
	s.logger.Debug("Graph loaded",
		zap.Int("nodes", s.graph.NodeCount()),
		zap.Int("edges", s.graph.EdgeCount()))
}

// UpdateGeneration rewrites a generator's status block without creating a
// history entry. Returns false when the node is missing or not a generator.
func (s *Store) UpdateGeneration(id valueobjects.NodeID, fn func(entities.GenerationStatus) entities.GenerationStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.graph.Node(id)
	if !ok {
		return false
	}
	gen, ok := node.Generator()
	if !ok {
		return false
	}
	next := fn(gen.Generation().Clone())
	if !s.graph.ReplaceNodeData(id, entities.WithGeneration(node.Data, next)) {
		return false
	}
	s.publish(OpGenerationSync)
	return true
}

// Gestures and batches

// BeginGesture opens a gesture; every mutation until the matching
// EndGesture becomes a single history entry. Gestures nest.
func (s *Store) BeginGesture(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginGesture(label)
}

// EndGesture closes the innermost gesture
func (s *Store) EndGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endGesture()
}

// Batch runs fn with exclusive access to the graph. Everything fn changes
// is one history entry, kept even if fn fails partway. fn must not call
// back into the Store; it uses the Tx instead.
func (s *Store) Batch(label string, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.beginGesture(label)
	defer s.endGesture()
	return fn(&Tx{s: s})
}

// History

// Undo restores the state before the last step. No-op on empty history.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gesture = nil
	current := s.graph.Snapshot()
	entry, ok := s.history.Undo(current)
	if !ok {
		return false
	}
	s.restore(entry.Snapshot, current, OpUndo)
	return true
}

// Redo re-applies the last undone step. No-op when nothing was undone.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gesture = nil
	current := s.graph.Snapshot()
	entry, ok := s.history.Redo(current)
	if !ok {
		return false
	}
	s.restore(entry.Snapshot, current, OpRedo)
	return true
}

// CanUndo reports whether Undo would change anything
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would change anything
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Private helper methods. Callers hold s.mu.

func (s *Store) addNode(node entities.Node) bool {
	if s.graph.NodeCount() >= s.cfg.MaxNodesPerGraph {
		s.logger.Warn("Node limit reached, node not added",
			zap.String("nodeID", node.ID.String()),
			zap.Int("limit", s.cfg.MaxNodesPerGraph))
		return false
	}
	return s.apply(OpAddNode, func(g *aggregates.Graph) bool {
		return g.AddNode(node)
	})
}

func (s *Store) removeNodes(ids []valueobjects.NodeID, op string) int {
	removed := 0
	s.apply(op, func(g *aggregates.Graph) bool {
		for _, id := range ids {
			if g.RemoveNode(id) {
				removed++
			}
		}
		return removed > 0
	})
	return removed
}

func (s *Store) updateNodeData(id valueobjects.NodeID, patch entities.Patch) (bool, error) {
	if keys := patch.GenerationKeys(); len(keys) > 0 {
		return false, pkgerrors.NewValidationError("generation status cannot be edited").
			WithCode("GENERATION_FIELDS").
			WithDetails(map[string]interface{}{"fields": keys})
	}
	if len(patch) == 0 {
		return false, nil
	}
	var err error
	changed := s.apply(OpUpdateNode, func(g *aggregates.Graph) bool {
		var ok bool
		ok, err = g.UpdateNodeData(id, patch)
		return ok
	})
	return changed, err
}

func (s *Store) addEdge(edge entities.Edge) bool {
	if s.graph.EdgeCount() >= s.cfg.MaxEdgesPerGraph {
		s.logger.Warn("Edge limit reached, edge not added",
			zap.String("edgeID", edge.ID.String()),
			zap.Int("limit", s.cfg.MaxEdgesPerGraph))
		return false
	}
	return s.apply(OpAddEdge, func(g *aggregates.Graph) bool {
		return g.AddEdge(edge)
	})
}

func (s *Store) connect(edge entities.Edge) bool {
	if edge.SourceHandle == "" {
		edge.SourceHandle = valueobjects.HandleOutput
	}
	if edge.ID.IsZero() {
		edge.ID = valueobjects.NewEdgeID()
	}
	if reason := services.CheckConnection(edge, s.graph, s.caps); reason != services.Accepted {
		s.metrics.RecordConnection(string(reason))
		s.logger.Debug("Connection refused",
			zap.String("source", edge.Source.String()),
			zap.String("target", edge.Target.String()),
			zap.String("targetHandle", edge.TargetHandle.String()),
			zap.String("reason", string(reason)))
		return false
	}
	s.metrics.RecordConnection("accepted")
	return s.addEdge(edge)
}

// apply runs fn and, when it changed the graph, records one history step
// and notifies subscribers.
func (s *Store) apply(op string, fn func(g *aggregates.Graph) bool) bool {
	var before aggregates.Snapshot
	needBefore := s.gesture == nil || !s.gesture.recorded
	if needBefore {
		before = s.graph.Snapshot()
	}

	if !fn(s.graph) {
		s.graph.TakeChanges()
		return false
	}

	if needBefore {
		label := op
		if s.gesture != nil {
			label = s.gesture.label
			s.gesture.recorded = true
		}
		s.history.Record(before, label)
		s.metrics.SetHistoryDepth(s.history.UndoDepth())
	}
	s.publish(op)
	return true
}

func (s *Store) publish(op string) {
	changes := s.graph.TakeChanges()
	if len(changes) == 0 {
		return
	}
	s.metrics.RecordMutation(op)
	for _, c := range changes {
		if c.IsStructural() {
			s.selection.prune(s.graph)
			break
		}
	}
	s.feed.publish(changes...)
}

// restore replaces the graph with target. Generation status is not part
// of the undoable document: surviving generators keep their live status so
// an unrelated undo never rolls back a running or finished job.
func (s *Store) restore(target, current aggregates.Snapshot, op string) {
	s.graph.Restore(carryGeneration(target, current))
	s.publish(op)
	s.metrics.SetHistoryDepth(s.history.UndoDepth())
}

func carryGeneration(target, current aggregates.Snapshot) aggregates.Snapshot {
	live := make(map[valueobjects.NodeID]entities.GenerationStatus, len(current.Nodes))
	for _, n := range current.Nodes {
		if gen, ok := n.Generator(); ok {
			live[n.ID] = gen.Generation()
		}
	}

	out := target.Clone()
	for i, n := range out.Nodes {
		status, ok := live[n.ID]
		if !ok {
			continue
		}
		if _, isGen := n.Generator(); isGen {
			out.Nodes[i].Data = entities.WithGeneration(n.Data, status)
		}
	}
	return out
}

func (s *Store) beginGesture(label string) {
	if s.gesture == nil {
		s.gesture = &gesture{label: label}
	}
	s.gesture.depth++
}

func (s *Store) endGesture() {
	if s.gesture == nil {
		return
	}
	s.gesture.depth--
	if s.gesture.depth <= 0 {
		s.gesture = nil
	}
}
