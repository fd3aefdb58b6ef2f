// Package websocket streams canvas changes to connected editors. Each
// graph is a room; the room follows the session's change feed while at
// least one client is connected.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/editor"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/events"
)

// Message types besides the change types of the feed
const (
	TypeConnected = "connection.established"
	TypeClosed    = "graph.closed"
	TypePing      = "ping"
)

// Message is one frame sent to clients
type Message struct {
	Type      string          `json:"type"`
	GraphID   string          `json:"graphId"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// HubMetrics tracks delivery counters
type HubMetrics struct {
	ActiveConnections int64
	MessagesSent      int64
	MessagesDropped   int64
}

// room is the set of clients watching one graph
type room struct {
	session *services.Session
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Hub fans session changes out to the clients of each graph
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.Logger

	metricsMu sync.Mutex
	metrics   HubMetrics
}

// NewHub creates a new hub. Run must be called before clients join.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      make(map[string]*room),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's event loop; it returns after Stop
func (h *Hub) Run() {
	defer close(h.done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAll()
			return
		case c := <-h.register:
			h.join(c)
		case c := <-h.unregister:
			h.leave(c)
		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop closes every connection and ends Run
func (h *Hub) Stop() {
	h.logger.Info("Stopping WebSocket hub")
	h.cancel()
	<-h.done
}

// Metrics returns a copy of the delivery counters
func (h *Hub) Metrics() HubMetrics {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.metrics
}

// ConnectionCount returns the number of clients watching graphID
func (h *Hub) ConnectionCount(graphID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rm, ok := h.rooms[graphID]; ok {
		return len(rm.clients)
	}
	return 0
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	rm, ok := h.rooms[c.graphID]
	if !ok {
		ctx, cancel := context.WithCancel(h.ctx)
		rm = &room{session: c.session, clients: make(map[*Client]bool), cancel: cancel}
		h.rooms[c.graphID] = rm
		go h.follow(ctx, c.graphID, c.session.Store, c.session.Store.Subscribe(ctx))
	}
	rm.clients[c] = true
	count := len(rm.clients)
	h.mu.Unlock()

	h.count(func(m *HubMetrics) { m.ActiveConnections++ })
	h.logger.Info("Client joined",
		zap.String("graphID", c.graphID),
		zap.String("userID", c.userID),
		zap.String("connectionID", c.id),
		zap.Int("roomConnections", count),
	)
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	rm, ok := h.rooms[c.graphID]
	if !ok || !rm.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(rm.clients, c)
	close(c.send)
	remaining := len(rm.clients)
	if remaining == 0 {
		rm.cancel()
		delete(h.rooms, c.graphID)
	}
	h.mu.Unlock()

	h.count(func(m *HubMetrics) { m.ActiveConnections-- })
	h.logger.Info("Client left",
		zap.String("graphID", c.graphID),
		zap.String("connectionID", c.id),
		zap.Int("remainingConnections", remaining),
	)
}

// follow relays one graph's changes until the room empties or the
// session closes
func (h *Hub) follow(ctx context.Context, graphID string, store *editor.Store, changes <-chan events.Change) {
	for change := range changes {
		h.broadcast(graphID, h.changeMessage(graphID, change))
	}
	if ctx.Err() != nil {
		return
	}
	// The feed ended on its own: the session was closed. Closing send lets
	// each writer flush the notice before hanging up.
	h.broadcast(graphID, newMessage(TypeClosed, graphID, nil))
	h.mu.Lock()
	if rm, ok := h.rooms[graphID]; ok && rm.session.Store == store {
		rm.cancel()
		for c := range rm.clients {
			close(c.send)
			h.count(func(m *HubMetrics) { m.ActiveConnections-- })
		}
		delete(h.rooms, graphID)
	}
	h.mu.Unlock()
}

// changeMessage attaches the current node or edge to a change so clients
// do not have to refetch it
func (h *Hub) changeMessage(graphID string, change events.Change) []byte {
	h.mu.RLock()
	rm, ok := h.rooms[graphID]
	h.mu.RUnlock()

	payload := changePayload{Change: change}
	if ok {
		store := rm.session.Store
		switch {
		case change.NodeID != "" && change.Type != events.NodeRemoved:
			if n, found := store.Node(change.NodeID); found {
				payload.Node = &n
			}
		case change.EdgeID != "" && change.Type == events.EdgeAdded:
			if e, found := store.Edge(change.EdgeID); found {
				payload.Edge = &e
			}
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal change", zap.Error(err), zap.String("type", string(change.Type)))
		return nil
	}
	return newMessage(string(change.Type), graphID, data)
}

func (h *Hub) broadcast(graphID string, frame []byte) {
	if frame == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	rm, ok := h.rooms[graphID]
	if !ok {
		return
	}
	for c := range rm.clients {
		select {
		case c.send <- frame:
			h.count(func(m *HubMetrics) { m.MessagesSent++ })
		default:
			h.count(func(m *HubMetrics) { m.MessagesDropped++ })
			h.logger.Warn("Closing slow client",
				zap.String("graphID", graphID),
				zap.String("connectionID", c.id),
			)
			go c.closeConn()
		}
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for graphID := range h.rooms {
		frame := newMessage(TypePing, graphID, nil)
		for c := range h.rooms[graphID].clients {
			select {
			case c.send <- frame:
			default:
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for graphID, rm := range h.rooms {
		rm.cancel()
		for c := range rm.clients {
			close(c.send)
			c.closeConn()
		}
		delete(h.rooms, graphID)
	}
	h.logger.Info("All connections closed")
}

func (h *Hub) count(fn func(*HubMetrics)) {
	h.metricsMu.Lock()
	fn(&h.metrics)
	h.metricsMu.Unlock()
}

type changePayload struct {
	events.Change
	Node interface{} `json:"node,omitempty"`
	Edge interface{} `json:"edge,omitempty"`
}

func newMessage(typ, graphID string, data json.RawMessage) []byte {
	frame, _ := json.Marshal(Message{
		Type:      typ,
		GraphID:   graphID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	return frame
}
