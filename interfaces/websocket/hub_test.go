package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realaman90/koda-sub002/application/jobs"
	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/realaman90/koda-sub002/infrastructure/persistence/memory"
	"github.com/realaman90/koda-sub002/interfaces/http/rest/middleware"
)

type noopProvider struct{}

func (noopProvider) Generate(context.Context, ports.GenerationRequest) (ports.GenerationResult, error) {
	return ports.GenerationResult{}, nil
}

func (noopProvider) Poll(context.Context, string, string) (ports.PollResult, error) {
	return ports.PollResult{Status: ports.PollProcessing}, nil
}

type fixture struct {
	hub      *Hub
	sessions *services.SessionService
	url      string
}

func newFixture(t *testing.T, cfg ServerConfig) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	sessions := services.NewSessionService(memory.NewGraphRepository(), capabilities.NewRegistry(nil),
		noopProvider{}, jobs.NewManualScheduler(), nil, nil, nil, logger, nil)
	hub := NewHub(logger)
	go hub.Run()

	router := chi.NewRouter()
	router.Use(middleware.Anonymous("tester"))
	router.Get("/graphs/{graphID}/ws", NewServer(hub, sessions, cfg, logger).HandleWebSocket)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
		_ = sessions.Shutdown(context.Background())
	})
	return &fixture{hub: hub, sessions: sessions, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (f *fixture) dial(t *testing.T, graphID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+"/graphs/"+graphID+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// next skips pings and decodes the next frame
func next(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(frame, &msg))
		if msg.Type != TypePing {
			return msg
		}
	}
}

func TestHub_StreamsChanges(t *testing.T) {
	// Arrange
	f := newFixture(t, DefaultServerConfig())
	conn := f.dial(t, "g1")

	hello := next(t, conn)
	assert.Equal(t, TypeConnected, hello.Type)
	assert.Equal(t, "g1", hello.GraphID)
	require.Eventually(t, func() bool { return f.hub.ConnectionCount("g1") == 1 }, time.Second, 10*time.Millisecond)

	sess, ok := f.sessions.Get("g1")
	require.True(t, ok)
	node, err := entities.NewNodeWithID("n1", entities.KindText, valueobjects.Position{X: 10}, entities.TextData{Content: "hi"})
	require.NoError(t, err)

	// Act
	require.True(t, sess.Store.AddNode(node))

	// Assert
	msg := next(t, conn)
	assert.Equal(t, "node.added", msg.Type)
	var payload struct {
		NodeID string `json:"nodeId"`
		Node   struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"node"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "n1", payload.NodeID)
	assert.Equal(t, "n1", payload.Node.ID)
	assert.Equal(t, string(entities.KindText), payload.Node.Type)
}

func TestHub_NotifiesWhenSessionCloses(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	conn := f.dial(t, "g2")
	next(t, conn)
	require.Eventually(t, func() bool { return f.hub.ConnectionCount("g2") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, f.sessions.Close(context.Background(), "g2"))

	assert.Equal(t, TypeClosed, next(t, conn).Type)
	assert.Eventually(t, func() bool { return f.hub.ConnectionCount("g2") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_RoomEmptiesOnDisconnect(t *testing.T) {
	f := newFixture(t, DefaultServerConfig())
	conn := f.dial(t, "g3")
	next(t, conn)
	require.Eventually(t, func() bool { return f.hub.ConnectionCount("g3") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return f.hub.ConnectionCount("g3") == 0 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, f.hub.Metrics().ActiveConnections)
}

func TestServer_ConnectionLimit(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxConnectionsPerGraph = 1
	f := newFixture(t, cfg)
	conn := f.dial(t, "g4")
	next(t, conn)
	require.Eventually(t, func() bool { return f.hub.ConnectionCount("g4") == 1 }, time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(f.url+"/graphs/g4/ws", nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 429, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list allows all", nil, "https://evil.example", true},
		{"wildcard", []string{"*"}, "https://any.example", true},
		{"listed", []string{"https://app.example"}, "https://app.example", true},
		{"unlisted", []string{"https://app.example"}, "https://evil.example", false},
		{"no origin header", []string{"https://app.example"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}
