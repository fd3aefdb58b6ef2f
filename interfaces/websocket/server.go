package websocket

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/pkg/auth"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// ServerConfig holds upgrade settings
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins lists origins allowed to connect; empty allows all
	AllowedOrigins []string
	// MaxConnectionsPerGraph caps clients per room; zero means unlimited
	MaxConnectionsPerGraph int
}

// DefaultServerConfig returns the default upgrade settings
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:         1024,
		WriteBufferSize:        4096,
		MaxConnectionsPerGraph: 32,
	}
}

// Server upgrades requests and attaches them to the hub
type Server struct {
	hub      *Hub
	sessions *services.SessionService
	upgrader websocket.Upgrader
	cfg      ServerConfig
	logger   *zap.Logger
}

// NewServer creates a websocket endpoint. The caller authenticates the
// request before it reaches HandleWebSocket.
func NewServer(hub *Hub, sessions *services.SessionService, cfg ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		cfg:    cfg,
		logger: logger,
	}
}

// HandleWebSocket handles GET /graphs/{graphID}/ws
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sess, err := s.sessions.Open(r.Context(), chi.URLParam(r, "graphID"), user.UserID)
	if err != nil {
		http.Error(w, http.StatusText(appErrors.StatusCode(err)), appErrors.StatusCode(err))
		return
	}
	if s.cfg.MaxConnectionsPerGraph > 0 && s.hub.ConnectionCount(sess.ID) >= s.cfg.MaxConnectionsPerGraph {
		s.logger.Warn("Connection limit exceeded for graph",
			zap.String("graphID", sess.ID),
			zap.String("userID", user.UserID),
		)
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(sess, user.UserID, s.hub, conn, s.logger)
	client.Start()
	s.logger.Info("WebSocket connection established",
		zap.String("graphID", sess.ID),
		zap.String("userID", user.UserID),
		zap.String("connectionID", client.ID()),
	)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
