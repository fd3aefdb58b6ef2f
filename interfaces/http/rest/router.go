package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/interfaces/http/rest/handlers"
	"github.com/realaman90/koda-sub002/interfaces/http/rest/middleware"
	"github.com/realaman90/koda-sub002/interfaces/websocket"
	"github.com/realaman90/koda-sub002/pkg/auth"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

// DevUserID is the user attached to requests when authentication is off
const DevUserID = "dev-user"

// RouterConfig selects the optional parts of the router
type RouterConfig struct {
	CORSOrigins   []string
	EnableCORS    bool
	EnableMetrics bool
}

// Router creates and configures the HTTP router
type Router struct {
	sessions  *services.SessionService
	storage   ports.AssetStorage
	validator *auth.JWTValidator
	ws        *websocket.Server
	metrics   *observability.Collector
	cfg       RouterConfig
	logger    *zap.Logger
}

// NewRouter creates a new router. A nil validator serves every request as
// DevUserID; storage, ws and metrics may be nil.
func NewRouter(
	sessions *services.SessionService,
	storage ports.AssetStorage,
	validator *auth.JWTValidator,
	ws *websocket.Server,
	metrics *observability.Collector,
	cfg RouterConfig,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		sessions:  sessions,
		storage:   storage,
		validator: validator,
		ws:        ws,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, rt.metrics))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.cfg.EnableMetrics && rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.validator != nil {
			r.Use(middleware.Authenticate(rt.validator, rt.logger))
		} else {
			r.Use(middleware.Anonymous(DevUserID))
		}

		assets := handlers.NewAssetHandler(rt.storage, rt.logger)
		r.Post("/assets", assets.Upload)
		r.Post("/assets/presign", assets.Presign)

		graphs := handlers.NewGraphHandler(rt.sessions, rt.logger)
		r.Get("/graphs", graphs.ListGraphs)

		r.Route("/graphs/{graphID}", func(r chi.Router) {
			r.Get("/", graphs.GetGraph)
			r.Put("/", graphs.ImportGraph)
			r.Delete("/", graphs.DeleteGraph)
			r.Post("/save", graphs.SaveGraph)
			r.Post("/close", graphs.CloseGraph)
			r.Post("/undo", graphs.Undo)
			r.Post("/redo", graphs.Redo)
			r.Post("/clear", graphs.ClearCanvas)
			r.Put("/viewport", graphs.SetViewport)
			r.Post("/fit-view", graphs.FitView)

			jobs := handlers.NewJobHandler(rt.sessions, rt.logger)
			r.Post("/run", jobs.RunAll)

			r.Route("/nodes", func(r chi.Router) {
				nodes := handlers.NewNodeHandler(rt.sessions, rt.logger)
				r.Post("/", nodes.CreateNodes)
				r.Post("/bulk-delete", nodes.DeleteNodes)
				r.Get("/{nodeID}", nodes.GetNode)
				r.Patch("/{nodeID}", nodes.UpdateNode)
				r.Put("/{nodeID}/position", nodes.MoveNode)
				r.Delete("/{nodeID}", nodes.DeleteNode)
				r.Get("/{nodeID}/inputs", nodes.GetInputs)
				r.Post("/{nodeID}/generate", jobs.Generate)
				r.Post("/{nodeID}/cancel", jobs.Cancel)
			})

			r.Route("/edges", func(r chi.Router) {
				edges := handlers.NewEdgeHandler(rt.sessions, rt.logger)
				r.Post("/", edges.Connect)
				r.Post("/validate", edges.Validate)
				r.Delete("/{edgeID}", edges.Disconnect)
			})

			edit := handlers.NewEditHandler(rt.sessions, rt.logger)
			r.Put("/selection", edit.Select)
			r.Delete("/selection", edit.DeleteSelection)
			r.Post("/copy", edit.Copy)
			r.Post("/cut", edit.Cut)
			r.Post("/paste", edit.Paste)
			r.Post("/duplicate", edit.Duplicate)
			r.Post("/groups", edit.Group)
			r.Delete("/groups/{nodeID}", edit.Ungroup)

			storyboard := handlers.NewPlannerHandler(rt.sessions, rt.logger)
			r.Post("/storyboard", storyboard.Build)
			r.Post("/storyboard/generate", storyboard.Generate)

			if rt.ws != nil {
				r.Get("/ws", rt.ws.HandleWebSocket)
			}
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready once the session service is wired
func (rt *Router) readinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.sessions == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
