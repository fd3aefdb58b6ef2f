// Package services hosts editing sessions: one live canvas per graph id,
// loaded from and saved to the graph repository.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/realaman90/koda-sub002/application/builder"
	"github.com/realaman90/koda-sub002/application/editor"
	"github.com/realaman90/koda-sub002/application/jobs"
	"github.com/realaman90/koda-sub002/application/planner"
	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/domain/config"
	"github.com/realaman90/koda-sub002/domain/core/aggregates"
	domainservices "github.com/realaman90/koda-sub002/domain/services"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

// DocumentVersion is written into every saved graph document
const DocumentVersion = 2

// Session is one open canvas with its job manager and planner
type Session struct {
	ID       string
	OwnerID  string
	Store    *editor.Store
	Jobs     *jobs.Manager
	Builder  *builder.Builder
	Planner  *planner.Planner
	OpenedAt time.Time

	// Migration is what loading changed in the stored document
	Migration domainservices.MigrationReport
}

// SessionService opens, saves and closes sessions
type SessionService struct {
	repo       ports.GraphRepository
	catalog    capabilities.Catalog
	provider   ports.GenerationProvider
	scheduler  jobs.Scheduler
	publisher  ports.EventPublisher
	planSource ports.PlanSource
	cfg        *config.DomainConfig
	logger     *zap.Logger
	metrics    *observability.Collector

	mu       sync.Mutex
	sessions map[string]*Session
	opening  singleflight.Group
}

// NewSessionService creates a session service. publisher and planSource
// may be nil.
func NewSessionService(
	repo ports.GraphRepository,
	catalog capabilities.Catalog,
	provider ports.GenerationProvider,
	scheduler jobs.Scheduler,
	publisher ports.EventPublisher,
	planSource ports.PlanSource,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Collector,
) *SessionService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:       repo,
		catalog:    catalog,
		provider:   provider,
		scheduler:  scheduler,
		publisher:  publisher,
		planSource: planSource,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		sessions:   make(map[string]*Session),
	}
}

// Open returns the live session for graphID, loading it on first use. An
// unknown id opens an empty canvas owned by ownerID.
func (s *SessionService) Open(ctx context.Context, graphID, ownerID string) (*Session, error) {
	if graphID == "" {
		return nil, pkgerrors.NewValidationError("graph id is required")
	}

	if sess, ok := s.Get(graphID); ok {
		return s.authorize(sess, ownerID)
	}

	v, err, _ := s.opening.Do(graphID, func() (interface{}, error) {
		if sess, ok := s.Get(graphID); ok {
			return sess, nil
		}
		sess, err := s.load(ctx, graphID, ownerID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.sessions[graphID] = sess
		s.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return s.authorize(v.(*Session), ownerID)
}

// Get returns an already open session
func (s *SessionService) Get(graphID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[graphID]
	return sess, ok
}

// Save writes the session's current graph to the repository
func (s *SessionService) Save(ctx context.Context, graphID string) error {
	sess, ok := s.Get(graphID)
	if !ok {
		return pkgerrors.NewNotFoundError("session " + graphID)
	}
	return s.save(ctx, sess)
}

// Close saves and releases a session. Running remote tasks are left to
// be resumed the next time the graph is opened.
func (s *SessionService) Close(ctx context.Context, graphID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[graphID]
	delete(s.sessions, graphID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	err := s.save(ctx, sess)
	sess.Jobs.Close()
	sess.Store.Close()
	s.logger.Info("Session closed", zap.String("graphID", graphID), zap.Error(err))
	return err
}

// Import replaces the canvas of graphID with doc, applying the same
// migration as loading, and saves the result. The replacement clears
// history.
func (s *SessionService) Import(ctx context.Context, graphID, ownerID string, doc ports.GraphDocument) (*Session, error) {
	sess, err := s.Open(ctx, graphID, ownerID)
	if err != nil {
		return nil, err
	}

	snapshot, report := s.migrate(doc)
	for _, w := range report.Warnings {
		s.logger.Warn("Imported graph migrated", zap.String("graphID", graphID), zap.String("detail", w))
	}
	sess.Store.Load(snapshot)
	if doc.Viewport != nil {
		vp := sess.Store.Viewport()
		vp.X, vp.Y, vp.Zoom = doc.Viewport.X, doc.Viewport.Y, doc.Viewport.Zoom
		sess.Store.SetViewport(vp)
	}
	sess.Migration = report

	if err := s.save(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Delete closes a session without saving and removes the stored graph
func (s *SessionService) Delete(ctx context.Context, graphID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[graphID]
	delete(s.sessions, graphID)
	s.mu.Unlock()
	if ok {
		sess.Jobs.Close()
		sess.Store.Close()
	}
	if err := s.repo.Delete(ctx, graphID); err != nil {
		return pkgerrors.Wrap(err, "failed to delete graph")
	}
	return nil
}

// Shutdown saves and closes every open session
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.Close(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// List returns the saved graphs of ownerID. Open sessions show as of
// their last save.
func (s *SessionService) List(ctx context.Context, ownerID string) ([]ports.GraphSummary, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner id is required")
	}
	return s.repo.List(ctx, ownerID)
}

// Count returns the number of open sessions
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Private helper methods

func (s *SessionService) authorize(sess *Session, ownerID string) (*Session, error) {
	if sess.OwnerID != "" && ownerID != "" && sess.OwnerID != ownerID {
		// do not reveal that the graph exists
		return nil, pkgerrors.NewNotFoundError("graph " + sess.ID)
	}
	return sess, nil
}

func (s *SessionService) load(ctx context.Context, graphID, ownerID string) (*Session, error) {
	logger := s.logger.With(zap.String("graphID", graphID))

	doc, err := s.repo.Load(ctx, graphID)
	switch {
	case pkgerrors.IsNotFound(err):
		doc = ports.GraphDocument{ID: graphID, OwnerID: ownerID, Version: DocumentVersion}
		logger.Info("Starting new graph")
	case err != nil:
		return nil, pkgerrors.Wrap(err, "failed to load graph")
	}

	snapshot, report := s.migrate(doc)
	for _, w := range report.Warnings {
		logger.Warn("Graph migrated on load", zap.String("detail", w))
	}

	opts := []editor.Option{editor.WithMetrics(s.metrics)}
	if doc.Viewport != nil {
		vp := editor.DefaultViewport()
		vp.X, vp.Y, vp.Zoom = doc.Viewport.X, doc.Viewport.Y, doc.Viewport.Zoom
		opts = append(opts, editor.WithViewport(vp))
	}
	store := editor.NewStore(s.cfg, s.catalog, logger, opts...)
	store.Load(snapshot)

	manager := jobs.NewManager(store, s.provider, s.scheduler, s.cfg, logger,
		jobs.WithMetrics(s.metrics),
		jobs.WithPublisher(s.publisher),
		jobs.WithGraphID(graphID))
	resumed := manager.Start(ctx)

	b := builder.NewBuilder(store, s.catalog, logger)
	sess := &Session{
		ID:        graphID,
		OwnerID:   doc.OwnerID,
		Store:     store,
		Jobs:      manager,
		Builder:   b,
		Planner:   planner.NewPlanner(b, s.planSource, logger, s.metrics),
		OpenedAt:  time.Now(),
		Migration: report,
	}
	if sess.OwnerID == "" {
		sess.OwnerID = ownerID
	}

	nodeCount, edgeCount := store.Counts()
	logger.Info("Session opened",
		zap.Int("nodes", nodeCount),
		zap.Int("edges", edgeCount),
		zap.Int("resumedJobs", resumed),
		zap.Bool("migrated", report.HasChanges()))
	return sess, nil
}

func (s *SessionService) migrate(doc ports.GraphDocument) (aggregates.Snapshot, domainservices.MigrationReport) {
	var report domainservices.MigrationReport
	nodes := domainservices.DecodeNodes(doc.Nodes, &report)
	snapshot := domainservices.MigrateSnapshot(aggregates.Snapshot{Nodes: nodes, Edges: doc.Edges}, s.catalog, &report)
	return snapshot, report
}

func (s *SessionService) save(ctx context.Context, sess *Session) error {
	doc, err := Document(sess)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return pkgerrors.Wrap(err, "failed to save graph")
	}
	s.logger.Debug("Graph saved",
		zap.String("graphID", sess.ID),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("edges", len(doc.Edges)))
	return nil
}

// Document renders a session as a storable document
func Document(sess *Session) (ports.GraphDocument, error) {
	snapshot := sess.Store.Snapshot()
	nodes := make([]json.RawMessage, 0, len(snapshot.Nodes))
	for _, n := range snapshot.Nodes {
		raw, err := json.Marshal(n)
		if err != nil {
			return ports.GraphDocument{}, pkgerrors.NewInternalError("failed to encode node " + n.ID.String()).WithCause(err)
		}
		nodes = append(nodes, raw)
	}
	vp := sess.Store.Viewport()
	return ports.GraphDocument{
		ID:        sess.ID,
		OwnerID:   sess.OwnerID,
		Version:   DocumentVersion,
		Nodes:     nodes,
		Edges:     snapshot.Edges,
		Viewport:  &ports.ViewportState{X: vp.X, Y: vp.Y, Zoom: vp.Zoom},
		UpdatedAt: time.Now().UTC(),
	}, nil
}
