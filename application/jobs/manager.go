// Package jobs runs generation for generator nodes: one job lifecycle per
// node, with polling for providers that answer with a remote task.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/realaman90/koda-sub002/application/editor"
	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/domain/config"
	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	"github.com/realaman90/koda-sub002/domain/events"
	"github.com/realaman90/koda-sub002/domain/services"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

// Outcome labels recorded in metrics
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
	OutcomeTimeout   = "timeout"
	OutcomeRemoved   = "removed"
)

// DefaultFailureMessage is written when a provider fails without saying why
const DefaultFailureMessage = "Generation failed"

// run is the live job of one node. A new Generate replaces it; writes from
// a replaced run are dropped.
type run struct {
	token       uint64
	kind        entities.NodeKind
	model       string
	taskID      string
	startedAt   time.Time
	taskStarted time.Time
	stop        func()
	cancelCall  context.CancelFunc
}

func (r *run) halt() {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
	if r.cancelCall != nil {
		r.cancelCall()
		r.cancelCall = nil
	}
}

// Manager owns the job lifecycles of one store
type Manager struct {
	store     *editor.Store
	provider  ports.GenerationProvider
	scheduler Scheduler
	cfg       *config.DomainConfig
	logger    *zap.Logger
	metrics   *observability.Collector
	publisher ports.EventPublisher
	graphID   string
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	runs   map[valueobjects.NodeID]*run
	tokens uint64
	closed bool
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records job activity on c
func WithMetrics(c *observability.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithPublisher sends lifecycle events to p
func WithPublisher(p ports.EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithGraphID tags lifecycle events with the owning graph
func WithGraphID(id string) Option {
	return func(m *Manager) { m.graphID = id }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a job manager for store
func NewManager(store *editor.Store, provider ports.GenerationProvider, scheduler Scheduler, cfg *config.DomainConfig, logger *zap.Logger, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:     store,
		provider:  provider,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		runs:      make(map[valueobjects.NodeID]*run),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start resumes interrupted jobs and follows the store so pollers of
// removed nodes are torn down. Returns the number of resumed jobs.
func (m *Manager) Start(ctx context.Context) int {
	changes := m.store.Subscribe(m.ctx)
	m.wg.Add(1)
	go m.watch(changes)
	return m.Resume(ctx)
}

// Close stops every poller. Node state is left as is, so a later Resume
// picks remote tasks up again.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for id, r := range m.runs {
		r.halt()
		delete(m.runs, id)
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	m.metrics.SetActivePollers(0)
}

// Generate runs node id once. A synchronous provider completes the node
// before Generate returns; an asynchronous one leaves it generating with a
// poller attached. Provider failures are written into the node and also
// returned.
func (m *Manager) Generate(ctx context.Context, id valueobjects.NodeID) error {
	node, ok := m.store.Node(id)
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id.String())
	}
	req, err := BuildRequest(node, m.store.GetConnectedInputs(id))
	if err != nil {
		return err
	}

	ctx, span := observability.StartSpan(ctx, "jobs.generate",
		attribute.String("node.id", id.String()),
		attribute.String("node.kind", node.Kind.String()),
		attribute.String("model", req.Model))
	defer span.End()

	callCtx, cancelCall := context.WithTimeout(ctx, m.cfg.GenerateTimeout)
	defer cancelCall()

	token, err := m.begin(id, node.Kind, req.Model, cancelCall)
	if err != nil {
		return err
	}
	m.emit(events.TypeGenerationStarted, id, node.Kind, req.Model, nil)

	res, err := m.provider.Generate(callCtx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if m.isCurrent(id, token) {
			m.fail(id, token, failureMessage(err), OutcomeFailed)
			return pkgerrors.NewExternalError("generation provider", err)
		}
		return pkgerrors.NewCanceledError("generate " + id.String()).WithCause(err)
	}

	if res.Async {
		if res.TaskID == "" {
			m.fail(id, token, "Provider returned no task id", OutcomeFailed)
			return pkgerrors.NewExternalError("generation provider", fmt.Errorf("async result without task id"))
		}
		model := res.Model
		if model == "" {
			model = req.Model
		}
		if m.submit(id, token, res.TaskID, model) {
			span.SetAttributes(attribute.String("task.id", res.TaskID))
			m.emit(events.TypeGenerationSubmitted, id, node.Kind, model, func(e *events.GenerationEvent) {
				e.TaskID = res.TaskID
			})
		}
		return nil
	}

	m.succeed(id, token, res.OutputURL, res.OutputURLs)
	return nil
}

// Result is the outcome of one node in RunAll
type Result struct {
	NodeID valueobjects.NodeID
	Err    error
}

// RunAll generates every node in ids with bounded parallelism. A failing
// node does not stop its siblings and completion order is not defined.
// Results are returned in input order.
func (m *Manager) RunAll(ctx context.Context, ids []valueobjects.NodeID) []Result {
	results := make([]Result, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(max(1, m.cfg.MaxConcurrentJobs))
	for i, id := range ids {
		results[i].NodeID = id
		g.Go(func() error {
			results[i].Err = m.Generate(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Cancel stops the job of node id. The remote provider is asked to stop
// when it supports that; otherwise the task is simply abandoned.
func (m *Manager) Cancel(ctx context.Context, id valueobjects.NodeID) error {
	node, ok := m.store.Node(id)
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id.String())
	}
	gen, ok := node.Generator()
	if !ok {
		return pkgerrors.NewValidationError("node " + id.String() + " cannot generate")
	}
	taskID, model := gen.Generation().TaskID, gen.Generation().TaskModel

	m.mu.Lock()
	r := m.runs[id]
	if r != nil {
		delete(m.runs, id)
		r.halt()
		if r.taskID != "" {
			taskID, model = r.taskID, r.model
		}
	}
	m.store.UpdateGeneration(id, func(s entities.GenerationStatus) entities.GenerationStatus {
		s.IsGenerating = false
		s.ClearTask()
		return s
	})
	active := m.activeLocked()
	m.mu.Unlock()

	m.metrics.SetActivePollers(active)
	if r != nil {
		m.metrics.RecordJobFinished(r.kind.String(), OutcomeCanceled, m.now().Sub(r.startedAt))
	}

	if c, ok := m.provider.(ports.Canceler); ok && taskID != "" {
		if err := c.Cancel(ctx, taskID, model); err != nil {
			m.logger.Warn("Provider cancel failed",
				zap.String("nodeID", id.String()),
				zap.String("taskID", taskID),
				zap.Error(err))
		}
	}

	m.emit(events.TypeGenerationCanceled, id, node.Kind, model, func(e *events.GenerationEvent) {
		e.TaskID = taskID
	})
	m.logger.Info("Generation canceled", zap.String("nodeID", id.String()))
	return nil
}

// Resume attaches pollers to every generating node that has a remote task
// and no live run. Generating nodes without a task can never finish and
// are failed. Returns the number of resumed jobs.
func (m *Manager) Resume(ctx context.Context) int {
	_, span := observability.StartSpan(ctx, "jobs.resume")
	defer span.End()

	resumed := 0
	for _, n := range m.store.Snapshot().Nodes {
		gen, ok := n.Generator()
		if !ok || !gen.Generation().IsGenerating {
			continue
		}
		status := gen.Generation()

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			break
		}
		if _, running := m.runs[n.ID]; running {
			m.mu.Unlock()
			continue
		}
		if !status.HasTask() {
			m.store.UpdateGeneration(n.ID, func(s entities.GenerationStatus) entities.GenerationStatus {
				s.IsGenerating = false
				s.Error = services.InterruptedMessage
				return s
			})
			m.mu.Unlock()
			m.logger.Warn("Generation interrupted without a remote task", zap.String("nodeID", n.ID.String()))
			continue
		}

		model := status.TaskModel
		if model == "" {
			model = gen.ModelID()
		}
		taskStarted := m.now()
		if status.TaskStartedAt != nil {
			taskStarted = *status.TaskStartedAt
		}
		m.tokens++
		r := &run{
			token:       m.tokens,
			kind:        n.Kind,
			model:       model,
			taskID:      status.TaskID,
			startedAt:   m.now(),
			taskStarted: taskStarted,
		}
		m.runs[n.ID] = r
		m.startPollingLocked(n.ID, r)
		m.mu.Unlock()

		resumed++
		m.logger.Info("Resumed polling",
			zap.String("nodeID", n.ID.String()),
			zap.String("taskID", status.TaskID))
	}

	span.SetAttributes(attribute.Int("jobs.resumed", resumed))
	m.metrics.SetActivePollers(m.Active())
	return resumed
}

// IsRunning reports whether node id has a live job
func (m *Manager) IsRunning(id valueobjects.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[id]
	return ok
}

// Active returns the number of attached pollers
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// Private helper methods

func (m *Manager) begin(id valueobjects.NodeID, kind entities.NodeKind, model string, cancelCall context.CancelFunc) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, pkgerrors.NewCanceledError("generate " + id.String())
	}

	if prev, ok := m.runs[id]; ok {
		prev.halt()
		m.logger.Debug("Superseding running job", zap.String("nodeID", id.String()))
	}
	m.tokens++
	r := &run{token: m.tokens, kind: kind, model: model, startedAt: m.now(), cancelCall: cancelCall}
	m.runs[id] = r

	m.store.UpdateGeneration(id, func(s entities.GenerationStatus) entities.GenerationStatus {
		s.IsGenerating = true
		s.Error = ""
		s.Progress = 0
		s.ClearTask()
		return s
	})
	m.metrics.RecordJobStarted(kind.String())
	return r.token, nil
}

func (m *Manager) isCurrent(id valueobjects.NodeID, token uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	return ok && r.token == token
}

// submit records the remote task and attaches a poller
func (m *Manager) submit(id valueobjects.NodeID, token uint64, taskID, model string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.token != token {
		return false
	}
	// the synchronous call is over; Cancel must not cancel the caller's context
	r.cancelCall = nil
	r.taskID = taskID
	r.model = model
	r.taskStarted = m.now()
	started := r.taskStarted

	m.store.UpdateGeneration(id, func(s entities.GenerationStatus) entities.GenerationStatus {
		s.IsGenerating = true
		s.TaskID = taskID
		s.TaskModel = model
		s.TaskStatus = entities.TaskPending
		s.TaskStartedAt = &started
		return s
	})
	m.startPollingLocked(id, r)
	m.logger.Debug("Generation submitted",
		zap.String("nodeID", id.String()),
		zap.String("taskID", taskID),
		zap.String("model", model))
	return true
}

func (m *Manager) startPollingLocked(id valueobjects.NodeID, r *run) {
	token := r.token
	r.stop = m.scheduler.Every(m.cfg.PollInterval, func() { m.poll(id, token) })
	m.metrics.SetActivePollers(m.activeLocked())
}

func (m *Manager) activeLocked() int {
	n := 0
	for _, r := range m.runs {
		if r.stop != nil {
			n++
		}
	}
	return n
}

// poll is one tick of a node's poller
func (m *Manager) poll(id valueobjects.NodeID, token uint64) {
	m.mu.Lock()
	r, ok := m.runs[id]
	if !ok || r.token != token || m.closed {
		m.mu.Unlock()
		return
	}
	taskID, model, taskStarted, kind := r.taskID, r.model, r.taskStarted, r.kind
	m.mu.Unlock()

	node, ok := m.store.Node(id)
	if !ok {
		m.drop(id, token)
		return
	}
	if gen, isGen := node.Generator(); !isGen || !gen.Generation().IsGenerating {
		m.drop(id, token)
		return
	}

	if m.now().Sub(taskStarted) > m.cfg.MaxPollDuration {
		m.metrics.RecordPollTick(OutcomeTimeout)
		msg := fmt.Sprintf("Generation timed out after %s", m.cfg.MaxPollDuration)
		m.fail(id, token, msg, OutcomeTimeout)
		return
	}

	ctx, span := observability.StartSpan(m.ctx, "jobs.poll",
		attribute.String("node.id", id.String()),
		attribute.String("task.id", taskID))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, m.cfg.GenerateTimeout)
	defer cancel()

	res, err := m.provider.Poll(ctx, taskID, model)
	if err != nil {
		span.RecordError(err)
		m.metrics.RecordPollTick("error")
		m.logger.Warn("Poll failed, retrying on next tick",
			zap.String("nodeID", id.String()),
			zap.String("taskID", taskID),
			zap.Error(err))
		return
	}
	m.metrics.RecordPollTick(string(res.Status))

	switch res.Status {
	case ports.PollCompleted:
		if res.OutputURL == "" && len(res.OutputURLs) == 0 {
			m.fail(id, token, "Provider returned no output", OutcomeFailed)
			return
		}
		m.succeed(id, token, res.OutputURL, res.OutputURLs)
	case ports.PollFailed:
		msg := res.Error
		if msg == "" {
			msg = DefaultFailureMessage
		}
		m.fail(id, token, msg, OutcomeFailed)
	default:
		m.progress(id, token, res)
		m.logger.Debug("Task still running",
			zap.String("nodeID", id.String()),
			zap.String("kind", kind.String()),
			zap.String("status", string(res.Status)))
	}
}

func (m *Manager) progress(id valueobjects.NodeID, token uint64, res ports.PollResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.token != token {
		return
	}
	m.store.UpdateGeneration(id, func(s entities.GenerationStatus) entities.GenerationStatus {
		if res.Status == ports.PollProcessing {
			s.TaskStatus = entities.TaskProcessing
		} else {
			s.TaskStatus = entities.TaskPending
		}
		if res.Progress > s.Progress {
			s.Progress = res.Progress
		}
		return s
	})
}

// finish ends the run if token is still current, applying fn to the
// node's status in the same step.
func (m *Manager) finish(id valueobjects.NodeID, token uint64, outcome string, fn func(*entities.GenerationStatus)) (*run, bool) {
	m.mu.Lock()
	r, ok := m.runs[id]
	if !ok || r.token != token {
		m.mu.Unlock()
		return nil, false
	}
	delete(m.runs, id)
	r.halt()
	m.store.UpdateGeneration(id, func(s entities.GenerationStatus) entities.GenerationStatus {
		fn(&s)
		s.IsGenerating = false
		s.ClearTask()
		return s
	})
	active := m.activeLocked()
	m.mu.Unlock()

	m.metrics.SetActivePollers(active)
	m.metrics.RecordJobFinished(r.kind.String(), outcome, m.now().Sub(r.startedAt))
	return r, true
}

func (m *Manager) succeed(id valueobjects.NodeID, token uint64, url string, urls []string) {
	if url == "" && len(urls) > 0 {
		url = urls[0]
	}
	r, ok := m.finish(id, token, OutcomeSucceeded, func(s *entities.GenerationStatus) {
		s.OutputURL = url
		s.OutputURLs = append([]string(nil), urls...)
		s.Error = ""
		s.Progress = 100
	})
	if !ok {
		return
	}
	m.logger.Info("Generation succeeded",
		zap.String("nodeID", id.String()),
		zap.String("outputURL", url))
	m.emit(events.TypeGenerationSucceeded, id, r.kind, r.model, func(e *events.GenerationEvent) {
		e.TaskID = r.taskID
		e.OutputURLs = append([]string{url}, urls...)
	})
}

// fail records msg; prior outputs stay visible as the last good result
func (m *Manager) fail(id valueobjects.NodeID, token uint64, msg, outcome string) {
	r, ok := m.finish(id, token, outcome, func(s *entities.GenerationStatus) {
		s.Error = msg
	})
	if !ok {
		return
	}
	m.logger.Warn("Generation failed",
		zap.String("nodeID", id.String()),
		zap.String("outcome", outcome),
		zap.String("error", msg))
	m.emit(events.TypeGenerationFailed, id, r.kind, r.model, func(e *events.GenerationEvent) {
		e.TaskID = r.taskID
		e.Error = msg
	})
}

// drop tears down the run of a node that left the graph or stopped
// generating elsewhere. The node is not written to.
func (m *Manager) drop(id valueobjects.NodeID, token uint64) {
	m.mu.Lock()
	r, ok := m.runs[id]
	if !ok || (token != 0 && r.token != token) {
		m.mu.Unlock()
		return
	}
	delete(m.runs, id)
	r.halt()
	active := m.activeLocked()
	m.mu.Unlock()

	m.metrics.SetActivePollers(active)
	m.metrics.RecordJobFinished(r.kind.String(), OutcomeRemoved, m.now().Sub(r.startedAt))
	m.logger.Debug("Stopped job of detached node", zap.String("nodeID", id.String()))
}

// watch follows store changes until the manager closes
func (m *Manager) watch(changes <-chan events.Change) {
	defer m.wg.Done()
	for c := range changes {
		switch c.Type {
		case events.NodeRemoved:
			m.drop(c.NodeID, 0)
		case events.GraphRestored, events.GraphCleared:
			m.reconcile()
		}
	}
}

// reconcile drops runs whose node is gone and resumes nodes that came back
// with a remote task, e.g. after undoing a delete.
func (m *Manager) reconcile() {
	m.mu.Lock()
	ids := make([]valueobjects.NodeID, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, ok := m.store.Node(id); !ok {
			m.drop(id, 0)
		}
	}
	m.Resume(m.ctx)
}

func (m *Manager) emit(eventType string, id valueobjects.NodeID, kind entities.NodeKind, model string, fn func(*events.GenerationEvent)) {
	if m.publisher == nil {
		return
	}
	ev := events.NewGenerationEvent(eventType, id, kind.String(), model, m.now())
	ev.GraphID = m.graphID
	if fn != nil {
		fn(&ev)
	}
	if err := m.publisher.Publish(m.ctx, ev); err != nil {
		m.logger.Warn("Failed to publish generation event",
			zap.String("eventType", eventType),
			zap.String("nodeID", id.String()),
			zap.Error(err))
	}
}

// failureMessage is the text written into a node for a provider error
func failureMessage(err error) string {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		return err.Error()
	}
	if appErr.Type == pkgerrors.ErrorTypeExternal && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return appErr.Message
}
