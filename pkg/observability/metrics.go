package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the engine. Every method is
// safe to call on a nil collector, which records nothing.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Editing metrics
	Mutations      *prometheus.CounterVec
	HistoryDepth   prometheus.Gauge
	Connections    *prometheus.CounterVec
	ChangesDropped prometheus.Counter

	// Job metrics
	JobsStarted   *prometheus.CounterVec
	JobsFinished  *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	PollTicks     *prometheus.CounterVec
	ActivePollers prometheus.Gauge

	// Planner metrics
	PlannerRuns *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_mutations_total",
				Help:      "Graph mutations applied, by operation",
			},
			[]string{"operation"},
		),
		HistoryDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "history_undo_depth",
				Help:      "Undo entries held by the most recently mutated graph",
			},
		),
		Connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_attempts_total",
				Help:      "Connection attempts by result",
			},
			[]string{"result"},
		),
		ChangesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_notifications_dropped_total",
				Help:      "Change notifications dropped because a subscriber was full",
			},
		),
		JobsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_started_total",
				Help:      "Generation jobs started, by node kind",
			},
			[]string{"kind"},
		),
		JobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Generation jobs finished, by node kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Time from generation start to a terminal state",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"kind"},
		),
		PollTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_ticks_total",
				Help:      "Poll requests made for long-running jobs, by result",
			},
			[]string{"result"},
		),
		ActivePollers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_pollers",
				Help:      "Long-running jobs currently being polled",
			},
		),
		PlannerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "planner_runs_total",
				Help:      "Planner invocations by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Mutations,
		c.HistoryDepth,
		c.Connections,
		c.ChangesDropped,
		c.JobsStarted,
		c.JobsFinished,
		c.JobDuration,
		c.PollTicks,
		c.ActivePollers,
		c.PlannerRuns,
	)

	return c
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMutation counts one applied graph mutation
func (c *Collector) RecordMutation(operation string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(operation).Inc()
}

// SetHistoryDepth records the current undo depth
func (c *Collector) SetHistoryDepth(depth int) {
	if c == nil {
		return
	}
	c.HistoryDepth.Set(float64(depth))
}

// RecordConnection counts a connection attempt; result is "accepted" or
// the rejecting rule
func (c *Collector) RecordConnection(result string) {
	if c == nil {
		return
	}
	c.Connections.WithLabelValues(result).Inc()
}

// RecordDroppedChange counts a notification a slow subscriber missed
func (c *Collector) RecordDroppedChange() {
	if c == nil {
		return
	}
	c.ChangesDropped.Inc()
}

// RecordJobStarted counts a job entering the generating state
func (c *Collector) RecordJobStarted(kind string) {
	if c == nil {
		return
	}
	c.JobsStarted.WithLabelValues(kind).Inc()
}

// RecordJobFinished counts a job reaching a terminal state
func (c *Collector) RecordJobFinished(kind, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.JobsFinished.WithLabelValues(kind, outcome).Inc()
	c.JobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordPollTick counts one poll request
func (c *Collector) RecordPollTick(result string) {
	if c == nil {
		return
	}
	c.PollTicks.WithLabelValues(result).Inc()
}

// SetActivePollers records how many pollers are running
func (c *Collector) SetActivePollers(n int) {
	if c == nil {
		return
	}
	c.ActivePollers.Set(float64(n))
}

// RecordPlannerRun counts a planner invocation
func (c *Collector) RecordPlannerRun(outcome string) {
	if c == nil {
		return
	}
	c.PlannerRuns.WithLabelValues(outcome).Inc()
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
