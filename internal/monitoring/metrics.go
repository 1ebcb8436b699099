// Package monitoring exports pipeline metrics to Prometheus and runs a
// background checker that alerts on unhealthy runs.
package monitoring

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/resilience"
)

const namespace = "blog_pipeline"

// Run status labels of the runs gauge.
const (
	StatusInterrupted = "interrupted"
	StatusRunning     = "running"
	StatusStuck       = "stuck"
	StatusComplete    = "complete"
	StatusRejected    = "rejected"
	StatusPublished   = "published"
)

var runStatuses = []string{StatusInterrupted, StatusRunning, StatusStuck, StatusComplete, StatusRejected, StatusPublished}

// Metrics records pipeline activity. It implements pipeline.Callbacks.
type Metrics struct {
	nodeDuration *prometheus.HistogramVec
	nodeFailures *prometheus.CounterVec
	runsStarted  prometheus.Counter
	hitlPauses   *prometheus.CounterVec
	forcedPasses prometheus.Counter
	publishTotal *prometheus.CounterVec
	runs         *prometheus.GaugeVec
	breakerState *prometheus.GaugeVec
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		nodeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"node", "status"}),
		nodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_failures_total",
			Help:      "Total number of failed node executions",
		}, []string{"node"}),
		runsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of runs started",
		}),
		hitlPauses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hitl_pauses_total",
			Help:      "Total number of pauses at human review gates",
		}, []string{"node"}),
		forcedPasses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_passes_total",
			Help:      "Total number of drafts forwarded after exhausting rewrites",
		}),
		publishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of publish attempts by language and outcome",
		}, []string{"language", "status"}),
		runs: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs",
			Help:      "Runs updated within the lookback window, by status",
		}, []string{"status"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),
	}
}

func (m *Metrics) NodeFinished(_ context.Context, ev pipeline.NodeEvent) {
	status := "ok"
	if ev.Err != nil {
		status = "error"
		m.nodeFailures.WithLabelValues(ev.Node).Inc()
	}
	m.nodeDuration.WithLabelValues(ev.Node, status).Observe(ev.Duration.Seconds())
}

func (m *Metrics) Paused(_ context.Context, _ string, gate string) {
	m.hitlPauses.WithLabelValues(gate).Inc()
}

func (m *Metrics) ForcedPass(context.Context, string, int) {
	m.forcedPasses.Inc()
}

// RunStarted counts a new run. It matches runner.WithStartHook.
func (m *Metrics) RunStarted(string) {
	m.runsStarted.Inc()
}

// BreakerObserver returns a resilience.BreakerConfig.OnStateChange callback
// that tracks the named breaker.
func (m *Metrics) BreakerObserver(name string) func(from, to resilience.CircuitState) {
	m.breakerState.WithLabelValues(name).Set(float64(resilience.CircuitClosed))
	return func(_, to resilience.CircuitState) {
		m.breakerState.WithLabelValues(name).Set(float64(to))
	}
}

// ObserveSnapshot sets the runs gauge from a collected snapshot.
func (m *Metrics) ObserveSnapshot(snap *MetricsSnapshot) {
	counts := map[string]int{
		StatusInterrupted: snap.Interrupted,
		StatusRunning:     snap.Running,
		StatusStuck:       snap.Stuck,
		StatusComplete:    snap.Complete,
		StatusRejected:    snap.Rejected,
		StatusPublished:   snap.Published,
	}
	for _, s := range runStatuses {
		m.runs.WithLabelValues(s).Set(float64(counts[s]))
	}
}

// InstrumentPublisher counts every publish attempt made through next.
func (m *Metrics) InstrumentPublisher(next pipeline.Publisher) pipeline.Publisher {
	return &instrumentedPublisher{next: next, m: m}
}

type instrumentedPublisher struct {
	next pipeline.Publisher
	m    *Metrics
}

func (p *instrumentedPublisher) Publish(ctx context.Context, post model.Post) (model.PublishedPost, error) {
	pp, err := p.next.Publish(ctx, post)
	p.m.publishTotal.WithLabelValues(post.Language, outcome(err)).Inc()
	return pp, err
}

func (p *instrumentedPublisher) Commit(ctx context.Context, message string, paths []string) error {
	err := p.next.Commit(ctx, message, paths)
	if err != nil {
		p.m.publishTotal.WithLabelValues("all", "commit_error").Inc()
	}
	return err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
