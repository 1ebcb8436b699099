package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/resilience"
)

var _ pipeline.Callbacks = (*Metrics)(nil)

func TestMetrics_NodeEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	m.NodeFinished(ctx, pipeline.NodeEvent{Node: "writer", Duration: 2 * time.Second})
	m.NodeFinished(ctx, pipeline.NodeEvent{Node: "writer", Duration: time.Second, Err: errors.New("boom")})
	m.NodeFinished(ctx, pipeline.NodeEvent{Node: "critic", Duration: time.Second})

	assert.Equal(t, 1, testutil.CollectAndCount(m.nodeFailures))
	assert.InDelta(t, 1, testutil.ToFloat64(m.nodeFailures.WithLabelValues("writer")), 0.001)
	assert.Equal(t, 3, testutil.CollectAndCount(m.nodeDuration))

	m.Paused(ctx, "run_1", "outline_review")
	m.Paused(ctx, "run_1", "publish_review")
	m.Paused(ctx, "run_2", "outline_review")
	assert.InDelta(t, 2, testutil.ToFloat64(m.hitlPauses.WithLabelValues("outline_review")), 0.001)

	m.ForcedPass(ctx, "run_1", 3)
	assert.InDelta(t, 1, testutil.ToFloat64(m.forcedPasses), 0.001)

	m.RunStarted("run_1")
	m.RunStarted("run_2")
	assert.InDelta(t, 2, testutil.ToFloat64(m.runsStarted), 0.001)
}

func TestMetrics_BreakerObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	observe := m.BreakerObserver("anthropic")
	assert.InDelta(t, 0, testutil.ToFloat64(m.breakerState.WithLabelValues("anthropic")), 0.001)

	observe(resilience.CircuitClosed, resilience.CircuitOpen)
	assert.InDelta(t, 1, testutil.ToFloat64(m.breakerState.WithLabelValues("anthropic")), 0.001)

	observe(resilience.CircuitOpen, resilience.CircuitHalfOpen)
	assert.InDelta(t, 2, testutil.ToFloat64(m.breakerState.WithLabelValues("anthropic")), 0.001)
}

func TestMetrics_ObserveSnapshotResetsStatuses(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSnapshot(&MetricsSnapshot{Stuck: 3, Published: 1})
	m.ObserveSnapshot(&MetricsSnapshot{Complete: 2})

	assert.InDelta(t, 0, testutil.ToFloat64(m.runs.WithLabelValues(StatusStuck)), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(m.runs.WithLabelValues(StatusComplete)), 0.001)
	assert.Equal(t, len(runStatuses), testutil.CollectAndCount(m.runs))
}

func TestMetrics_RegistersUnderNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RunStarted("run_1")
	m.ObserveSnapshot(&MetricsSnapshot{})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["blog_pipeline_runs_started_total"])
	assert.True(t, names["blog_pipeline_runs"])
	assert.True(t, names["blog_pipeline_forced_passes_total"])
}

type stubPublisher struct {
	publishErr error
	commitErr  error
}

func (s *stubPublisher) Publish(_ context.Context, post model.Post) (model.PublishedPost, error) {
	if s.publishErr != nil {
		return model.PublishedPost{}, s.publishErr
	}
	return model.PublishedPost{URL: "https://example.com/blog/" + post.Slug + "/", Path: post.Slug + ".md"}, nil
}

func (s *stubPublisher) Commit(context.Context, string, []string) error { return s.commitErr }

func TestMetrics_InstrumentPublisher(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	ok := m.InstrumentPublisher(&stubPublisher{})
	pp, err := ok.Publish(ctx, model.Post{Slug: "x", Language: model.LangKO})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/blog/x/", pp.URL)
	require.NoError(t, ok.Commit(ctx, "msg", []string{pp.Path}))

	bad := m.InstrumentPublisher(&stubPublisher{publishErr: errors.New("no repo"), commitErr: errors.New("push rejected")})
	_, err = bad.Publish(ctx, model.Post{Language: model.LangEN})
	require.Error(t, err)
	require.Error(t, bad.Commit(ctx, "msg", []string{"x.md"}))

	assert.InDelta(t, 1, testutil.ToFloat64(m.publishTotal.WithLabelValues("ko", "ok")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.publishTotal.WithLabelValues("en", "error")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.publishTotal.WithLabelValues("all", "commit_error")), 0.001)
}
