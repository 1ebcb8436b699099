package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/runner"
	"github.com/sells-group/blog-pipeline/internal/store"
)

// fakeLister implements RunLister for testing.
type fakeLister struct {
	runs    []runner.Status
	err     error
	filters []store.CheckpointFilter
}

func (f *fakeLister) List(_ context.Context, filter store.CheckpointFilter) ([]runner.Status, error) {
	f.filters = append(f.filters, filter)
	return f.runs, f.err
}

func sampleRuns() []runner.Status {
	return []runner.Status{
		{RunID: "run_a", IsInterrupted: true, NextNode: "outline_review"},
		{RunID: "run_b", IsStuck: true, NextNode: "writer", LastError: "boom", RewriteCount: 1},
		{RunID: "run_c", IsRunning: true, NextNode: "critic"},
		{RunID: "run_d", IsComplete: true, IsPublished: true, CriticScore: model.Ptr(8), RewriteCount: 2},
		{RunID: "run_e", IsComplete: true, IsRejected: true},
		{RunID: "run_f", IsComplete: true, CriticScore: model.Ptr(6), RewriteCount: 3},
		{RunID: "run_g", IsStuck: true, NextNode: "editor"},
	}
}

func TestCollector_Collect(t *testing.T) {
	lister := &fakeLister{runs: sampleRuns()}
	c := NewCollector(lister)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 7, snap.RunsTotal)
	assert.Equal(t, 1, snap.Interrupted)
	assert.Equal(t, 1, snap.Running)
	assert.Equal(t, 2, snap.Stuck)
	assert.Equal(t, []string{"run_b", "run_g"}, snap.StuckRunIDs)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Rejected)
	assert.Equal(t, 1, snap.Published)
	assert.Equal(t, 2, snap.ScoredRuns)
	assert.InDelta(t, 7.0, snap.AvgCriticScore, 0.001)
	assert.InDelta(t, 6.0/7.0, snap.AvgRewrites, 0.001)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, now, snap.CollectedAt)

	require.Len(t, lister.filters, 1)
	assert.Equal(t, now.Add(-24*time.Hour), lister.filters[0].UpdatedAfter)
	assert.Equal(t, 10000, lister.filters[0].Limit)
}

func TestCollector_NoLookback(t *testing.T) {
	lister := &fakeLister{}
	snap, err := NewCollector(lister).Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.AvgCriticScore)
	assert.True(t, lister.filters[0].UpdatedAfter.IsZero())
}

func TestCollector_ListError(t *testing.T) {
	_, err := NewCollector(&fakeLister{err: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
