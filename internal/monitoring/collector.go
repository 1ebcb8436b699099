package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/runner"
	"github.com/sells-group/blog-pipeline/internal/store"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs updated within the lookback window.
	RunsTotal   int `json:"runs_total"`
	Interrupted int `json:"interrupted"`
	Running     int `json:"running"`
	Stuck       int `json:"stuck"`
	Complete    int `json:"complete"`
	Rejected    int `json:"rejected"`
	Published   int `json:"published"`

	// StuckRunIDs lists the stuck runs, newest first.
	StuckRunIDs []string `json:"stuck_run_ids,omitempty"`

	ScoredRuns     int     `json:"scored_runs"`
	AvgCriticScore float64 `json:"avg_critic_score"`
	AvgRewrites    float64 `json:"avg_rewrites"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister lists run statuses. *runner.Runner implements it.
type RunLister interface {
	List(ctx context.Context, filter store.CheckpointFilter) ([]runner.Status, error)
}

// Collector gathers run metrics from the checkpoint store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	filter := store.CheckpointFilter{Limit: 10000}
	if lookbackHours > 0 {
		filter.UpdatedAfter = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}
	runs, err := c.runs.List(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalScore, totalRewrites int
	for _, r := range runs {
		switch {
		case r.IsInterrupted:
			snap.Interrupted++
		case r.IsRunning:
			snap.Running++
		case r.IsStuck:
			snap.Stuck++
			snap.StuckRunIDs = append(snap.StuckRunIDs, r.RunID)
		case r.IsComplete && r.IsRejected:
			snap.Rejected++
		case r.IsComplete:
			snap.Complete++
		}
		if r.IsPublished {
			snap.Published++
		}
		if r.CriticScore != nil {
			totalScore += *r.CriticScore
			snap.ScoredRuns++
		}
		totalRewrites += r.RewriteCount
	}

	if snap.ScoredRuns > 0 {
		snap.AvgCriticScore = float64(totalScore) / float64(snap.ScoredRuns)
	}
	if snap.RunsTotal > 0 {
		snap.AvgRewrites = float64(totalRewrites) / float64(snap.RunsTotal)
	}
	return snap, nil
}
