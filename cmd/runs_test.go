package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/monitoring"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/runner"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []runner.Status{
		{
			RunID:        "run_01h455vb4pex5vsknk084sn02q",
			Topic:        "Go Generics in Practice",
			IsComplete:   true,
			IsPublished:  true,
			CriticScore:  model.Ptr(8),
			RewriteCount: 1,
			UpdatedAt:    now,
		},
		{
			RunID:         "run_01h455vb4pex5vsknk084sn03r",
			Topic:         "A very long topic title that will not fit in the column",
			IsInterrupted: true,
			NextNode:      pipeline.NodeOutlineReview,
			UpdatedAt:     now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "TOPIC")
	assert.Contains(t, output, "run_01h455vb4pex5vsknk084sn02q")
	assert.Contains(t, output, "Go Generics in Practice")
	assert.Contains(t, output, "published")
	assert.Contains(t, output, "awaiting outline_review")
	assert.Contains(t, output, "A very long topic title tha...")
	assert.Contains(t, output, "2025-06-15 10:30")
}

func TestFormatRunsList_KoreanTopicTruncatesByRune(t *testing.T) {
	runs := []runner.Status{{RunID: "run_x", Topic: "제네릭을 활용한 고성능 데이터 파이프라인 설계와 운영 경험 공유", IsStuck: true}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	assert.Contains(t, buf.String(), "...")
	assert.Contains(t, buf.String(), "stuck")
}

func TestFormatRunStats(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		RunsTotal:      6,
		Interrupted:    1,
		Stuck:          1,
		Complete:       3,
		Published:      2,
		Rejected:       1,
		StuckRunIDs:    []string{"run_stuck"},
		ScoredRuns:     4,
		AvgCriticScore: 7.75,
		AvgRewrites:    0.5,
		LookbackHours:  24,
	}

	var buf bytes.Buffer
	formatRunStats(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "last 24h")
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "6")
	assert.Contains(t, output, "Avg critic score:")
	assert.Contains(t, output, "7.8 (4 runs)")
	assert.Contains(t, output, "run_stuck")
}

func TestFormatRunStats_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, &monitoring.MetricsSnapshot{})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.NotContains(t, output, "Window:")
	assert.NotContains(t, output, "Avg critic score:")
}
