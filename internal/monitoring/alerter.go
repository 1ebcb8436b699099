package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStuckRuns      AlertType = "stuck_runs"
	AlertLowCriticScore AlertType = "low_critic_score"
)

// minScoredRuns is the sample size below which score alerts are suppressed.
const minScoredRuns = 3

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.StuckRunsThreshold > 0 && snap.Stuck >= a.cfg.StuckRunsThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertStuckRuns,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d run(s) stuck after a failed node in last %dh; retry them with `blog-pipeline retry <id>`",
				snap.Stuck, snap.LookbackHours,
			),
			Details: map[string]any{
				"stuck":     snap.Stuck,
				"run_ids":   snap.StuckRunIDs,
				"threshold": a.cfg.StuckRunsThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MinAvgCriticScore > 0 && snap.ScoredRuns >= minScoredRuns && snap.AvgCriticScore < a.cfg.MinAvgCriticScore {
		alerts = append(alerts, Alert{
			Type:     AlertLowCriticScore,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average critic score %.1f is below %.1f across %d run(s) in last %dh",
				snap.AvgCriticScore, a.cfg.MinAvgCriticScore, snap.ScoredRuns, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_critic_score": snap.AvgCriticScore,
				"threshold":        a.cfg.MinAvgCriticScore,
				"avg_rewrites":     snap.AvgRewrites,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
