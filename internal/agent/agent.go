// Package agent implements the seven LLM steps of the blog pipeline. Each
// agent reads the run state, calls Claude, and returns a partial state update.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/resilience"
	"github.com/sells-group/blog-pipeline/pkg/anthropic"
)

// Default model IDs.
const (
	DefaultOpusModel   = "claude-opus-4-6"
	DefaultSonnetModel = "claude-sonnet-4-5-20250929"
)

// Deps are the collaborators shared by every agent.
type Deps struct {
	Client anthropic.Client

	// OpusModel serves the research planner and the critic; SonnetModel
	// serves the rest.
	OpusModel   string
	SonnetModel string

	Retry   resilience.RetryConfig
	Breaker *resilience.Breaker

	// MaxRewrites is the rewrite ceiling; the critic turns lenient on the
	// last round.
	MaxRewrites int

	// StyleGuide is the editor's style guide text. Empty uses the embedded
	// default.
	StyleGuide string
}

func (d Deps) withDefaults() Deps {
	if d.OpusModel == "" {
		d.OpusModel = DefaultOpusModel
	}
	if d.SonnetModel == "" {
		d.SonnetModel = DefaultSonnetModel
	}
	if d.StyleGuide == "" {
		d.StyleGuide = defaultStyleGuide
	}
	return d
}

// New builds the full agent set for the blog graph.
func New(d Deps) (pipeline.Agents, error) {
	if d.Client == nil {
		return pipeline.Agents{}, eris.New("agent: anthropic client is required")
	}
	d = d.withDefaults()
	if err := ValidateStyleGuide(d.StyleGuide); err != nil {
		return pipeline.Agents{}, err
	}
	return pipeline.Agents{
		ResearchPlanner: &ResearchPlanner{llm: newLLM(pipeline.NodeResearchPlanner, d.OpusModel, d)},
		Writer:          &Writer{llm: newLLM(pipeline.NodeWriter, d.SonnetModel, d)},
		FactChecker:     &FactChecker{llm: newLLM(pipeline.NodeFactChecker, d.SonnetModel, d)},
		Critic:          &Critic{llm: newLLM(pipeline.NodeCritic, d.OpusModel, d), maxRewrites: d.MaxRewrites},
		Translator:      &Translator{llm: newLLM(pipeline.NodeTranslator, d.SonnetModel, d)},
		Editor:          &Editor{llm: newLLM(pipeline.NodeEditor, d.SonnetModel, d), styleGuide: d.StyleGuide},
		SEOOptimizer:    &SEOOptimizer{llm: newLLM(pipeline.NodeSEOOptimizer, d.SonnetModel, d)},
	}, nil
}

// llm is the Claude call shared by every agent: retries on transient
// errors, circuit breaking, and usage logging.
type llm struct {
	name    string
	model   string
	client  anthropic.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

func newLLM(name, model string, d Deps) llm {
	retry := d.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("anthropic", name)
	}
	return llm{name: name, model: model, client: d.Client, retry: retry, breaker: d.Breaker}
}

// Name returns the node name the agent is registered under.
func (l llm) Name() string { return l.name }

type prompt struct {
	system      string
	cacheSystem bool
	user        string
	maxTokens   int64
	temperature *float64
}

// complete sends p and returns the response text.
func (l llm) complete(ctx context.Context, p prompt) (string, error) {
	req := anthropic.MessageRequest{
		Model:       l.model,
		MaxTokens:   p.maxTokens,
		System:      []anthropic.SystemBlock{{Text: p.system, Cached: p.cacheSystem}},
		Messages:    []anthropic.Message{{Role: "user", Content: p.user}},
		Temperature: p.temperature,
	}
	resp, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.Guard(ctx, l.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return l.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "agent: %s: create message", l.name)
	}
	resp.Usage.LogCost(l.model, l.name)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		zap.L().Warn("agent: empty response",
			zap.String("agent", l.name),
			zap.String("stop_reason", resp.StopReason),
		)
		return "", eris.Errorf("agent: %s: empty response (stop reason %q)", l.name, resp.StopReason)
	}
	return text, nil
}

func formatSources(sources []model.SourceContent, withMeta bool) string {
	parts := make([]string, len(sources))
	for i, src := range sources {
		if withMeta {
			parts[i] = fmt.Sprintf("--- Source %d: %s ---\nType: %s\nOrigin: %s\n\n%s",
				i+1, src.DisplayName(), src.SourceType, src.Origin, src.Content)
			continue
		}
		parts[i] = fmt.Sprintf("--- Source %d: %s ---\n%s", i+1, src.DisplayName(), src.Content)
	}
	return strings.Join(parts, "\n\n")
}

func formatIssues(fc *model.FactCheckResult) string {
	if fc == nil || len(fc.IssuesFound) == 0 {
		return "none"
	}
	lines := make([]string, len(fc.IssuesFound))
	for i, issue := range fc.IssuesFound {
		lines[i] = fmt.Sprintf("[%s] %s: %s", issue.Severity, issue.Claim, issue.Issue)
	}
	return strings.Join(lines, "\n")
}

func requireField(agent, field string, ok bool) error {
	if !ok {
		return eris.Errorf("agent: %s: state has no %s", agent, field)
	}
	return nil
}
