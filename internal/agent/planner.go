package agent

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// ResearchPlanner analyzes the sources and proposes an outline.
type ResearchPlanner struct {
	llm
}

func (a *ResearchPlanner) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	if err := requireField(a.name, "sources", len(s.Sources) > 0); err != nil {
		return nil, err
	}
	cfg := s.Config()

	text, err := a.complete(ctx, prompt{
		system:    plannerSystem + cfg.PromptSection(),
		user:      formatSources(s.Sources, true),
		maxTokens: 4096,
	})
	if err != nil {
		return nil, err
	}

	outline, summary, err := decodeSplit[model.Outline](a.name, text)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(outline.Topic) == "" {
		return nil, eris.Errorf("agent: %s: outline has no topic", a.name)
	}
	if summary == "" {
		summary = "Research analysis for: " + outline.Topic
	}
	return &model.PipelineState{Outline: &outline, ResearchSummary: &summary}, nil
}
