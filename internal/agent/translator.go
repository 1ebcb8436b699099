package agent

import (
	"context"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// Translator adapts the Korean draft into an English post.
type Translator struct {
	llm
}

func (a *Translator) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	draft := s.Draft(model.LangKO)
	if err := requireField(a.name, "draft_ko", draft != ""); err != nil {
		return nil, err
	}
	text, err := a.complete(ctx, prompt{
		system:    translatorSystem,
		user:      "## Korean Blog Post\n\n" + draft,
		maxTokens: 4000,
	})
	if err != nil {
		return nil, err
	}
	return &model.PipelineState{DraftEN: &text}, nil
}
