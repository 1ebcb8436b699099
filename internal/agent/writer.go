package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// Writer drafts the Korean post, or rewrites it when critic feedback exists.
type Writer struct {
	llm
}

// Max tokens for a first draft and for a rewrite.
const (
	writerDraftTokens   = 3000
	writerRewriteTokens = 2500
)

func (a *Writer) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	if err := requireField(a.name, "outline", s.Outline != nil); err != nil {
		return nil, err
	}
	cfg := s.Config()
	rewrite := s.CriticFeedback != nil

	var p prompt
	if rewrite {
		fb := s.CriticFeedback
		p = prompt{
			system: fmt.Sprintf(writerRewriteSystem,
				strings.Join(fb.Weaknesses, "\n"),
				fb.RewriteInstructions,
				formatIssues(s.FactCheck),
				strings.Join(fb.Strengths, "\n"),
			) + cfg.PromptSection(),
			user:      fmt.Sprintf("## Previous Draft\n\n%s\n\n## Outline\n\n%s", s.Draft(model.LangKO), s.Outline.Format()),
			maxTokens: writerRewriteTokens,
		}
	} else {
		user := fmt.Sprintf("## Research Summary\n\n%s\n\n## Outline\n\n%s", s.Summary(), s.Outline.Format())
		if notes := s.Notes(); notes != "" {
			user += "\n\n## Human Notes\n\n" + notes
		}
		p = prompt{
			system:    writerSystem + cfg.PromptSection(),
			user:      user,
			maxTokens: writerDraftTokens,
		}
	}

	draft, err := a.complete(ctx, p)
	if err != nil {
		return nil, err
	}

	count := 0
	if rewrite {
		count = s.Rewrites() + 1
	}
	return &model.PipelineState{DraftKO: &draft, RewriteCount: &count}, nil
}
