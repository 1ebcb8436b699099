package agent

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// Editor polishes each language draft against the style guide. The two
// languages are edited concurrently.
type Editor struct {
	llm
	styleGuide string
}

var languageNames = map[string]string{model.LangKO: "Korean", model.LangEN: "English"}

func (a *Editor) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	cfg := s.Config()
	drafts := map[string]string{}
	if ko := s.Draft(model.LangKO); ko != "" && cfg.OutputLanguage != model.OutputENOnly {
		drafts[model.LangKO] = ko
	}
	if en := s.Draft(model.LangEN); en != "" {
		drafts[model.LangEN] = en
	}
	if err := requireField(a.name, "draft", len(drafts) > 0); err != nil {
		return nil, err
	}

	system := fmt.Sprintf(editorSystem, a.styleGuide)
	upd := &model.PipelineState{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for lang, draft := range drafts {
		g.Go(func() error {
			text, err := a.complete(gctx, prompt{
				system:      system,
				cacheSystem: true,
				user:        fmt.Sprintf("## Draft to Edit (%s)\n\n%s", languageNames[lang], draft),
				maxTokens:   4000,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			upd.SetEdited(lang, text)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return upd, nil
}
