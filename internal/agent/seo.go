package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// SEOOptimizer produces SEO metadata and the final post for every language
// with an edited draft.
type SEOOptimizer struct {
	llm
}

func (a *SEOOptimizer) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	if err := requireField(a.name, "outline", s.Outline != nil); err != nil {
		return nil, err
	}
	cfg := s.Config()

	var langs []string
	for _, lang := range []string{model.LangKO, model.LangEN} {
		if s.Edited(lang) != "" {
			langs = append(langs, lang)
		}
	}
	if err := requireField(a.name, "edited draft", len(langs) > 0); err != nil {
		return nil, err
	}

	upd := &model.PipelineState{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, lang := range langs {
		g.Go(func() error {
			meta, final, err := a.optimize(gctx, s, cfg, lang)
			if err != nil {
				return err
			}
			mu.Lock()
			upd.SetFinal(lang, meta, final)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return upd, nil
}

func (a *SEOOptimizer) optimize(ctx context.Context, s *model.PipelineState, cfg model.BlogConfig, lang string) (model.SEOMetadata, string, error) {
	config := cfg.PromptSection()
	if cfg.PrimaryKeyword != "" {
		config += "\n- Preferred primary keyword: " + cfg.PrimaryKeyword
	}
	if len(cfg.Categories) > 0 {
		config += "\n- Suggested categories: " + strings.Join(cfg.Categories, ", ")
	}

	draft := s.Edited(lang)
	o := s.Outline
	text, err := a.complete(ctx, prompt{
		system: fmt.Sprintf(seoSystem, lang) + config,
		user: fmt.Sprintf("## Blog Post (%s)\n\n%s\n\n## Topic Info\n\nTopic: %s\nAngle: %s\nTarget Audience: %s",
			strings.ToUpper(lang), draft, o.Topic, o.Angle, o.TargetAudience),
		maxTokens: 8000,
	})
	if err != nil {
		return model.SEOMetadata{}, "", err
	}

	meta, final, err := decodeSplit[model.SEOMetadata](a.name, text)
	if err != nil {
		return model.SEOMetadata{}, "", err
	}
	if final == "" {
		final = draft
	}
	return meta, final, nil
}
