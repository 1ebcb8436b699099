package publish

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// outputFrontMatter is the header of a locally saved post.
type outputFrontMatter struct {
	Title             string   `yaml:"title"`
	Date              string   `yaml:"date"`
	Language          string   `yaml:"language"`
	MetaDescription   string   `yaml:"meta_description,omitempty"`
	PrimaryKeyword    string   `yaml:"primary_keyword,omitempty"`
	SecondaryKeywords []string `yaml:"secondary_keywords,omitempty,flow"`
	Slug              string   `yaml:"slug,omitempty"`
	CriticScore       *int     `yaml:"critic_score,omitempty"`
	RewriteCount      int      `yaml:"rewrite_count"`
	FactCheckAccuracy *float64 `yaml:"fact_check_accuracy,omitempty"`
	BlogURL           string   `yaml:"blog_url,omitempty"`
	PipelineID        string   `yaml:"pipeline_id,omitempty"`
}

// Saver writes finished posts to <dir>/<slug>_<lang>.md.
type Saver struct {
	dir string
	now func() time.Time
}

// NewSaver creates a Saver rooted at dir.
func NewSaver(dir string) *Saver {
	if dir == "" {
		dir = "output"
	}
	return &Saver{dir: dir, now: time.Now}
}

// Dir returns the output directory.
func (s *Saver) Dir() string { return s.dir }

// Save writes one file per language that has a finished or edited body.
func (s *Saver) Save(_ context.Context, runID string, st *model.PipelineState) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "publish: create output dir %s", s.dir)
	}

	var saved []string
	for _, lang := range []string{model.LangKO, model.LangEN} {
		body := st.Body(lang)
		if body == "" {
			continue
		}
		path, err := s.saveOne(runID, st, lang, body)
		if err != nil {
			return saved, err
		}
		zap.L().Info("publish: saved post",
			zap.String("run_id", runID),
			zap.String("language", lang),
			zap.String("path", path),
		)
		saved = append(saved, path)
	}
	return saved, nil
}

func (s *Saver) saveOne(runID string, st *model.PipelineState, lang, body string) (string, error) {
	var topic string
	if st.Outline != nil {
		topic = st.Outline.Topic
	}

	fm := outputFrontMatter{
		Title:        topic,
		Date:         s.now().Format(time.DateOnly),
		Language:     lang,
		RewriteCount: st.Rewrites(),
		BlogURL:      st.BlogURL(lang),
		PipelineID:   runID,
	}
	var suggested string
	if seo := st.SEO(lang); seo != nil {
		suggested = seo.SuggestedSlug
		if seo.OptimizedTitle != "" {
			fm.Title = seo.OptimizedTitle
		}
		fm.MetaDescription = seo.MetaDescription
		fm.PrimaryKeyword = seo.PrimaryKeyword
		fm.SecondaryKeywords = seo.SecondaryKeywords
		fm.Slug = seo.SuggestedSlug
	}
	if st.CriticFeedback != nil {
		fm.CriticScore = model.Ptr(st.CriticFeedback.Score)
	}
	if st.FactCheck != nil {
		fm.FactCheckAccuracy = model.Ptr(st.FactCheck.OverallAccuracy)
	}

	data, err := renderDocument(fm, body)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, slugFor(suggested, topic)+"_"+lang+".md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "publish: write %s", path)
	}
	return path, nil
}
