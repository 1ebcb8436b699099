// Package ingest turns source locators (web URLs, PDF files, YouTube videos)
// into normalized SourceContent for a run.
package ingest

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/resilience"
)

// ErrNoSources is returned by IngestAll when every locator failed.
var ErrNoSources = eris.New("ingest: no sources could be ingested")

// Ingester reads one locator.
type Ingester interface {
	Ingest(ctx context.Context, locator string) (model.SourceContent, error)
}

// Options configures the ingesters.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	PdfToTextPath     string
	MaxConcurrency    int
	YouTubeBaseURL    string
	Retry             resilience.RetryConfig
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (compatible; BlogPipeline/1.0)"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 2
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 4
	}
	if o.YouTubeBaseURL == "" {
		o.YouTubeBaseURL = DefaultYouTubeBaseURL
	}
	return o
}

// Router dispatches each locator to the ingester for its source type.
type Router struct {
	url            Ingester
	pdf            Ingester
	youtube        Ingester
	maxConcurrency int
}

// New creates a Router with the URL, PDF and YouTube ingesters.
func New(opts Options) *Router {
	opts = opts.withDefaults()
	client := newHTTPClient(opts)
	return &Router{
		url:            &URLIngester{http: client},
		pdf:            NewPDFIngester(opts.PdfToTextPath),
		youtube:        &YouTubeIngester{http: client, baseURL: opts.YouTubeBaseURL},
		maxConcurrency: opts.MaxConcurrency,
	}
}

// Detect picks the source type of a locator: an existing .pdf file, a
// YouTube video URL, or otherwise a web page.
func Detect(locator string) model.SourceType {
	if strings.HasSuffix(strings.ToLower(locator), ".pdf") {
		if info, err := os.Stat(locator); err == nil && !info.IsDir() {
			return model.SourceTypePDF
		}
	}
	if IsYouTubeURL(locator) {
		return model.SourceTypeYouTube
	}
	return model.SourceTypeURL
}

// Ingest reads locator with the ingester Detect selects.
func (r *Router) Ingest(ctx context.Context, locator string) (model.SourceContent, error) {
	return r.IngestAs(ctx, Detect(locator), locator)
}

// IngestAs reads locator as the given source type.
func (r *Router) IngestAs(ctx context.Context, typ model.SourceType, locator string) (model.SourceContent, error) {
	switch typ {
	case model.SourceTypePDF:
		return r.pdf.Ingest(ctx, locator)
	case model.SourceTypeYouTube:
		return r.youtube.Ingest(ctx, locator)
	case model.SourceTypeURL:
		return r.url.Ingest(ctx, locator)
	}
	return model.SourceContent{}, eris.Errorf("ingest: unknown source type %q", typ)
}

// Locator is one source to ingest. An empty Type is detected.
type Locator struct {
	Type  model.SourceType `json:"type,omitempty"`
	Value string           `json:"value"`
}

// IngestAll reads every locator concurrently and returns the successes in
// input order. Failures are logged and skipped; if none succeed the result
// is ErrNoSources.
func (r *Router) IngestAll(ctx context.Context, locators []Locator) ([]model.SourceContent, error) {
	results := make([]*model.SourceContent, len(locators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)
	for i, loc := range locators {
		g.Go(func() error {
			typ := loc.Type
			if typ == "" {
				typ = Detect(loc.Value)
			}
			start := time.Now()
			src, err := r.IngestAs(gctx, typ, loc.Value)
			if err != nil {
				zap.L().Warn("ingest: source skipped",
					zap.String("locator", loc.Value),
					zap.String("source_type", string(typ)),
					zap.Error(err),
				)
				return nil
			}
			zap.L().Info("ingest: source loaded",
				zap.String("locator", loc.Value),
				zap.String("source_type", string(typ)),
				zap.Int("chars", len(src.Content)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			results[i] = &src
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.SourceContent
	for _, src := range results {
		if src != nil {
			out = append(out, *src)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSources
	}
	return out, nil
}

// Locators converts raw strings into detected Locators.
func Locators(values []string) []Locator {
	out := make([]Locator, len(values))
	for i, v := range values {
		out[i] = Locator{Value: v}
	}
	return out
}
