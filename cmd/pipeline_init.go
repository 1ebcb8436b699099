package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/agent"
	"github.com/sells-group/blog-pipeline/internal/config"
	"github.com/sells-group/blog-pipeline/internal/ingest"
	"github.com/sells-group/blog-pipeline/internal/monitoring"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/publish"
	"github.com/sells-group/blog-pipeline/internal/resilience"
	"github.com/sells-group/blog-pipeline/internal/runner"
	"github.com/sells-group/blog-pipeline/internal/store"
	anthropicpkg "github.com/sells-group/blog-pipeline/pkg/anthropic"
)

// pipelineEnv holds the store, runner and supporting clients shared by the
// run, resume, status and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Runner   *runner.Runner
	Ingest   *ingest.Router
	Metrics  *monitoring.Metrics
	Registry *prometheus.Registry
	// Jekyll is nil when publish.jekyll_repo_path is not set.
	Jekyll *publish.Jekyll
	Saver  *publish.Saver
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates cfg for mode, opens the store and builds the
// runner. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.ClientOptions{BaseURL: cfg.Anthropic.BaseURL})
	env, err := buildEnv(ctx, cfg, st, client)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}

// buildEnv wires agents, the blog graph, metrics and publishing over an
// opened store.
func buildEnv(ctx context.Context, c *config.Config, st store.Store, client anthropicpkg.Client) (*pipelineEnv, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: c.Anthropic.BreakerThreshold,
		ResetTimeout:     time.Duration(c.Anthropic.BreakerResetSeconds) * time.Second,
		OnStateChange:    metrics.BreakerObserver("anthropic"),
	})

	styleGuide, err := agent.LoadStyleGuide(c.Pipeline.StyleGuidePath)
	if err != nil {
		return nil, err
	}

	agents, err := agent.New(agent.Deps{
		Client:      client,
		OpusModel:   c.Anthropic.OpusModel,
		SonnetModel: c.Anthropic.SonnetModel,
		Retry:       resilience.NewRetryConfig(c.Anthropic.MaxRetries, c.Anthropic.InitialBackoffMs, c.Anthropic.MaxBackoffMs),
		Breaker:     breaker,
		MaxRewrites: c.Pipeline.MaxRewriteAttempts,
		StyleGuide:  styleGuide,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init agents")
	}

	env := &pipelineEnv{
		Store:    st,
		Metrics:  metrics,
		Registry: reg,
		Saver:    publish.NewSaver(c.Publish.OutputDir),
	}

	var pub pipeline.Publisher
	if c.Publish.JekyllRepoPath != "" {
		env.Jekyll, err = publish.NewJekyll(publish.JekyllConfig{
			RepoPath: c.Publish.JekyllRepoPath,
			PagesURL: c.Publish.GitHubPagesURL,
			Timezone: c.Publish.Timezone,
			Push:     c.Publish.GitPush,
		})
		if err != nil {
			return nil, err
		}
		pub = metrics.InstrumentPublisher(env.Jekyll)
	} else {
		zap.L().Debug("publish.jekyll_repo_path not set, posts are saved locally only")
	}

	g, err := pipeline.BuildBlogGraph(agents, pipeline.BlogOptions{
		MaxRewrites: c.Pipeline.MaxRewriteAttempts,
		Publish:     pipeline.PublishNode(pub, env.Saver),
		Callbacks:   metrics,
	})
	if err != nil {
		return nil, eris.Wrap(err, "build blog graph")
	}

	env.Runner = runner.New(st, pipeline.NewEngine(g, st, metrics),
		runner.WithStartHook(metrics.RunStarted),
		runner.WithBackgroundContext(ctx),
	)
	env.Ingest = ingest.New(ingest.Options{
		UserAgent:         c.Ingest.UserAgent,
		Timeout:           time.Duration(c.Ingest.TimeoutSecs) * time.Second,
		RequestsPerSecond: c.Ingest.RequestsPerSecond,
		PdfToTextPath:     c.Ingest.PdfToTextPath,
		MaxConcurrency:    c.Ingest.MaxConcurrency,
		YouTubeBaseURL:    c.Ingest.YouTubeBaseURL,
		Retry:             resilience.DefaultRetryConfig(),
	})
	return env, nil
}
