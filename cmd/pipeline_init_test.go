package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blog-pipeline/internal/config"
	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/store"
	anthropicpkg "github.com/sells-group/blog-pipeline/pkg/anthropic"
)

type failingClient struct{ calls int }

func (c *failingClient) CreateMessage(context.Context, anthropicpkg.MessageRequest) (*anthropicpkg.MessageResponse, error) {
	c.calls++
	return nil, errors.New("anthropic: overloaded")
}

func testConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{Driver: "memory"},
		Anthropic: config.AnthropicConfig{MaxRetries: 1, InitialBackoffMs: 1, MaxBackoffMs: 1},
		Pipeline:  config.PipelineConfig{MaxRewriteAttempts: 3},
		Publish:   config.PublishConfig{OutputDir: "output"},
	}
}

func TestBuildEnv_LocalOnly(t *testing.T) {
	st := store.NewMemory()
	env, err := buildEnv(context.Background(), testConfig(), st, &failingClient{})
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Runner)
	assert.NotNil(t, env.Ingest)
	assert.NotNil(t, env.Saver)
	assert.Nil(t, env.Jekyll)

	families, err := env.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}

func TestBuildEnv_WithJekyll(t *testing.T) {
	c := testConfig()
	c.Publish.JekyllRepoPath = t.TempDir()
	c.Publish.GitHubPagesURL = "https://blog.example.com"

	env, err := buildEnv(context.Background(), c, store.NewMemory(), &failingClient{})
	require.NoError(t, err)
	defer env.Close()
	assert.NotNil(t, env.Jekyll)
}

func TestBuildEnv_Errors(t *testing.T) {
	c := testConfig()
	c.Publish.JekyllRepoPath = t.TempDir()
	c.Publish.Timezone = "Mars/Olympus"
	_, err := buildEnv(context.Background(), c, store.NewMemory(), &failingClient{})
	assert.ErrorContains(t, err, "load timezone")

	c = testConfig()
	c.Pipeline.StyleGuidePath = "/nonexistent/style.yaml"
	_, err = buildEnv(context.Background(), c, store.NewMemory(), &failingClient{})
	assert.ErrorContains(t, err, "read style guide")

	_, err = buildEnv(context.Background(), testConfig(), store.NewMemory(), nil)
	assert.ErrorContains(t, err, "anthropic client is required")
}

func TestBuildEnv_RunFailureIsStuck(t *testing.T) {
	client := &failingClient{}
	env, err := buildEnv(context.Background(), testConfig(), store.NewMemory(), client)
	require.NoError(t, err)
	defer env.Close()

	ctx := context.Background()
	runID, err := env.Runner.Start(ctx, []model.SourceContent{
		{SourceType: model.SourceTypeURL, Origin: "https://example.com/post", Content: "Generics arrived in Go 1.18."},
	}, model.DefaultBlogConfig())
	require.NotEmpty(t, runID)

	var nodeErr *pipeline.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, pipeline.NodeResearchPlanner, nodeErr.Node)
	assert.Positive(t, client.calls)

	st, err := env.Runner.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsStuck)
	assert.Equal(t, pipeline.NodeResearchPlanner, st.NextNode)
}

func TestCommandValidation(t *testing.T) {
	defer func() { cfg = nil }()
	ctx := context.Background()

	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres"}}
	runCmd.SetContext(ctx)
	err := runCmd.RunE(runCmd, []string{"https://example.com"})
	assert.ErrorContains(t, err, "store.database_url is required")

	runPDFs = nil
	err = runCmd.RunE(runCmd, nil)
	assert.ErrorContains(t, err, "at least one source is required")

	cfg = testConfig()
	resumeCmd.SetContext(ctx)
	err = resumeCmd.RunE(resumeCmd, []string{"run_a"})
	assert.ErrorContains(t, err, "exactly one of --outline or --publish")
}
