package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/resilience"
	"github.com/sells-group/blog-pipeline/pkg/anthropic"
)

// fakeClient answers CreateMessage through reply and records every request.
type fakeClient struct {
	reply func(call int, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)

	mu   sync.Mutex
	reqs []anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	call := len(f.reqs)
	f.mu.Unlock()
	return f.reply(call, req)
}

func (f *fakeClient) requests() []anthropic.MessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]anthropic.MessageRequest(nil), f.reqs...)
}

func replying(text string) *fakeClient {
	return &fakeClient{reply: func(int, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse(text), nil
	}}
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func testDeps(c anthropic.Client) Deps {
	return Deps{
		Client: c,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
	}
}

func newAgents(t *testing.T, c anthropic.Client) pipeline.Agents {
	t.Helper()
	agents, err := New(testDeps(c))
	require.NoError(t, err)
	return agents
}

func outlinedState() *model.PipelineState {
	return &model.PipelineState{
		Sources: []model.SourceContent{{
			SourceType: model.SourceTypeURL,
			Origin:     "https://example.com/agents",
			Title:      "Agent Patterns",
			Content:    "Agents separate planning from execution.",
		}},
		BlogConfig:      model.Ptr(model.DefaultBlogConfig()),
		ResearchSummary: model.Ptr("Sources agree on separation of concerns."),
		Outline: &model.Outline{
			Topic:          "AI Agent Design Patterns",
			Angle:          "Practical trade-offs",
			TargetAudience: "backend engineers",
			KeyPoints:      []string{"planning", "execution"},
			Structure:      []model.OutlineSection{{Heading: "Intro", KeyPoints: []string{"hook"}}},
		},
		RewriteCount: model.Ptr(0),
	}
}
