package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/store"
)

type funcAgent struct {
	name string
	fn   func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error)
}

func (a funcAgent) Name() string { return a.name }

func (a funcAgent) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	return a.fn(ctx, s)
}

func static(name string, upd func(s *model.PipelineState) *model.PipelineState) funcAgent {
	return funcAgent{name: name, fn: func(_ context.Context, s *model.PipelineState) (*model.PipelineState, error) {
		return upd(s), nil
	}}
}

func healthyAgents() pipeline.Agents {
	return pipeline.Agents{
		ResearchPlanner: static(pipeline.NodeResearchPlanner, func(*model.PipelineState) *model.PipelineState {
			return &model.PipelineState{Outline: &model.Outline{Topic: "Go Generics"}, ResearchSummary: model.Ptr("summary")}
		}),
		Writer: static(pipeline.NodeWriter, func(*model.PipelineState) *model.PipelineState {
			return &model.PipelineState{DraftKO: model.Ptr("초안"), RewriteCount: model.Ptr(0)}
		}),
		FactChecker: static(pipeline.NodeFactChecker, func(*model.PipelineState) *model.PipelineState {
			return &model.PipelineState{FactCheck: &model.FactCheckResult{ClaimsChecked: 2, OverallAccuracy: 1}}
		}),
		Critic: static(pipeline.NodeCritic, func(*model.PipelineState) *model.PipelineState {
			return &model.PipelineState{CriticFeedback: &model.CriticFeedback{Verdict: model.VerdictPass, Score: 8}}
		}),
		Translator: static(pipeline.NodeTranslator, func(*model.PipelineState) *model.PipelineState {
			return &model.PipelineState{DraftEN: model.Ptr("draft")}
		}),
		Editor: static(pipeline.NodeEditor, func(s *model.PipelineState) *model.PipelineState {
			upd := &model.PipelineState{}
			for _, lang := range s.Config().Languages() {
				upd.SetEdited(lang, "edited")
			}
			return upd
		}),
		SEOOptimizer: static(pipeline.NodeSEOOptimizer, func(s *model.PipelineState) *model.PipelineState {
			upd := &model.PipelineState{}
			for _, lang := range s.Config().Languages() {
				upd.SetFinal(lang, model.SEOMetadata{OptimizedTitle: "Go Generics"}, "final")
			}
			return upd
		}),
	}
}

type nopSaver struct{}

func (nopSaver) Save(context.Context, string, *model.PipelineState) ([]string, error) {
	return []string{"output/post_ko.md"}, nil
}

func newTestRunner(t *testing.T, agents pipeline.Agents, opts ...Option) (*Runner, store.Store) {
	t.Helper()
	st := store.NewMemory()
	g, err := pipeline.BuildBlogGraph(agents, pipeline.BlogOptions{Publish: pipeline.PublishNode(nil, nopSaver{})})
	require.NoError(t, err)
	return New(st, pipeline.NewEngine(g, st, nil), opts...), st
}

func sources() []model.SourceContent {
	return []model.SourceContent{{SourceType: model.SourceTypeURL, Origin: "https://go.dev/blog", Content: "generics"}}
}

func TestRunner_StartPausesAtOutline(t *testing.T) {
	var started []string
	r, _ := newTestRunner(t, healthyAgents(), WithStartHook(func(id string) { started = append(started, id) }))
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)
	assert.Regexp(t, `^run_[0-9a-z]{26}$`, runID)
	assert.Equal(t, []string{runID}, started)

	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsInterrupted)
	assert.False(t, st.IsStuck)
	assert.False(t, st.IsComplete)
	assert.Equal(t, pipeline.NodeOutlineReview, st.NextNode)
	assert.Equal(t, pipeline.NodeResearchPlanner, st.CurrentStep)
	assert.True(t, st.HasOutline)
	assert.Equal(t, "Go Generics", st.Topic)

	state, err := r.GetState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.OutputBoth, state.Config().OutputLanguage)
	assert.Equal(t, 0, state.Rewrites())
	assert.Len(t, state.Sources, 1)
}

func TestRunner_StartValidation(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())

	_, err := r.Start(context.Background(), nil, model.BlogConfig{})
	assert.ErrorIs(t, err, ErrNoSources)

	_, err = r.Start(context.Background(), sources(), model.BlogConfig{OutputLanguage: "fr-only"})
	assert.ErrorContains(t, err, "invalid blog config")
}

func TestRunner_FullApprovalFlow(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)

	require.NoError(t, r.ResumeOutline(ctx, runID, model.OutlineReview{Decision: model.DecisionApprove}))
	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsInterrupted)
	assert.Equal(t, pipeline.NodePublishReview, st.NextNode)
	assert.Equal(t, pipeline.NodeSEOOptimizer, st.CurrentStep)
	assert.True(t, st.HasDraftKO)
	assert.True(t, st.HasDraftEN)
	assert.True(t, st.HasFinalKO)
	assert.True(t, st.HasFinalEN)
	require.NotNil(t, st.CriticScore)
	assert.Equal(t, 8, *st.CriticScore)

	require.NoError(t, r.ResumePublish(ctx, runID, model.PublishReview{Decision: model.DecisionApprove}))
	st, err = r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsComplete)
	assert.False(t, st.IsInterrupted)
	assert.False(t, st.IsStuck)
	assert.False(t, st.IsRejected)
	assert.Equal(t, pipeline.NodePublish, st.CurrentStep)

	state, err := r.GetState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"output/post_ko.md"}, state.SavedPaths)
}

func TestRunner_RejectIsTerminalAndQueryable(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)
	require.NoError(t, r.ResumeOutline(ctx, runID, model.OutlineReview{Decision: model.DecisionReject}))

	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsComplete)
	assert.True(t, st.IsRejected)
	assert.False(t, st.IsStuck)

	err = r.ResumeOutline(ctx, runID, model.OutlineReview{Decision: model.DecisionApprove})
	assert.ErrorIs(t, err, ErrNotInterrupted)
}

func TestRunner_ResumeErrors(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	err := r.Resume(ctx, "run_missing", approve())
	assert.ErrorIs(t, err, ErrRunNotFound)

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)

	err = r.ResumePublish(ctx, runID, model.PublishReview{Decision: model.DecisionApprove})
	assert.ErrorIs(t, err, ErrWrongGate)

	err = r.ResumeOutline(ctx, runID, model.OutlineReview{Decision: "maybe"})
	assert.ErrorContains(t, err, "invalid outline decision")

	// Nothing above advanced the run.
	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.NodeOutlineReview, st.NextNode)
}

func TestRunner_GenericResumeMergesInput(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)
	require.NoError(t, r.Resume(ctx, runID, model.OutlineReview{Decision: model.DecisionEdit, Notes: "more examples"}.State()))

	state, err := r.GetState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "more examples", state.Notes())
	assert.Equal(t, model.DecisionEdit, *state.OutlineDecision)
}

func approve() *model.PipelineState {
	return model.OutlineReview{Decision: model.DecisionApprove}.State()
}

func TestRunner_StuckThenRetry(t *testing.T) {
	agents := healthyAgents()
	var mu sync.Mutex
	failures := 1
	agents.FactChecker = funcAgent{name: pipeline.NodeFactChecker, fn: func(context.Context, *model.PipelineState) (*model.PipelineState, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, errors.New("anthropic: overloaded")
		}
		return &model.PipelineState{FactCheck: &model.FactCheckResult{ClaimsChecked: 1}}, nil
	}}
	r, _ := newTestRunner(t, agents)
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)

	err = r.ResumeOutline(ctx, runID, model.OutlineReview{Decision: model.DecisionApprove})
	var nodeErr *pipeline.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, pipeline.NodeFactChecker, nodeErr.Node)

	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsStuck)
	assert.False(t, st.IsInterrupted)
	assert.Equal(t, pipeline.NodeFactChecker, st.NextNode)
	assert.Equal(t, pipeline.NodeWriter, st.CurrentStep)
	assert.Contains(t, st.LastError, "overloaded")

	require.NoError(t, r.Retry(ctx, runID))
	st, err = r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.False(t, st.IsStuck)
	assert.True(t, st.IsInterrupted)
	assert.Equal(t, pipeline.NodePublishReview, st.NextNode)
	assert.Empty(t, st.LastError)
}

func TestRunner_RetryPausedRunIsNoop(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)
	require.NoError(t, r.Retry(ctx, runID))

	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsInterrupted)
	assert.Equal(t, pipeline.NodeOutlineReview, st.NextNode)

	assert.ErrorIs(t, r.Retry(ctx, "run_missing"), ErrRunNotFound)
}

func TestRunner_UnknownRun(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	_, err := r.GetStatus(ctx, "run_nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = r.GetState(ctx, "run_nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "run_nope"), ErrRunNotFound)
}

func TestRunner_ConcurrentOperationsOnOneRunAreRejected(t *testing.T) {
	agents := healthyAgents()
	release := make(chan struct{})
	entered := make(chan struct{})
	agents.Writer = funcAgent{name: pipeline.NodeWriter, fn: func(context.Context, *model.PipelineState) (*model.PipelineState, error) {
		close(entered)
		<-release
		return &model.PipelineState{DraftKO: model.Ptr("초안")}, nil
	}}
	r, _ := newTestRunner(t, agents)
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.ResumeOutline(ctx, runID, model.OutlineReview{Decision: model.DecisionApprove}) }()
	<-entered

	assert.ErrorIs(t, r.Retry(ctx, runID), ErrRunBusy)
	assert.ErrorIs(t, r.Resume(ctx, runID, approve()), ErrRunBusy)
	assert.ErrorIs(t, r.Delete(ctx, runID), ErrRunBusy)

	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.False(t, st.IsStuck)

	close(release)
	require.NoError(t, <-done)
}

func TestRunner_RunsAreIndependent(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.Start(ctx, sources(), model.BlogConfig{})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
		st, err := r.GetStatus(ctx, id)
		require.NoError(t, err)
		assert.True(t, st.IsInterrupted)
	}
}

func TestRunner_StartAsync(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	runID, done, err := r.StartAsync(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
	}

	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsInterrupted)
}

func TestRunner_ListAndDelete(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents())
	ctx := context.Background()

	first, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)
	second, err := r.Start(ctx, sources(), model.BlogConfig{OutputLanguage: model.OutputKOOnly})
	require.NoError(t, err)

	runs, err := r.List(ctx, store.CheckpointFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].RunID)
	assert.Equal(t, first, runs[1].RunID)

	require.NoError(t, r.Delete(ctx, first))
	runs, err = r.List(ctx, store.CheckpointFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	_, err = r.GetStatus(ctx, first)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunner_IDGeneratorError(t *testing.T) {
	r, _ := newTestRunner(t, healthyAgents(), WithIDGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))
	_, err := r.Start(context.Background(), sources(), model.BlogConfig{})
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestNewRunID_Unique(t *testing.T) {
	a, err := NewRunID()
	require.NoError(t, err)
	b, err := NewRunID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
		return nil
	}
}

func TestRunner_AsyncResumeAndRetry(t *testing.T) {
	agents := healthyAgents()
	var failEditor sync.Once
	editor := agents.Editor
	agents.Editor = funcAgent{name: pipeline.NodeEditor, fn: func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
		var err error
		failEditor.Do(func() { err = errors.New("editor unavailable") })
		if err != nil {
			return nil, err
		}
		return editor.Run(ctx, s)
	}}
	r, _ := newTestRunner(t, agents)
	ctx := context.Background()

	runID, err := r.Start(ctx, sources(), model.BlogConfig{})
	require.NoError(t, err)

	// Gate errors surface before anything runs.
	_, err = r.ResumePublishAsync(ctx, runID, model.PublishReview{Decision: model.DecisionApprove})
	assert.ErrorIs(t, err, ErrWrongGate)
	_, err = r.ResumeOutlineAsync(ctx, runID, model.OutlineReview{Decision: "maybe"})
	assert.ErrorContains(t, err, "invalid outline decision")

	done, err := r.ResumeOutlineAsync(ctx, runID, model.OutlineReview{Decision: model.DecisionApprove})
	require.NoError(t, err)
	var nodeErr *pipeline.NodeError
	require.ErrorAs(t, waitDone(t, done), &nodeErr)
	assert.Equal(t, pipeline.NodeEditor, nodeErr.Node)

	st, err := r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsStuck)

	done, err = r.RetryAsync(ctx, runID)
	require.NoError(t, err)
	require.NoError(t, waitDone(t, done))

	st, err = r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.NodePublishReview, st.NextNode)

	done, err = r.ResumePublishAsync(ctx, runID, model.PublishReview{Decision: model.DecisionApprove})
	require.NoError(t, err)
	require.NoError(t, waitDone(t, done))

	st, err = r.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.True(t, st.IsComplete)

	_, err = r.RetryAsync(ctx, "run_missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	// A failed prepare releases the lock.
	assert.False(t, r.locks.isHeld("run_missing"))
}
