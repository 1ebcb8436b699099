package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/store"
)

// scriptedAgent is an Agent whose behavior is a func of its call number.
type scriptedAgent struct {
	name string
	fn   func(call int, s *model.PipelineState) (*model.PipelineState, error)

	mu    sync.Mutex
	calls int
}

func (a *scriptedAgent) Name() string { return a.name }

func (a *scriptedAgent) Run(_ context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	a.mu.Lock()
	a.calls++
	call := a.calls
	a.mu.Unlock()
	return a.fn(call, s)
}

func (a *scriptedAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type testAgents struct {
	planner, writer, factChecker, critic, translator, editor, seo *scriptedAgent
}

func (ta *testAgents) Agents() Agents {
	return Agents{
		ResearchPlanner: ta.planner,
		Writer:          ta.writer,
		FactChecker:     ta.factChecker,
		Critic:          ta.critic,
		Translator:      ta.translator,
		Editor:          ta.editor,
		SEOOptimizer:    ta.seo,
	}
}

func criticReturning(verdict model.Verdict, score int) func(int, *model.PipelineState) (*model.PipelineState, error) {
	return func(int, *model.PipelineState) (*model.PipelineState, error) {
		return &model.PipelineState{CriticFeedback: &model.CriticFeedback{Verdict: verdict, Score: score}}, nil
	}
}

// newTestAgents returns agents that behave like a healthy run with a
// passing critic.
func newTestAgents() *testAgents {
	return &testAgents{
		planner: &scriptedAgent{name: NodeResearchPlanner, fn: func(int, *model.PipelineState) (*model.PipelineState, error) {
			return &model.PipelineState{
				Outline:         &model.Outline{Topic: "AI Agent Design Patterns", KeyPoints: []string{"separation"}},
				ResearchSummary: model.Ptr("summary"),
			}, nil
		}},
		writer: &scriptedAgent{name: NodeWriter, fn: func(_ int, s *model.PipelineState) (*model.PipelineState, error) {
			count := 0
			if s.CriticFeedback != nil {
				count = s.Rewrites() + 1
			}
			return &model.PipelineState{DraftKO: model.Ptr("초안"), RewriteCount: &count}, nil
		}},
		factChecker: &scriptedAgent{name: NodeFactChecker, fn: func(int, *model.PipelineState) (*model.PipelineState, error) {
			return &model.PipelineState{FactCheck: &model.FactCheckResult{ClaimsChecked: 3, OverallAccuracy: 0.95}}, nil
		}},
		critic: &scriptedAgent{name: NodeCritic, fn: criticReturning(model.VerdictPass, 8)},
		translator: &scriptedAgent{name: NodeTranslator, fn: func(int, *model.PipelineState) (*model.PipelineState, error) {
			return &model.PipelineState{DraftEN: model.Ptr("draft")}, nil
		}},
		editor: &scriptedAgent{name: NodeEditor, fn: func(_ int, s *model.PipelineState) (*model.PipelineState, error) {
			upd := &model.PipelineState{}
			for _, lang := range s.Config().Languages() {
				upd.SetEdited(lang, "edited "+lang)
			}
			return upd, nil
		}},
		seo: &scriptedAgent{name: NodeSEOOptimizer, fn: func(_ int, s *model.PipelineState) (*model.PipelineState, error) {
			upd := &model.PipelineState{}
			for _, lang := range s.Config().Languages() {
				upd.SetFinal(lang, model.SEOMetadata{OptimizedTitle: "Title " + lang, SuggestedSlug: "ai-agents"}, "final "+lang)
			}
			return upd, nil
		}},
	}
}

// recordingCallbacks captures engine events.
type recordingCallbacks struct {
	mu     sync.Mutex
	nodes  []string
	failed []string
	paused []string
	forced int
}

func (r *recordingCallbacks) NodeFinished(_ context.Context, ev NodeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, ev.Node)
	if ev.Err != nil {
		r.failed = append(r.failed, ev.Node)
	}
}

func (r *recordingCallbacks) Paused(_ context.Context, _, gate string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = append(r.paused, gate)
}

func (r *recordingCallbacks) ForcedPass(context.Context, string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forced++
}

// mockPublisher implements Publisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, post model.Post) (model.PublishedPost, error) {
	args := m.Called(ctx, post)
	return args.Get(0).(model.PublishedPost), args.Error(1)
}

func (m *mockPublisher) Commit(ctx context.Context, message string, paths []string) error {
	return m.Called(ctx, message, paths).Error(0)
}

// fakeSaver records saves and returns one path per language with a body.
type fakeSaver struct {
	mu    sync.Mutex
	saves []model.PipelineState
	err   error
}

func (f *fakeSaver) Save(_ context.Context, runID string, s *model.PipelineState) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, *s)
	if f.err != nil {
		return nil, f.err
	}
	var paths []string
	for _, lang := range s.Config().Languages() {
		if s.Body(lang) != "" {
			paths = append(paths, "output/"+runID+"_"+lang+".md")
		}
	}
	return paths, nil
}

type harness struct {
	agents *testAgents
	cb     *recordingCallbacks
	saver  *fakeSaver
	store  *store.MemoryStore
	engine *Engine
}

func newHarness(t *testing.T, agents *testAgents, pub Publisher) *harness {
	t.Helper()
	h := &harness{agents: agents, cb: &recordingCallbacks{}, saver: &fakeSaver{}, store: store.NewMemory()}
	g, err := BuildBlogGraph(agents.Agents(), BlogOptions{
		MaxRewrites: DefaultMaxRewrites,
		Publish:     PublishNode(pub, h.saver),
		Callbacks:   h.cb,
	})
	require.NoError(t, err)
	h.engine = NewEngine(g, h.store, h.cb)
	return h
}

// start seeds and runs a checkpoint the way the runner does.
func (h *harness) start(t *testing.T, runID string, cfg model.BlogConfig) (*model.Checkpoint, error) {
	t.Helper()
	cp := &model.Checkpoint{
		RunID: runID,
		State: model.PipelineState{
			Sources:      []model.SourceContent{{SourceType: model.SourceTypeURL, Origin: "https://example.com", Content: "text"}},
			BlogConfig:   &cfg,
			RewriteCount: model.Ptr(0),
			CurrentStep:  model.Ptr("started"),
		},
		PendingNodes: []string{h.engine.Graph().Entry()},
	}
	require.NoError(t, h.store.SaveCheckpoint(context.Background(), cp))
	return cp, h.engine.Run(context.Background(), cp, false)
}

// resume merges input into the stored checkpoint and continues.
func (h *harness) resume(t *testing.T, runID string, input *model.PipelineState) (*model.Checkpoint, error) {
	t.Helper()
	cp, err := h.store.LoadCheckpoint(context.Background(), runID)
	require.NoError(t, err)
	cp.State.Merge(input)
	return cp, h.engine.Run(context.Background(), cp, true)
}

func (h *harness) load(t *testing.T, runID string) *model.Checkpoint {
	t.Helper()
	cp, err := h.store.LoadCheckpoint(context.Background(), runID)
	require.NoError(t, err)
	return cp
}

func approveOutline() *model.PipelineState {
	return model.OutlineReview{Decision: model.DecisionApprove}.State()
}
