package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/store"
)

func TestEngine_PausesBeforeOutlineReview(t *testing.T) {
	h := newHarness(t, newTestAgents(), nil)

	_, err := h.start(t, "run_pause", model.DefaultBlogConfig())
	require.NoError(t, err)

	cp := h.load(t, "run_pause")
	assert.Equal(t, []string{NodeOutlineReview}, cp.PendingNodes)
	assert.Equal(t, NodeResearchPlanner, cp.State.Step())
	assert.Equal(t, "AI Agent Design Patterns", cp.State.Outline.Topic)
	assert.Empty(t, cp.LastError)
	assert.Equal(t, []string{NodeOutlineReview}, h.cb.paused)
	assert.Equal(t, 0, h.agents.writer.Calls())
}

func TestEngine_EndToEnd_RejectAtPublish(t *testing.T) {
	pub := new(mockPublisher)
	h := newHarness(t, newTestAgents(), pub)

	_, err := h.start(t, "run_e2e", model.DefaultBlogConfig())
	require.NoError(t, err)

	_, err = h.resume(t, "run_e2e", approveOutline())
	require.NoError(t, err)

	cp := h.load(t, "run_e2e")
	assert.Equal(t, []string{NodePublishReview}, cp.PendingNodes)
	assert.Equal(t, NodeSEOOptimizer, cp.State.Step())
	assert.Equal(t, 8, cp.State.CriticFeedback.Score)
	assert.Equal(t, "final ko", cp.State.Final(model.LangKO))
	assert.Equal(t, "final en", cp.State.Final(model.LangEN))
	assert.Equal(t, []string{
		NodeResearchPlanner, NodeOutlineReview, NodeWriter, NodeFactChecker, NodeCritic,
		NodeTranslator, NodeEditor, NodeSEOOptimizer,
	}, h.cb.nodes)

	_, err = h.resume(t, "run_e2e", model.PublishReview{Decision: model.DecisionReject}.State())
	require.NoError(t, err)

	cp = h.load(t, "run_e2e")
	assert.Empty(t, cp.PendingNodes)
	assert.True(t, cp.State.IsRejected())
	assert.Empty(t, h.saver.saves, "rejected run must not save output")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_ApprovePublish(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(p model.Post) bool { return p.Language == model.LangKO })).
		Return(model.PublishedPost{URL: "https://blog.example.com/blog/ai-agents/", Path: "_posts/ai-agents.md"}, nil).Once()
	pub.On("Commit", mock.Anything, "Add post: Title ko", []string{"_posts/ai-agents.md"}).Return(nil).Once()
	h := newHarness(t, newTestAgents(), pub)

	_, err := h.start(t, "run_pub", model.DefaultBlogConfig())
	require.NoError(t, err)
	_, err = h.resume(t, "run_pub", approveOutline())
	require.NoError(t, err)

	review := model.PublishReview{Decision: model.DecisionApprove, Targets: []model.PublishTarget{
		{Language: model.LangKO, Publish: true},
		{Language: model.LangEN, Publish: false},
	}}
	_, err = h.resume(t, "run_pub", review.State())
	require.NoError(t, err)

	cp := h.load(t, "run_pub")
	assert.Empty(t, cp.PendingNodes)
	assert.Equal(t, NodePublish, cp.State.Step())
	assert.True(t, cp.State.IsPublished())
	assert.Equal(t, "https://blog.example.com/blog/ai-agents/", cp.State.BlogURL(model.LangKO))
	assert.Equal(t, "", cp.State.BlogURL(model.LangEN))
	assert.Len(t, cp.State.SavedPaths, 2)
	require.Len(t, h.saver.saves, 1)
	assert.Equal(t, "https://blog.example.com/blog/ai-agents/", h.saver.saves[0].BlogURL(model.LangKO))
	pub.AssertExpectations(t)
}

func TestEngine_RejectAtOutline(t *testing.T) {
	h := newHarness(t, newTestAgents(), nil)
	_, err := h.start(t, "run_reject", model.DefaultBlogConfig())
	require.NoError(t, err)

	_, err = h.resume(t, "run_reject", model.OutlineReview{Decision: model.DecisionReject}.State())
	require.NoError(t, err)

	cp := h.load(t, "run_reject")
	assert.Empty(t, cp.PendingNodes)
	assert.True(t, cp.State.IsRejected())
	assert.Equal(t, NodeResearchPlanner, cp.State.Step())
	assert.Equal(t, 0, h.agents.writer.Calls())
}

func TestEngine_EditCarriesNotes(t *testing.T) {
	agents := newTestAgents()
	var seenNotes string
	agents.writer.fn = func(_ int, s *model.PipelineState) (*model.PipelineState, error) {
		seenNotes = s.Notes()
		return &model.PipelineState{DraftKO: model.Ptr("draft"), RewriteCount: model.Ptr(0)}, nil
	}
	h := newHarness(t, agents, nil)
	_, err := h.start(t, "run_edit", model.DefaultBlogConfig())
	require.NoError(t, err)

	_, err = h.resume(t, "run_edit", model.OutlineReview{Decision: model.DecisionEdit, Notes: "add benchmarks"}.State())
	require.NoError(t, err)
	assert.Equal(t, "add benchmarks", seenNotes)
	assert.Equal(t, []string{NodePublishReview}, h.load(t, "run_edit").PendingNodes)
}

func TestEngine_BoundedRewriteLoop(t *testing.T) {
	agents := newTestAgents()
	agents.critic.fn = criticReturning(model.VerdictFail, 4)
	h := newHarness(t, agents, nil)

	_, err := h.start(t, "run_loop", model.DefaultBlogConfig())
	require.NoError(t, err)
	_, err = h.resume(t, "run_loop", approveOutline())
	require.NoError(t, err)

	cp := h.load(t, "run_loop")
	assert.Equal(t, DefaultMaxRewrites+1, agents.writer.Calls())
	assert.Equal(t, DefaultMaxRewrites, cp.State.Rewrites())
	assert.Equal(t, 1, agents.translator.Calls())
	assert.Equal(t, 1, h.cb.forced)
	assert.Equal(t, []string{NodePublishReview}, cp.PendingNodes)
}

func TestEngine_RewriteThenPass(t *testing.T) {
	agents := newTestAgents()
	agents.critic.fn = func(call int, s *model.PipelineState) (*model.PipelineState, error) {
		if call == 1 {
			return criticReturning(model.VerdictFail, 5)(call, s)
		}
		return criticReturning(model.VerdictPass, 8)(call, s)
	}
	h := newHarness(t, agents, nil)
	_, err := h.start(t, "run_rewrite", model.DefaultBlogConfig())
	require.NoError(t, err)
	_, err = h.resume(t, "run_rewrite", approveOutline())
	require.NoError(t, err)

	cp := h.load(t, "run_rewrite")
	assert.Equal(t, 2, agents.writer.Calls())
	assert.Equal(t, 1, cp.State.Rewrites())
	assert.Equal(t, model.VerdictPass, cp.State.CriticFeedback.Verdict)
	assert.Equal(t, 0, h.cb.forced)
}

func TestEngine_KoreanOnlySkipsTranslator(t *testing.T) {
	agents := newTestAgents()
	h := newHarness(t, agents, nil)
	cfg := model.DefaultBlogConfig()
	cfg.OutputLanguage = model.OutputKOOnly

	_, err := h.start(t, "run_ko", cfg)
	require.NoError(t, err)
	_, err = h.resume(t, "run_ko", approveOutline())
	require.NoError(t, err)

	cp := h.load(t, "run_ko")
	assert.Equal(t, 0, agents.translator.Calls())
	assert.Nil(t, cp.State.DraftEN)
	assert.Equal(t, "final ko", cp.State.Final(model.LangKO))
	assert.Equal(t, []string{NodePublishReview}, cp.PendingNodes)
}

func TestEngine_NodeFailureLeavesRunStuck(t *testing.T) {
	agents := newTestAgents()
	boom := errors.New("anthropic: create message: overloaded")
	agents.factChecker.fn = func(call int, _ *model.PipelineState) (*model.PipelineState, error) {
		if call == 1 {
			return nil, boom
		}
		return &model.PipelineState{FactCheck: &model.FactCheckResult{ClaimsChecked: 1, OverallAccuracy: 1}}, nil
	}
	h := newHarness(t, agents, nil)
	_, err := h.start(t, "run_stuck", model.DefaultBlogConfig())
	require.NoError(t, err)

	_, err = h.resume(t, "run_stuck", approveOutline())
	require.Error(t, err)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, NodeFactChecker, nodeErr.Node)
	assert.ErrorIs(t, err, boom)

	cp := h.load(t, "run_stuck")
	assert.Equal(t, []string{NodeFactChecker}, cp.PendingNodes)
	assert.Equal(t, NodeWriter, cp.State.Step())
	assert.Contains(t, cp.LastError, "fact_checker")
	assert.Nil(t, cp.State.FactCheck)
	assert.Equal(t, []string{NodeFactChecker}, h.cb.failed)

	// Retry re-runs the failed node from the same state.
	require.NoError(t, h.engine.Run(context.Background(), cp, false))
	cp = h.load(t, "run_stuck")
	assert.Equal(t, []string{NodePublishReview}, cp.PendingNodes)
	assert.Empty(t, cp.LastError)
	assert.Equal(t, 2, agents.factChecker.Calls())
	assert.Equal(t, 1, agents.writer.Calls())
}

func TestEngine_FailingAgentPartialUpdateIsDiscarded(t *testing.T) {
	agents := newTestAgents()
	agents.critic.fn = func(call int, s *model.PipelineState) (*model.PipelineState, error) {
		if call == 1 {
			return &model.PipelineState{
				CriticFeedback: &model.CriticFeedback{Verdict: model.VerdictFail, Score: 2},
				RewriteCount:   model.Ptr(s.Rewrites() + 1),
			}, errors.New("critic: malformed response")
		}
		return criticReturning(model.VerdictPass, 8)(call, s)
	}
	h := newHarness(t, agents, nil)
	_, err := h.start(t, "run_partial", model.DefaultBlogConfig())
	require.NoError(t, err)

	_, err = h.resume(t, "run_partial", approveOutline())
	require.Error(t, err)

	cp := h.load(t, "run_partial")
	assert.Equal(t, []string{NodeCritic}, cp.PendingNodes)
	assert.Equal(t, NodeFactChecker, cp.State.Step())
	assert.Nil(t, cp.State.CriticFeedback)
	assert.Equal(t, 0, cp.State.Rewrites())

	require.NoError(t, h.engine.Run(context.Background(), cp, false))
	cp = h.load(t, "run_partial")
	assert.Equal(t, []string{NodePublishReview}, cp.PendingNodes)
	assert.Equal(t, 1, agents.writer.Calls())
}

func TestEngine_PlannerFailureIsRetryable(t *testing.T) {
	agents := newTestAgents()
	agents.planner.fn = func(int, *model.PipelineState) (*model.PipelineState, error) {
		return nil, errors.New("malformed outline")
	}
	h := newHarness(t, agents, nil)
	_, err := h.start(t, "run_planner", model.DefaultBlogConfig())
	require.Error(t, err)

	cp := h.load(t, "run_planner")
	assert.Equal(t, []string{NodeResearchPlanner}, cp.PendingNodes)
	assert.Equal(t, "started", cp.State.Step())
}

func TestEngine_UnknownPendingNode(t *testing.T) {
	h := newHarness(t, newTestAgents(), nil)
	cp := &model.Checkpoint{RunID: "run_bad", PendingNodes: []string{"nope"}}
	err := h.engine.Run(context.Background(), cp, false)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestEngine_CancelledContextStopsBetweenNodes(t *testing.T) {
	h := newHarness(t, newTestAgents(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cp := &model.Checkpoint{RunID: "run_cancel", PendingNodes: []string{NodeResearchPlanner}}
	err := h.engine.Run(ctx, cp, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.agents.planner.Calls())
}

func TestEngine_SaveFailureSurfaces(t *testing.T) {
	agents := newTestAgents()
	g, err := BuildBlogGraph(agents.Agents(), BlogOptions{Publish: PublishNode(nil, &fakeSaver{})})
	require.NoError(t, err)

	e := NewEngine(g, failingStore{Store: store.NewMemory()}, nil)
	cp := &model.Checkpoint{RunID: "run_save", PendingNodes: []string{NodeResearchPlanner}}
	err = e.Run(context.Background(), cp, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint after research_planner")
}

type failingStore struct {
	store.Store
}

func (failingStore) SaveCheckpoint(context.Context, *model.Checkpoint) error {
	return errors.New("disk full")
}

// setFields lists the names of the non-nil fields of s.
func setFields(s *model.PipelineState) []string {
	var names []string
	v := reflect.ValueOf(*s)
	for i := 0; i < v.NumField(); i++ {
		if !v.Field(i).IsNil() {
			names = append(names, v.Type().Field(i).Name)
		}
	}
	return names
}

func TestEngine_EachAgentOwnsItsFields(t *testing.T) {
	agents := newTestAgents()
	writes := make(map[string]*model.PipelineState)
	for _, a := range []*scriptedAgent{agents.planner, agents.writer, agents.factChecker, agents.critic, agents.translator, agents.editor, agents.seo} {
		inner, name := a.fn, a.name
		a.fn = func(call int, s *model.PipelineState) (*model.PipelineState, error) {
			upd, err := inner(call, s)
			writes[name] = upd
			return upd, err
		}
	}
	h := newHarness(t, agents, new(mockPublisher))

	_, err := h.start(t, "run_owner", model.DefaultBlogConfig())
	require.NoError(t, err)
	outline := approveOutline()
	_, err = h.resume(t, "run_owner", outline)
	require.NoError(t, err)
	reject := model.PublishReview{Decision: model.DecisionReject}.State()
	_, err = h.resume(t, "run_owner", reject)
	require.NoError(t, err)

	final := reflect.ValueOf(h.load(t, "run_owner").State)
	owner := make(map[string]string)
	for name, upd := range writes {
		uv := reflect.ValueOf(*upd)
		for _, field := range setFields(upd) {
			prev, taken := owner[field]
			require.False(t, taken, "%s written by both %s and %s", field, prev, name)
			owner[field] = name
			wrote, err := json.Marshal(uv.FieldByName(field).Interface())
			require.NoError(t, err)
			held, err := json.Marshal(final.FieldByName(field).Interface())
			require.NoError(t, err)
			assert.JSONEq(t, string(wrote), string(held), "%s no longer holds what %s wrote", field, name)
		}
	}
	require.Len(t, writes, 7)

	// Everything else comes from the seed, the reviewers, or the engine.
	allowed := map[string]bool{"Sources": true, "BlogConfig": true, "CurrentStep": true}
	for _, f := range append(setFields(outline), setFields(reject)...) {
		allowed[f] = true
	}
	finalState := h.load(t, "run_owner").State
	for _, field := range setFields(&finalState) {
		if _, ok := owner[field]; !ok {
			assert.True(t, allowed[field], "%s set by no writer", field)
		}
	}
}
