package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// Node names of the blog graph.
const (
	NodeResearchPlanner = "research_planner"
	NodeOutlineReview   = "outline_review"
	NodeWriter          = "writer"
	NodeFactChecker     = "fact_checker"
	NodeCritic          = "critic"
	NodeTranslator      = "translator"
	NodeEditor          = "editor"
	NodeSEOOptimizer    = "seo_optimizer"
	NodePublishReview   = "publish_review"
	NodePublish         = "publish"
)

// Agents are the LLM steps of the blog graph.
type Agents struct {
	ResearchPlanner Agent
	Writer          Agent
	FactChecker     Agent
	Critic          Agent
	Translator      Agent
	Editor          Agent
	SEOOptimizer    Agent
}

func (a Agents) validate() error {
	for name, ag := range map[string]Agent{
		NodeResearchPlanner: a.ResearchPlanner,
		NodeWriter:          a.Writer,
		NodeFactChecker:     a.FactChecker,
		NodeCritic:          a.Critic,
		NodeTranslator:      a.Translator,
		NodeEditor:          a.Editor,
		NodeSEOOptimizer:    a.SEOOptimizer,
	} {
		if ag == nil {
			return eris.Errorf("pipeline: missing %s agent", name)
		}
		if ag.Name() != name {
			return eris.Errorf("pipeline: agent %q registered as %s", ag.Name(), name)
		}
	}
	return nil
}

// BlogOptions configures BuildBlogGraph.
type BlogOptions struct {
	MaxRewrites int
	Publish     NodeFunc
	Callbacks   Callbacks
}

// BuildBlogGraph wires the blog workflow:
//
//	research_planner -> outline_review -> writer -> fact_checker -> critic
//	critic -> writer (FAIL, under the rewrite ceiling)
//	critic -> translator | editor (ko-only) -> seo_optimizer -> publish_review -> publish
//
// Both review gates can end the run on reject.
func BuildBlogGraph(agents Agents, opts BlogOptions) (*Graph, error) {
	if err := agents.validate(); err != nil {
		return nil, err
	}
	if opts.MaxRewrites <= 0 {
		opts.MaxRewrites = DefaultMaxRewrites
	}
	if opts.Publish == nil {
		return nil, eris.New("pipeline: publish node func is required")
	}
	cb := opts.Callbacks
	if cb == nil {
		cb = BaseCallbacks{}
	}
	maxRewrites := opts.MaxRewrites

	afterCritic := func(ctx context.Context, s *model.PipelineState) string {
		if IsForcedPass(s, maxRewrites) {
			zap.L().Warn("pipeline: rewrite ceiling reached, forcing pass",
				zap.String("run_id", RunID(ctx)),
				zap.Int("rewrite_count", s.Rewrites()),
				zap.Int("max_rewrites", maxRewrites),
			)
			cb.ForcedPass(ctx, RunID(ctx), s.Rewrites())
		}
		return RouteAfterCritic(s, maxRewrites)
	}

	return NewBuilder().
		AddNode(AgentNode(agents.ResearchPlanner)).
		AddNode(GateNode(NodeOutlineReview)).
		AddNode(AgentNode(agents.Writer)).
		AddNode(AgentNode(agents.FactChecker)).
		AddNode(AgentNode(agents.Critic)).
		AddNode(AgentNode(agents.Translator)).
		AddNode(AgentNode(agents.Editor)).
		AddNode(AgentNode(agents.SEOOptimizer)).
		AddNode(GateNode(NodePublishReview)).
		AddNode(TerminalNode(NodePublish, opts.Publish)).
		SetEntryPoint(NodeResearchPlanner).
		AddEdge(NodeResearchPlanner, NodeOutlineReview).
		AddConditionalEdge(NodeOutlineReview, func(_ context.Context, s *model.PipelineState) string {
			return RouteAfterOutlineReview(s)
		}, NodeWriter, End).
		AddEdge(NodeWriter, NodeFactChecker).
		AddEdge(NodeFactChecker, NodeCritic).
		AddConditionalEdge(NodeCritic, afterCritic, NodeWriter, NodeTranslator, NodeEditor).
		AddEdge(NodeTranslator, NodeEditor).
		AddEdge(NodeEditor, NodeSEOOptimizer).
		AddEdge(NodeSEOOptimizer, NodePublishReview).
		AddConditionalEdge(NodePublishReview, func(_ context.Context, s *model.PipelineState) string {
			return RouteAfterPublishReview(s)
		}, NodePublish, End).
		Compile()
}
