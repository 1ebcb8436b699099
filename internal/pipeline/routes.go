package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// DefaultMaxRewrites bounds the critic-driven rewrite loop.
const DefaultMaxRewrites = 3

// RouteAfterOutlineReview sends approve and edit to the writer. Reject ends
// the run. A missing decision routes forward.
func RouteAfterOutlineReview(s *model.PipelineState) string {
	if s.OutlineDecision == nil {
		zap.L().Warn("pipeline: outline decision missing, routing to writer")
		return NodeWriter
	}
	if *s.OutlineDecision == model.DecisionReject {
		return End
	}
	return NodeWriter
}

// RouteAfterCritic loops back to the writer on FAIL while fewer than
// maxRewrites rewrites have run, and otherwise continues to translation (or
// straight to the editor for Korean-only runs). Missing feedback routes
// forward.
func RouteAfterCritic(s *model.PipelineState, maxRewrites int) string {
	if s.CriticFeedback == nil {
		zap.L().Warn("pipeline: critic feedback missing, routing forward")
	} else if s.CriticFeedback.Verdict == model.VerdictFail && s.Rewrites() < maxRewrites {
		return NodeWriter
	}
	if s.Config().OutputLanguage == model.OutputKOOnly {
		return NodeEditor
	}
	return NodeTranslator
}

// IsForcedPass reports whether the critic failed the draft but the rewrite
// ceiling sends it forward anyway.
func IsForcedPass(s *model.PipelineState, maxRewrites int) bool {
	return s.CriticFeedback != nil &&
		s.CriticFeedback.Verdict == model.VerdictFail &&
		s.Rewrites() >= maxRewrites
}

// RouteAfterPublishReview publishes on approve and ends the run on reject.
// A missing decision routes forward.
func RouteAfterPublishReview(s *model.PipelineState) string {
	if s.PublishDecision == nil {
		zap.L().Warn("pipeline: publish decision missing, routing to publish")
		return NodePublish
	}
	if *s.PublishDecision == model.DecisionReject {
		return End
	}
	return NodePublish
}
