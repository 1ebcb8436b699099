package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
)

// Critic scores the Korean draft and decides whether it needs a rewrite.
type Critic struct {
	llm
	maxRewrites int
}

func (a *Critic) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	draft := s.Draft(model.LangKO)
	if err := requireField(a.name, "draft_ko", draft != ""); err != nil {
		return nil, err
	}
	if err := requireField(a.name, "outline", s.Outline != nil); err != nil {
		return nil, err
	}

	ceiling := a.maxRewrites
	if ceiling <= 0 {
		ceiling = pipeline.DefaultMaxRewrites
	}
	system := fmt.Sprintf(criticSystem, s.Rewrites(), ceiling)
	if s.Rewrites() >= ceiling {
		system += criticLenientAddendum
	}

	text, err := a.complete(ctx, prompt{
		system:      system,
		user:        criticMessage(s, draft),
		maxTokens:   4096,
		temperature: new(float64),
	})
	if err != nil {
		return nil, err
	}

	fb, err := parseJSON[model.CriticFeedback](a.name, text)
	if err != nil {
		return nil, err
	}
	if fb.Score < 1 || fb.Score > 10 {
		return nil, eris.Errorf("agent: %s: score %d outside 1..10", a.name, fb.Score)
	}
	claimed := model.Verdict(strings.ToLower(strings.TrimSpace(string(fb.Verdict))))
	fb.Verdict = model.EvaluateVerdict(fb.Score, s.FactCheck)
	if claimed != fb.Verdict {
		zap.L().Warn("agent: critic verdict disagrees with score rule",
			zap.String("run_id", pipeline.RunID(ctx)),
			zap.String("claimed", string(claimed)),
			zap.String("verdict", string(fb.Verdict)),
			zap.Int("score", fb.Score),
		)
	}
	return &model.PipelineState{CriticFeedback: &fb}, nil
}

func criticMessage(s *model.PipelineState, draft string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Korean Draft\n\n%s\n\n", draft)
	fmt.Fprintf(&b, "## Outline\n\nTopic: %s\nAngle: %s\n\n", s.Outline.Topic, s.Outline.Angle)

	b.WriteString("## Fact Check Results\n\n")
	if fc := s.FactCheck; fc != nil {
		fmt.Fprintf(&b, "Claims checked: %d\nOverall accuracy: %.2f\nIssues (%d):\n%s\n",
			fc.ClaimsChecked, fc.OverallAccuracy, len(fc.IssuesFound), formatIssues(fc))
	} else {
		b.WriteString("No fact check available.\n")
	}

	if d := s.FactCheckDiff; d != nil {
		fmt.Fprintf(&b, "\n## Fact Check Diff (vs previous round)\nResolved: %s\nNew: %s\nRemaining: %s\n",
			joinOrNone(d.Resolved), joinOrNone(d.New), joinOrNone(d.Remaining))
	}
	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
