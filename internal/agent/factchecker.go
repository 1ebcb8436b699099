package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// FactChecker verifies the Korean draft against the sources. The result is
// shared by both language versions.
type FactChecker struct {
	llm
}

func (a *FactChecker) Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	draft := s.Draft(model.LangKO)
	if err := requireField(a.name, "draft_ko", draft != ""); err != nil {
		return nil, err
	}

	text, err := a.complete(ctx, prompt{
		system:    factCheckerSystem,
		user:      fmt.Sprintf("## Korean Draft to Verify\n\n%s\n\n## Source Materials\n\n%s", draft, formatSources(s.Sources, false)),
		maxTokens: 4096,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseJSON[model.FactCheckResult](a.name, text)
	if err != nil {
		return nil, err
	}
	normalizeFactCheck(&result)

	upd := &model.PipelineState{FactCheck: &result}
	if s.FactCheck != nil {
		diff := model.DiffFactChecks(s.FactCheck, &result)
		upd.FactCheckDiff = &diff
	}
	return upd, nil
}

// normalizeFactCheck lowercases severities, grades unknown ones medium, and
// clamps accuracy to [0, 1].
func normalizeFactCheck(r *model.FactCheckResult) {
	if r.IssuesFound == nil {
		r.IssuesFound = []model.FactCheckIssue{}
	}
	for i := range r.IssuesFound {
		sev := model.Severity(strings.ToLower(strings.TrimSpace(string(r.IssuesFound[i].Severity))))
		switch sev {
		case model.SeverityHigh, model.SeverityMedium, model.SeverityLow:
		default:
			sev = model.SeverityMedium
		}
		r.IssuesFound[i].Severity = sev
	}
	r.OverallAccuracy = min(max(r.OverallAccuracy, 0), 1)
	if r.ClaimsChecked < len(r.IssuesFound) {
		r.ClaimsChecked = len(r.IssuesFound)
	}
}
