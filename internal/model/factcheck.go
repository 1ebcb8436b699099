package model

import "sort"

// Severity grades a fact-check issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// FactCheckIssue is a single problematic claim in a draft.
type FactCheckIssue struct {
	Claim      string   `json:"claim"`
	Issue      string   `json:"issue"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// FactCheckResult is the fact checker's verdict on the Korean draft.
type FactCheckResult struct {
	ClaimsChecked   int              `json:"claims_checked"`
	IssuesFound     []FactCheckIssue `json:"issues_found"`
	OverallAccuracy float64          `json:"overall_accuracy"`
	Suggestions     []string         `json:"suggestions,omitempty"`
}

// HasHighSeverity reports whether any issue is graded high.
func (r *FactCheckResult) HasHighSeverity() bool {
	if r == nil {
		return false
	}
	for _, issue := range r.IssuesFound {
		if issue.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// FactCheckDiff tracks how issues changed between two fact-check rounds.
type FactCheckDiff struct {
	Resolved  []string `json:"resolved"`
	New       []string `json:"new"`
	Remaining []string `json:"remaining"`
}

// DiffFactChecks compares issue claims of two rounds. Each list is sorted.
func DiffFactChecks(previous, current *FactCheckResult) FactCheckDiff {
	prev := claimSet(previous)
	curr := claimSet(current)

	diff := FactCheckDiff{
		Resolved:  []string{},
		New:       []string{},
		Remaining: []string{},
	}
	for c := range prev {
		if _, ok := curr[c]; ok {
			diff.Remaining = append(diff.Remaining, c)
		} else {
			diff.Resolved = append(diff.Resolved, c)
		}
	}
	for c := range curr {
		if _, ok := prev[c]; !ok {
			diff.New = append(diff.New, c)
		}
	}
	sort.Strings(diff.Resolved)
	sort.Strings(diff.New)
	sort.Strings(diff.Remaining)
	return diff
}

func claimSet(r *FactCheckResult) map[string]struct{} {
	set := make(map[string]struct{})
	if r == nil {
		return set
	}
	for _, issue := range r.IssuesFound {
		set[issue.Claim] = struct{}{}
	}
	return set
}
