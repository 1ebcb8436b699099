package model

import "github.com/rotisserie/eris"

// HumanDecision is a reviewer's verdict at a HITL gate.
type HumanDecision string

const (
	DecisionApprove HumanDecision = "approve"
	DecisionEdit    HumanDecision = "edit"
	DecisionReject  HumanDecision = "reject"
)

// ParseDecision accepts full names and single-letter shortcuts.
func ParseDecision(s string) (HumanDecision, error) {
	switch s {
	case "approve", "a", "publish", "p":
		return DecisionApprove, nil
	case "edit", "e":
		return DecisionEdit, nil
	case "reject", "r":
		return DecisionReject, nil
	}
	return "", eris.Errorf("model: unknown decision %q", s)
}

// PlatformGitHubPages is the only supported publishing platform.
const PlatformGitHubPages = "github_pages"

// PublishTarget selects whether one language version is published.
type PublishTarget struct {
	Language string `json:"language"`
	Platform string `json:"platform"`
	Publish  bool   `json:"publish"`
}

// OutlineReview is the human input at the outline gate.
type OutlineReview struct {
	Decision HumanDecision `json:"decision"`
	Notes    string        `json:"notes,omitempty"`
}

// Validate rejects decisions that are not approve, edit or reject.
func (r OutlineReview) Validate() error {
	switch r.Decision {
	case DecisionApprove, DecisionEdit, DecisionReject:
		return nil
	}
	return eris.Errorf("model: invalid outline decision %q", r.Decision)
}

// State converts the review into a partial state update.
func (r OutlineReview) State() *PipelineState {
	d := r.Decision
	notes := r.Notes
	return &PipelineState{OutlineDecision: &d, OutlineHumanNotes: &notes}
}

// PublishReview is the human input at the publish gate.
type PublishReview struct {
	Decision HumanDecision   `json:"decision"`
	Targets  []PublishTarget `json:"targets,omitempty"`
}

// Validate rejects edit (not meaningful at this gate) and malformed targets.
func (r PublishReview) Validate() error {
	switch r.Decision {
	case DecisionApprove, DecisionReject:
	default:
		return eris.Errorf("model: invalid publish decision %q", r.Decision)
	}
	for _, t := range r.Targets {
		if t.Language != LangKO && t.Language != LangEN {
			return eris.Errorf("model: invalid publish target language %q", t.Language)
		}
	}
	return nil
}

// State converts the review into a partial state update. Targets with an
// empty platform default to GitHub Pages.
func (r PublishReview) State() *PipelineState {
	d := r.Decision
	upd := &PipelineState{PublishDecision: &d}
	if r.Targets != nil {
		targets := make([]PublishTarget, len(r.Targets))
		for i, t := range r.Targets {
			if t.Platform == "" {
				t.Platform = PlatformGitHubPages
			}
			targets[i] = t
		}
		upd.PublishTargets = targets
	}
	return upd
}
