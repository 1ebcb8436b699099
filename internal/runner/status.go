package runner

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/store"
)

// Status summarizes where a run is.
//
// IsInterrupted means the run is waiting for a reviewer at a gate. IsStuck
// means it halted before a non-gate node and nothing in this process is
// executing it: a node failed (LastError says why) or the process running it
// died. IsRunning runs are neither.
type Status struct {
	RunID         string    `json:"run_id"`
	CurrentStep   string    `json:"current_step"`
	NextNode      string    `json:"next_node,omitempty"`
	IsInterrupted bool      `json:"is_interrupted"`
	IsStuck       bool      `json:"is_stuck"`
	IsRunning     bool      `json:"is_running"`
	IsComplete    bool      `json:"is_complete"`
	IsRejected    bool      `json:"is_rejected"`
	IsPublished   bool      `json:"is_published"`
	RewriteCount  int       `json:"rewrite_count"`
	HasOutline    bool      `json:"has_outline"`
	HasDraftKO    bool      `json:"has_draft_ko"`
	HasDraftEN    bool      `json:"has_draft_en"`
	HasFinalKO    bool      `json:"has_final_ko"`
	HasFinalEN    bool      `json:"has_final_en"`
	CriticScore   *int      `json:"critic_score,omitempty"`
	CriticVerdict string    `json:"critic_verdict,omitempty"`
	Topic         string    `json:"topic,omitempty"`
	BlogURLKO     string    `json:"blog_url_ko,omitempty"`
	BlogURLEN     string    `json:"blog_url_en,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GetStatus reports the status of a run.
func (r *Runner) GetStatus(ctx context.Context, runID string) (*Status, error) {
	cp, err := r.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	st := r.statusOf(cp)
	return &st, nil
}

// List returns run statuses, newest first.
func (r *Runner) List(ctx context.Context, filter store.CheckpointFilter) ([]Status, error) {
	cps, err := r.store.ListCheckpoints(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "runner: list runs")
	}
	out := make([]Status, 0, len(cps))
	for i := range cps {
		out = append(out, r.statusOf(&cps[i]))
	}
	return out, nil
}

func (r *Runner) statusOf(cp *model.Checkpoint) Status {
	s := &cp.State
	next := cp.NextNode()
	st := Status{
		RunID:        cp.RunID,
		CurrentStep:  s.Step(),
		NextNode:     next,
		IsComplete:   next == "",
		IsRejected:   s.IsRejected(),
		IsPublished:  s.IsPublished(),
		RewriteCount: s.Rewrites(),
		HasOutline:   s.Outline != nil,
		HasDraftKO:   s.Draft(model.LangKO) != "",
		HasDraftEN:   s.Draft(model.LangEN) != "",
		HasFinalKO:   s.Final(model.LangKO) != "",
		HasFinalEN:   s.Final(model.LangEN) != "",
		BlogURLKO:    s.BlogURL(model.LangKO),
		BlogURLEN:    s.BlogURL(model.LangEN),
		LastError:    cp.LastError,
		CreatedAt:    cp.CreatedAt,
		UpdatedAt:    cp.UpdatedAt,
	}
	if s.Outline != nil {
		st.Topic = s.Outline.Topic
	}
	if fb := s.CriticFeedback; fb != nil {
		st.CriticScore = model.Ptr(fb.Score)
		st.CriticVerdict = string(fb.Verdict)
	}
	if next != "" {
		switch {
		case r.engine.Graph().IsGate(next):
			st.IsInterrupted = true
		case r.locks.isHeld(cp.RunID):
			st.IsRunning = true
		default:
			st.IsStuck = true
		}
	}
	return st
}
