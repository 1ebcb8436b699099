package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/runner"
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	gateStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

// reviewMode selects what happens when a run pauses at a review gate.
type reviewMode int

const (
	// reviewStop prints the status and returns so the run can be resumed
	// later.
	reviewStop reviewMode = iota
	// reviewPrompt asks on the terminal.
	reviewPrompt
	// reviewAuto approves every gate and publishes all languages.
	reviewAuto
)

func modeFromFlags(quick, interactive bool) reviewMode {
	switch {
	case quick:
		return reviewAuto
	case interactive:
		return reviewPrompt
	}
	return reviewStop
}

// statusLabel is the one-word state of a run.
func statusLabel(st runner.Status) string {
	switch {
	case st.IsRejected:
		return "rejected"
	case st.IsComplete && st.IsPublished:
		return "published"
	case st.IsComplete:
		return "complete"
	case st.IsInterrupted:
		return "awaiting " + st.NextNode
	case st.IsStuck:
		return "stuck"
	case st.IsRunning:
		return "running"
	}
	return "pending"
}

func styleFor(st runner.Status) lipgloss.Style {
	switch {
	case st.IsRejected, st.IsStuck:
		return failStyle
	case st.IsComplete:
		return okStyle
	case st.IsInterrupted:
		return gateStyle
	}
	return mutedStyle
}

// renderStatus writes a human-readable run summary.
func renderStatus(w io.Writer, st runner.Status) {
	field := func(label, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value)
		}
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", headingStyle.Render("Run "+st.RunID), styleFor(st).Render(statusLabel(st)))
	field("topic", st.Topic)
	field("current step", st.CurrentStep)
	field("next node", st.NextNode)
	field("rewrites", fmt.Sprintf("%d", st.RewriteCount))
	if st.CriticScore != nil {
		field("critic", fmt.Sprintf("%d/10 %s", *st.CriticScore, st.CriticVerdict))
	}
	field("drafts", progress(st))
	field("blog url (ko)", st.BlogURLKO)
	field("blog url (en)", st.BlogURLEN)
	if st.LastError != "" {
		field("last error", failStyle.Render(st.LastError))
	}
	field("updated", st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
}

func progress(st runner.Status) string {
	mark := func(name string, ok bool) string {
		if ok {
			return okStyle.Render(name)
		}
		return mutedStyle.Render(name)
	}
	return strings.Join([]string{
		mark("outline", st.HasOutline),
		mark("draft-ko", st.HasDraftKO),
		mark("draft-en", st.HasDraftEN),
		mark("final-ko", st.HasFinalKO),
		mark("final-en", st.HasFinalEN),
	}, " ")
}

// resumeHint tells the user how to continue a paused run.
func resumeHint(w io.Writer, st runner.Status) {
	switch st.NextNode {
	case pipeline.NodeOutlineReview:
		_, _ = fmt.Fprintf(w, "\nReview the outline with:\n  blog-pipeline state %s\n  blog-pipeline resume %s --outline approve|edit|reject [--notes ...]\n", st.RunID, st.RunID)
	case pipeline.NodePublishReview:
		_, _ = fmt.Fprintf(w, "\nReview the posts with:\n  blog-pipeline state %s\n  blog-pipeline resume %s --publish approve|reject [--targets ko,en]\n", st.RunID, st.RunID)
	}
	if st.IsStuck {
		_, _ = fmt.Fprintf(w, "\nRetry the failed step with:\n  blog-pipeline retry %s\n", st.RunID)
	}
}

func renderOutline(w io.Writer, state *model.PipelineState) {
	_, _ = fmt.Fprintln(w, headingStyle.Render("Outline"))
	if state.Outline == nil {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("(no outline)"))
		return
	}
	_, _ = fmt.Fprintln(w, state.Outline.Format())
}

func renderPosts(w io.Writer, state *model.PipelineState) {
	for _, lang := range state.Config().Languages() {
		post := state.PostFor(lang)
		_, _ = fmt.Fprintf(w, "%s %s\n", headingStyle.Render("["+lang+"]"), post.Title)
		if meta := state.SEO(lang); meta != nil {
			_, _ = fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("slug"), meta.SuggestedSlug)
			_, _ = fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("description"), meta.MetaDescription)
		}
		_, _ = fmt.Fprintf(w, "  %s %d characters\n", labelStyle.Render("body"), len([]rune(post.Body)))
	}
}

// parseTargets turns a language list into publish targets for langs. An
// empty list selects every language.
func parseTargets(selected []string, langs []string) ([]model.PublishTarget, error) {
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if s != model.LangKO && s != model.LangEN {
			return nil, eris.Errorf("unknown target language %q (want ko or en)", s)
		}
		want[s] = true
	}
	targets := make([]model.PublishTarget, 0, len(langs))
	for _, lang := range langs {
		targets = append(targets, model.PublishTarget{
			Language: lang,
			Platform: model.PlatformGitHubPages,
			Publish:  len(want) == 0 || want[lang],
		})
	}
	return targets, nil
}

// prompter asks the review questions of each gate.
type prompter struct {
	ask asker
	out io.Writer
}

func (p *prompter) choose(title string, options ...option) (model.HumanDecision, error) {
	q, err := p.ask.run(newChoice(title, options...))
	if err != nil {
		return "", err
	}
	return q.chosen.decision, nil
}

func (p *prompter) text(title string, validate func(string) error) (string, error) {
	q, err := p.ask.run(newTextQuestion(title, validate))
	if err != nil {
		return "", err
	}
	return q.answer, nil
}

func (p *prompter) outline(state *model.PipelineState) (model.OutlineReview, error) {
	renderOutline(p.out, state)
	d, err := p.choose("Outline review",
		option{key: 'a', label: "approve", decision: model.DecisionApprove},
		option{key: 'e', label: "edit", decision: model.DecisionEdit},
		option{key: 'r', label: "reject", decision: model.DecisionReject},
	)
	if err != nil {
		return model.OutlineReview{}, err
	}
	review := model.OutlineReview{Decision: d}
	if d == model.DecisionEdit {
		if review.Notes, err = p.text("Notes for the writer:", nil); err != nil {
			return model.OutlineReview{}, err
		}
	}
	return review, nil
}

func (p *prompter) publish(state *model.PipelineState) (model.PublishReview, error) {
	renderPosts(p.out, state)
	d, err := p.choose("Publish review",
		option{key: 'p', label: "publish", decision: model.DecisionApprove},
		option{key: 'r', label: "reject", decision: model.DecisionReject},
	)
	if err != nil {
		return model.PublishReview{}, err
	}
	review := model.PublishReview{Decision: d}
	if d == model.DecisionReject {
		return review, nil
	}
	langs := state.Config().Languages()
	split := func(answer string) []string { return strings.Split(answer, ",") }
	answer, err := p.text(fmt.Sprintf("Languages to publish (%s) [all]:", strings.Join(langs, ",")), func(answer string) error {
		_, err := parseTargets(split(answer), langs)
		return err
	})
	if err != nil {
		return model.PublishReview{}, err
	}
	review.Targets, err = parseTargets(split(answer), langs)
	return review, err
}

// gateRunner is the part of the runner driveRun needs.
type gateRunner interface {
	GetStatus(ctx context.Context, runID string) (*runner.Status, error)
	GetState(ctx context.Context, runID string) (*model.PipelineState, error)
	ResumeOutline(ctx context.Context, runID string, review model.OutlineReview) error
	ResumePublish(ctx context.Context, runID string, review model.PublishReview) error
}

// driveRun takes a run through its review gates according to mode and
// prints where it ends up. runErr is the result of the execution that
// preceded the call.
func driveRun(ctx context.Context, r gateRunner, runID string, runErr error, mode reviewMode, ask asker, out io.Writer) error {
	p := &prompter{ask: ask, out: out}
	for {
		st, err := r.GetStatus(ctx, runID)
		if err != nil {
			return err
		}
		if runErr != nil || !st.IsInterrupted || mode == reviewStop {
			renderStatus(out, *st)
			resumeHint(out, *st)
			return runErr
		}

		state, err := r.GetState(ctx, runID)
		if err != nil {
			return err
		}
		switch st.NextNode {
		case pipeline.NodeOutlineReview:
			review := model.OutlineReview{Decision: model.DecisionApprove}
			if mode == reviewPrompt {
				if review, err = p.outline(state); err != nil {
					return err
				}
			}
			runErr = r.ResumeOutline(ctx, runID, review)
		case pipeline.NodePublishReview:
			review := model.PublishReview{Decision: model.DecisionApprove}
			if mode == reviewPrompt {
				if review, err = p.publish(state); err != nil {
					return err
				}
			} else if review.Targets, err = parseTargets(nil, state.Config().Languages()); err != nil {
				return err
			}
			runErr = r.ResumePublish(ctx, runID, review)
		default:
			return eris.Errorf("run %s paused at unknown gate %q", runID, st.NextNode)
		}
	}
}
