package main

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// option is one answer to a multiple-choice question. key selects it
// directly.
type option struct {
	key      rune
	label    string
	decision model.HumanDecision
}

// question is a bubbletea model that collects a single answer, either a
// choice from options or a line of free text.
type question struct {
	title    string
	options  []option
	validate func(string) error

	cursor    int
	input     textinput.Model
	errMsg    string
	answer    string
	chosen    option
	done      bool
	cancelled bool
}

func newChoice(title string, options ...option) *question {
	return &question{title: title, options: options}
}

func newTextQuestion(title string, validate func(string) error) *question {
	input := textinput.New()
	input.Prompt = ""
	input.Focus()
	return &question{title: title, validate: validate, input: input}
}

func (q *question) isChoice() bool { return len(q.options) > 0 }

func (q *question) Init() tea.Cmd {
	if q.isChoice() {
		return nil
	}
	return textinput.Blink
}

func (q *question) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if q.isChoice() {
			return q, nil
		}
		var cmd tea.Cmd
		q.input, cmd = q.input.Update(msg)
		return q, cmd
	}
	switch key.String() {
	case "ctrl+c", "esc":
		q.cancelled = true
		return q, tea.Quit
	case "enter":
		return q, q.submit()
	}
	if q.isChoice() {
		return q, q.updateChoice(key)
	}
	var cmd tea.Cmd
	q.input, cmd = q.input.Update(key)
	return q, cmd
}

func (q *question) updateChoice(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "up", "k":
		if q.cursor > 0 {
			q.cursor--
		}
		return nil
	case "down", "j":
		if q.cursor < len(q.options)-1 {
			q.cursor++
		}
		return nil
	}
	if key.Type != tea.KeyRunes || len(key.Runes) != 1 {
		return nil
	}
	r := []rune(strings.ToLower(string(key.Runes)))[0]
	for i, o := range q.options {
		if o.key == r {
			q.cursor = i
			return q.submit()
		}
	}
	return nil
}

func (q *question) submit() tea.Cmd {
	if q.isChoice() {
		q.chosen = q.options[q.cursor]
		q.answer = q.chosen.label
		q.done = true
		return tea.Quit
	}
	answer := strings.TrimSpace(q.input.Value())
	if q.validate != nil {
		if err := q.validate(answer); err != nil {
			q.errMsg = err.Error()
			q.input.Reset()
			return nil
		}
	}
	q.answer = answer
	q.errMsg = ""
	q.done = true
	return tea.Quit
}

func (q *question) View() string {
	var b strings.Builder
	b.WriteString(gateStyle.Render(q.title))
	if q.done {
		b.WriteString(" " + q.answer + "\n")
		return b.String()
	}
	if !q.isChoice() {
		b.WriteString(" " + q.input.View() + "\n")
		if q.errMsg != "" {
			b.WriteString(failStyle.Render(q.errMsg) + "\n")
		}
		return b.String()
	}
	b.WriteString("\n")
	for i, o := range q.options {
		line := "  [" + string(o.key) + "] " + o.label
		if i == q.cursor {
			b.WriteString(okStyle.Render("> "+line[2:]) + "\n")
			continue
		}
		b.WriteString(mutedStyle.Render(line) + "\n")
	}
	b.WriteString(mutedStyle.Render("up/down to move, enter to select, esc to cancel") + "\n")
	return b.String()
}

// asker runs a question to completion.
type asker interface {
	run(q *question) (*question, error)
}

// terminalAsker runs each question as its own bubbletea program.
type terminalAsker struct {
	ctx context.Context
	in  io.Reader
	out io.Writer
}

func newTerminalAsker(ctx context.Context, in io.Reader, out io.Writer) *terminalAsker {
	return &terminalAsker{ctx: ctx, in: in, out: out}
}

func (t *terminalAsker) run(q *question) (*question, error) {
	p := tea.NewProgram(q, tea.WithContext(t.ctx), tea.WithInput(t.in), tea.WithOutput(t.out))
	final, err := p.Run()
	if err != nil {
		return nil, eris.Wrap(err, "read answer")
	}
	done, ok := final.(*question)
	if !ok || !done.done {
		return nil, eris.New("review cancelled")
	}
	return done, nil
}
