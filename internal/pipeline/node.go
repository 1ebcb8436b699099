// Package pipeline implements the blog workflow graph: typed nodes, routing
// rules, and an engine that checkpoints after every node and stops before
// human review gates.
package pipeline

import (
	"context"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// NodeKind selects how the engine executes a node.
type NodeKind int

const (
	// KindAgent nodes call an Agent and merge its partial update.
	KindAgent NodeKind = iota
	// KindHumanGate nodes do no work. The engine stops before them until a
	// reviewer's input has been merged into state.
	KindHumanGate
	// KindTerminal nodes run side effects and always end the run.
	KindTerminal
)

func (k NodeKind) String() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindHumanGate:
		return "human_gate"
	case KindTerminal:
		return "terminal"
	}
	return "unknown"
}

// Agent is one LLM step. Run reads the state and returns a partial update.
// It must not mutate s, and it retries its own transient failures: any error
// it returns halts the run.
type Agent interface {
	Name() string
	Run(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error)
}

// NodeFunc executes a node. A func that fails after an irreversible side
// effect may return the update recording that effect together with the
// error; the engine persists it and keeps the node pending.
type NodeFunc func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error)

// Node is one step of the graph.
type Node struct {
	Name string
	Kind NodeKind
	Run  NodeFunc
}

// AgentNode wraps a as a graph node named after it.
func AgentNode(a Agent) Node {
	return Node{Name: a.Name(), Kind: KindAgent, Run: a.Run}
}

// GateNode declares a human review pause point.
func GateNode(name string) Node {
	return Node{Name: name, Kind: KindHumanGate}
}

// TerminalNode declares a final node; the graph ends after it.
func TerminalNode(name string, fn NodeFunc) Node {
	return Node{Name: name, Kind: KindTerminal, Run: fn}
}

func (n Node) exec(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
	if n.Run == nil {
		return nil, nil
	}
	return n.Run(ctx, s)
}

type runIDKey struct{}

// WithRunID attaches the run identifier to ctx for node functions.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run identifier the engine attached to ctx.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
