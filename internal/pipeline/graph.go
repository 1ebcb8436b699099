package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// End is the pseudo-node a route returns to finish the run.
const End = "__end__"

// Router picks the next node from the merged state.
type Router func(ctx context.Context, s *model.PipelineState) string

// Builder declares nodes and edges. Compile validates the result.
type Builder struct {
	nodes   map[string]Node
	order   []string
	edges   map[string]Router
	targets map[string][]string
	entry   string
	errors  []error
}

// NewBuilder starts an empty graph.
func NewBuilder() *Builder {
	return &Builder{
		nodes:   make(map[string]Node),
		edges:   make(map[string]Router),
		targets: make(map[string][]string),
	}
}

// AddNode registers n. Names must be unique.
func (b *Builder) AddNode(n Node) *Builder {
	switch {
	case n.Name == "" || n.Name == End:
		b.errors = append(b.errors, eris.Errorf("pipeline: invalid node name %q", n.Name))
	case b.has(n.Name):
		b.errors = append(b.errors, eris.Errorf("pipeline: duplicate node %q", n.Name))
	case n.Kind == KindAgent && n.Run == nil:
		b.errors = append(b.errors, eris.Errorf("pipeline: agent node %q has no run func", n.Name))
	default:
		b.nodes[n.Name] = n
		b.order = append(b.order, n.Name)
	}
	return b
}

// SetEntryPoint names the first node of every run.
func (b *Builder) SetEntryPoint(name string) *Builder {
	b.entry = name
	return b
}

// AddEdge adds a fixed transition.
func (b *Builder) AddEdge(from, to string) *Builder {
	return b.AddConditionalEdge(from, func(context.Context, *model.PipelineState) string { return to }, to)
}

// AddConditionalEdge routes from a node through r. targets lists every node r
// can return so Compile can check them.
func (b *Builder) AddConditionalEdge(from string, r Router, targets ...string) *Builder {
	if _, dup := b.edges[from]; dup {
		b.errors = append(b.errors, eris.Errorf("pipeline: node %q already has an outgoing edge", from))
		return b
	}
	b.edges[from] = r
	b.targets[from] = targets
	return b
}

func (b *Builder) has(name string) bool {
	_, ok := b.nodes[name]
	return ok
}

// Compile checks the declaration and returns an immutable Graph.
func (b *Builder) Compile() (*Graph, error) {
	errs := append([]error(nil), b.errors...)
	if !b.has(b.entry) {
		errs = append(errs, eris.Wrapf(ErrUnknownNode, "entry point %q", b.entry))
	}
	for _, name := range b.order {
		n := b.nodes[name]
		_, routed := b.edges[name]
		switch {
		case n.Kind == KindTerminal && routed:
			errs = append(errs, eris.Errorf("pipeline: terminal node %q cannot have outgoing edges", name))
		case n.Kind != KindTerminal && !routed:
			errs = append(errs, eris.Errorf("pipeline: node %q has no outgoing edge", name))
		}
	}
	froms := make([]string, 0, len(b.targets))
	for from := range b.targets {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		targets := b.targets[from]
		if !b.has(from) {
			errs = append(errs, eris.Wrapf(ErrUnknownNode, "edge from %q", from))
		}
		for _, t := range targets {
			if t != End && !b.has(t) {
				errs = append(errs, eris.Wrapf(ErrUnknownNode, "edge %s -> %s", from, t))
			}
		}
	}
	if len(errs) > 0 {
		if len(errs) == 1 {
			return nil, eris.Wrap(errs[0], "pipeline: compile graph")
		}
		// Wrap the first problem so errors.Is still sees it, and list the rest.
		rest := make([]string, 0, len(errs)-1)
		for _, err := range errs[1:] {
			rest = append(rest, err.Error())
		}
		return nil, eris.Wrapf(errs[0], "pipeline: compile graph (also: %s)", strings.Join(rest, "; "))
	}
	return &Graph{nodes: b.nodes, order: b.order, edges: b.edges, entry: b.entry}, nil
}

// Graph is a compiled, read-only workflow.
type Graph struct {
	nodes map[string]Node
	order []string
	edges map[string]Router
	entry string
}

// Entry returns the first node of every run.
func (g *Graph) Entry() string { return g.entry }

// Node looks up a node by name.
func (g *Graph) Node(name string) (Node, error) {
	n, ok := g.nodes[name]
	if !ok {
		return Node{}, eris.Wrapf(ErrUnknownNode, "node %q", name)
	}
	return n, nil
}

// Gates returns the names of the human review nodes, sorted.
func (g *Graph) Gates() []string {
	var out []string
	for name, n := range g.nodes {
		if n.Kind == KindHumanGate {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IsGate reports whether name is a human review node.
func (g *Graph) IsGate(name string) bool {
	n, ok := g.nodes[name]
	return ok && n.Kind == KindHumanGate
}

// Nodes returns node names in declaration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// next returns the node after from, or End.
func (g *Graph) next(ctx context.Context, from string, s *model.PipelineState) (string, error) {
	n, err := g.Node(from)
	if err != nil {
		return "", err
	}
	if n.Kind == KindTerminal {
		return End, nil
	}
	to := g.edges[from](ctx, s)
	if to != End {
		if _, err := g.Node(to); err != nil {
			return "", eris.Wrapf(err, "route from %s", from)
		}
	}
	return to, nil
}
