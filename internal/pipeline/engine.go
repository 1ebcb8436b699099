package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/store"
)

// Engine drives a compiled Graph over checkpoints.
//
// Every node runs with the state of the checkpoint it is pending in. When it
// succeeds its update is merged, the next node is routed, and the checkpoint
// is saved pending on that node. When it fails the checkpoint is saved with
// the same pending node and LastError set, so Retry re-runs it from the same
// preceding state.
type Engine struct {
	graph     *Graph
	store     store.Store
	callbacks Callbacks
}

// NewEngine creates an Engine. cb may be nil.
func NewEngine(g *Graph, st store.Store, cb Callbacks) *Engine {
	if cb == nil {
		cb = BaseCallbacks{}
	}
	return &Engine{graph: g, store: st, callbacks: cb}
}

// Graph returns the graph the engine executes.
func (e *Engine) Graph() *Graph { return e.graph }

// Run executes cp from its pending node until the run pauses before a human
// gate, reaches the end of the graph, or a node fails. With enterGate set, a
// checkpoint paused at a gate passes through it; callers set it once the
// reviewer's input has been merged.
func (e *Engine) Run(ctx context.Context, cp *model.Checkpoint, enterGate bool) error {
	ctx = WithRunID(ctx, cp.RunID)
	log := zap.L().With(zap.String("run_id", cp.RunID))

	for {
		name := cp.NextNode()
		if name == "" {
			log.Info("pipeline: run finished", zap.String("current_step", cp.State.Step()))
			return nil
		}
		node, err := e.graph.Node(name)
		if err != nil {
			return err
		}
		if node.Kind == KindHumanGate && !enterGate {
			log.Info("pipeline: paused for human review", zap.String("node", name))
			e.callbacks.Paused(ctx, cp.RunID, name)
			return nil
		}
		enterGate = false

		if err := ctx.Err(); err != nil {
			log.Warn("pipeline: run cancelled", zap.String("node", name), zap.Error(err))
			return err
		}
		if err := e.step(ctx, cp, node, log); err != nil {
			return err
		}
	}
}

func (e *Engine) step(ctx context.Context, cp *model.Checkpoint, node Node, log *zap.Logger) error {
	log = log.With(zap.String("node", node.Name))
	if node.Kind == KindHumanGate {
		log.Info("pipeline: human gate passed", zap.String("decision", gateDecision(node.Name, &cp.State)))
	} else {
		log.Info("pipeline: node started", zap.Int("rewrite_count", cp.State.Rewrites()))
	}

	start := time.Now()
	upd, runErr := node.exec(ctx, &cp.State)
	elapsed := time.Since(start)
	e.callbacks.NodeFinished(ctx, NodeEvent{RunID: cp.RunID, Node: node.Name, Kind: node.Kind, Duration: elapsed, Err: runErr})

	if runErr != nil {
		nodeErr := &NodeError{Node: node.Name, Err: runErr}
		log.Error("pipeline: node failed",
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Error(runErr),
		)
		// Only terminal nodes report partial effects that already happened,
		// such as posts written before a failed commit.
		if node.Kind == KindTerminal {
			cp.State.Merge(upd)
		}
		cp.LastError = nodeErr.Error()
		if err := e.store.SaveCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
			log.Error("pipeline: save failure checkpoint", zap.Error(err))
		}
		return nodeErr
	}

	cp.State.Merge(upd)
	if node.Kind != KindHumanGate {
		cp.State.CurrentStep = model.Ptr(node.Name)
	}

	next, err := e.graph.next(ctx, node.Name, &cp.State)
	if err != nil {
		return err
	}
	cp.PendingNodes = []string{}
	if next != End {
		cp.PendingNodes = []string{next}
	}
	cp.LastError = ""

	if err := e.store.SaveCheckpoint(ctx, cp); err != nil {
		return eris.Wrapf(err, "pipeline: checkpoint after %s", node.Name)
	}
	log.Info("pipeline: node complete",
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.String("next", next),
	)
	return nil
}

func gateDecision(gate string, s *model.PipelineState) string {
	var d *model.HumanDecision
	switch gate {
	case NodeOutlineReview:
		d = s.OutlineDecision
	case NodePublishReview:
		d = s.PublishDecision
	}
	if d == nil {
		return ""
	}
	return string(*d)
}
