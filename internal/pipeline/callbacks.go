package pipeline

import (
	"context"
	"time"
)

// NodeEvent describes one finished node execution.
type NodeEvent struct {
	RunID    string
	Node     string
	Kind     NodeKind
	Duration time.Duration
	Err      error
}

// Callbacks observes engine progress. Implementations must be safe for
// concurrent use; runs execute in parallel.
type Callbacks interface {
	NodeFinished(ctx context.Context, ev NodeEvent)
	Paused(ctx context.Context, runID, gate string)
	ForcedPass(ctx context.Context, runID string, rewrites int)
}

// BaseCallbacks does nothing. Embed it to implement a subset.
type BaseCallbacks struct{}

func (BaseCallbacks) NodeFinished(context.Context, NodeEvent) {}

func (BaseCallbacks) Paused(context.Context, string, string) {}

func (BaseCallbacks) ForcedPass(context.Context, string, int) {}

// CallbackChain fans events out to several Callbacks in order.
type CallbackChain []Callbacks

func (c CallbackChain) NodeFinished(ctx context.Context, ev NodeEvent) {
	for _, cb := range c {
		cb.NodeFinished(ctx, ev)
	}
}

func (c CallbackChain) Paused(ctx context.Context, runID, gate string) {
	for _, cb := range c {
		cb.Paused(ctx, runID, gate)
	}
}

func (c CallbackChain) ForcedPass(ctx context.Context, runID string, rewrites int) {
	for _, cb := range c {
		cb.ForcedPass(ctx, runID, rewrites)
	}
}
