package model

import "time"

// Checkpoint is the durable snapshot of one run: its full state plus the
// node(s) the engine will execute next. An empty PendingNodes means the run
// reached a terminal node.
type Checkpoint struct {
	RunID        string        `json:"run_id"`
	Version      string        `json:"version"`
	State        PipelineState `json:"state"`
	PendingNodes []string      `json:"pending_nodes"`
	LastError    string        `json:"last_error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NextNode returns the first pending node, or "" when the run is finished.
func (c *Checkpoint) NextNode() string {
	if len(c.PendingNodes) == 0 {
		return ""
	}
	return c.PendingNodes[0]
}
