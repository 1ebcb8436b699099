package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrUnknownNode is returned when a checkpoint or edge names a node the graph
// does not define.
var ErrUnknownNode = eris.New("pipeline: unknown node")

// NodeError is an unrecovered failure of one node. The run stays pending on
// Node and can be retried.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("pipeline: node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
