package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// ErrNotFound is returned when no checkpoint exists for a run ID.
var ErrNotFound = eris.New("store: checkpoint not found")

// CheckpointFilter specifies criteria for listing checkpoints.
type CheckpointFilter struct {
	UpdatedAfter time.Time `json:"updated_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store persists one checkpoint per run.
//
// SaveCheckpoint is an atomic upsert: a concurrent or subsequent
// LoadCheckpoint sees either the previous snapshot or the new one, never a
// mix. It assigns a fresh Version and UpdatedAt, and sets CreatedAt when the
// checkpoint carries none.
type Store interface {
	SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error
	LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error)
	DeleteCheckpoint(ctx context.Context, runID string) error
	ListCheckpoints(ctx context.Context, filter CheckpointFilter) ([]model.Checkpoint, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(filter CheckpointFilter) uint64 {
	if filter.Limit <= 0 {
		return defaultListLimit
	}
	return uint64(filter.Limit)
}

func notFound(runID string) error {
	return eris.Wrapf(ErrNotFound, "run %s", runID)
}

// stamp assigns the write metadata a save records.
func stamp(cp *model.Checkpoint) {
	now := time.Now().UTC()
	cp.Version = uuid.New().String()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if cp.PendingNodes == nil {
		cp.PendingNodes = []string{}
	}
}

// encodeCheckpoint serializes the JSON columns shared by the SQL backends.
func encodeCheckpoint(cp *model.Checkpoint) (state, pending []byte, err error) {
	state, err = json.Marshal(cp.State)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal state")
	}
	pending, err = json.Marshal(cp.PendingNodes)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal pending nodes")
	}
	return state, pending, nil
}

func decodeCheckpoint(cp *model.Checkpoint, state, pending []byte) error {
	if err := json.Unmarshal(state, &cp.State); err != nil {
		return eris.Wrap(err, "store: unmarshal state")
	}
	if err := json.Unmarshal(pending, &cp.PendingNodes); err != nil {
		return eris.Wrap(err, "store: unmarshal pending nodes")
	}
	return nil
}
