package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// MemoryStore keeps checkpoints in process memory. Snapshots are stored
// serialized so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp *model.Checkpoint) error {
	stamp(cp)
	data, err := json.Marshal(cp)
	if err != nil {
		return eris.Wrap(err, "memory: marshal checkpoint")
	}
	s.mu.Lock()
	s.data[cp.RunID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadCheckpoint(_ context.Context, runID string) (*model.Checkpoint, error) {
	s.mu.RLock()
	data, ok := s.data[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(runID)
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal checkpoint")
	}
	return &cp, nil
}

func (s *MemoryStore) DeleteCheckpoint(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[runID]; !ok {
		return notFound(runID)
	}
	delete(s.data, runID)
	return nil
}

func (s *MemoryStore) ListCheckpoints(_ context.Context, filter CheckpointFilter) ([]model.Checkpoint, error) {
	s.mu.RLock()
	all := make([]model.Checkpoint, 0, len(s.data))
	for _, data := range s.data {
		var cp model.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			s.mu.RUnlock()
			return nil, eris.Wrap(err, "memory: unmarshal checkpoint")
		}
		if !filter.UpdatedAfter.IsZero() && !cp.UpdatedAt.After(filter.UpdatedAfter) {
			continue
		}
		all = append(all, cp)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if limit := int(listLimit(filter)); len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
