package runner

import "sync"

// runLocks is a set of held run IDs.
type runLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newRunLocks() *runLocks {
	return &runLocks{held: make(map[string]struct{})}
}

func (l *runLocks) tryLock(runID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[runID]; ok {
		return false
	}
	l.held[runID] = struct{}{}
	return true
}

func (l *runLocks) unlock(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, runID)
}

func (l *runLocks) isHeld(runID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[runID]
	return ok
}
