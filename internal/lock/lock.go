// Package lock provides the advisory locks that keep two runs of the same
// stage from working on one session or response at once.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when another holder owns the key.
var ErrHeld = errors.New("lock already held")

// Locker hands out non-blocking advisory locks.
type Locker interface {
	// TryAcquire takes key or fails with ErrHeld. The returned release func
	// must be called exactly once.
	TryAcquire(ctx context.Context, key string) (release func(), err error)
}

// Keys used by the stage endpoints.
func ContentKey(sessionID string) string     { return "session:" + sessionID + ":content" }
func AssessmentKey(sessionID string) string  { return "session:" + sessionID + ":assessment" }
func EvaluationKey(responseID string) string { return "response:" + responseID + ":evaluation" }

// MemoryLocker holds locks in process memory. It only protects a single
// server instance.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// TryAcquire implements Locker.
func (m *MemoryLocker) TryAcquire(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, ErrHeld
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
