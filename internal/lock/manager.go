package lock

import (
	"context"
	"sync"
	"time"

	"github.com/gatherhq/registration-service/internal/domain"
)

// Manager is the in-process Keyed implementation: a table of per-key
// semaphores, suitable for single-instance deployments. Entries are
// reference-counted so the table does not grow with the number of keys ever
// seen.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

func (m *Manager) WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error {
	e := m.retain(key)
	defer m.release(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
	case <-timer.C:
		return domain.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (m *Manager) retain(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
