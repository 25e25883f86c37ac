package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
)

// Manager owns one pool per named shard. It is created once at startup and
// injected wherever a shard connection is needed.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*DB
}

// NewManager connects every configured shard. A failure closes the pools
// opened so far.
func NewManager(ctx context.Context, shards map[string]Config) (*Manager, error) {
	m := &Manager{pools: make(map[string]*DB, len(shards))}

	names := make([]string, 0, len(shards))
	for name := range shards {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db, err := New(ctx, shards[name])
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("shard %s: %w", name, err)
		}
		m.pools[name] = db
	}
	return m, nil
}

// Acquire returns the pool bound to the named shard.
func (m *Manager) Acquire(name string) (*DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	db, ok := m.pools[name]
	if !ok {
		return nil, errors.Unavailable(name, fmt.Errorf("no pool configured"))
	}
	return db, nil
}

// Names lists the managed shards in a stable order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping checks a single shard.
func (m *Manager) Ping(ctx context.Context, name string) error {
	db, err := m.Acquire(name)
	if err != nil {
		return err
	}
	return db.Ping(ctx)
}

// HealthCheck pings every shard in turn. A nil entry means healthy.
func (m *Manager) HealthCheck(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for _, name := range m.Names() {
		out[name] = m.Ping(ctx, name)
	}
	return out
}

// Close releases every pool.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, db := range m.pools {
		db.Close()
		delete(m.pools, name)
	}
}
