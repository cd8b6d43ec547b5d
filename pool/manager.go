package pool

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Manager owns one Pool per origin.
type Manager[C Conn] struct {
	config  Config
	factory Factory[C]

	mu     sync.Mutex
	pools  map[string]*Pool[C]
	closed bool
}

// NewManager creates a manager. Pools are created lazily on first Acquire.
func NewManager[C Conn](cfg Config, factory Factory[C]) *Manager[C] {
	return &Manager[C]{
		config:  cfg,
		factory: factory,
		pools:   make(map[string]*Pool[C]),
	}
}

// Config returns the manager configuration.
func (m *Manager[C]) Config() Config {
	return m.config
}

// Acquire hands out a connection for origin. Without pooling a new,
// unpooled connection is built for every call.
func (m *Manager[C]) Acquire(ctx context.Context, origin string) (C, error) {
	if !m.config.Enabled() {
		var zero C
		if m.isClosed() {
			return zero, ErrClosed
		}
		c, err := m.factory(ctx, origin, false)
		if err != nil {
			return zero, err
		}
		if m.config.OnAcquire != nil {
			m.config.OnAcquire(origin)
		}
		return c, nil
	}

	p, err := m.pool(origin)
	if err != nil {
		var zero C
		return zero, err
	}
	return p.Acquire(ctx)
}

// Release gives a connection back to its origin's pool. Unpooled
// connections are closed.
func (m *Manager[C]) Release(origin string, c C) {
	if !m.config.Enabled() {
		m.closeUnpooled(origin, c)
		return
	}
	if p := m.lookup(origin); p != nil {
		p.Release(c)
		return
	}
	_ = c.Close()
}

// Discard closes a connection and frees its slot without reusing it.
func (m *Manager[C]) Discard(origin string, c C) {
	if !m.config.Enabled() {
		m.closeUnpooled(origin, c)
		return
	}
	if p := m.lookup(origin); p != nil {
		p.Discard(c)
		return
	}
	_ = c.Close()
}

// Shutdown closes every pool. Subsequent Acquire calls fail with ErrClosed.
func (m *Manager[C]) Shutdown(_ context.Context) error {
	m.mu.Lock()
	m.closed = true
	pools := make([]*Pool[C], 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	var errs []error
	for _, p := range pools {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns per-origin occupancy sorted by origin.
func (m *Manager[C]) Stats() []Stats {
	m.mu.Lock()
	pools := make([]*Pool[C], 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	stats := make([]Stats, 0, len(pools))
	for _, p := range pools {
		stats = append(stats, p.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Origin < stats[j].Origin })
	return stats
}

func (m *Manager[C]) pool(origin string) (*Pool[C], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	p, ok := m.pools[origin]
	if !ok {
		p = newPool(origin, m.config, m.factory)
		m.pools[origin] = p
	}
	return p, nil
}

func (m *Manager[C]) lookup(origin string) *Pool[C] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pools[origin]
}

func (m *Manager[C]) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager[C]) closeUnpooled(origin string, c C) {
	_ = c.Close()
	if m.config.OnRelease != nil {
		m.config.OnRelease(origin)
	}
}
