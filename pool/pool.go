package pool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool holds the connections of a single origin.
type Pool[C Conn] struct {
	origin  string
	config  Config
	factory Factory[C]
	sem     *semaphore.Weighted

	mu     sync.Mutex
	idle   []C
	inUse  int
	closed bool
}

func newPool[C Conn](origin string, cfg Config, factory Factory[C]) *Pool[C] {
	return &Pool[C]{
		origin:  origin,
		config:  cfg,
		factory: factory,
		sem:     semaphore.NewWeighted(int64(cfg.Size)),
	}
}

// Origin returns the origin served by this pool.
func (p *Pool[C]) Origin() string {
	return p.origin
}

// Acquire checks out a connection, reusing an idle one when possible.
func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	var zero C
	if err := p.acquireSlot(ctx); err != nil {
		if p.config.OnReject != nil {
			p.config.OnReject(p.origin, err)
		}
		return zero, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return zero, ErrClosed
	}
	p.inUse++
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		p.acquired()
		return c, nil
	}
	p.mu.Unlock()

	// The slot is already reserved, so dialing happens outside the lock.
	c, err := p.factory(ctx, p.origin, true)
	if err != nil {
		p.mu.Lock()
		p.inUse--
		p.mu.Unlock()
		p.sem.Release(1)
		return zero, err
	}
	p.acquired()
	return c, nil
}

// Release returns a checked-out connection for reuse.
func (p *Pool[C]) Release(c C) {
	p.mu.Lock()
	p.inUse--
	if p.closed {
		p.mu.Unlock()
		_ = c.Close()
	} else {
		p.idle = append(p.idle, c)
		p.mu.Unlock()
	}
	p.sem.Release(1)
	p.released()
}

// Discard closes a checked-out connection instead of returning it.
func (p *Pool[C]) Discard(c C) {
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()
	_ = c.Close()
	p.sem.Release(1)
	p.released()
}

// Close closes all idle connections. Connections still checked out are
// closed when they come back.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, c := range idle {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the current pool occupancy.
func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Origin: p.origin,
		Size:   p.config.Size,
		InUse:  p.inUse,
		Idle:   len(p.idle),
	}
}

// acquireSlot reserves one checkout slot.
func (p *Pool[C]) acquireSlot(ctx context.Context) error {
	if p.sem.TryAcquire(1) {
		return nil
	}
	if p.config.NeverBlock {
		return ErrExhausted
	}

	waitCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		// Only cancellation is reported as such; any expired deadline is a pool timeout.
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return ErrTimeout
	}
	return nil
}

func (p *Pool[C]) acquired() {
	if p.config.OnAcquire != nil {
		p.config.OnAcquire(p.origin)
	}
}

func (p *Pool[C]) released() {
	if p.config.OnRelease != nil {
		p.config.OnRelease(p.origin)
	}
}
