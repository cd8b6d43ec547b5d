package pool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common pool errors.
var (
	// ErrExhausted is returned by Acquire in never-block mode when every
	// connection of the origin is checked out.
	ErrExhausted = errors.New("pool: no free connection")
	// ErrTimeout is returned when no connection was released within Config.Timeout.
	ErrTimeout = errors.New("pool: timed out waiting for a connection")
	// ErrClosed is returned by Acquire after Shutdown.
	ErrClosed = errors.New("pool: closed")
)

// Conn is a pooled connection. Close releases every resource it holds.
type Conn interface {
	Close() error
}

// Factory builds a new connection for origin. pooled reports whether the
// connection will be kept for reuse or discarded after a single request.
type Factory[C Conn] func(ctx context.Context, origin string, pooled bool) (C, error)

// Config configures connection pooling.
type Config struct {
	// Size is the maximum number of checked-out connections per origin.
	// 0 disables pooling.
	Size int
	// NeverBlock makes Acquire fail with ErrExhausted instead of waiting.
	NeverBlock bool
	// Timeout bounds how long Acquire waits for a free connection. A caller
	// deadline that expires first also yields ErrTimeout.
	// 0 waits until the caller's context is done.
	Timeout time.Duration
	// OnAcquire is called after a connection is checked out.
	OnAcquire func(origin string)
	// OnRelease is called after a connection is returned or discarded.
	OnRelease func(origin string)
	// OnReject is called when Acquire fails because of exhaustion or timeout.
	OnReject func(origin string, err error)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Size < 0 {
		return fmt.Errorf("pool: size must not be negative (got %d)", c.Size)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("pool: timeout must not be negative (got %s)", c.Timeout)
	}
	return nil
}

// Enabled reports whether connections are pooled.
func (c Config) Enabled() bool {
	return c.Size > 0
}

// Stats is a point-in-time view of one origin's pool.
type Stats struct {
	Origin string
	Size   int
	InUse  int
	Idle   int
}
