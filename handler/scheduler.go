package handler

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrSchedulerStopped is returned when work is submitted to a scheduler
// that is not running.
var ErrSchedulerStopped = errors.New("handler: scheduler is not running")

// Scheduler runs request tasks in the background. A running scheduler
// passed with WithScheduler lets async calls return before they complete;
// without one, Handle runs a scheduler of its own for the duration of the
// call.
type Scheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	group   *errgroup.Group
	running bool
}

// NewScheduler returns a stopped scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Start starts the scheduler. Tasks run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("handler: scheduler already running")
	}
	s.ctx = ctx
	s.group = new(errgroup.Group)
	s.running = true
	return nil
}

// Running reports whether the scheduler accepts tasks.
func (s *Scheduler) Running() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Go runs fn in the background.
func (s *Scheduler) Go(fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerStopped
	}
	ctx := s.ctx
	s.group.Go(func() error { return fn(ctx) })
	return nil
}

// Stop stops accepting tasks, waits for the running ones and returns the
// first error any of them returned.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	g := s.group
	s.running, s.group, s.ctx = false, nil, nil
	s.mu.Unlock()
	return g.Wait()
}
