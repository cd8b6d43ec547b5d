package handler

import (
	"context"
	"fmt"

	"github.com/eranb/em-aws/component"
)

// Component wraps a Handler with lifecycle management.
type Component struct {
	name    string
	config  Config
	opts    []Option
	handler *Handler
}

// compile-time assertions
var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent creates a handler component. The handler is created in Start.
func NewComponent(name string, cfg Config, opts ...Option) *Component {
	return &Component{name: name, config: cfg, opts: opts}
}

// Name returns the component name.
func (c *Component) Name() string {
	if c.name == "" {
		return "http-handler"
	}
	return c.name
}

// Start creates the handler.
func (c *Component) Start(_ context.Context) error {
	h, err := New(c.config, c.opts...)
	if err != nil {
		return err
	}
	c.handler = h
	return nil
}

// Stop shuts the handler's pools down.
func (c *Component) Stop(ctx context.Context) error {
	if c.handler != nil {
		return c.handler.Shutdown(ctx)
	}
	return nil
}

// Health reports unhealthy before Start and degraded while any origin pool
// has every connection checked out.
func (c *Component) Health(_ context.Context) component.Health {
	if c.handler == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	for _, s := range c.handler.Stats() {
		if s.Size > 0 && s.InUse >= s.Size {
			return component.Health{
				Name:    c.Name(),
				Status:  component.StatusDegraded,
				Message: fmt.Sprintf("pool for %s exhausted", s.Origin),
			}
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns the component description for the startup summary.
func (c *Component) Describe() component.Description {
	cfg := c.config
	cfg.ApplyDefaults()
	return component.Description{
		Name:    c.Name(),
		Type:    "http-handler",
		Details: fmt.Sprintf("pool=%d never_block=%t connect=%s", cfg.PoolSize, cfg.NeverBlock, cfg.ConnectTimeout),
	}
}

// Handler returns the underlying handler. Must be called after Start.
func (c *Component) Handler() *Handler {
	return c.handler
}
