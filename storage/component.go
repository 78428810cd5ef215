package storage

import (
	"context"
	"fmt"

	"github.com/kbukum/photoflow/component"
	"github.com/kbukum/photoflow/logger"
)

// Component wraps Storage and implements component.Component for lifecycle management.
type Component struct {
	storage Storage
	cfg     Config
	log     *logger.Logger
}

// NewComponent creates a storage component for use with the component registry.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	return &Component{
		cfg: cfg,
		log: log.WithComponent("storage"),
	}
}

// Storage returns the underlying Storage, or nil if not started.
func (c *Component) Storage() Storage {
	return c.storage
}

// ensure Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// Name returns the component name.
func (c *Component) Name() string { return "storage" }

// Start initializes the storage backend.
func (c *Component) Start(ctx context.Context) error {
	s, err := New(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.storage = s
	return nil
}

// Stop releases the backend.
func (c *Component) Stop(_ context.Context) error {
	c.storage = nil
	return nil
}

// Health probes the destination root with Ping.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.storage == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "storage not initialized",
		}
	}
	if err := c.storage.Ping(ctx); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("destination not writable: %v", err),
		}
	}
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
	}
}

// Describe returns summary info for the run summary.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Storage",
		Type:    "storage",
		Details: fmt.Sprintf("provider=%s destination=%s", c.cfg.Provider, c.cfg.Describe()),
	}
}
