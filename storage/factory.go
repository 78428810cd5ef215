package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/photoflow/logger"
)

// Factory creates a Storage implementation from config.
type Factory func(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a storage backend factory for the given provider name.
// Implementation packages call this in an init function to make themselves
// available to New.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New creates a Storage implementation based on the given Config.
// Ensure the desired provider package has been imported (e.g.
// _ "github.com/kbukum/photoflow/storage/local") so its factory is registered.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported provider %q (not registered)", cfg.Provider)
	}

	l := log.WithComponent("storage")
	l.Debug("initializing storage", logger.Fields("provider", cfg.Provider, "destination", cfg.Describe()))
	return f(ctx, cfg, l)
}
