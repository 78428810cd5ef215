package testutil

import (
	"context"

	"github.com/kbukum/photoflow/component"
)

// TestComponent is a component whose state tests can clear, capture and
// roll back. The in-memory storage provider implements it.
type TestComponent interface {
	component.Component

	Reset(ctx context.Context) error
	// Snapshot returns an opaque value accepted by Restore.
	Snapshot(ctx context.Context) (interface{}, error)
	Restore(ctx context.Context, snapshot interface{}) error
}
