package testutil

import (
	"context"
	"testing"
)

// Start starts c and stops it when the test ends.
func Start(t testing.TB, c TestComponent) {
	t.Helper()
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start %s: %v", c.Name(), err)
	}
	t.Cleanup(func() {
		if err := c.Stop(ctx); err != nil {
			t.Errorf("stop %s: %v", c.Name(), err)
		}
	})
}

// Reset returns c to its initial state between subtests.
func Reset(t testing.TB, c TestComponent) {
	t.Helper()
	if err := c.Reset(context.Background()); err != nil {
		t.Fatalf("reset %s: %v", c.Name(), err)
	}
}

// AssertSnapshotRestore snapshots c, runs mutate and restores the
// snapshot. Any failing step fails the test.
func AssertSnapshotRestore(t testing.TB, c TestComponent, mutate func()) {
	t.Helper()
	ctx := context.Background()
	snap, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot %s: %v", c.Name(), err)
	}
	mutate()
	if err := c.Restore(ctx, snap); err != nil {
		t.Fatalf("restore %s: %v", c.Name(), err)
	}
}
