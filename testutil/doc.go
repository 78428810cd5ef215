// Package testutil provides testing infrastructure for photoflow.
//
// It extends the component lifecycle with test-only state management and
// builds photo fixtures: JPEG and PNG images of a chosen size, optionally
// carrying an EXIF capture date, written into a temporary input tree.
//
// Basic usage with automatic cleanup:
//
//	func TestRun(t *testing.T) {
//	    store := memory.New()
//	    testutil.Start(t, store)
//	    in := t.TempDir()
//	    testutil.WritePhoto(t, in, "2024/wide.jpg", testutil.JPEG(t, 40, 20))
//	}
//
// TestComponent adds Reset, Snapshot and Restore to component.Component.
package testutil
