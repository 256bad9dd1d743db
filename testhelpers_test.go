package tamer

import "testing"

// newTestDriver returns a *Driver suitable for exercising the closure/
// rendezvous scheduling layer in isolation, without opening a real
// backend or signal pipe. Only [SimpleDriver]'s embedded fields
// (unblocked FIFO, blocked-closure diagnostics) are exercised by tests
// that use this helper; full-stack tests use [NewDriver] instead.
func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	return &Driver{}
}

// resetDebugState sets the process-wide debug latch (debug.go) to the given
// enabled value for the duration of the test, restoring whatever it was before on
// cleanup. debugState is intentionally one-way in production (see
// DESIGN.md), so any test that enables it must not leak that across other
// tests in the same run.
func resetDebugState(t *testing.T, enabled bool) {
	t.Helper()
	prev := debugState.Load()
	debugState.Store(enabled)
	t.Cleanup(func() { debugState.Store(prev) })
}
