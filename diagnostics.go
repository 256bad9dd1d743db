package tamer

import (
	"runtime"
	"time"
)

// armPrematureDereferenceWarning installs a finalizer that emits the kind-5
// diagnostic (§7: "premature dereference warning") if e is ever collected
// while still active — the last reference to an event that was never
// triggered or discarded. Only called for the non-volatile rendezvous
// variants (gather, explicit, explicit2): the functional/distribute
// rendezvous backing the bind/map/with/distribute adapters are internal
// plumbing whose events are routinely discarded as part of normal proxying,
// so arming them here would warn on correct, unremarkable code (see
// DESIGN.md).
//
// Grounded on the teacher's own finalizer idiom in
// inprocgrpc/clientstreamadapter.go (setFinalizer, cancelling an abandoned
// client stream's context).
func armPrematureDereferenceWarning(e *simpleEvent) {
	runtime.SetFinalizer(e, func(e *simpleEvent) {
		if e.isActive() {
			logPrematureDereference(e)
		}
	})
}

// disarmPrematureDereferenceWarning clears the finalizer once an event has
// completed through the ordinary trigger/discard path, so a normal
// completion is never mistaken for an abandoned one. Safe to call on an
// event that never had a finalizer installed.
func disarmPrematureDereferenceWarning(e *simpleEvent) {
	runtime.SetFinalizer(e, nil)
}

func logPrematureDereference(e *simpleEvent) {
	l := getLogger()
	if !l.IsEnabled(LevelWarn) {
		return
	}
	msg := "tamer: last reference to an active event was dropped without triggering or discarding it"
	if loc := e.location(); loc != "" {
		msg += " (created at " + loc + ")"
	}
	l.Log(LogEntry{Level: LevelWarn, Category: "closure", Message: msg, Timestamp: time.Now()})
}
