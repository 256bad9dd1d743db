package tamer

import "fmt"

// rendezvousBase is the narrow interface a simpleEvent needs from whatever
// rendezvous it is registered with. It mirrors abstract_rendezvous in the
// original source: a single completion entry point, dispatched on the
// rendezvous' variant tag rather than through virtual inheritance.
type rendezvousBase interface {
	// complete is called exactly once per event, when that event is
	// unlinked from the waiting list (trigger or discard). e is passed
	// (rather than just its name) so functional rendezvous can read back
	// a trigger-time payload stashed in e.name by EventN.Trigger (see
	// handle.go's adapters); explicit rendezvous read e.name as the
	// join-index assigned at registration, which EventN.Trigger never
	// touches because explicit-rendezvous events are always arity 0.
	complete(e *simpleEvent, success bool)
}

// simpleEvent is the reference-counted, one-shot completion node described
// in §3/§4.1. It is intentionally unexported: callers only ever see it
// through a typed handle (Event0..Event4).
type simpleEvent struct {
	refcount int

	// parent is non-nil iff the event is active. Ownership of this
	// pointer is non-owning: the rendezvous owns the intrusive list
	// membership (prev/next/listHead), not the event itself.
	parent rendezvousBase
	name   any

	// Intrusive doubly-linked list within the parent's waiting list.
	// listHead points at the rendezvous' head-of-list field, so unlink
	// is O(1) without the rendezvous needing to search for this node.
	prev, next *simpleEvent
	listHead   **simpleEvent

	// atTrigger holds callbacks to run once, in registration order,
	// after rendezvous notification but before any refcount-zero
	// deletion. Each entry is a zero-argument trigger (success is always
	// delivered as true to at-triggers, per §4.1: "e is itself triggered
	// with success=true").
	atTrigger []func()

	// Diagnostic annotation, populated only when debug mode is enabled.
	file string
	line int

	// onComplete, if set, runs once at the same point as the at-trigger
	// chain, receiving both the success flag and the completion payload
	// last stashed in name. Unlike the public at-trigger chain (plain
	// func()), this is used internally by adapters (Map1) that need to
	// observe the *original* handle's own completion value rather than
	// proxy a trigger call into it.
	onComplete func(success bool, payload any)
}

// dead is a sentinel already-triggered simple event (§4.1). No handle in
// this package is re-pointed at it: a completed or discarded handle keeps
// referring to its own, now inactive, event.
var dead = &simpleEvent{}

// newSimpleEvent allocates an active simple event and links it onto r's
// waiting list under name.
func newSimpleEvent(r rendezvousBase, head **simpleEvent, name any) *simpleEvent {
	e := &simpleEvent{refcount: 1, parent: r, name: name, listHead: head}
	e.link()
	if debugEnabled() {
		if file, line, ok := callerOutsidePackage(0); ok {
			e.file, e.line = file, line
		}
	}
	return e
}

func (e *simpleEvent) link() {
	if e.listHead == nil {
		return
	}
	e.next = *e.listHead
	if e.next != nil {
		e.next.prev = e
	}
	e.prev = nil
	*e.listHead = e
}

func (e *simpleEvent) unlink() {
	if e.listHead == nil {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		*e.listHead = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	e.prev, e.next, e.listHead = nil, nil, nil
}

// isActive reports whether the event still has a parent rendezvous, per
// the invariant "an event is active iff parent != null".
func (e *simpleEvent) isActive() bool {
	return e.parent != nil
}

func (e *simpleEvent) use() {
	e.refcount++
}

// annotate records a diagnostic creation site for this event, whether or
// not the event is still active.
func (e *simpleEvent) annotate(file string, line int) {
	e.file, e.line = file, line
}

func (e *simpleEvent) location() string {
	if e.file == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

// registerAtTrigger attaches fn to run once this event completes or is
// discarded. If the event has already completed, fn runs immediately
// (§4.1: "Registering an at-trigger on an already-triggered event invokes
// it immediately").
func (e *simpleEvent) registerAtTrigger(fn func()) {
	if !e.isActive() {
		fn()
		return
	}
	e.atTrigger = append(e.atTrigger, fn)
}

// trigger implements the five-step completion protocol from §4.1, in the
// precise order specified:
//
//  1. Snapshot the parent, unlink from its waiting list, clear parent.
//  2. Notify the parent rendezvous (rendezvous-variant specific).
//  3. Decrement the "active" reference (see unuse below); defer deletion.
//  4. Run the at-trigger chain, once, after notification.
//  5. Nothing left to do explicitly in Go — the garbage collector reclaims
//     the event once refcount-tracked owners (handles) drop it; step 3/5
//     exist in the original purely for manual memory management that Go's
//     GC subsumes. We still decrement refcount for diagnostic/test parity
//     and to make "still referenced" assertions meaningful in tests.
func (e *simpleEvent) trigger(success bool) {
	r := e.parent
	if r == nil {
		return // already inactive: a no-op, per §8 round-trip property.
	}
	e.unlink()
	e.parent = nil
	disarmPrematureDereferenceWarning(e)

	r.complete(e, success)

	e.unuse()

	if e.onComplete != nil {
		fn := e.onComplete
		e.onComplete = nil
		fn(success, e.name)
	}

	if len(e.atTrigger) != 0 {
		chain := e.atTrigger
		e.atTrigger = nil
		for _, fn := range chain {
			fn()
		}
	}
}

// unuse drops the strong reference to this event. When called from
// trigger, it tracks completion bookkeeping only (Go's GC handles actual
// deallocation), but mirrors the original's refcount semantics closely
// enough that EventN.Trigger/discard bookkeeping and tests that inspect
// refcount behave identically to the spec.
func (e *simpleEvent) unuse() {
	if e.refcount > 0 {
		e.refcount--
	}
}

// discard is trigger(false): a cancellation. Result slots are not written
// by callers of this path (see EventN.discard in handle.go).
func (e *simpleEvent) discard() {
	e.trigger(false)
}

// triggerWithPayload overwrites the event's name with payload immediately
// before completing. EventN.Trigger (N>=1) uses this so a FunctionalRendezvous
// hook built by an adapter (bind/map/with) can recover the triggered value(s)
// from e.name; explicit-rendezvous events are always arity-0 (Event0), so
// their join-index in e.name is never disturbed by this path.
func (e *simpleEvent) triggerWithPayload(success bool, payload any) {
	e.name = payload
	e.trigger(success)
}

// registerOnComplete sets the internal completion observer described above.
// Intended to be called immediately after the event is constructed, before
// it has any chance to complete; unlike registerAtTrigger it does not
// attempt to fire immediately for an already-inactive event, since the
// success flag at completion time is not retained afterward.
func (e *simpleEvent) registerOnComplete(fn func(success bool, payload any)) {
	if !e.isActive() {
		return
	}
	e.onComplete = fn
}
