package tamer

// eventSource is implemented by rendezvous variants that accept events
// without a caller-supplied name component (gather, functional). The
// distribute rendezvous is not one: its single event is created by
// [Distribute] itself. Explicit rendezvous variants expose their own strongly
// typed constructors instead (see rendezvous_explicit.go), since their
// name type is a generic parameter rather than `any`.
type eventSource interface {
	newEvent(name any) *simpleEvent
}

// Event0 is a zero-argument typed event handle: a shared reference to a
// simpleEvent with no result slots. It is returned by rendezvous that carry
// their payload in the name (explicit rendezvous) or carry no payload at
// all (gather), and is also the type of every at-trigger and "unblocker"
// handle.
type Event0 struct {
	se *simpleEvent
}

// MakeEvent0 registers a new zero-argument event with r.
func MakeEvent0(r eventSource) Event0 {
	return Event0{se: r.newEvent(nil)}
}

// Empty reports whether the underlying event has already completed
// (triggered or discarded).
func (h Event0) Empty() bool {
	return h.se == nil || !h.se.isActive()
}

// active reports whether this handle still refers to a live event, for
// internal bookkeeping (fd-interest reconciliation, timer culling).
func (h Event0) active() bool {
	return h.se != nil && h.se.isActive()
}

// Trigger completes the event with success=true. A no-op if the handle is
// already empty, per §8's round-trip property.
func (h Event0) Trigger() {
	if h.se == nil {
		return
	}
	h.se.trigger(true)
}

// Discard cancels the event: trigger(false), writing no slots. Equivalent
// to dropping the last handle in the original's reference-counted model.
func (h Event0) Discard() {
	if h.se == nil {
		return
	}
	h.se.trigger(false)
}

// Clear is an alias for Discard, matching the §6 external-interface name
// handle.clear().
func (h Event0) Clear() { h.Discard() }

// AtTrigger attaches e to this event's at-trigger chain: e fires when this
// event completes or is discarded, per §4.2.
func (h Event0) AtTrigger(e Event0) {
	if h.se == nil || e.se == nil {
		return
	}
	h.se.registerAtTrigger(func() { e.se.trigger(true) })
}

// Unblocker returns a zero-argument handle sharing the same underlying
// event, for "just wake me up" waits where result values are irrelevant.
func (h Event0) Unblocker() Event0 {
	if h.se != nil {
		h.se.use()
	}
	return h
}

// Annotate records a diagnostic creation site (file:line) on the
// underlying event, used by blocked-closure diagnostics when debug mode is
// enabled.
func (h Event0) Annotate(file string, line int) Event0 {
	if h.se != nil {
		h.se.annotate(file, line)
	}
	return h
}

// Event1 is a one-result-slot typed event handle.
type Event1[T1 any] struct {
	se    *simpleEvent
	slot1 *T1
}

// MakeEvent1 registers a new one-slot event with r; slot1 may be nil,
// meaning "ignore this value" (§4.2).
func MakeEvent1[T1 any](r eventSource, slot1 *T1) Event1[T1] {
	return Event1[T1]{se: r.newEvent(nil), slot1: slot1}
}

func (h Event1[T1]) Empty() bool { return h.se == nil || !h.se.isActive() }

func (h Event1[T1]) active() bool { return h.se != nil && h.se.isActive() }

// Trigger writes v1 into the registered slot (iff non-nil and the event is
// still active) then completes the event with success=true. The value is
// also stashed as the event's completion payload, so FunctionalRendezvous
// hooks built by Bind/Map/With can recover it.
func (h Event1[T1]) Trigger(v1 T1) {
	if h.se == nil || !h.se.isActive() {
		return
	}
	if h.slot1 != nil {
		*h.slot1 = v1
	}
	h.se.triggerWithPayload(true, v1)
}

func (h Event1[T1]) Discard() {
	if h.se != nil {
		h.se.trigger(false)
	}
}

func (h Event1[T1]) Clear() { h.Discard() }

func (h Event1[T1]) AtTrigger(e Event0) {
	if h.se == nil || e.se == nil {
		return
	}
	h.se.registerAtTrigger(func() { e.se.trigger(true) })
}

// Unblocker discards this handle's result-slot binding and returns a plain
// zero-argument handle sharing the same completion.
func (h Event1[T1]) Unblocker() Event0 {
	if h.se != nil {
		h.se.use()
	}
	return Event0{se: h.se}
}

func (h Event1[T1]) Annotate(file string, line int) Event1[T1] {
	if h.se != nil {
		h.se.annotate(file, line)
	}
	return h
}

// pair2 bundles two trigger-time values so a two-slot event can stash both
// as a single completion payload (see triggerWithPayload).
type pair2[T1, T2 any] struct {
	V1 T1
	V2 T2
}

// Event2 is a two-result-slot typed event handle.
type Event2[T1, T2 any] struct {
	se    *simpleEvent
	slot1 *T1
	slot2 *T2
}

func MakeEvent2[T1, T2 any](r eventSource, slot1 *T1, slot2 *T2) Event2[T1, T2] {
	return Event2[T1, T2]{se: r.newEvent(nil), slot1: slot1, slot2: slot2}
}

func (h Event2[T1, T2]) Empty() bool { return h.se == nil || !h.se.isActive() }

func (h Event2[T1, T2]) Trigger(v1 T1, v2 T2) {
	if h.se == nil || !h.se.isActive() {
		return
	}
	if h.slot1 != nil {
		*h.slot1 = v1
	}
	if h.slot2 != nil {
		*h.slot2 = v2
	}
	h.se.triggerWithPayload(true, pair2[T1, T2]{v1, v2})
}

func (h Event2[T1, T2]) Discard() {
	if h.se != nil {
		h.se.trigger(false)
	}
}

func (h Event2[T1, T2]) Clear() { h.Discard() }

func (h Event2[T1, T2]) AtTrigger(e Event0) {
	if h.se == nil || e.se == nil {
		return
	}
	h.se.registerAtTrigger(func() { e.se.trigger(true) })
}

func (h Event2[T1, T2]) Unblocker() Event0 {
	if h.se != nil {
		h.se.use()
	}
	return Event0{se: h.se}
}

// pair3/pair4 extend pair2 to the remaining supported arities.
type pair3[T1, T2, T3 any] struct {
	V1 T1
	V2 T2
	V3 T3
}

type pair4[T1, T2, T3, T4 any] struct {
	V1 T1
	V2 T2
	V3 T3
	V4 T4
}

// Event3 is a three-result-slot typed event handle.
type Event3[T1, T2, T3 any] struct {
	se    *simpleEvent
	slot1 *T1
	slot2 *T2
	slot3 *T3
}

func MakeEvent3[T1, T2, T3 any](r eventSource, slot1 *T1, slot2 *T2, slot3 *T3) Event3[T1, T2, T3] {
	return Event3[T1, T2, T3]{se: r.newEvent(nil), slot1: slot1, slot2: slot2, slot3: slot3}
}

func (h Event3[T1, T2, T3]) Empty() bool { return h.se == nil || !h.se.isActive() }

func (h Event3[T1, T2, T3]) Trigger(v1 T1, v2 T2, v3 T3) {
	if h.se == nil || !h.se.isActive() {
		return
	}
	if h.slot1 != nil {
		*h.slot1 = v1
	}
	if h.slot2 != nil {
		*h.slot2 = v2
	}
	if h.slot3 != nil {
		*h.slot3 = v3
	}
	h.se.triggerWithPayload(true, pair3[T1, T2, T3]{v1, v2, v3})
}

func (h Event3[T1, T2, T3]) Discard() {
	if h.se != nil {
		h.se.trigger(false)
	}
}

func (h Event3[T1, T2, T3]) Unblocker() Event0 {
	if h.se != nil {
		h.se.use()
	}
	return Event0{se: h.se}
}

// Event4 is a four-result-slot typed event handle, the maximum arity the
// original source supports.
type Event4[T1, T2, T3, T4 any] struct {
	se    *simpleEvent
	slot1 *T1
	slot2 *T2
	slot3 *T3
	slot4 *T4
}

func MakeEvent4[T1, T2, T3, T4 any](r eventSource, slot1 *T1, slot2 *T2, slot3 *T3, slot4 *T4) Event4[T1, T2, T3, T4] {
	return Event4[T1, T2, T3, T4]{se: r.newEvent(nil), slot1: slot1, slot2: slot2, slot3: slot3, slot4: slot4}
}

func (h Event4[T1, T2, T3, T4]) Empty() bool { return h.se == nil || !h.se.isActive() }

func (h Event4[T1, T2, T3, T4]) Trigger(v1 T1, v2 T2, v3 T3, v4 T4) {
	if h.se == nil || !h.se.isActive() {
		return
	}
	if h.slot1 != nil {
		*h.slot1 = v1
	}
	if h.slot2 != nil {
		*h.slot2 = v2
	}
	if h.slot3 != nil {
		*h.slot3 = v3
	}
	if h.slot4 != nil {
		*h.slot4 = v4
	}
	h.se.triggerWithPayload(true, pair4[T1, T2, T3, T4]{v1, v2, v3, v4})
}

func (h Event4[T1, T2, T3, T4]) Discard() {
	if h.se != nil {
		h.se.trigger(false)
	}
}

func (h Event4[T1, T2, T3, T4]) Unblocker() Event0 {
	if h.se != nil {
		h.se.use()
	}
	return Event0{se: h.se}
}

// --- Adapters (§4.2), implemented on FunctionalRendezvous ---
//
// Each adapter consumes an input handle and returns a new handle. For the
// bind adapters the returned handle is registered with a private
// FunctionalRendezvous whose hook, run when the *returned* handle is
// triggered or discarded, forwards the call through to the consumed input
// handle: a proxy rather than a forward observer. Map1 and WithResult run
// the other way (they observe the input's own completion, see below), and
// Distribute is built on a DistributeRendezvous.

// Bind1 consumes a one-slot handle and pre-fills it with v, producing a
// zero-slot handle: bind<0>(h, v).trigger() == h.Trigger(v).
func Bind1[T1 any](h Event1[T1], v T1) Event0 {
	fr := NewFunctionalRendezvous(nil)
	fr.hook = func(success bool, _ any) {
		if success {
			h.Trigger(v)
		} else {
			h.Discard()
		}
	}
	return Event0{se: fr.newEvent(nil)}
}

// Bind2First consumes a two-slot handle and pre-fills its first slot with
// v1, producing a one-slot handle for the remaining slot: bind<0>(h, v1).
func Bind2First[T1, T2 any](h Event2[T1, T2], v1 T1) Event1[T2] {
	fr := NewFunctionalRendezvous(nil)
	se := fr.newEvent(nil)
	fr.hook = func(success bool, payload any) {
		if success {
			v2 := payload.(T2)
			h.Trigger(v1, v2)
		} else {
			h.Discard()
		}
	}
	return Event1[T2]{se: se}
}

// Bind2Second consumes a two-slot handle and pre-fills its second slot with
// v2, producing a one-slot handle for the remaining slot: bind<1>(h, v2).
func Bind2Second[T1, T2 any](h Event2[T1, T2], v2 T2) Event1[T1] {
	fr := NewFunctionalRendezvous(nil)
	se := fr.newEvent(nil)
	fr.hook = func(success bool, payload any) {
		if success {
			v1 := payload.(T1)
			h.Trigger(v1, v2)
		} else {
			h.Discard()
		}
	}
	return Event1[T1]{se: se}
}

// Map1 consumes a one-slot handle<T> and produces a one-slot handle<U>
// that completes when h does, writing f(v) (v being whatever h was
// triggered with) into slot, per §4.2's map(handle, f). Unlike the bind
// adapters, the direction here runs the other way: it is h's own
// producer that triggers h, and Map1's returned handle observes that
// completion rather than proxying a trigger call into h.
func Map1[T, U any](h Event1[T], slot *U, f func(T) U) Event1[U] {
	fr := NewFunctionalRendezvous(nil)
	se := fr.newEvent(nil)
	h.se.registerOnComplete(func(success bool, payload any) {
		if success {
			v := f(payload.(T))
			if slot != nil {
				*slot = v
			}
			se.triggerWithPayload(true, v)
		} else {
			se.trigger(false)
		}
	})
	return Event1[U]{se: se, slot1: slot}
}

// WithResult consumes a zero-slot handle and produces another zero-slot
// handle that, when the *input* completes, writes value into out on
// success or the zero value of E on discard: with(handle, &out, value).
//
// This observes h's own completion via onComplete (as Map1 does), rather
// than h's at-trigger chain: at-trigger callbacks always fire with
// success=true (§4.1), which would lose the trigger/discard distinction
// this adapter exists to preserve.
func WithResult[E any](h Event0, out *E, value E) Event0 {
	fr := NewFunctionalRendezvous(nil)
	se := fr.newEvent(nil)
	h.se.registerOnComplete(func(success bool, _ any) {
		if success {
			*out = value
		} else {
			var zero E
			*out = zero
		}
		se.trigger(true)
	})
	return Event0{se: se}
}

// Distribute combines n zero-argument events into one: triggering or
// discarding the returned handle triggers (resp. discards) every member,
// in the order they were passed, exactly once each. Discarding the
// returned handle before it is ever triggered also discards every member
// (§4.2: "canceled when discarded").
func Distribute(members ...Event0) Event0 {
	dr := &DistributeRendezvous{members: members}
	se := newSimpleEvent(dr, &dr.headSlot, nil)
	return Event0{se: se}
}
