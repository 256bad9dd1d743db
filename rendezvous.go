package tamer

import "fmt"

// blockableRendezvous is implemented by rendezvous variants a closure can
// [Block] on: gather and the two explicit arities. It lets the driver's
// unblocked FIFO (closure.go) treat all of them uniformly without a
// virtual-dispatch class hierarchy.
type blockableRendezvous interface {
	// takeBlocked clears and returns the rendezvous' blocked closure, if
	// any, along with the block-id it was blocked at.
	takeBlocked() (c *Closure, blockID int, ok bool)
}

// blockState holds the "at most one blocked closure" bookkeeping shared by
// every blockable rendezvous variant (§3: "a pointer to the blocked
// closure (nullable) and the block-id"), plus unblocked-FIFO membership.
type blockState struct {
	driver  *Driver
	closure *Closure
	blockID int
	queued  bool

	// Diagnostic creation site, populated only when debug mode is enabled
	// (§3, §7 kind 4) — there is no *Driver available yet at construction
	// time, so this reads the process-wide debug latch rather than a
	// per-Driver flag (see debug.go).
	file string
	line int
}

// annotateSite records the rendezvous' own creation site, if debug mode is
// enabled, so a kind-4 misuse report can name "the offending rendezvous's
// creation site."
func (b *blockState) annotateSite() {
	if debugEnabled() {
		if file, line, ok := callerOutsidePackage(0); ok {
			b.file, b.line = file, line
		}
	}
}

func (b *blockState) location() string {
	if b.file == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", b.file, b.line)
}

// block attaches c to the rendezvous at blockID, per §4.4. It is an error
// to block a second closure on a rendezvous that already has one blocked.
func (b *blockState) block(d *Driver, c *Closure, blockID int) error {
	if b.closure != nil {
		return ErrAlreadyBlocked
	}
	b.driver = d
	b.closure = c
	b.blockID = blockID
	c.use()
	return nil
}

// scheduleIfBlocked appends self to the driver's unblocked FIFO the first
// time this rendezvous becomes ready while a closure is blocked on it,
// per §4.4's "if the rendezvous has a blocked closure and is not already
// on the unblocked FIFO, append it to the tail."
func (b *blockState) scheduleIfBlocked(self blockableRendezvous) {
	if b.closure != nil && !b.queued {
		b.queued = true
		b.driver.pushUnblocked(self)
	}
}

func (b *blockState) takeBlocked() (*Closure, int, bool) {
	if b.closure == nil {
		return nil, 0, false
	}
	c, id := b.closure, b.blockID
	b.closure, b.queued = nil, false
	return c, id, true
}

// hasBlockedClosure reports whether a closure is currently blocked here,
// without consuming it — used by the destruction protocol (§4.3).
func (b *blockState) hasBlockedClosure() bool {
	return b.closure != nil
}

// GatherRendezvous is the `rendezvous<>` variant (§4.3): it counts waiting
// events only, becoming ready when its waiting list empties. Successful
// triggers and discards are not distinguished.
type GatherRendezvous struct {
	blockState
	head *simpleEvent
}

// NewGatherRendezvous creates an empty gather rendezvous.
func NewGatherRendezvous() *GatherRendezvous {
	r := &GatherRendezvous{}
	r.annotateSite()
	return r
}

func (r *GatherRendezvous) newEvent(name any) *simpleEvent {
	e := newSimpleEvent(r, &r.head, name)
	armPrematureDereferenceWarning(e)
	return e
}

// complete implements rendezvousBase. The waiting list has already been
// unlinked by simpleEvent.trigger by the time this runs, so head==nil
// means "no events remain waiting."
func (r *GatherRendezvous) complete(_ *simpleEvent, _ bool) {
	if r.head == nil {
		r.scheduleIfBlocked(r)
	}
}

// Waiting reports the number of events still on the waiting list.
func (r *GatherRendezvous) Waiting() int {
	n := 0
	for e := r.head; e != nil; e = e.next {
		n++
	}
	return n
}

// Clear implements the rendezvous destruction protocol from §4.3: every
// waiting event is discarded (two-phase — detach all parents first, then
// fire at-triggers, so reentrant callbacks see a consistent, already-empty
// rendezvous), and a blocked closure is marked terminated and scheduled to
// run once more so it can unwind.
func (r *GatherRendezvous) Clear() {
	events := detachAll(&r.head)
	for _, e := range events {
		e.parent = nil
	}
	for _, e := range events {
		e.completeDiscarded()
	}
	if c, _, ok := r.takeBlocked(); ok {
		c.terminate()
		r.driver.pushUnblocked(terminatedRendezvous{c: c})
	}
}

// FunctionalRendezvous runs a completion hook on every event it receives;
// it never blocks a closure (§4.3). It is the building block for the
// bind/map/with/distribute adapters (§4.2) and for any ad-hoc continuation.
type FunctionalRendezvous struct {
	headSlot *simpleEvent
	hook     func(success bool, payload any)
}

// NewFunctionalRendezvous creates a functional rendezvous running hook on
// every completion. hook may be nil and set later (used internally by
// adapters that need to close over the event they just created).
func NewFunctionalRendezvous(hook func(success bool, payload any)) *FunctionalRendezvous {
	return &FunctionalRendezvous{hook: hook}
}

func (f *FunctionalRendezvous) newEvent(name any) *simpleEvent {
	return newSimpleEvent(f, &f.headSlot, name)
}

func (f *FunctionalRendezvous) complete(e *simpleEvent, success bool) {
	if f.hook != nil {
		f.hook(success, e.name)
	}
}

// DistributeRendezvous is the private rendezvous type backing the
// [Distribute] adapter: completing its single exported event fans the same
// success value out to every member, in registration order, then the
// rendezvous has no further use (§4.3).
type DistributeRendezvous struct {
	headSlot *simpleEvent
	members  []Event0
}

func (d *DistributeRendezvous) complete(_ *simpleEvent, success bool) {
	for _, m := range d.members {
		if success {
			m.Trigger()
		} else {
			m.Discard()
		}
	}
}

// detachAll empties the intrusive list rooted at *head and returns its
// members, without invoking any callbacks — the first phase of the
// destruction protocol in §4.3.
func detachAll(head **simpleEvent) []*simpleEvent {
	var out []*simpleEvent
	for e := *head; e != nil; {
		next := e.next
		e.prev, e.next, e.listHead = nil, nil, nil
		out = append(out, e)
		e = next
	}
	*head = nil
	return out
}

// completeDiscarded fires e's at-trigger chain as if e had been discarded,
// without touching any rendezvous (the event's parent has already been
// cleared by detachAll). Used only by the rendezvous destruction protocol.
func (e *simpleEvent) completeDiscarded() {
	e.unuse()
	disarmPrematureDereferenceWarning(e)
	if len(e.atTrigger) != 0 {
		chain := e.atTrigger
		e.atTrigger = nil
		for _, fn := range chain {
			fn()
		}
	}
}

// terminatedRendezvous is a one-shot blockableRendezvous used to schedule a
// closure for its final "unwind" activation after the rendezvous it was
// blocked on was destroyed out from under it (§4.3).
type terminatedRendezvous struct {
	c *Closure
}

func (t terminatedRendezvous) takeBlocked() (*Closure, int, bool) {
	return t.c, -1, true
}
