package tamer

import "strconv"

// ActivateFunc is a closure's resumable entry point, the Go stand-in for
// compiler-generated state-machine dispatch (§4.6). It is called with the
// block-id to resume at (0 on first activation) and returns the next
// block-id to resume at, or done=true if the closure has returned.
//
// The terminated sentinel from §4.6 ((unsigned)-1 in the original) is
// delivered as blockID == -1, e.g. when a rendezvous a closure was blocked
// on is destroyed out from under it (§4.3's destruction protocol).
// ActivateFunc implementations should treat blockID == -1 as "unwind and
// return" regardless of what they were about to do.
type ActivateFunc func(blockID int) (next int, done bool)

// Closure is a suspendable task (§3/§4.4): an owner-refcounted state
// machine with a current resume position and a pointer to whatever
// rendezvous it is presently blocked on.
type Closure struct {
	driver     *Driver
	fn         ActivateFunc
	refcount   int
	blockID    int
	terminated bool

	// Diagnostic description (file, line, text), populated via Annotate.
	file, line int
	text       string

	blockedOn blockableRendezvous // for diagnostics only (Driver.BlockedLocations)
}

// NewClosure creates a closure owned by d, ready for its first Activate(0).
// The returned refcount is 1 (the caller's own reference); blocking it on a
// rendezvous adds a second, internal reference for the duration of the
// block (§4.4).
func NewClosure(d *Driver, fn ActivateFunc) *Closure {
	c := &Closure{driver: d, fn: fn, refcount: 1}
	if d != nil && d.debug {
		if file, line, ok := callerOutsidePackage(0); ok {
			c.file, c.line = file, line
		}
	}
	return c
}

// Annotate records a diagnostic description for this closure, surfaced by
// [Closure.Location] and [Driver.BlockedLocations]. [NewClosure] already
// populates file/line automatically when d's driver has debug mode enabled;
// calling Annotate overrides that with a caller-chosen site and/or text.
func (c *Closure) Annotate(file string, line int, text string) *Closure {
	c.file, c.line, c.text = file, line, text
	return c
}

// Location returns "file:line" for this closure's diagnostic annotation,
// or "" if none was set.
func (c *Closure) Location() string {
	if c.file == "" {
		return ""
	}
	return c.file + ":" + strconv.Itoa(c.line)
}

// LocationDescription returns the free-text description passed to
// Annotate, if any.
func (c *Closure) LocationDescription() string {
	return c.text
}

func (c *Closure) use() {
	c.refcount++
}

func (c *Closure) unuse() {
	if c.refcount > 0 {
		c.refcount--
	}
}

// Terminated reports whether this closure has returned.
func (c *Closure) Terminated() bool {
	return c.terminated
}

func (c *Closure) terminate() {
	c.blockID = -1
	c.blockedOn = nil
}

// Activate resumes the closure at blockID, running fn until it next blocks
// or returns. It is a no-op if the closure has already terminated.
func (c *Closure) Activate(blockID int) {
	if c.terminated {
		return
	}
	c.blockedOn = nil
	if c.driver != nil {
		c.driver.clearBlocked(c)
	}
	next, done := c.fn(blockID)
	if done {
		c.terminated = true
		c.blockID = -1
	} else {
		c.blockID = next
	}
}

// Block attaches rendezvous r to closure c at the given block position,
// per §4.4: the rendezvous holds at most one blocked closure at a time,
// and bumps c's owner count so it survives suspension. blockID is the
// resume position ActivateFunc should receive when r next wakes c.
//
// Block returns [ErrAlreadyBlocked] if r already has a closure (c itself
// included) blocked on it, and [ErrBlockOutsideDriver] if c was not created by d.
func Block[R blockableAdder](d *Driver, c *Closure, r R, blockID int) error {
	bs := r.state()
	if c.driver != d {
		return d.reportMisuse(ErrBlockOutsideDriver, bs.location())
	}
	if err := bs.block(d, c, blockID); err != nil {
		return d.reportMisuse(err, bs.location())
	}
	c.blockedOn = r
	d.registerBlocked(c, r)
	return nil
}

// blockableAdder is implemented by every blockable rendezvous (gather,
// both explicit arities): it exposes the embedded blockState that [Block]
// manipulates, without requiring a public field.
type blockableAdder interface {
	blockableRendezvous
	state() *blockState
}

func (r *GatherRendezvous) state() *blockState         { return &r.blockState }
func (r *ExplicitRendezvous[I]) state() *blockState     { return &r.blockState }
func (r *ExplicitRendezvous2[I, J]) state() *blockState { return &r.blockState }
