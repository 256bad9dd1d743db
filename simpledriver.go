package tamer

// SimpleDriver is the closure-scheduling core shared by every [Driver]
// instance (§2, component 5): a FIFO of rendezvous that became ready and
// now owe their blocked closure a resumption, plus a lookup used only for
// diagnostics ([Driver.BlockedLocations]).
//
// It contains no I/O, timer, or signal machinery — that is layered on top
// by [Driver] itself (§2, component 6).
type SimpleDriver struct {
	unblockedQueue  []blockableRendezvous
	blockedClosures map[*Closure]blockableAdder
}

// pushUnblocked appends r to the tail of the unblocked FIFO, per §4.4.
// Membership is deduplicated by the caller (blockState.scheduleIfBlocked)
// before this is ever invoked.
func (d *SimpleDriver) pushUnblocked(r blockableRendezvous) {
	d.unblockedQueue = append(d.unblockedQueue, r)
}

// runUnblocked drains the FIFO, activating each rendezvous' blocked
// closure exactly once per entry, in strict FIFO order (§4.4, §8). A
// closure resumed here may itself block again and be re-appended during
// this same drain — that is expected and matches "closures resume in the
// FIFO order in which they became unblocked during this or a prior tick."
func (d *SimpleDriver) runUnblocked() {
	for len(d.unblockedQueue) > 0 {
		r := d.unblockedQueue[0]
		d.unblockedQueue = d.unblockedQueue[1:]
		if c, blockID, ok := r.takeBlocked(); ok {
			c.Activate(blockID)
			c.unuse()
		}
	}
}

// hasUnblockedWork reports whether any closure is waiting to be resumed,
// used by foreground accounting (§4.5).
func (d *SimpleDriver) hasUnblockedWork() bool {
	return len(d.unblockedQueue) > 0
}

func (d *SimpleDriver) registerBlocked(c *Closure, r blockableAdder) {
	if d.blockedClosures == nil {
		d.blockedClosures = make(map[*Closure]blockableAdder)
	}
	d.blockedClosures[c] = r
}

func (d *SimpleDriver) clearBlocked(c *Closure) {
	delete(d.blockedClosures, c)
}

// blockedLocations returns a diagnostic snapshot of every closure
// currently blocked on some rendezvous owned by this driver.
func (d *SimpleDriver) blockedLocations() []string {
	if len(d.blockedClosures) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.blockedClosures))
	for c := range d.blockedClosures {
		loc := c.Location()
		if loc == "" {
			loc = "<unannotated>"
		}
		if desc := c.LocationDescription(); desc != "" {
			loc += " (" + desc + ")"
		}
		out = append(out, loc)
	}
	return out
}
