package tamer

import "time"

// WithTimeout races h against deadline: the returned handle triggers as soon
// as either h completes or deadline passes, discarding whichever of the two
// did not win. This is the original's at_time(deadline, discard(e)) timeout
// pairing (described narratively, not formalized, in the source this was
// distilled from) promoted to a first-class adapter, since nearly every
// caller that blocks on an external event also wants a deadline on it.
func WithTimeout(d *Driver, deadline time.Time, h Event0) Event0 {
	fr := NewFunctionalRendezvous(nil)
	out := Event0{se: fr.newEvent(nil)}

	var timer Event0
	timer = MakeEvent0(NewFunctionalRendezvous(func(success bool, _ any) {
		if success {
			h.Discard()
			out.Trigger()
		}
	}))
	_ = d.AtTime(deadline, timer, false)

	h.AtTrigger(MakeEvent0(NewFunctionalRendezvous(func(bool, any) {
		timer.Discard()
		out.Trigger()
	})))

	return out
}
