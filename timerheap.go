package tamer

import "time"

// timerNode is one entry of the timer heap (§3, §4.5): an absolute
// deadline plus the event to trigger when it arrives. seq breaks ties
// between equal deadlines in insertion order, completing the
// "(seconds, nanoseconds, insertion-order)" key from the spec (Go's
// time.Time already carries seconds+nanoseconds; seq supplies the third
// component).
type timerNode struct {
	deadline   time.Time
	seq        uint64
	foreground bool
	handle     Event0
}

func (a timerNode) less(b timerNode) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	return a.seq < b.seq
}

// timerHeap is a 4-ary min-heap over timerNode, per §4.5: "a 4-ary
// min-heap keyed on (seconds, microseconds/nanoseconds, insertion-order)."
// The wider branching factor (vs. the usual binary heap) trades a
// slightly deeper comparison fan-out for fewer cache-line-crossing
// pointer chases, the same tradeoff the original makes.
type timerHeap struct {
	nodes []timerNode
	seq   uint64
}

const heapArity = 4

func (h *timerHeap) Len() int { return len(h.nodes) }

// push inserts a new timer, assigning it the next insertion sequence.
func (h *timerHeap) push(deadline time.Time, foreground bool, handle Event0) {
	h.seq++
	h.nodes = append(h.nodes, timerNode{deadline: deadline, seq: h.seq, foreground: foreground, handle: handle})
	h.siftUp(len(h.nodes) - 1)
}

func (h *timerHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / heapArity
		if !h.nodes[i].less(h.nodes[parent]) {
			return
		}
		h.nodes[i], h.nodes[parent] = h.nodes[parent], h.nodes[i]
		i = parent
	}
}

func (h *timerHeap) siftDown(i int) {
	n := len(h.nodes)
	for {
		smallest := i
		first := i*heapArity + 1
		for c := first; c < first+heapArity && c < n; c++ {
			if h.nodes[c].less(h.nodes[smallest]) {
				smallest = c
			}
		}
		if smallest == i {
			return
		}
		h.nodes[i], h.nodes[smallest] = h.nodes[smallest], h.nodes[i]
		i = smallest
	}
}

// peek returns the earliest-deadline node without removing it, culling
// (popping and discarding) any discarded heads first, per §4.5
// "culling removes head entries whose event has been discarded."
func (h *timerHeap) peek() (timerNode, bool) {
	for len(h.nodes) > 0 {
		top := h.nodes[0]
		if top.handle.active() {
			return top, true
		}
		h.pop()
	}
	return timerNode{}, false
}

// pop removes and returns the earliest-deadline node, without culling.
func (h *timerHeap) pop() (timerNode, bool) {
	n := len(h.nodes)
	if n == 0 {
		return timerNode{}, false
	}
	top := h.nodes[0]
	last := n - 1
	h.nodes[0] = h.nodes[last]
	h.nodes = h.nodes[:last]
	if last > 0 {
		h.siftDown(0)
	}
	return top, true
}

// popExpired pops and returns every node whose deadline is <= now,
// skipping (not returning) nodes whose event was already discarded.
func (h *timerHeap) popExpired(now time.Time) []timerNode {
	var expired []timerNode
	for {
		top, ok := h.peek()
		if !ok || top.deadline.After(now) {
			return expired
		}
		h.pop()
		expired = append(expired, top)
	}
}

// nextForegroundDeadline reports the earliest deadline among foreground
// timers only, per §4.5 foreground accounting and §8's next_wake
// three-way return.
func (h *timerHeap) nextForegroundDeadline() (time.Time, bool) {
	for i := range h.nodes {
		n := h.nodes[i]
		if n.foreground && n.handle.active() {
			best := n.deadline
			found := true
			for j := i + 1; j < len(h.nodes); j++ {
				if h.nodes[j].foreground && h.nodes[j].handle.active() && h.nodes[j].deadline.Before(best) {
					best = h.nodes[j].deadline
				}
			}
			return best, found
		}
	}
	return time.Time{}, false
}

// hasForeground reports whether any live foreground timer remains.
func (h *timerHeap) hasForeground() bool {
	_, ok := h.nextForegroundDeadline()
	return ok
}
