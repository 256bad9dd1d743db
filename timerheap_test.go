package tamer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerHeap_PopOrdersByDeadlineThenInsertion(t *testing.T) {
	var h timerHeap
	base := time.Unix(1000, 0)

	h.push(base.Add(3*time.Second), true, MakeEvent0(NewGatherRendezvous()))
	h.push(base.Add(1*time.Second), true, MakeEvent0(NewGatherRendezvous()))
	h.push(base.Add(1*time.Second), true, MakeEvent0(NewGatherRendezvous()))
	h.push(base.Add(2*time.Second), true, MakeEvent0(NewGatherRendezvous()))

	var order []time.Time
	for h.Len() > 0 {
		n, ok := h.pop()
		require.True(t, ok)
		order = append(order, n.deadline)
	}

	assert.Equal(t, []time.Time{
		base.Add(1 * time.Second),
		base.Add(1 * time.Second),
		base.Add(2 * time.Second),
		base.Add(3 * time.Second),
	}, order)
}

func TestTimerHeap_PeekCullsDiscardedHeads(t *testing.T) {
	var h timerHeap
	base := time.Unix(2000, 0)

	r := NewGatherRendezvous()
	discarded := MakeEvent0(r)
	h.push(base, true, discarded)

	live := MakeEvent0(NewGatherRendezvous())
	h.push(base.Add(time.Second), true, live)

	discarded.Discard()

	top, ok := h.peek()
	require.True(t, ok)
	assert.True(t, top.deadline.Equal(base.Add(time.Second)))
	assert.Equal(t, 1, h.Len(), "discarded head must be culled, not just skipped")
}

func TestTimerHeap_PopExpiredSkipsDiscardedAndFuture(t *testing.T) {
	var h timerHeap
	base := time.Unix(3000, 0)

	discarded := MakeEvent0(NewGatherRendezvous())
	h.push(base, true, discarded)
	discarded.Discard()

	due := MakeEvent0(NewGatherRendezvous())
	h.push(base.Add(time.Second), true, due)

	future := MakeEvent0(NewGatherRendezvous())
	h.push(base.Add(time.Hour), true, future)

	expired := h.popExpired(base.Add(time.Second))
	require.Len(t, expired, 1)
	assert.True(t, expired[0].deadline.Equal(base.Add(time.Second)))
	assert.Equal(t, 1, h.Len(), "future timer remains queued")
}

func TestTimerHeap_NextForegroundDeadlineIgnoresBackground(t *testing.T) {
	var h timerHeap
	base := time.Unix(4000, 0)

	h.push(base.Add(time.Second), false, MakeEvent0(NewGatherRendezvous()))
	h.push(base.Add(5*time.Second), true, MakeEvent0(NewGatherRendezvous()))

	d, ok := h.nextForegroundDeadline()
	require.True(t, ok)
	assert.True(t, d.Equal(base.Add(5*time.Second)))
	assert.True(t, h.hasForeground())
}

func TestTimerHeap_HasForegroundFalseWhenOnlyBackground(t *testing.T) {
	var h timerHeap
	h.push(time.Unix(5000, 0), false, MakeEvent0(NewGatherRendezvous()))

	assert.False(t, h.hasForeground())
	_, ok := h.nextForegroundDeadline()
	assert.False(t, ok)
}
