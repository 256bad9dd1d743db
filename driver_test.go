package tamer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPollDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := NewDriver(WithBackend("poll"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestNewDriver_CloseIsIdempotent(t *testing.T) {
	d, err := NewDriver(WithBackend("poll"))
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func TestNewDriver_WithDebugSetsFieldAndGlobalLatch(t *testing.T) {
	resetDebugState(t, false)
	require.False(t, debugEnabled())

	d, err := NewDriver(WithBackend("poll"), WithDebug(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.True(t, d.debug)
	assert.True(t, debugEnabled(), "NewDriver(WithDebug(true)) must latch the process-wide debug flag for event/rendezvous auto-annotation")
}

func TestDriver_NextWakeNoForegroundWork(t *testing.T) {
	d := newPollDriver(t)
	w, ok := d.NextWake()
	assert.False(t, ok)
	assert.Zero(t, w)
}

func TestDriver_AtAsapRunsOnNextStep(t *testing.T) {
	d := newPollDriver(t)

	h := MakeEvent0(NewGatherRendezvous())
	require.NoError(t, d.AtAsap(h))

	w, ok := d.NextWake()
	assert.True(t, ok)
	assert.Zero(t, w)

	require.NoError(t, d.Step())
	assert.True(t, h.Empty())
}

func TestDriver_AtTimeFiresWhenDue(t *testing.T) {
	d := newPollDriver(t)

	h := MakeEvent0(NewGatherRendezvous())
	require.NoError(t, d.AtTime(time.Now().Add(-time.Millisecond), h, true))

	require.NoError(t, d.Step())
	assert.True(t, h.Empty())
}

func TestDriver_AtTimeBackgroundDoesNotCountAsForegroundWork(t *testing.T) {
	d := newPollDriver(t)

	h := MakeEvent0(NewGatherRendezvous())
	require.NoError(t, d.AtTime(time.Now().Add(time.Hour), h, false))

	assert.False(t, d.hasForegroundWork())
}

func TestDriver_AtFDReadTriggersOnReadiness(t *testing.T) {
	d := newPollDriver(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	var gotErrno int
	h := MakeEvent1(NewGatherRendezvous(), &gotErrno)
	require.NoError(t, d.AtFD(rfd, FDRead, h))

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	require.NoError(t, d.Step())

	assert.True(t, h.Empty())
	assert.Equal(t, 0, gotErrno)
}

func TestDriver_AtFDRejectsDuplicateRegistration(t *testing.T) {
	d := newPollDriver(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	var slot1, slot2 int
	require.NoError(t, d.AtFD(rfd, FDRead, MakeEvent1(NewGatherRendezvous(), &slot1)))
	assert.ErrorIs(t, d.AtFD(rfd, FDRead, MakeEvent1(NewGatherRendezvous(), &slot2)), ErrFDAlreadyRegistered)
}

func TestDriver_AtFDRejectsOutOfRangeFD(t *testing.T) {
	d := newPollDriver(t)
	var slot int
	assert.ErrorIs(t, d.AtFD(-1, FDRead, MakeEvent1(NewGatherRendezvous(), &slot)), ErrFDTooLarge)
}

func TestDriver_KillFDTriggersCanceled(t *testing.T) {
	d := newPollDriver(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	var gotErrno int
	h := MakeEvent1(NewGatherRendezvous(), &gotErrno)
	require.NoError(t, d.AtFD(rfd, FDRead, h))

	require.NoError(t, d.KillFD(rfd))

	assert.Equal(t, errCanceled, gotErrno)
	assert.True(t, h.Empty())
}

func TestDriver_RunStopsOnBreakLoop(t *testing.T) {
	d := newPollDriver(t)

	// Keep the loop alive (otherwise Run would return immediately with no
	// foreground work) with a far-future foreground timer.
	require.NoError(t, d.AtTime(time.Now().Add(time.Hour), MakeEvent0(NewGatherRendezvous()), true))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	d.BreakLoop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after BreakLoop")
	}
}

func TestDriver_RunReturnsWhenNoForegroundWork(t *testing.T) {
	d := newPollDriver(t)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return with no foreground work")
	}
}

func TestDriver_RunRejectsReentrant(t *testing.T) {
	d := newPollDriver(t)

	require.NoError(t, d.AtTime(time.Now().Add(time.Hour), MakeEvent0(NewGatherRendezvous()), true))

	started := make(chan struct{})
	stop, cancel := context.WithCancel(context.Background())
	go func() {
		close(started)
		_ = d.Run(stop)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	assert.ErrorIs(t, d.Run(context.Background()), ErrLoopAlreadyRunning)

	cancel()
}

func TestDriver_OperationsAfterCloseReturnErrDriverClosed(t *testing.T) {
	d, err := NewDriver(WithBackend("poll"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	var slot int
	assert.ErrorIs(t, d.AtFD(0, FDRead, MakeEvent1(NewGatherRendezvous(), &slot)), ErrDriverClosed)
	assert.ErrorIs(t, d.AtTime(time.Now(), MakeEvent0(NewGatherRendezvous()), true), ErrDriverClosed)
	assert.ErrorIs(t, d.AtAsap(MakeEvent0(NewGatherRendezvous())), ErrDriverClosed)
	assert.ErrorIs(t, d.AtPreblock(MakeEvent0(NewGatherRendezvous())), ErrDriverClosed)
	assert.ErrorIs(t, d.KillFD(0), ErrDriverClosed)
	assert.ErrorIs(t, d.AtSignal(0, MakeEvent0(NewGatherRendezvous())), ErrDriverClosed)
	assert.ErrorIs(t, d.Step(), ErrDriverClosed)
}
