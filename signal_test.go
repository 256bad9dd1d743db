package tamer

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the registration bookkeeping in signal.go directly,
// without raising a real kernel signal: dispatchSignal/startSignalDispatch
// is process-global and not worth racing against other tests via actual
// os/signal delivery.

func TestRegisterSignal_DriverHasSignalsAndHandles(t *testing.T) {
	d := newTestDriver(t)
	signo := int(syscall.SIGUSR1)

	h := MakeEvent0(NewGatherRendezvous())
	registerSignal(d, signo, h)
	defer unregisterAllSignalsForDriver(d)

	assert.True(t, driverHasSignals(d))

	handles := signalHandlesFor(d, signo)
	require.Len(t, handles, 1)
	assert.Equal(t, h, handles[0])
}

func TestRegisterSignal_TriggerUnregisters(t *testing.T) {
	d := newTestDriver(t)
	signo := int(syscall.SIGUSR2)

	h := MakeEvent0(NewGatherRendezvous())
	registerSignal(d, signo, h)

	h.Trigger()

	assert.False(t, driverHasSignals(d), "trigger must run the at-trigger unregister callback")
	assert.Empty(t, signalHandlesFor(d, signo))
}

func TestRegisterSignal_DiscardAlsoUnregisters(t *testing.T) {
	d := newTestDriver(t)
	signo := int(syscall.SIGHUP)

	h := MakeEvent0(NewGatherRendezvous())
	registerSignal(d, signo, h)

	h.Discard()

	assert.False(t, driverHasSignals(d))
}

func TestRegisterSignal_IndependentDriversDoNotLeak(t *testing.T) {
	d1 := newTestDriver(t)
	d2 := newTestDriver(t)
	signo := int(syscall.SIGUSR1)

	h1 := MakeEvent0(NewGatherRendezvous())
	h2 := MakeEvent0(NewGatherRendezvous())
	registerSignal(d1, signo, h1)
	registerSignal(d2, signo, h2)
	defer unregisterAllSignalsForDriver(d2)

	handles1 := signalHandlesFor(d1, signo)
	require.Len(t, handles1, 1)
	assert.Equal(t, h1, handles1[0])

	h1.Trigger()

	assert.False(t, driverHasSignals(d1))
	assert.True(t, driverHasSignals(d2), "unregistering d1's handle must not affect d2's registration")
}

func TestUnregisterAllSignalsForDriver_ClearsEverySignal(t *testing.T) {
	d := newTestDriver(t)

	registerSignal(d, int(syscall.SIGUSR1), MakeEvent0(NewGatherRendezvous()))
	registerSignal(d, int(syscall.SIGUSR2), MakeEvent0(NewGatherRendezvous()))

	require.True(t, driverHasSignals(d))

	unregisterAllSignalsForDriver(d)

	assert.False(t, driverHasSignals(d))
	assert.Empty(t, signalHandlesFor(d, int(syscall.SIGUSR1)))
	assert.Empty(t, signalHandlesFor(d, int(syscall.SIGUSR2)))
}
