package tamer

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Process-global signal aggregation (§4.5, §9): "the per-signal active
// flag and handler table are inherently process-global... keep them as
// process-wide state behind a narrow interface." Go does not let user
// code install a raw signal handler (the runtime's own signal handler
// always runs first), so the Go-native equivalent of the spec's
// self-pipe-writing handler is os/signal's own delivery goroutine: it
// already does the signal-safe work of getting a notification off the
// kernel's signal-handling context and onto a channel. This package
// layers the self-pipe *wakeup* on top of that channel, preserving the
// architecture described in §4.5 ("backend watches the read end; driver
// drains the pipe, ... triggers the per-signal event list").
var signalState = struct {
	mu   sync.Mutex
	regs map[syscall.Signal][]*signalReg
	ch   chan os.Signal
	once sync.Once
}{regs: make(map[syscall.Signal][]*signalReg)}

type signalReg struct {
	driver *Driver
	handle Event0
}

func startSignalDispatch() {
	signalState.once.Do(func() {
		signalState.ch = make(chan os.Signal, 64)
		go func() {
			for sig := range signalState.ch {
				dispatchSignal(sig)
			}
		}()
	})
}

func dispatchSignal(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	signalState.mu.Lock()
	regs := signalState.regs[s]
	drivers := make(map[*Driver]struct{}, len(regs))
	for _, r := range regs {
		drivers[r.driver] = struct{}{}
	}
	signalState.mu.Unlock()

	for d := range drivers {
		d.notifySignal(int(s))
	}
}

// registerSignal attaches h to signo on d, per §4.5 at_signal. Every
// registration (re-)calls signal.Notify so the runtime keeps delivering
// signo to our aggregator; signal.Notify is cumulative and idempotent
// per (channel, signal) pair.
func registerSignal(d *Driver, signo int, h Event0) {
	startSignalDispatch()
	s := syscall.Signal(signo)

	signalState.mu.Lock()
	signalState.regs[s] = append(signalState.regs[s], &signalReg{driver: d, handle: h})
	signalState.mu.Unlock()

	signal.Notify(signalState.ch, s)

	h.AtTrigger(MakeEvent0(NewFunctionalRendezvous(func(bool, any) {
		unregisterSignal(d, signo, h)
	})))
}

// unregisterSignal removes one (driver, handle) registration for signo.
// When no registration for signo remains anywhere in the process, the
// signal is reset to its default disposition, matching §8 scenario 6:
// "handler is reset to default iff no further registrations remain."
func unregisterSignal(d *Driver, signo int, h Event0) {
	s := syscall.Signal(signo)

	signalState.mu.Lock()
	regs := signalState.regs[s]
	for i, r := range regs {
		if r.driver == d && r.handle == h {
			regs = append(regs[:i], regs[i+1:]...)
			break
		}
	}
	empty := len(regs) == 0
	if empty {
		delete(signalState.regs, s)
	} else {
		signalState.regs[s] = regs
	}
	signalState.mu.Unlock()

	if empty {
		signal.Reset(s)
	}
}

// driverHasSignals reports whether d has any live signal registration,
// for the foreground-accounting check in driver.go.
func driverHasSignals(d *Driver) bool {
	signalState.mu.Lock()
	defer signalState.mu.Unlock()
	for _, regs := range signalState.regs {
		for _, r := range regs {
			if r.driver == d {
				return true
			}
		}
	}
	return false
}

// signalHandlesFor snapshots the handles currently registered for (d,
// signo), so the caller can trigger each one without racing the
// unregister-on-trigger callback that mutates signalState.regs.
func signalHandlesFor(d *Driver, signo int) []Event0 {
	s := syscall.Signal(signo)
	signalState.mu.Lock()
	defer signalState.mu.Unlock()
	regs := signalState.regs[s]
	out := make([]Event0, 0, len(regs))
	for _, r := range regs {
		if r.driver == d {
			out = append(out, r.handle)
		}
	}
	return out
}

// unregisterAllSignalsForDriver drops every registration belonging to d,
// used by Driver.Close.
func unregisterAllSignalsForDriver(d *Driver) {
	signalState.mu.Lock()
	var emptied []syscall.Signal
	for s, regs := range signalState.regs {
		kept := regs[:0]
		for _, r := range regs {
			if r.driver != d {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(signalState.regs, s)
			emptied = append(emptied, s)
		} else {
			signalState.regs[s] = kept
		}
	}
	signalState.mu.Unlock()

	for _, s := range emptied {
		signal.Reset(s)
	}
}
