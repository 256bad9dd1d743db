package tamer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"
)

// maxBackendFallbacks bounds the epoll-recreate fallback (§4.5/§7 kind 3:
// "recreating the epoll fd ... up to a small bounded number of times").
const maxBackendFallbacks = 32

// Driver is the single-threaded event loop described in §4.5: it extends
// [SimpleDriver]'s closure scheduling with the four external event
// sources (fd, timer, asap, preblock), the process signal pipe, and a
// pluggable [Backend]. All fields below except sigMu/mu/pendingSignals/
// breakRequested are touched only from the goroutine calling [Driver.Run]
// or [Driver.Step] — never concurrently (§5).
type Driver struct {
	SimpleDriver

	fds    *fdTable
	timers timerHeap

	asap     []Event0
	preblock []Event0

	backend       Backend
	driverIndex   int
	fallbackCount int

	wakeR, wakeW int

	errorHandler ErrorHandler
	logger       Logger
	debug        bool
	loopForever  bool
	metrics      *Metrics

	mu             sync.Mutex
	running        bool
	closed         bool
	breakRequested bool

	sigMu          sync.Mutex
	pendingSignals []int
}

// NewDriver constructs a Driver per the TAMER_DRIVER/TAMER_NOEPOLL/
// TAMER_DEBUG environment contract (§6), overridden by opts.
func NewDriver(opts ...DriverOption) (*Driver, error) {
	cfg, err := resolveDriverOptions(opts)
	if err != nil {
		return nil, err
	}

	backend, err := selectBackend(cfg.backendName, cfg.noepoll)
	if err != nil {
		return nil, err
	}

	if cfg.debug {
		enableDebug()
	}

	var pipefds [2]int
	if err := unix.Pipe2(pipefds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		_ = backend.Close()
		return nil, &BackendError{Op: "pipe2", Err: err}
	}

	d := &Driver{
		fds:          newFDTable(),
		backend:      backend,
		wakeR:        pipefds[0],
		wakeW:        pipefds[1],
		errorHandler: cfg.errorHandler,
		logger:       cfg.logger,
		debug:        cfg.debug,
		loopForever:  cfg.loopForever,
		metrics:      cfg.metrics,
	}

	if err := backend.Add(d.wakeR, EventRead); err != nil {
		_ = backend.Close()
		return nil, &BackendError{Op: "add-wake", Err: err}
	}

	idx, err := registerDriverIndex(d)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	d.driverIndex = idx

	if cfg.metrics != nil {
		reg := cfg.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		if err := cfg.metrics.Register(reg); err != nil {
			releaseDriverIndex(idx)
			_ = backend.Close()
			return nil, err
		}
	}

	return d, nil
}

func (d *Driver) log() Logger {
	if d.logger != nil {
		return d.logger
	}
	return getLogger()
}

func (d *Driver) reportError(err error) {
	if d.errorHandler != nil {
		d.errorHandler(err)
		return
	}
	l := d.log()
	if l.IsEnabled(LevelError) {
		l.Log(LogEntry{Level: LevelError, Category: "backend", Err: err, Message: err.Error(), Timestamp: time.Now()})
	}
}

// reportMisuse handles a kind-4 API misuse error (§7): in debug mode
// (WithDebug(true) or TAMER_DEBUG) it panics with a *MisuseError annotated
// with location, mirroring the original's abort()-on-debug-build behavior;
// otherwise it routes the wrapped error through the installed error handler
// and returns it, so the caller's own error-return contract (e.g. [Block])
// is preserved and errors.Is against the underlying sentinel still works
// via [MisuseError.Unwrap].
func (d *Driver) reportMisuse(err error, location string) error {
	me := &MisuseError{Err: err, Location: location}
	if d.debug {
		panic(me)
	}
	d.reportError(me)
	return me
}

// SetErrorHandler installs fn as the handler for backend and misuse
// errors (§7 kinds 3/4).
func (d *Driver) SetErrorHandler(fn ErrorHandler) {
	d.mu.Lock()
	d.errorHandler = fn
	d.mu.Unlock()
}

// AtFD registers h to resolve when fd becomes ready for action, per
// §4.5's at_fd. It returns [ErrFDAlreadyRegistered] if an active handle
// is already registered for the same (fd, action).
func (d *Driver) AtFD(fd int, action FDAction, h Event1[int]) error {
	if d.closed {
		return ErrDriverClosed
	}
	if fd < 0 || fd > 0x7fffffff {
		return ErrFDTooLarge
	}
	e := d.fds.entry(fd)
	existing := e.read
	if action == FDWrite {
		existing = e.write
	}
	if existing.active() {
		return ErrFDAlreadyRegistered
	}
	d.fds.register(fd, action, h)
	return nil
}

// AtTime registers h to resolve at deadline, per §4.5's at_time.
// Background timers (foreground=false) do not keep the loop alive by
// themselves.
func (d *Driver) AtTime(deadline time.Time, h Event0, foreground bool) error {
	if d.closed {
		return ErrDriverClosed
	}
	d.timers.push(deadline, foreground, h)
	return nil
}

// AtAsap registers h to resolve at the end of the current tick, per
// §4.5's at_asap.
func (d *Driver) AtAsap(h Event0) error {
	if d.closed {
		return ErrDriverClosed
	}
	d.asap = append(d.asap, h)
	return nil
}

// AtPreblock registers h to resolve just before the next backend block,
// per §4.5's at_preblock.
func (d *Driver) AtPreblock(h Event0) error {
	if d.closed {
		return ErrDriverClosed
	}
	d.preblock = append(d.preblock, h)
	return nil
}

// AtSignal registers h to resolve on the next delivery of signo, per
// §4.5's at_signal.
func (d *Driver) AtSignal(signo int, h Event0) error {
	if d.closed {
		return ErrDriverClosed
	}
	registerSignal(d, signo, h)
	return nil
}

// KillFD triggers every pending read/write event on fd with errCanceled
// and forgets interest in it, per §4.5's kill_fd.
func (d *Driver) KillFD(fd int) error {
	if d.closed {
		return ErrDriverClosed
	}
	d.fds.killFD(fd)
	return nil
}

// BreakLoop requests that [Driver.Run] return after the current tick
// completes, waking a blocked backend.Wait if necessary.
func (d *Driver) BreakLoop() {
	d.mu.Lock()
	d.breakRequested = true
	d.mu.Unlock()
	d.wake()
}

// NextWake implements §8's round-trip property: {0, true} when immediate
// work remains (unblocked closures, asap or preblock events); otherwise the
// wait until the earliest live foreground timer deadline (zero if already
// due); otherwise {0, false} ("never"). Fd interests and signal
// registrations do not affect the result.
func (d *Driver) NextWake() (time.Duration, bool) {
	if d.hasUnblockedWork() || len(d.asap) > 0 || len(d.preblock) > 0 {
		return 0, true
	}
	if deadline, ok := d.timers.nextForegroundDeadline(); ok {
		if w := time.Until(deadline); w > 0 {
			return w, true
		}
		return 0, true
	}
	return 0, false
}

// BlockedLocations returns a diagnostic snapshot of every closure
// currently blocked on a rendezvous (the [EXPANSION] named in §6).
func (d *Driver) BlockedLocations() []string {
	return d.blockedLocations()
}

// hasForegroundWork implements §4.5's foreground-accounting exit
// condition: no foreground timers, no fd interests, no foreground
// signals, no asap/preblock, and no unblocked closures.
func (d *Driver) hasForegroundWork() bool {
	return d.hasUnblockedWork() ||
		len(d.asap) > 0 ||
		len(d.preblock) > 0 ||
		d.timers.hasForeground() ||
		d.fds.hasInterest() ||
		driverHasSignals(d)
}

func (d *Driver) wake() {
	var b [1]byte
	for {
		_, err := unix.Write(d.wakeW, b[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

func (d *Driver) drainWakePipe() {
	var buf [64]byte
	for {
		n, err := unix.Read(d.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// notifySignal is called (possibly from the os/signal dispatch goroutine
// in signal.go, never from d's own loop goroutine) to hand signo off to
// d's next tick and wake a blocked backend.Wait.
func (d *Driver) notifySignal(signo int) {
	d.sigMu.Lock()
	d.pendingSignals = append(d.pendingSignals, signo)
	d.sigMu.Unlock()
	d.wake()
}

func (d *Driver) takePendingSignals() []int {
	d.sigMu.Lock()
	signos := d.pendingSignals
	d.pendingSignals = nil
	d.sigMu.Unlock()
	return signos
}

func (d *Driver) blockTimeout() time.Duration {
	if d.hasUnblockedWork() || len(d.asap) > 0 {
		return 0
	}
	if !d.loopForever && !d.hasForegroundWork() {
		return 0
	}
	if top, ok := d.timers.peek(); ok {
		if w := time.Until(top.deadline); w > 0 {
			return w
		}
		return 0
	}
	return -1
}

func (d *Driver) attemptFallback() {
	reopen, ok := d.backend.(reopener)
	if !ok || d.fallbackCount >= maxBackendFallbacks {
		return
	}
	d.fallbackCount++
	if err := reopen.Reopen(); err != nil {
		d.reportError(&BackendError{Op: "reopen", Err: err})
		return
	}
	if err := d.backend.Add(d.wakeR, EventRead); err != nil {
		d.reportError(&BackendError{Op: "reopen-add-wake", Err: err})
	}
	if err := d.fds.reinstallAll(d.backend); err != nil {
		d.reportError(&BackendError{Op: "reopen-reinstall", Err: err})
	}
	if d.metrics != nil {
		d.metrics.BackendFallback.Inc()
	}
}

func (d *Driver) drainPreblock() {
	pending := d.preblock
	d.preblock = nil
	for _, h := range pending {
		h.Trigger()
	}
}

func (d *Driver) drainAsap() {
	pending := d.asap
	d.asap = nil
	for _, h := range pending {
		h.Trigger()
	}
}

func (d *Driver) dispatchSignals(ready []ReadyFD) {
	sawWake := false
	for _, r := range ready {
		if r.FD == d.wakeR {
			sawWake = true
			break
		}
	}
	if !sawWake {
		return
	}
	d.drainWakePipe()

	for _, signo := range d.takePendingSignals() {
		for _, h := range signalHandlesFor(d, signo) {
			h.Trigger()
		}
		if d.metrics != nil {
			d.metrics.SignalsHandled.Inc()
		}
	}
}

func (d *Driver) dispatchFDs(ready []ReadyFD) {
	for _, r := range ready {
		if r.FD == d.wakeR {
			continue
		}
		e, ok := d.fds.entries[r.FD]
		if !ok {
			continue
		}
		if r.Events&(EventError|EventHangup) != 0 {
			d.fds.failFD(r.FD, true, true)
			continue
		}
		if r.Events&EventRead != 0 && e.read.active() {
			e.read.Trigger(0)
		}
		if r.Events&EventWrite != 0 && e.write.active() {
			e.write.Trigger(0)
		}
	}
}

func (d *Driver) dispatchTimers() {
	for _, t := range d.timers.popExpired(time.Now()) {
		t.handle.Trigger()
	}
}

func (d *Driver) recordMetrics() {
	if d.metrics == nil {
		return
	}
	d.metrics.PendingTimers.Set(float64(d.timers.Len()))
	d.metrics.PendingFDs.Set(float64(len(d.fds.entries)))
	d.metrics.BlockedClosures.Set(float64(len(d.blockedClosures)))
	d.metrics.Ticks.Inc()
}

// Step runs exactly one loop iteration, per §4.4/§4.5/§5's ordering
// contract: drain preblock, commit fd-interest changes, block in the
// backend, then dispatch signals, fd readiness, expired timers, and asap
// callbacks in that order — draining the unblocked-closure FIFO after
// each dispatch stage.
func (d *Driver) Step() error {
	if d.closed {
		return ErrDriverClosed
	}

	d.drainPreblock()

	if err := d.fds.reconcile(d.backend); err != nil {
		d.reportError(&BackendError{Op: "reconcile", Err: err})
	}

	ready, err := d.backend.Wait(d.blockTimeout())
	if err != nil {
		d.reportError(err)
		d.attemptFallback()
	}

	d.dispatchSignals(ready)
	d.runUnblocked()

	d.dispatchFDs(ready)
	d.runUnblocked()

	d.dispatchTimers()
	d.runUnblocked()

	d.drainAsap()
	d.runUnblocked()

	d.recordMetrics()
	return nil
}

// Run drives the loop until BreakLoop is called, ctx is canceled, or (
// unless constructed with WithLoopForever) no foreground work remains.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDriverClosed
	}
	if d.running {
		d.mu.Unlock()
		return ErrLoopAlreadyRunning
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if done := ctx.Done(); done != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-done:
				d.wake()
			case <-stop:
			}
		}()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.Step(); err != nil {
			return err
		}

		d.mu.Lock()
		brk := d.breakRequested
		d.breakRequested = false
		d.mu.Unlock()
		if brk {
			return nil
		}

		if !d.loopForever && !d.hasForegroundWork() {
			return nil
		}
	}
}

// Close releases the driver's backend, signal-pipe fds, and process-
// global signal registrations. Operations attempted afterward return
// [ErrDriverClosed].
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	unregisterAllSignalsForDriver(d)
	releaseDriverIndex(d.driverIndex)
	_ = unix.Close(d.wakeR)
	_ = unix.Close(d.wakeW)
	return d.backend.Close()
}
