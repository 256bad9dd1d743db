package tamer

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Fd-result codes delivered as the trigger value of an at_fd event, per
// §4.5/§7 kind 2. Negative, mirroring the negated-errno convention of the
// original source.
const (
	errCanceled  = -int(unix.ECANCELED)
	errConnReset = -int(unix.ECONNRESET)
	errShutdown  = -int(unix.ESHUTDOWN)
)

// Sentinel errors. These cover the non-fatal error kinds from the error
// handling design: fd errors, backend errors, and API misuse reported
// through the installable error handler rather than an exception.
var (
	// ErrFDTooLarge is returned by [Driver.AtFD] when fd is negative or
	// exceeds the backend's addressable range.
	ErrFDTooLarge = errors.New("tamer: file descriptor too large")

	// ErrFDAlreadyRegistered is returned when a second interest is
	// registered for the same (fd, action) pair without an intervening
	// KillFD or natural completion.
	ErrFDAlreadyRegistered = errors.New("tamer: file descriptor already registered for this action")

	// ErrAlreadyBlocked is the API-misuse error for blocking a second
	// closure on a rendezvous that already has one blocked.
	ErrAlreadyBlocked = errors.New("tamer: rendezvous already has a blocked closure")

	// ErrBlockOutsideDriver is the API-misuse error for calling Block
	// with a driver that did not create the closure.
	ErrBlockOutsideDriver = errors.New("tamer: closure is not owned by this driver")

	// ErrBackendUnavailable is returned when TAMER_DRIVER names a backend
	// this build does not implement (libev, libevent — see DESIGN.md).
	ErrBackendUnavailable = errors.New("tamer: requested backend is not built in")

	// ErrLoopNotRunning reports that a driver is not running its loop. No
	// operation in this package returns it: [Driver.BreakLoop] called
	// before [Driver.Run] is not an error, and makes that Run return after
	// its first tick.
	ErrLoopNotRunning = errors.New("tamer: driver is not running")

	// ErrLoopAlreadyRunning is returned by Run when called reentrantly.
	ErrLoopAlreadyRunning = errors.New("tamer: driver is already running")

	// ErrDriverClosed is returned by operations attempted after Close.
	ErrDriverClosed = errors.New("tamer: driver is closed")
)

// BackendError wraps a failure returned by the platform I/O backend
// (epoll_ctl, epoll_wait, poll, kqueue...). It is never fatal to the loop:
// the driver reports it via the installed error handler and, for epoll,
// attempts a bounded recreate-and-reinstall fallback (see DESIGN.md).
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("tamer: backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// MisuseError reports kind-4 API misuse (§7) detected by [Block]: blocking
// a second closure on one rendezvous, or blocking outside the driver that
// owns a closure. Triggering an already-completed handle is not reported:
// it is a silent no-op. In debug mode the driver panics with this error instead of
// reporting it, mirroring the original's abort()-on-debug-build behavior.
type MisuseError struct {
	Err      error
	Location string // creation-site annotation, if available
}

func (e *MisuseError) Error() string {
	if e.Location == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (created at %s)", e.Err.Error(), e.Location)
}

func (e *MisuseError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives non-fatal runtime errors: backend failures and API
// misuse reports. A nil handler (the default) logs via the package Logger.
type ErrorHandler func(error)
