package tamer

import (
	"runtime"
	"strings"
	"sync/atomic"
)

// debugState is the process-wide latch backing automatic diagnostic
// annotation (§3) for call sites that have no *Driver reference available
// at construction time (rendezvous and event creation go through
// eventSource/newEvent, never a Driver). The kind-4 misuse panic (§7) does
// not read it: Driver.reportMisuse checks the Driver's own debug flag. It
// starts from TAMER_DEBUG — the same variable resolveDriverOptions reads —
// and is additionally latched on, one-way, by any Driver built with
// WithDebug(true). It is never cleared automatically: one Driver's
// configuration should not silently erase another's diagnostics in a
// process running more than one (§5 permits that).
var debugState atomic.Bool

func init() {
	debugState.Store(envBool("TAMER_DEBUG"))
}

func debugEnabled() bool {
	return debugState.Load()
}

func enableDebug() {
	debugState.Store(true)
}

// packagePrefix identifies stack frames belonging to this package's own
// constructors, skipped past when hunting for the first external caller.
const packagePrefix = "github.com/joeycumines/tamer."

// callerOutsidePackage returns the file/line of the first stack frame above
// its caller (skip==0) that does not belong to this package. A fixed
// runtime.Caller skip count doesn't work here: event and rendezvous
// construction reach this point through call chains of differing depth
// (MakeEventN vs. the bind/map/with adapters vs. ExplicitRendezvous.
// MakeEvent), so the walk continues past every internal frame instead of
// assuming a specific depth.
func callerOutsidePackage(skip int) (file string, line int, ok bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return "", 0, false
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, packagePrefix) {
			return frame.File, frame.Line, true
		}
		if !more {
			return "", 0, false
		}
	}
}
