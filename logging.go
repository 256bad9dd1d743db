package tamer

import (
	"sync"
	"time"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Level is the structured logging severity used by a Driver, independent of
// whichever backing library actually renders the entry.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogEntry is one structured record emitted by a Driver's loop, covering the
// event categories named in §4.5: fd readiness, timer firing, signal
// dispatch, asap/preblock draining, and backend fallback.
type LogEntry struct {
	Level     Level
	Category  string // "fd", "timer", "signal", "asap", "backend", "closure"
	FD        int
	Signal    int
	Message   string
	Err       error
	Timestamp time.Time
}

// Logger is the structured logging interface a Driver writes through.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level Level) bool
}

var globalLogger struct {
	sync.RWMutex
	logger Logger
}

// SetLogger installs the package-wide default logger, used by any Driver
// constructed without an explicit WithLogger option.
func SetLogger(l Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = l
}

func getLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Log(LogEntry)        {}
func (noopLogger) IsEnabled(Level) bool { return false }

// zerologLogger adapts *rs/zerolog directly, for callers who want tamer's own
// logging without pulling in logiface.
type zerologLogger struct{ z zerolog.Logger }

// NewZerologLogger builds a Logger backed directly by z.
func NewZerologLogger(z zerolog.Logger) Logger {
	return &zerologLogger{z: z}
}

func toZerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zerologLogger) IsEnabled(level Level) bool {
	return l.z.GetLevel() <= toZerologLevel(level)
}

func (l *zerologLogger) Log(entry LogEntry) {
	ev := l.z.WithLevel(toZerologLevel(entry.Level))
	if entry.Category != "" {
		ev = ev.Str("category", entry.Category)
	}
	if entry.FD != 0 {
		ev = ev.Int("fd", entry.FD)
	}
	if entry.Signal != 0 {
		ev = ev.Int("signal", entry.Signal)
	}
	if !entry.Timestamp.IsZero() {
		ev = ev.Time("ts", entry.Timestamp)
	}
	ev.Err(entry.Err).Msg(entry.Message)
}

// logifaceLogger adapts a github.com/joeycumines/logiface Logger, backed by
// izerolog, so a Driver can participate in a caller's existing logiface
// field/modifier pipeline instead of writing straight to zerolog.
type logifaceLogger struct {
	l *logiface.Logger[*izerolog.Event]
}

// NewLogifaceZerologLogger builds a Logger that routes through logiface,
// using izerolog (github.com/joeycumines/izerolog) to render onto z.
func NewLogifaceZerologLogger(z zerolog.Logger) Logger {
	return &logifaceLogger{l: logiface.New(izerolog.L.WithZerolog(z))}
}

func toLogifaceLevel(l Level) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	default:
		return logiface.LevelError
	}
}

func (l *logifaceLogger) IsEnabled(level Level) bool {
	lvl := toLogifaceLevel(level)
	return lvl.Enabled() && (lvl <= l.l.Level() || lvl > logiface.LevelTrace)
}

func (l *logifaceLogger) Log(entry LogEntry) {
	b := l.l.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.FD != 0 {
		b = b.Int("fd", entry.FD)
	}
	if entry.Signal != 0 {
		b = b.Int("signal", entry.Signal)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
