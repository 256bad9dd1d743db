package tamer

import (
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// driverOptions holds configuration resolved from DriverOption values and
// environment variables before a Driver is constructed.
type driverOptions struct {
	backendName  string
	noepoll      bool
	debug        bool
	loopForever  bool
	errorHandler ErrorHandler
	metrics      *Metrics
	registerer   prometheus.Registerer
	logger       Logger
}

// DriverOption configures a Driver at construction time (§6, NewDriver).
type DriverOption interface {
	applyDriver(*driverOptions) error
}

type driverOptionFunc func(*driverOptions) error

func (f driverOptionFunc) applyDriver(o *driverOptions) error { return f(o) }

// WithErrorHandler installs the handler a Driver reports non-fatal backend
// and misuse errors through. The default handler writes to the installed
// Logger.
func WithErrorHandler(fn ErrorHandler) DriverOption {
	return driverOptionFunc(func(o *driverOptions) error {
		o.errorHandler = fn
		return nil
	})
}

// WithDebug enables the stricter misuse checking described in §7 kind 4:
// API misuse panics immediately instead of only being reported through the
// error handler.
func WithDebug(enabled bool) DriverOption {
	return driverOptionFunc(func(o *driverOptions) error {
		o.debug = enabled
		return nil
	})
}

// WithMetrics attaches a Metrics collector set, registering it against reg.
// A nil reg registers against prometheus.DefaultRegisterer.
func WithMetrics(m *Metrics, reg prometheus.Registerer) DriverOption {
	return driverOptionFunc(func(o *driverOptions) error {
		o.metrics = m
		o.registerer = reg
		return nil
	})
}

// WithBackend overrides TAMER_DRIVER/TAMER_NOEPOLL, selecting name directly
// ("", "epoll", or "poll").
func WithBackend(name string) DriverOption {
	return driverOptionFunc(func(o *driverOptions) error {
		o.backendName = name
		return nil
	})
}

// WithLoopForever keeps Run blocked even once every queue is empty and no
// timer remains, instead of returning when the loop has nothing left to do.
func WithLoopForever(enabled bool) DriverOption {
	return driverOptionFunc(func(o *driverOptions) error {
		o.loopForever = enabled
		return nil
	})
}

// WithLogger overrides the package-wide default Logger for one Driver.
func WithLogger(l Logger) DriverOption {
	return driverOptionFunc(func(o *driverOptions) error {
		o.logger = l
		return nil
	})
}

// resolveDriverOptions applies opts over the defaults, which are themselves
// seeded from the TAMER_DRIVER / TAMER_NOEPOLL / TAMER_DEBUG environment
// variables (read once, at construction, per §6/§9).
func resolveDriverOptions(opts []DriverOption) (*driverOptions, error) {
	cfg := &driverOptions{
		backendName: os.Getenv("TAMER_DRIVER"),
		noepoll:     envBool("TAMER_NOEPOLL"),
		debug:       envBool("TAMER_DEBUG"),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyDriver(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v != ""
	}
	return b
}
