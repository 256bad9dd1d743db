package tamer

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the Prometheus collectors for one Driver, following
// the collector-set convention of the teacher pack's pkg/metrics
// (package-level gauges/counters, one explicit Register call) — adapted
// to a per-instance struct rather than package globals, since more than
// one Driver may run in a process (§5) and each needs its own series.
type Metrics struct {
	PendingTimers   prometheus.Gauge
	PendingFDs      prometheus.Gauge
	BlockedClosures prometheus.Gauge
	Ticks           prometheus.Counter
	SignalsHandled  prometheus.Counter
	BackendFallback prometheus.Counter
}

// NewMetrics constructs an unregistered collector set.
func NewMetrics() *Metrics {
	return &Metrics{
		PendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tamer_pending_timers",
			Help: "Number of live timer registrations on the heap.",
		}),
		PendingFDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tamer_pending_fds",
			Help: "Number of file descriptors with active interest.",
		}),
		BlockedClosures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tamer_blocked_closures",
			Help: "Number of closures currently blocked on a rendezvous.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tamer_loop_ticks_total",
			Help: "Number of driver loop iterations completed.",
		}),
		SignalsHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tamer_signals_handled_total",
			Help: "Number of signal deliveries dispatched to registered events.",
		}),
		BackendFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tamer_backend_fallback_total",
			Help: "Number of times the backend was recreated after a failure.",
		}),
	}
}

// Register adds every collector to reg. Called lazily: a Driver with no
// WithMetrics option never touches the Prometheus API at all.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.PendingTimers, m.PendingFDs, m.BlockedClosures,
		m.Ticks, m.SignalsHandled, m.BackendFallback,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
