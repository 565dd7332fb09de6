package loader

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for a Loader. All Loader
// paths tolerate a nil collector, so metrics are strictly opt-in.
type Metrics struct {
	LoadsTotal   *prometheus.CounterVec
	ReloadsTotal *prometheus.CounterVec
	UnloadsTotal prometheus.Counter

	ActiveModules prometheus.Gauge

	CallsInFlight prometheus.Gauge
	CallDuration  prometheus.Histogram

	ConcurrencyViolations prometheus.Counter
	DrainTimeouts         prometheus.Counter
	ForcedFrees           prometheus.Counter
}

// NewMetrics registers the loader's instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scpload",
				Name:      "loads_total",
				Help:      "Total load attempts by outcome",
			},
			[]string{"outcome"},
		),
		ReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scpload",
				Name:      "reloads_total",
				Help:      "Total hot reload attempts by outcome",
			},
			[]string{"outcome"},
		),
		UnloadsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "scpload",
				Name:      "unloads_total",
				Help:      "Total modules retired by unload",
			},
		),
		ActiveModules: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "scpload",
				Name:      "active_modules",
				Help:      "Modules currently registered and callable",
			},
		),
		CallsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "scpload",
				Name:      "calls_in_flight",
				Help:      "Invocations currently executing",
			},
		),
		CallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "scpload",
				Name:      "call_duration_seconds",
				Help:      "Invocation latency",
				Buckets:   []float64{.000001, .00001, .0001, .001, .01, .1, 1},
			},
		),
		ConcurrencyViolations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "scpload",
				Name:      "concurrency_violations_total",
				Help:      "Rejected overlapping calls into non-thread-safe modules",
			},
		),
		DrainTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "scpload",
				Name:      "drain_timeouts_total",
				Help:      "Retirements that exceeded the drain bound",
			},
		),
		ForcedFrees: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "scpload",
				Name:      "forced_frees_total",
				Help:      "Mappings released under the force-free drain policy",
			},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeLoad(err error) {
	if m == nil {
		return
	}
	m.LoadsTotal.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeReload(err error) {
	if m == nil {
		return
	}
	m.ReloadsTotal.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeUnload() {
	if m == nil {
		return
	}
	m.UnloadsTotal.Inc()
}

func (m *Metrics) setActiveModules(n int) {
	if m == nil {
		return
	}
	m.ActiveModules.Set(float64(n))
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.CallsInFlight.Inc()
}

func (m *Metrics) callFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.CallsInFlight.Dec()
	m.CallDuration.Observe(d.Seconds())
}

func (m *Metrics) observeConcurrencyViolation() {
	if m == nil {
		return
	}
	m.ConcurrencyViolations.Inc()
}

func (m *Metrics) observeDrainTimeout() {
	if m == nil {
		return
	}
	m.DrainTimeouts.Inc()
}

func (m *Metrics) observeForcedFree() {
	if m == nil {
		return
	}
	m.ForcedFrees.Inc()
}
