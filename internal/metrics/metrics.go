// Package metrics exposes rig activity as prometheus metrics.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relayrig"

// Metrics holds the rig collectors.
type Metrics struct {
	applies       *prometheus.CounterVec
	applyDuration prometheus.Histogram
	cleanups      prometheus.Counter
	activePins    prometheus.Gauge
	aquastatOps   *prometheus.CounterVec
	senseWaits    *prometheus.CounterVec
	busErrors     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "applies_total",
				Help:      "configuration applies by result",
			},
			[]string{"result"}),
		applyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "apply_duration_seconds",
				Help:      "time taken by a configuration apply including settle delays",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
			}),
		cleanups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanups_total",
				Help:      "explicit de-energize sequences",
			}),
		activePins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_pins",
				Help:      "number of energized relay pins after the last operation",
			}),
		aquastatOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aquastat_operations_total",
				Help:      "aquastat operations by operation and outcome",
			},
			[]string{"op", "outcome"}),
		senseWaits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sense_waits_total",
				Help:      "wait-for-event calls by result",
			},
			[]string{"result"}),
		busErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_errors_total",
				Help:      "expander read or write failures surfaced to callers",
			}),
	}
	reg.MustRegister(m.applies, m.applyDuration, m.cleanups, m.activePins, m.aquastatOps, m.senseWaits, m.busErrors)
	return m
}

// ObserveApply records one apply.
func (m *Metrics) ObserveApply(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.applies.With(prometheus.Labels{"result": result}).Inc()
	m.applyDuration.Observe(d.Seconds())
}

// IncCleanup records one explicit cleanup.
func (m *Metrics) IncCleanup() {
	if m == nil {
		return
	}
	m.cleanups.Inc()
}

// SetActivePins records the energized pin count.
func (m *Metrics) SetActivePins(n int) {
	if m == nil {
		return
	}
	m.activePins.Set(float64(n))
}

// ObserveAquastat records one aquastat operation.
func (m *Metrics) ObserveAquastat(op, outcome string) {
	if m == nil {
		return
	}
	m.aquastatOps.With(prometheus.Labels{"op": op, "outcome": outcome}).Inc()
}

// ObserveSense records one wait-for-event result.
func (m *Metrics) ObserveSense(result string) {
	if m == nil {
		return
	}
	m.senseWaits.With(prometheus.Labels{"result": result}).Inc()
}

// IncBusError records one bus failure.
func (m *Metrics) IncBusError() {
	if m == nil {
		return
	}
	m.busErrors.Inc()
}
