// Package metrics exposes Prometheus instruments for the session lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "liveroom"

// Metrics is nil-safe: every recording method on a nil *Metrics is a no-op.
type Metrics struct {
	EngineCalls      *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	TeardownFailures *prometheus.CounterVec
	SurfaceWait      *prometheus.HistogramVec
	ObserverPanics   prometheus.Counter
	RoomEvents       *prometheus.CounterVec
}

// New registers every instrument on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EngineCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_calls_total",
			Help:      "Engine calls issued by the session controller.",
		}, []string{"op", "result"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Lifecycle state transitions.",
		}, []string{"to"}),
		TeardownFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardown_step_failures_total",
			Help:      "Teardown steps that failed and were skipped over.",
		}, []string{"step"}),
		SurfaceWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "surface_wait_seconds",
			Help:      "Time spent waiting for a rendering surface to mount.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		}, []string{"side", "result"}),
		ObserverPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_panics_total",
			Help:      "Room observers that panicked while handling a notification.",
		}),
		RoomEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_events_total",
			Help:      "Room notifications received from the engine.",
		}, []string{"kind"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) EngineCall(op string, err error) {
	if m == nil {
		return
	}
	m.EngineCalls.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) TeardownFailure(step string) {
	if m == nil {
		return
	}
	m.TeardownFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) SurfaceWaited(side string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SurfaceWait.WithLabelValues(side, result(err)).Observe(d.Seconds())
}

func (m *Metrics) ObserverPanic() {
	if m == nil {
		return
	}
	m.ObserverPanics.Inc()
}

func (m *Metrics) RoomEvent(kind string) {
	if m == nil {
		return
	}
	m.RoomEvents.WithLabelValues(kind).Inc()
}
