// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harm_events_total",
			Help: "Total number of events dispatched, by event type",
		},
		[]string{"type"},
	)

	updaterFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harm_updater_failures_total",
			Help: "Total number of updater routines that failed or panicked",
		},
		[]string{"routine"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harm_dispatch_duration_seconds",
			Help:    "Full dispatch duration including lock wait and persistence",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	lockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harm_lock_wait_seconds",
			Help:    "Time spent waiting for the per-encounter lock",
			Buckets: []float64{.0001, .001, .01, .05, .1, .5, 1, 5},
		},
	)
)

// EventDispatched counts one dispatched event.
func EventDispatched(eventType string) { eventsTotal.WithLabelValues(eventType).Inc() }

// UpdaterFailed counts one failed or panicked updater routine.
func UpdaterFailed(routine string) { updaterFailures.WithLabelValues(routine).Inc() }

// ObserveDispatch records a full dispatch duration.
func ObserveDispatch(eventType string, d time.Duration) {
	dispatchDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

// ObserveLockWait records time spent blocked on the per-encounter lock.
func ObserveLockWait(d time.Duration) { lockWait.Observe(d.Seconds()) }
