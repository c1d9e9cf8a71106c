package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Control loop and actuator collectors. Cycle outcomes are partitioned by a
// small fixed label set: "idle", "converged", "no_direction", "overshoot",
// "step_bound", "signal_error", "actuation_error".

var (
	// Tuner
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rfqgo",
		Subsystem: "tuner",
		Name:      "cycles_total",
		Help:      "Total control cycles executed",
	})

	CycleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rfqgo",
		Subsystem: "tuner",
		Name:      "cycle_outcomes_total",
		Help:      "Control cycle outcomes by kind",
	}, []string{"outcome"})

	Coefficient = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rfqgo",
		Subsystem: "tuner",
		Name:      "reflection_coefficient",
		Help:      "Last reflection coefficient reading",
	})

	State = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rfqgo",
		Subsystem: "tuner",
		Name:      "state",
		Help:      "Tuner state (0=idle, 1=seeking, 2=tracking)",
	})

	TrackingSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rfqgo",
		Subsystem: "tuner",
		Name:      "tracking_steps",
		Help:      "Tracking steps taken per convergence attempt",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
	})

	// Motor
	MovesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rfqgo",
		Subsystem: "motor",
		Name:      "moves_total",
		Help:      "Total logical relative moves acknowledged on all axes",
	})

	MoveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rfqgo",
		Subsystem: "motor",
		Name:      "move_failures_total",
		Help:      "Total logical moves aborted by an axis exchange failure",
	})

	PositionMm = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rfqgo",
		Subsystem: "motor",
		Name:      "position_mm",
		Help:      "Locally tracked net tuner displacement in millimeters",
	})
)
