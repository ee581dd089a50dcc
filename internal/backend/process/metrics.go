package process

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for run outcomes.
const (
	outcomeSuccess    = "success"
	outcomeNonZero    = "nonzero_exit"
	outcomeTimeout    = "timeout"
	outcomeSpawnError = "spawn_error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegrid_engine_runs_total",
			Help: "Total number of solver engine runs by outcome.",
		},
		[]string{"outcome"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timegrid_engine_run_seconds",
			Help:    "Wall-clock duration of solver engine runs, in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	activeProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timegrid_engine_active_processes",
			Help: "Number of solver engine processes currently running.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(activeProcesses)

	// Pre-initialize outcome labels so they appear in /metrics from startup.
	for _, o := range []string{outcomeSuccess, outcomeNonZero, outcomeTimeout, outcomeSpawnError} {
		runsTotal.WithLabelValues(o)
	}
}

func outcomeOf(exitCode int, timedOut bool) string {
	switch {
	case timedOut:
		return outcomeTimeout
	case exitCode == 0:
		return outcomeSuccess
	default:
		return outcomeNonZero
	}
}
