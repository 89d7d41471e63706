package hazard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hazard_evaluations_total",
		Help: "Hazard evaluations by outcome",
	}, []string{"outcome"})

	advisoriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hazard_advisories_total",
		Help: "Advisory events emitted by type and severity",
	}, []string{"type", "severity"})

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hazard_evaluation_duration_seconds",
		Help:    "Time spent evaluating one snapshot",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50µs to ~100ms
	})
)

func recordEvaluation(outcome string, seconds float64) {
	evaluationsTotal.WithLabelValues(outcome).Inc()
	evaluationDuration.Observe(seconds)
}

func recordEvent(e Event) {
	advisoriesTotal.WithLabelValues(string(e.Type), string(e.Advisory.Severity)).Inc()
}
