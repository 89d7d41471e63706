package restrictions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restriction_set_size",
		Help:    "Number of restrictions loaded per route activation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	degradedLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restriction_loads_degraded_total",
		Help: "Route activations that continued without restriction data",
	})
)

func recordLoad(size int, degraded bool) {
	if degraded {
		degradedLoads.Inc()
		return
	}
	loadSize.Observe(float64(size))
}
