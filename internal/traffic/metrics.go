package traffic

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_samples_total",
		Help: "Classified traffic samples by provider, level and confidence",
	}, []string{"provider", "level", "low_confidence"})

	lastLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traffic_congestion_level",
		Help: "Congestion level (0-3) of the most recent sample per provider",
	}, []string{"provider"})
)

func recordSample(s CongestionSample) {
	provider := string(s.Provider)
	samplesTotal.WithLabelValues(provider, strconv.Itoa(s.Level), strconv.FormatBool(s.LowConfidence)).Inc()
	lastLevel.WithLabelValues(provider).Set(float64(s.Level))
}
