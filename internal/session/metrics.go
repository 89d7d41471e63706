package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "navigation_sessions_active",
		Help: "Number of live navigation sessions",
	})

	routeActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_route_activations_total",
		Help: "Route activations by provider and whether map matching succeeded",
	}, []string{"provider", "matched"})

	sessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_sessions_ended_total",
		Help: "Ended sessions by reason",
	}, []string{"reason"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navigation_events_dropped_total",
		Help: "Session events dropped because the in-process consumer was not reading",
	})
)
