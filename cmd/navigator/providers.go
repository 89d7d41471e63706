package main

import (
	"github.com/richxcame/truckroute/internal/hazard"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/routing"
	"github.com/richxcame/truckroute/internal/traffic"
	"github.com/richxcame/truckroute/pkg/cache"
	"github.com/richxcame/truckroute/pkg/config"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/resilience"
	"go.uber.org/zap"
)

// backends groups the provider pairs shared by every session.
type backends struct {
	router       *routing.Router
	adapter      *routing.Adapter
	restrictions *restrictions.Service
	traffic      [2]traffic.Backend
}

func newBreaker(cfg config.CircuitBreakerConfig, name string) *resilience.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	return resilience.NewCircuitBreaker(resilience.BuildSettings(cfg, name))
}

func buildBackends(cfg *config.Config, routeCache *cache.Manager) *backends {
	p := cfg.Providers
	cb := cfg.Resilience.CircuitBreaker
	timeout := p.Timeout()

	if p.MapboxToken == "" {
		logger.Warn("MAPBOX_TOKEN not set, routing and map matching will fall back or degrade")
	}
	if p.HereAPIKey == "" && p.TomTomAPIKey == "" {
		logger.Warn("no traffic provider key set, congestion will not be reported")
	}

	mapbox := maps.NewMapboxProvider(maps.ProviderConfig{APIKey: p.MapboxToken, BaseURL: p.MapboxBaseURL, Timeout: timeout})
	ors := maps.NewORSProvider(maps.ProviderConfig{APIKey: p.ORSAPIKey, BaseURL: p.ORSBaseURL, Timeout: timeout})
	here := maps.NewHEREProvider(maps.ProviderConfig{APIKey: p.HereAPIKey, BaseURL: p.HereBaseURL, Timeout: timeout})
	tomtom := maps.NewTomTomProvider(maps.ProviderConfig{APIKey: p.TomTomAPIKey, BaseURL: p.TomTomBaseURL, Timeout: timeout})

	router := routing.NewRouter(
		routing.Backend{Provider: mapbox, Breaker: newBreaker(cb, "mapbox-directions")},
		routing.Backend{Provider: ors, Breaker: newBreaker(cb, "ors-directions")},
		routeCache, p.RouteCacheTTL(), timeout,
	)
	adapter := routing.NewAdapter(mapbox, newBreaker(cb, "mapbox-matching"), cfg.Routing.MatchingCap, timeout)

	r := cfg.Restrictions
	restrictionSvc := restrictions.NewService(
		restrictions.Backend{
			Source:  restrictions.NewOverpassSource("overpass", p.OverpassURL, r.QueryTimeout()),
			Breaker: newBreaker(cb, "overpass"),
		},
		restrictions.Backend{
			Source:  restrictions.NewOverpassSource("overpass-mirror", p.OverpassMirror, r.QueryTimeout()),
			Breaker: newBreaker(cb, "overpass-mirror"),
		},
		routeCache,
		restrictions.Config{
			SampleInterval: r.SampleIntervalMeters,
			QueryRadius:    r.QueryRadiusMeters,
			Concurrency:    r.QueryConcurrency,
			QueryTimeout:   r.QueryTimeout(),
			CacheTTL:       r.CacheTTL(),
		},
	)

	logger.Info("providers configured",
		zap.String("routing", string(mapbox.Name())+","+string(ors.Name())),
		zap.String("traffic", string(here.Name())+","+string(tomtom.Name())),
		zap.Bool("circuit_breakers", cb.Enabled),
	)

	return &backends{
		router:       router,
		adapter:      adapter,
		restrictions: restrictionSvc,
		traffic: [2]traffic.Backend{
			{Provider: here, Breaker: newBreaker(cb, "here-traffic")},
			{Provider: tomtom, Breaker: newBreaker(cb, "tomtom-traffic")},
		},
	}
}

func hazardSettings(m config.MonitorConfig) hazard.Settings {
	s := hazard.DefaultSettings()
	s.Interval = m.Interval()
	s.DistanceTrigger = m.DistanceTriggerMeters
	s.AdvisoryDistance = m.AdvisoryDistanceMeters
	s.Margins = hazard.Margins{Dimension: m.DimensionMarginMeters, Weight: m.WeightMarginTonnes}
	return s
}
