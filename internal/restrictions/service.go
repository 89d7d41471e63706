package restrictions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/richxcame/truckroute/pkg/cache"
	apperrors "github.com/richxcame/truckroute/pkg/errors"
	"github.com/richxcame/truckroute/pkg/geo"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/resilience"
	"github.com/richxcame/truckroute/pkg/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "restrictions"

// Config tunes corridor sampling.
type Config struct {
	SampleInterval float64 // metres between samples
	QueryRadius    float64 // metres around each sample
	Concurrency    int
	QueryTimeout   time.Duration
	CacheTTL       time.Duration
}

// DefaultConfig returns the corridor defaults.
func DefaultConfig() Config {
	return Config{
		SampleInterval: 500,
		QueryRadius:    60,
		Concurrency:    4,
		QueryTimeout:   10 * time.Second,
		CacheTTL:       4 * time.Hour,
	}
}

// Backend is one restriction source with its circuit breaker.
type Backend struct {
	Source  Source
	Breaker *resilience.CircuitBreaker
}

// Service loads the restrictions along a route.
type Service struct {
	primary   Backend
	secondary Backend
	cache     *cache.Manager
	cfg       Config
}

// NewService creates a restriction service. The secondary is the mirror
// tried once when the primary fails; a nil cache disables caching.
func NewService(primary, secondary Backend, setCache *cache.Manager, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = def.SampleInterval
	}
	if cfg.QueryRadius <= 0 {
		cfg.QueryRadius = def.QueryRadius
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	return &Service{primary: primary, secondary: secondary, cache: setCache, cfg: cfg}
}

// LoadRestrictions samples the route, queries the source around each sample
// and returns the deduplicated set. A source failure yields an empty,
// degraded set; only cancellation is returned as an error.
func (s *Service) LoadRestrictions(ctx context.Context, route *maps.RouteResult, profile vehicle.Profile) (*RestrictionSet, error) {
	key := cache.Keys.Restrictions(route.ID)
	var cached RestrictionSet
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		logger.DebugContext(ctx, "restriction set served from cache",
			zap.String("route_id", route.ID),
			zap.Int("count", len(cached.Restrictions)),
		)
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.WarnContext(ctx, "restriction cache read failed", zap.Error(err))
	}

	var set *RestrictionSet
	err := tracing.TraceOperation(ctx, tracerName, "restrictions.load",
		tracing.SessionAttributes(logger.SessionIDFromContext(ctx), route.ID),
		func(ctx context.Context) error {
			var err error
			set, err = s.query(ctx, route)
			if err == nil {
				tracing.AddAttributes(ctx, tracing.RestrictionCount.Int(len(set.Restrictions)))
			}
			return err
		})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if err != nil {
		err = errors.Join(maps.ErrRestrictionQueryFailed, err)
		logger.WarnContext(ctx, "restriction lookup failed, continuing with routing only",
			zap.String("route_id", route.ID),
			zap.Error(err),
		)
		apperrors.CaptureError(ctx, err, map[string]interface{}{"route_id": route.ID, "degraded": "restrictions"})
		recordLoad(0, true)
		degraded := EmptySet(route.ID)
		degraded.Degraded = true
		degraded.LoadedAt = time.Now().UTC()
		return degraded, nil
	}

	recordLoad(len(set.Restrictions), false)
	logger.InfoContext(ctx, "restrictions loaded",
		zap.String("route_id", route.ID),
		zap.Int("count", len(set.Restrictions)),
		zap.Int("relevant", len(set.FilterForProfile(profile))),
		zap.Int("skipped", set.Skipped),
	)

	if err := s.cache.Set(ctx, key, set, s.cfg.CacheTTL); err != nil {
		logger.WarnContext(ctx, "restriction cache write failed", zap.Error(err))
	}
	return set, nil
}

func (s *Service) query(ctx context.Context, route *maps.RouteResult) (*RestrictionSet, error) {
	samples := geo.NewPolyline(maps.LineString(route.Geometry)).Sample(s.cfg.SampleInterval)

	var (
		mu      sync.Mutex
		found   []Restriction
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, sample := range samples {
		center := maps.CoordinateFromPoint(sample.Point)
		g.Go(func() error {
			elements, err := s.queryOne(gctx, center)
			if err != nil {
				return err
			}

			var local []Restriction
			localSkipped := 0
			for _, el := range elements {
				rs, n := Normalize(el)
				local = append(local, rs...)
				localSkipped += n
			}

			mu.Lock()
			found = append(found, local...)
			skipped += localSkipped
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if skipped > 0 {
		logger.DebugContext(ctx, "skipped unparseable restriction tags",
			zap.String("route_id", route.ID),
			zap.Int("skipped", skipped),
		)
	}

	restrictions := Dedup(found)
	return &RestrictionSet{
		RouteID:      route.ID,
		Restrictions: restrictions,
		Skipped:      skipped,
		LoadedAt:     time.Now().UTC(),
	}, nil
}

func (s *Service) queryOne(ctx context.Context, center maps.Coordinate) ([]Element, error) {
	failover := resilience.Failover[[]Element]{
		Operation: "restrictions",
		Primary:   s.hop(s.primary, center),
		Secondary: s.hop(s.secondary, center),
		Timeout:   s.cfg.QueryTimeout,
	}
	elements, _, err := failover.Execute(ctx)
	return elements, err
}

func (s *Service) hop(b Backend, center maps.Coordinate) resilience.Hop[[]Element] {
	h := resilience.Hop[[]Element]{Breaker: b.Breaker}
	if b.Source == nil {
		h.Name = "unconfigured"
		return h
	}
	h.Name = b.Source.Name()
	h.Call = func(ctx context.Context) ([]Element, error) {
		return b.Source.Query(ctx, center, s.cfg.QueryRadius)
	}
	return h
}
