package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/truckroute/internal/position"
	"github.com/richxcame/truckroute/internal/session"
	"github.com/richxcame/truckroute/internal/traffic"
	"github.com/richxcame/truckroute/pkg/cache"
	"github.com/richxcame/truckroute/pkg/config"
	"github.com/richxcame/truckroute/pkg/errors"
	"github.com/richxcame/truckroute/pkg/eventbus"
	"github.com/richxcame/truckroute/pkg/health"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/middleware"
	redisClient "github.com/richxcame/truckroute/pkg/redis"
	"github.com/richxcame/truckroute/pkg/tracing"
	"github.com/richxcame/truckroute/pkg/websocket"
	"go.uber.org/zap"
)

const (
	serviceName = "truckroute-navigator"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting navigator",
		zap.String("service", serviceName),
		zap.String("version", version),
	)

	sentryCfg := cfg.Sentry
	if sentryCfg.Release == "" {
		sentryCfg.Release = version
	}
	if err := errors.InitSentry(sentryCfg, cfg.Server.Environment, serviceName); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if _, err := tracing.InitTracer(cfg.Tracing, serviceName, cfg.Server.Environment, logger.Get()); err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown tracer", zap.Error(err))
			}
		}()
	}

	healthChecks := make(map[string]health.Checker)

	// Redis is optional; without it routes and restriction sets are not cached.
	routeCache := cache.NewManager(nil, "navigator")
	if cfg.Redis.Enabled {
		redis, err := redisClient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redis.Close()
			routeCache = cache.NewManager(redis, "navigator")
			healthChecks["redis"] = health.PingChecker("redis", redis)
			logger.Info("Connected to Redis")
		}
	}

	var publisher eventbus.Publisher
	if cfg.NATS.Enabled {
		bus, err := eventbus.New(eventbus.Config{URL: cfg.NATS.URL, Name: serviceName, StreamName: cfg.NATS.StreamName})
		if err != nil {
			logger.Warn("NATS unavailable, events stay local", zap.Error(err))
		} else {
			defer bus.Close()
			publisher = bus
			healthChecks["nats"] = health.ConnectedChecker("nats", bus.Connected)
		}
	}

	hub := websocket.NewHub()
	go hub.Run(rootCtx)

	b := buildBackends(cfg, routeCache)

	deps := session.Dependencies{
		NewRouteComputer: func() session.RouteComputer { return b.router.NewCoordinator() },
		Adapter:          b.adapter,
		Restrictions:     b.restrictions,
		TrafficInterval:  cfg.Traffic.Interval(),
		MonitorEnabled:   cfg.Monitor.Enabled,
		Hazard:           hazardSettings(cfg.Monitor),
		Publisher:        publisher,
		Notifier:         hub,
	}
	if cfg.Traffic.Enabled {
		deps.NewTraffic = func() session.TrafficRunner {
			return traffic.NewClassifier(b.traffic[0], b.traffic[1], traffic.DefaultCallTimeout)
		}
	}

	manager := session.NewManager(rootCtx, deps, cfg.Session.IdleTimeout())
	go manager.Run(rootCtx)

	var mqttClient mqtt.Client
	if cfg.MQTT.Enabled {
		sub := position.NewSubscriber(cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, manager)
		mqttClient, err = position.NewClient(cfg.MQTT, sub.Subscribe)
		if err != nil {
			logger.Warn("MQTT unavailable, positions accepted over HTTP only", zap.Error(err))
		} else {
			healthChecks["mqtt"] = health.ConnectedChecker("mqtt", mqttClient.IsConnected)
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName, "/health/live", "/health/ready", "/metrics"))
	router.Use(middleware.Tracing(serviceName))
	router.Use(middleware.ReportServerErrors())
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	router.GET("/health/live", health.Liveness(serviceName, version))
	router.GET("/health/ready", health.Readiness(serviceName, version, healthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	session.NewHandler(manager, hub).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
	manager.Shutdown()
	cancelRoot()

	logger.Info("Server stopped")
}

func corsConfig(originList string) cors.Config {
	c := cors.DefaultConfig()
	origins := strings.Split(originList, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	c.AllowOrigins = origins
	c.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", middleware.CorrelationIDHeader}
	c.ExposeHeaders = []string{middleware.CorrelationIDHeader}
	return c
}
