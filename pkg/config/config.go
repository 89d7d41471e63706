package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Redis        RedisConfig
	NATS         NATSConfig
	MQTT         MQTTConfig
	Tracing      TracingConfig
	Sentry       SentryConfig
	Providers    ProvidersConfig
	Routing      RoutingConfig
	Restrictions RestrictionsConfig
	Monitor      MonitorConfig
	Traffic      TrafficConfig
	Session      SessionConfig
	Resilience   ResilienceConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig configures the JetStream event bus used for advisory fan-out.
type NATSConfig struct {
	Enabled    bool
	URL        string
	StreamName string
}

// MQTTConfig configures the vehicle position feed.
type MQTTConfig struct {
	Enabled     bool
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// SentryConfig holds error tracking settings. An empty DSN disables it.
type SentryConfig struct {
	DSN              string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

// ProvidersConfig holds credentials and endpoints for every upstream provider.
type ProvidersConfig struct {
	MapboxToken      string
	MapboxBaseURL    string
	ORSAPIKey        string
	ORSBaseURL       string
	HereAPIKey       string
	HereBaseURL      string
	TomTomAPIKey     string
	TomTomBaseURL    string
	OverpassURL      string
	OverpassMirror   string
	TimeoutSeconds   int
	RouteCacheTTLMin int
}

// RoutingConfig tunes route computation and geometry adaptation.
type RoutingConfig struct {
	MatchingCap int
}

// RestrictionsConfig tunes corridor sampling and restriction caching.
type RestrictionsConfig struct {
	SampleIntervalMeters float64
	QueryRadiusMeters    float64
	QueryConcurrency     int
	QueryTimeoutSeconds  int
	CacheTTLMinutes      int
}

// MonitorConfig tunes the hazard monitor. Margins are in metres and tonnes.
type MonitorConfig struct {
	Enabled                bool
	IntervalSeconds        int
	DistanceTriggerMeters  float64
	AdvisoryDistanceMeters float64
	DimensionMarginMeters  float64
	WeightMarginTonnes     float64
}

// TrafficConfig tunes the traffic flow classifier.
type TrafficConfig struct {
	Enabled         bool
	IntervalSeconds int
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	IdleTimeoutMinutes int
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			Enabled:    getEnvAsBool("NATS_ENABLED", false),
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "NAVIGATOR"),
		},
		MQTT: MQTTConfig{
			Enabled:     getEnvAsBool("MQTT_ENABLED", false),
			BrokerURL:   getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:    getEnv("MQTT_CLIENT_ID", serviceName),
			Username:    getEnv("MQTT_USERNAME", ""),
			Password:    getEnv("MQTT_PASSWORD", ""),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "vehicles"),
			QoS:         getEnvAsInt("MQTT_QOS", 1),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_SAMPLE_RATE", 0.1),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			Release:          getEnv("SENTRY_RELEASE", ""),
			SampleRate:       getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
			Debug:            getEnvAsBool("SENTRY_DEBUG", false),
		},
		Providers: ProvidersConfig{
			MapboxToken:      getEnv("MAPBOX_TOKEN", ""),
			MapboxBaseURL:    getEnv("MAPBOX_BASE_URL", "https://api.mapbox.com"),
			ORSAPIKey:        getEnv("ORS_API_KEY", ""),
			ORSBaseURL:       getEnv("ORS_BASE_URL", "https://api.openrouteservice.org"),
			HereAPIKey:       getEnv("HERE_API_KEY", ""),
			HereBaseURL:      getEnv("HERE_BASE_URL", "https://data.traffic.hereapi.com"),
			TomTomAPIKey:     getEnv("TOMTOM_API_KEY", ""),
			TomTomBaseURL:    getEnv("TOMTOM_BASE_URL", "https://api.tomtom.com"),
			OverpassURL:      getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			OverpassMirror:   getEnv("OVERPASS_MIRROR_URL", "https://overpass.kumi.systems/api/interpreter"),
			TimeoutSeconds:   getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 10),
			RouteCacheTTLMin: getEnvAsInt("ROUTE_CACHE_TTL_MINUTES", 10),
		},
		Routing: RoutingConfig{
			MatchingCap: getEnvAsInt("MATCHING_COORDINATE_CAP", 100),
		},
		Restrictions: RestrictionsConfig{
			SampleIntervalMeters: getEnvAsFloat("RESTRICTION_SAMPLE_INTERVAL_METERS", 500),
			QueryRadiusMeters:    getEnvAsFloat("RESTRICTION_QUERY_RADIUS_METERS", 60),
			QueryConcurrency:     getEnvAsInt("RESTRICTION_QUERY_CONCURRENCY", 4),
			QueryTimeoutSeconds:  getEnvAsInt("RESTRICTION_QUERY_TIMEOUT_SECONDS", 10),
			CacheTTLMinutes:      getEnvAsInt("RESTRICTION_CACHE_TTL_MINUTES", 240),
		},
		Monitor: MonitorConfig{
			Enabled:                getEnvAsBool("HAZARD_MONITOR_ENABLED", true),
			IntervalSeconds:        getEnvAsInt("HAZARD_INTERVAL_SECONDS", 5),
			DistanceTriggerMeters:  getEnvAsFloat("HAZARD_DISTANCE_TRIGGER_METERS", 100),
			AdvisoryDistanceMeters: getEnvAsFloat("HAZARD_ADVISORY_DISTANCE_METERS", 2400),
			DimensionMarginMeters:  getEnvAsFloat("HAZARD_DIMENSION_MARGIN_METERS", 0.10),
			WeightMarginTonnes:     getEnvAsFloat("HAZARD_WEIGHT_MARGIN_TONNES", 0.5),
		},
		Traffic: TrafficConfig{
			Enabled:         getEnvAsBool("TRAFFIC_ENABLED", true),
			IntervalSeconds: getEnvAsInt("TRAFFIC_INTERVAL_SECONDS", 180),
		},
		Session: SessionConfig{
			IdleTimeoutMinutes: getEnvAsInt("SESSION_IDLE_TIMEOUT_MINUTES", 30),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}
	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}
	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings that would stall or disable the periodic loops.
func (c *Config) Validate() error {
	var errs []error

	if c.Providers.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT_SECONDS must be positive"))
	}
	if c.Routing.MatchingCap < 2 {
		errs = append(errs, errors.New("MATCHING_COORDINATE_CAP must be at least 2"))
	}
	if c.Restrictions.SampleIntervalMeters <= 0 {
		errs = append(errs, errors.New("RESTRICTION_SAMPLE_INTERVAL_METERS must be positive"))
	}
	if c.Restrictions.QueryRadiusMeters <= 0 {
		errs = append(errs, errors.New("RESTRICTION_QUERY_RADIUS_METERS must be positive"))
	}
	if c.Restrictions.QueryConcurrency <= 0 {
		errs = append(errs, errors.New("RESTRICTION_QUERY_CONCURRENCY must be positive"))
	}
	if c.Restrictions.QueryTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("RESTRICTION_QUERY_TIMEOUT_SECONDS must be positive"))
	}
	if c.Monitor.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("HAZARD_INTERVAL_SECONDS must be positive"))
	}
	if c.Monitor.DistanceTriggerMeters <= 0 {
		errs = append(errs, errors.New("HAZARD_DISTANCE_TRIGGER_METERS must be positive"))
	}
	if c.Monitor.AdvisoryDistanceMeters <= 0 {
		errs = append(errs, errors.New("HAZARD_ADVISORY_DISTANCE_METERS must be positive"))
	}
	if c.Monitor.DimensionMarginMeters < 0 || c.Monitor.WeightMarginTonnes < 0 {
		errs = append(errs, errors.New("hazard safety margins cannot be negative"))
	}
	if c.Traffic.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("TRAFFIC_INTERVAL_SECONDS must be positive"))
	}

	return errors.Join(errs...)
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Timeout is the per-call provider deadline.
func (c ProvidersConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RouteCacheTTL is how long computed routes stay in redis.
func (c ProvidersConfig) RouteCacheTTL() time.Duration {
	return time.Duration(c.RouteCacheTTLMin) * time.Minute
}

// QueryTimeout bounds a single restriction sample query.
func (c RestrictionsConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// CacheTTL is how long a route's restriction set stays in redis.
func (c RestrictionsConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// Interval returns the time-based hazard trigger.
func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Interval returns the traffic refresh period.
func (c TrafficConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// IdleTimeout returns how long a session may go without a position report.
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
