package domain

import (
	"time"
)

// Config holds the complete KYCShield configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure choices
	Tier Tier `json:"tier"`

	// Component configurations
	Repository  RepositoryConfig `json:"repository"`
	Cache       CacheConfig      `json:"cache"`
	EventBus    EventBusConfig   `json:"eventBus"`
	RateLimit   RateLimitConfig  `json:"rateLimit"`
	Fraud       FraudConfig      `json:"fraud"`
	Classifiers ClassifierConfig `json:"classifiers"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// RateLimitConfig holds per-client admission settings.
type RateLimitConfig struct {
	// RequestsPerMinute is the bucket capacity; refill rate is
	// RequestsPerMinute/60 tokens per second.
	RequestsPerMinute int `json:"requestsPerMinute"`
}

// FraudConfig holds fraud engine thresholds.
type FraudConfig struct {
	MaxAttemptsPerHour int `json:"maxAttemptsPerHour"`
	MaxAttemptsPerDay  int `json:"maxAttemptsPerDay"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-memory cache + channel bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for the community tier:
// single process, everything in-memory or on local disk.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kycshield.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Fraud: FraudConfig{
			MaxAttemptsPerHour: 5,
			MaxAttemptsPerDay:  20,
		},
		Classifiers: ClassifierConfig{
			TimeoutSecs: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kycshield",
		},
	}
}

// ProConfig returns a configuration for the pro tier: PostgreSQL repository,
// two-phase Redis cache (shared attempt counters), NATS audit fan-out.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kycshield",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
