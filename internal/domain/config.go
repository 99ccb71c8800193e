package domain

import "time"

// Config holds the complete Scalysis configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Tier determines feature availability
	Tier Tier `yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `yaml:"repository"`
	Cache      CacheConfig      `yaml:"cache"`
	EventBus   EventBusConfig   `yaml:"event_bus"`

	// Commerce platform
	Shopify ShopifyConfig `yaml:"shopify"`

	// Simulation defaults
	Simulation SimulationConfig `yaml:"simulation"`

	// Worker settings
	Worker WorkerConfig `yaml:"worker"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	ReadTimeout  int      `yaml:"read_timeout"`  // seconds
	WriteTimeout int      `yaml:"write_timeout"` // seconds
	AllowOrigins []string `yaml:"allow_origins"`
}

// ShopifyConfig holds credentials and limits for the Admin API.
type ShopifyConfig struct {
	// APIKey and APISecret identify the app. When APISecret is set, requests
	// must carry a session token signed with it and webhooks must carry a
	// matching HMAC.
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`

	APIVersion string `yaml:"api_version"`

	// BaseURL overrides https://<shop> for the Admin API. Used by tests.
	BaseURL string `yaml:"base_url"`

	// RequestsPerSecond bounds calls to the Admin API per client.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	// FlagConcurrency bounds concurrent tagsAdd mutations per request.
	FlagConcurrency int `yaml:"flag_concurrency"`

	// FlagTag is the label applied to flagged orders.
	FlagTag string `yaml:"flag_tag"`

	Timeout time.Duration `yaml:"timeout"`
}

// SimulationConfig holds defaults applied when a request omits them.
type SimulationConfig struct {
	Economics     UnitEconomics `yaml:"economics"`
	DefaultCutoff int           `yaml:"default_cutoff"`

	// SearchLimit is the largest cutoff considered by the
	// profit-preservation search.
	SearchLimit int `yaml:"search_limit"`
}

// WorkerConfig holds async flag-worker settings.
type WorkerConfig struct {
	Enabled     bool `yaml:"enabled"`
	WorkerCount int  `yaml:"worker_count"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	ExporterType string `yaml:"exporter_type"` // stdout, otlp, jaeger
	Endpoint     string `yaml:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			AllowOrigins: []string{"*"},
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./scalysis.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			CurveTTL:     10 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Shopify: ShopifyConfig{
			APIVersion:        "2024-10",
			RequestsPerSecond: 2,
			Burst:             4,
			FlagConcurrency:   4,
			FlagTag:           DefaultFlagTag,
			Timeout:           15 * time.Second,
		},
		Simulation: SimulationConfig{
			Economics:     DefaultUnitEconomics(),
			DefaultCutoff: DefaultCutoffPercent,
			SearchLimit:   50,
		},
		Worker: WorkerConfig{
			Enabled:     true,
			WorkerCount: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "scalysis",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:          "postgres",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresDB:      "scalysis",
		PostgresSSLMode: "disable",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		CurveTTL:       10 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "scalysis-workers",
	}
	cfg.Worker.WorkerCount = 4
	cfg.Tracing.Enabled = true
	return cfg
}
