// Package config loads and validates service configuration. Settings
// come from built-in defaults, an optional YAML file, and environment
// overrides, applied in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tracing"
)

// Config is the root configuration for the DualMind API service.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service" yaml:"service"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Planner   PlannerConfig   `mapstructure:"planner" yaml:"planner"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Streaming StreamingConfig `mapstructure:"streaming" yaml:"streaming"`
	Tracing   tracing.Config  `mapstructure:"tracing" yaml:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors" yaml:"cors"`
	Tools     ToolsConfig     `mapstructure:"tools" yaml:"tools"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// ServiceConfig holds HTTP server settings.
type ServiceConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	StaticDir       string        `mapstructure:"static_dir" yaml:"static_dir"`
}

// Addr returns the host:port listen address.
func (s ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig controls request authentication. APIKeys maps a key label
// to its bcrypt hash; plaintext keys are never stored.
type AuthConfig struct {
	Enabled     bool              `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret   string            `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenExpiry time.Duration     `mapstructure:"token_expiry" yaml:"token_expiry"`
	APIKeys     map[string]string `mapstructure:"api_keys" yaml:"api_keys"`
}

// PlannerConfig points the service at the planner backend that runs
// query planning and tool execution.
type PlannerConfig struct {
	BaseURL       string               `mapstructure:"base_url" yaml:"base_url"`
	Timeout       time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	MaxIterations int                  `mapstructure:"max_iterations" yaml:"max_iterations"`
	Breaker       CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker guarding planner calls.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests" yaml:"max_requests"`
	Interval         time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold uint32        `mapstructure:"success_threshold" yaml:"success_threshold"`
}

// RedisConfig configures the session store. An empty Addr disables
// Redis and sessions live in process memory only. The password is read
// from REDIS_PASSWORD at connect time.
type RedisConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DatabaseConfig configures the optional Postgres query history store.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	URL      string `mapstructure:"url" yaml:"url"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
}

// DSN returns the connection string. A full URL takes precedence over
// the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// StreamingConfig tunes the per-query event streams served over SSE
// and WebSocket.
type StreamingConfig struct {
	RingCapacity int           `mapstructure:"ring_capacity" yaml:"ring_capacity"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
}

// RateLimitConfig throttles API requests per client.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// ToolsConfig locates the tool catalog file.
type ToolsConfig struct {
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`
	WatchReload bool   `mapstructure:"watch_reload" yaml:"watch_reload"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// Default returns the built-in configuration. The service runs with
// these values when no config file is present.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    0, // streaming responses stay open indefinitely
			ShutdownTimeout: 10 * time.Second,
			StaticDir:       "output",
		},
		Auth: AuthConfig{
			Enabled:     false,
			TokenExpiry: 24 * time.Hour,
		},
		Planner: PlannerConfig{
			BaseURL:       "http://localhost:8001",
			Timeout:       120 * time.Second,
			MaxIterations: 3,
			Breaker: CircuitBreakerConfig{
				Enabled:          true,
				MaxRequests:      3,
				Interval:         60 * time.Second,
				Timeout:          10 * time.Second,
				FailureThreshold: 5,
				SuccessThreshold: 2,
			},
		},
		Redis: RedisConfig{
			Addr: "",
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "dualmind",
			SSLMode:  "disable",
		},
		Streaming: StreamingConfig{
			RingCapacity: 256,
			PingInterval: 15 * time.Second,
		},
		Tracing: tracing.Config{
			Enabled:     false,
			ServiceName: "dualmind-api",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
			},
		},
		Tools: ToolsConfig{
			CatalogPath: "config/tools.yaml",
			WatchReload: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    2112,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (or CONFIG_PATH when path is empty), and environment overrides.
// When neither names a file the service runs on defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the loaded
// configuration. Environment wins over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p := parseInt(v); p > 0 {
			cfg.Service.Port = p
		}
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.Service.StaticDir = v
	}
	if v := os.Getenv("PLANNER_URL"); v != "" {
		cfg.Planner.BaseURL = v
	}
	if v := os.Getenv("PLANNER_MAX_ITERATIONS"); v != "" {
		if n := parseInt(v); n > 0 {
			cfg.Planner.MaxIterations = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = parseBool(v)
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if p := parseInt(v); p > 0 {
			cfg.Metrics.Port = p
		}
	}
	if v := os.Getenv("TOOLS_CONFIG_PATH"); v != "" {
		cfg.Tools.CatalogPath = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.OTLPEndpoint = v
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service port %d out of range", c.Service.Port)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics port %d out of range", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Service.Port {
			return fmt.Errorf("metrics port %d conflicts with service port", c.Metrics.Port)
		}
	}
	if c.Planner.BaseURL == "" {
		return fmt.Errorf("planner base_url is required")
	}
	if !strings.HasPrefix(c.Planner.BaseURL, "http://") && !strings.HasPrefix(c.Planner.BaseURL, "https://") {
		return fmt.Errorf("planner base_url %q must be an http or https URL", c.Planner.BaseURL)
	}
	if c.Planner.MaxIterations < 1 {
		return fmt.Errorf("planner max_iterations must be at least 1, got %d", c.Planner.MaxIterations)
	}
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
			return fmt.Errorf("auth enabled but no jwt_secret or api_keys configured")
		}
		if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("jwt_secret must be at least 32 characters, got %d", len(c.Auth.JWTSecret))
		}
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute < 1 {
			return fmt.Errorf("rate limit requests_per_minute must be at least 1, got %d", c.RateLimit.RequestsPerMinute)
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("rate limit burst must be at least 1, got %d", c.RateLimit.Burst)
		}
	}
	if c.Streaming.RingCapacity < 1 {
		return fmt.Errorf("streaming ring_capacity must be at least 1, got %d", c.Streaming.RingCapacity)
	}
	if c.Database.Enabled && c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("database enabled but no url or host configured")
	}
	return nil
}

func parseInt(s string) int {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
