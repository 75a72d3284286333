package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Imagery    ImageryConfig    `mapstructure:"imagery"`
	Generation GenerationConfig `mapstructure:"generation"`
	Visibility VisibilityConfig `mapstructure:"visibility"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	BodyLimit    int    `mapstructure:"body_limit"`
	CORSOrigins  string `mapstructure:"cors_origins"`
	RateLimit    int    `mapstructure:"rate_limit"` // requests per minute per IP
}

// ImageryConfig configures the Street View Static API client.
// An empty APIKey is reported at request time, not at startup.
type ImageryConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"` // 0 disables throttling
	Burst         int           `mapstructure:"burst"`
}

// GenerationConfig configures the generative image model.
type GenerationConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"` // empty uses the SDK default
	Timeout time.Duration `mapstructure:"timeout"`  // 0 = bounded only by the request
}

type VisibilityConfig struct {
	MaxRelativeBearing float64 `mapstructure:"max_relative_bearing"`
	MaxDistance        float64 `mapstructure:"max_distance"`
}

type NATSConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	JetStream bool   `mapstructure:"jetstream"` // persist events in the STREETVIEW_EVENTS stream
}

type ValkeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 180)
	v.SetDefault("server.body_limit", 1024*1024)
	v.SetDefault("server.cors_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("server.rate_limit", 30)
	v.SetDefault("imagery.api_key", "")
	v.SetDefault("imagery.base_url", "https://maps.googleapis.com")
	v.SetDefault("imagery.timeout", 30*time.Second)
	v.SetDefault("imagery.rate_per_second", 0)
	v.SetDefault("imagery.burst", 1)
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "gemini-2.0-flash-exp-image-generation")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.timeout", 0)
	v.SetDefault("visibility.max_relative_bearing", 60)
	v.SetDefault("visibility.max_distance", 50)
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.jetstream", false)
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CANOPYVIEW_IMAGERY_API_KEY → imagery.api_key
	v.SetEnvPrefix("CANOPYVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider-native key names are accepted as well.
	_ = v.BindEnv("imagery.api_key", "CANOPYVIEW_IMAGERY_API_KEY", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("generation.api_key", "CANOPYVIEW_GENERATION_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("log.level", "CANOPYVIEW_LOG_LEVEL", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
// Provider credentials are deliberately not checked here.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.BodyLimit <= 0 {
		errs = append(errs, "server.body_limit must be positive")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "server.rate_limit must be positive")
	}
	if c.Imagery.BaseURL == "" {
		errs = append(errs, "imagery.base_url is required")
	}
	if c.Imagery.Timeout <= 0 {
		errs = append(errs, "imagery.timeout must be positive")
	}
	if c.Imagery.RatePerSecond < 0 {
		errs = append(errs, "imagery.rate_per_second must not be negative")
	}
	if c.Generation.Model == "" {
		errs = append(errs, "generation.model is required")
	}
	if c.Generation.Timeout < 0 {
		errs = append(errs, "generation.timeout must not be negative")
	}
	if c.Visibility.MaxRelativeBearing <= 0 || c.Visibility.MaxRelativeBearing > 180 {
		errs = append(errs, "visibility.max_relative_bearing must be in (0, 180]")
	}
	if c.Visibility.MaxDistance <= 0 {
		errs = append(errs, "visibility.max_distance must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
