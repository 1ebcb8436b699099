// Package config loads application settings from config.yaml and BLOG_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Publish    PublishConfig    `yaml:"publish" mapstructure:"publish"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the checkpoint backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the redis checkpoint store.
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTLHours  int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the checkpoint expiry, zero for none.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	OpusModel           string `yaml:"opus_model" mapstructure:"opus_model"`
	SonnetModel         string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxRetries          int    `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs    int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSeconds int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// PipelineConfig configures the content pipeline.
type PipelineConfig struct {
	MaxRewriteAttempts int    `yaml:"max_rewrite_attempts" mapstructure:"max_rewrite_attempts"`
	StyleGuidePath     string `yaml:"style_guide_path" mapstructure:"style_guide_path"`
}

// IngestConfig configures source ingestion.
type IngestConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	PdfToTextPath     string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxConcurrency    int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	YouTubeBaseURL    string  `yaml:"youtube_base_url" mapstructure:"youtube_base_url"`
}

// PublishConfig configures the Jekyll publisher and local output.
type PublishConfig struct {
	JekyllRepoPath string `yaml:"jekyll_repo_path" mapstructure:"jekyll_repo_path"`
	GitHubPagesURL string `yaml:"github_pages_url" mapstructure:"github_pages_url"`
	OutputDir      string `yaml:"output_dir" mapstructure:"output_dir"`
	Timezone       string `yaml:"timezone" mapstructure:"timezone"`
	GitPush        bool   `yaml:"git_push" mapstructure:"git_push"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	Password    string   `yaml:"password" mapstructure:"password"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background run health checker.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	StuckRunsThreshold  int     `yaml:"stuck_runs_threshold" mapstructure:"stuck_runs_threshold"`
	MinAvgCriticScore   float64 `yaml:"min_avg_critic_score" mapstructure:"min_avg_critic_score"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var storeDrivers = map[string]bool{"sqlite": true, "postgres": true, "redis": true, "memory": true}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/pipeline.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "blogpipeline:")
	v.SetDefault("redis.ttl_hours", 0)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.opus_model", "claude-opus-4-6")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("anthropic.initial_backoff_ms", 1000)
	v.SetDefault("anthropic.max_backoff_ms", 30000)
	v.SetDefault("anthropic.breaker_threshold", 5)
	v.SetDefault("anthropic.breaker_reset_secs", 60)
	v.SetDefault("pipeline.max_rewrite_attempts", 3)
	v.SetDefault("pipeline.style_guide_path", "")
	v.SetDefault("ingest.user_agent", "Mozilla/5.0 (compatible; BlogPipeline/1.0)")
	v.SetDefault("ingest.timeout_secs", 30)
	v.SetDefault("ingest.requests_per_second", 2.0)
	v.SetDefault("ingest.pdftotext_path", "pdftotext")
	v.SetDefault("ingest.max_concurrency", 4)
	v.SetDefault("ingest.youtube_base_url", "https://video.google.com")
	v.SetDefault("publish.jekyll_repo_path", "")
	v.SetDefault("publish.github_pages_url", "")
	v.SetDefault("publish.output_dir", "output")
	v.SetDefault("publish.timezone", "US/Eastern")
	v.SetDefault("publish.git_push", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.password", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.stuck_runs_threshold", 1)
	v.SetDefault("monitoring.min_avg_critic_score", 0.0)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: run, serve,
// publish, status.
func (c *Config) Validate(mode string) error {
	var errs []string

	if !storeDrivers[c.Store.Driver] {
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, redis, memory", c.Store.Driver))
	}
	if (c.Store.Driver == "sqlite" || c.Store.Driver == "postgres") && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for the "+c.Store.Driver+" driver")
	}
	if c.Store.Driver == "redis" && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required for the redis driver")
	}

	switch mode {
	case "status":
	case "run", "serve":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Pipeline.MaxRewriteAttempts < 1 {
			errs = append(errs, "pipeline.max_rewrite_attempts must be >= 1")
		}
		if c.Ingest.MaxConcurrency < 1 || c.Ingest.MaxConcurrency > 32 {
			errs = append(errs, "ingest.max_concurrency must be between 1 and 32")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "publish":
		if c.Publish.JekyllRepoPath == "" {
			errs = append(errs, "publish.jekyll_repo_path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
