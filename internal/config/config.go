package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/robfig/cron/v3"

	"github.com/ent0n29/personachat/internal/ratelimit"
)

// Config contains all runtime settings for the chat proxy.
type Config struct {
	BindAddr         string        `env:"APP_BIND_ADDR" envDefault:":8080"`
	ShutdownTimeout  time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MetricsNamespace string        `env:"APP_METRICS_NAMESPACE" envDefault:"personachat"`
	LogLevel         string        `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"APP_LOG_FORMAT" envDefault:"json"`
	ChatPath         string        `env:"APP_CHAT_PATH" envDefault:"/api/chat"`

	// When true the first X-Forwarded-For hop identifies the client for
	// rate limiting. Only enable behind a proxy that sets the header.
	TrustForwardedFor bool `env:"APP_TRUST_FORWARDED_FOR" envDefault:"true"`

	// Absence is not a startup error; requests then fail upstream and
	// callers see the generic 500 body.
	UpstreamAPIKey  string        `env:"GROQ_API_KEY"`
	UpstreamMode    string        `env:"UPSTREAM_MODE" envDefault:"http"`
	UpstreamBaseURL string        `env:"UPSTREAM_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	UpstreamModel   string        `env:"UPSTREAM_MODEL" envDefault:"llama-3.3-70b-versatile"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`

	// Empty disables the janitor: entries then live until process exit.
	JanitorSchedule  string        `env:"JANITOR_SCHEDULE"`
	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	RateLimitIdleTTL time.Duration `env:"RATE_LIMIT_IDLE_TTL" envDefault:"1m"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"personachat"`
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	cfg.UpstreamAPIKey = strings.TrimSpace(cfg.UpstreamAPIKey)
	cfg.UpstreamMode = strings.ToLower(strings.TrimSpace(cfg.UpstreamMode))
	cfg.UpstreamBaseURL = strings.TrimSpace(cfg.UpstreamBaseURL)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.JanitorSchedule = strings.TrimSpace(cfg.JanitorSchedule)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if !strings.HasPrefix(c.ChatPath, "/") {
		return fmt.Errorf("APP_CHAT_PATH must start with /")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("APP_LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	switch c.UpstreamMode {
	case "http":
		if c.UpstreamBaseURL == "" {
			return fmt.Errorf("UPSTREAM_BASE_URL is required when UPSTREAM_MODE is http")
		}
	case "mock":
	default:
		return fmt.Errorf("UPSTREAM_MODE must be http or mock, got %q", c.UpstreamMode)
	}

	if c.JanitorSchedule != "" {
		if _, err := cron.ParseStandard(c.JanitorSchedule); err != nil {
			return fmt.Errorf("JANITOR_SCHEDULE parse error: %w", err)
		}
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}
	if c.RateLimitIdleTTL < ratelimit.DefaultWindow {
		return fmt.Errorf("RATE_LIMIT_IDLE_TTL must be at least %s", ratelimit.DefaultWindow)
	}
	return nil
}

// UpstreamConfigured reports whether an upstream credential is present.
func (c Config) UpstreamConfigured() bool {
	return c.UpstreamMode == "mock" || c.UpstreamAPIKey != ""
}

// JanitorEnabled reports whether idle sweeps are scheduled.
func (c Config) JanitorEnabled() bool {
	return c.JanitorSchedule != ""
}
