package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const minCaptureTimeoutMS = 1000

// Backends accepted by GROWTH_BACKEND.
const (
	BackendChartJS = "chartjs"
	BackendECharts = "echarts"
	BackendPNG     = "png"
)

// Config holds all configuration for the growth chart server.
type Config struct {
	// Listen address selection
	BindAddr         string   `env:"GROWTH_BIND_ADDR, default=127.0.0.1:8190"`
	PortCandidates   []string `env:"GROWTH_PORT_CANDIDATES, default=127.0.0.1:8191,127.0.0.1:8192"`
	PortAutoFallback bool     `env:"GROWTH_PORT_AUTO_FALLBACK, default=true"`

	LogLevel string `env:"LOG_LEVEL, default=info"`
	LogFile  string `env:"LOG_FILE, default=logs/growthchart.log"`

	// Chart binding
	Profile      string `env:"GROWTH_PROFILE, default=who-en"`
	ProfilesFile string `env:"PROFILES_FILE"`
	Backend      string `env:"GROWTH_BACKEND, default=chartjs"`

	// Lifecycle journal
	JournalDir       string `env:"JOURNAL_DIR, default=./journal"`
	JournalMaxSizeMB int    `env:"JOURNAL_MAX_SIZE_MB, default=50"`
	JournalBuffer    int    `env:"JOURNAL_BUFFER, default=1024"`

	SnapshotDir string `env:"SNAPSHOT_DIR, default=./snapshots"`

	// Headless capture; an empty URL starts a local Chromium.
	ChromiumCDPURL   string `env:"CHROMIUM_CDP_URL"`
	CaptureTimeoutMS int    `env:"CAPTURE_TIMEOUT_MS, default=15000"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME, default=growthchart"`
}

// Load reads configuration from environment variables and optional .env file.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
	return process(ctx, envconfig.OsLookuper())
}

func process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Backend = strings.ToLower(cfg.Backend)
	switch cfg.Backend {
	case BackendChartJS, BackendECharts, BackendPNG:
	default:
		return nil, fmt.Errorf("GROWTH_BACKEND %q: want chartjs, echarts or png", cfg.Backend)
	}
	if cfg.CaptureTimeoutMS < minCaptureTimeoutMS {
		cfg.CaptureTimeoutMS = minCaptureTimeoutMS
	}
	if cfg.JournalBuffer < 1 {
		cfg.JournalBuffer = 1
	}
	return &cfg, nil
}

// CaptureTimeout returns the headless capture deadline.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutMS) * time.Millisecond
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
