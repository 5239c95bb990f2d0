package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int
	DatabasePath   string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	// Aggregation
	Retention     time.Duration
	SweepSchedule string
	SweepInterval time.Duration
	SampleSize    int
	TopN          int
	RateWindow    time.Duration
	RecentLimit   int

	// Mirror
	MirrorEnabled bool
	MirrorLimit   int

	HostSampleInterval  time.Duration
	NotificationDismiss time.Duration
	SnapshotDebounce    time.Duration

	// Auth
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
	SecureCookies bool
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	l := &loader{}
	cfg := &Config{
		ServerPort:     l.int("PORT", 8080),
		DatabasePath:   getEnv("DATABASE_PATH", "./sitepulse.db"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),

		Retention:     l.duration("RETENTION", telemetry.DefaultRetention),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@hourly"),
		SweepInterval: l.duration("SWEEP_INTERVAL", telemetry.DefaultSweepInterval),
		SampleSize:    l.int("SAMPLE_SIZE", telemetry.DefaultSampleSize),
		TopN:          l.int("TOP_N", telemetry.DefaultTopN),
		RateWindow:    l.duration("RATE_WINDOW", telemetry.DefaultRateWindow),
		RecentLimit:   l.int("RECENT_LIMIT", telemetry.DefaultRecentLimit),

		MirrorEnabled: l.bool("MIRROR_ENABLED", true),
		MirrorLimit:   l.int("MIRROR_LIMIT", 1000),

		HostSampleInterval:  l.duration("HOST_SAMPLE_INTERVAL", 15*time.Second),
		NotificationDismiss: l.duration("NOTIFICATION_DISMISS", 5*time.Second),
		SnapshotDebounce:    l.duration("SNAPSHOT_DEBOUNCE", 250*time.Millisecond),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTL:      l.duration("TOKEN_TTL", 24*time.Hour),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		SecureCookies: l.bool("SECURE_COOKIES", false),
	}
	if l.err != nil {
		return nil, l.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("config: PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	positive := map[string]time.Duration{
		"RETENTION":      c.Retention,
		"SWEEP_INTERVAL": c.SweepInterval,
		"RATE_WINDOW":    c.RateWindow,
		"TOKEN_TTL":      c.TokenTTL,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", key, d)
		}
	}
	if c.SampleSize < 0 || c.TopN < 0 || c.RecentLimit < 0 || c.MirrorLimit < 0 {
		return fmt.Errorf("config: sizes must not be negative")
	}
	if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
		return fmt.Errorf("config: invalid SWEEP_SCHEDULE %q: %w", c.SweepSchedule, err)
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// TelemetryOptions turns the aggregation settings into aggregator options.
func (c *Config) TelemetryOptions() []telemetry.Option {
	return []telemetry.Option{
		telemetry.WithRetention(c.Retention),
		telemetry.WithSweepInterval(c.SweepInterval),
		telemetry.WithSampleSize(c.SampleSize),
		telemetry.WithTopN(c.TopN),
		telemetry.WithRateWindow(c.RateWindow),
		telemetry.WithRecentLimit(c.RecentLimit),
	}
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// loader parses typed variables and keeps the first failure.
type loader struct {
	err error
}

func (l *loader) int(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("config: %s: %w", key, err)
	}
	return v
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("config: %s: %w", key, err)
	}
	return v
}

func (l *loader) bool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("config: %s: %w", key, err)
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
