package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the full server configuration. Values come from an
// optional YAML file (CONFIG_FILE) overridden by environment
// variables, so container deployments can tweak single knobs without
// shipping a file.
type AppConfig struct {
	ListenAddr string

	RedisURL         string
	DatabaseURL      string
	RatingWebhookURL string

	ClockInitial   time.Duration
	ClockIncrement time.Duration
	PausePolicy    string
	AbandonGrace   time.Duration

	SessionRetention time.Duration
	MaxSessions      int
}

// fileConfig is the YAML schema; durations are Go duration strings
// like "5m" or "2s".
type fileConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	RedisURL         string `yaml:"redis_url"`
	DatabaseURL      string `yaml:"database_url"`
	RatingWebhookURL string `yaml:"rating_webhook_url"`
	ClockInitial     string `yaml:"clock_initial"`
	ClockIncrement   string `yaml:"clock_increment"`
	PausePolicy      string `yaml:"pause_policy"`
	AbandonGrace     string `yaml:"abandon_grace"`
	SessionRetention string `yaml:"session_retention"`
	MaxSessions      int    `yaml:"max_sessions"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:       ":8080",
		ClockInitial:     10 * time.Minute,
		ClockIncrement:   0,
		PausePolicy:      "pause",
		AbandonGrace:     2 * time.Minute,
		SessionRetention: 10 * time.Minute,
		MaxSessions:      200,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment overrides.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		if err := cfg.applyFile(&fc); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("RATING_WEBHOOK_URL")); v != "" {
		cfg.RatingWebhookURL = v
	}

	if v := strings.TrimSpace(os.Getenv("CLOCK_INITIAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid CLOCK_INITIAL %q", v)
		}
		cfg.ClockInitial = d
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_INCREMENT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid CLOCK_INCREMENT %q", v)
		}
		cfg.ClockIncrement = d
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_PAUSE_POLICY")); v != "" {
		cfg.PausePolicy = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("ABANDON_GRACE")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ABANDON_GRACE %q", v)
		}
		cfg.AbandonGrace = d
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_RETENTION")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SESSION_RETENTION %q", v)
		}
		cfg.SessionRetention = d
	}
	if v := strings.TrimSpace(os.Getenv("MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSessions = n
		}
	}

	if cfg.PausePolicy != "pause" && cfg.PausePolicy != "run" {
		return nil, errors.New("pause_policy must be pause or run")
	}
	return cfg, nil
}

func (cfg *AppConfig) applyFile(fc *fileConfig) error {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.RatingWebhookURL != "" {
		cfg.RatingWebhookURL = fc.RatingWebhookURL
	}
	if fc.PausePolicy != "" {
		cfg.PausePolicy = strings.ToLower(fc.PausePolicy)
	}
	if fc.MaxSessions > 0 {
		cfg.MaxSessions = fc.MaxSessions
	}
	for _, f := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{fc.ClockInitial, &cfg.ClockInitial, "clock_initial"},
		{fc.ClockIncrement, &cfg.ClockIncrement, "clock_increment"},
		{fc.AbandonGrace, &cfg.AbandonGrace, "abandon_grace"},
		{fc.SessionRetention, &cfg.SessionRetention, "session_retention"},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid %s %q", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}
