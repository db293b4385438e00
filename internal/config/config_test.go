package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.ClockInitial != 10*time.Minute || cfg.PausePolicy != "pause" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CLOCK_INITIAL", "3m")
	t.Setenv("CLOCK_INCREMENT", "2s")
	t.Setenv("CLOCK_PAUSE_POLICY", "run")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClockInitial != 3*time.Minute || cfg.ClockIncrement != 2*time.Second {
		t.Fatalf("clock = %v+%v", cfg.ClockInitial, cfg.ClockIncrement)
	}
	if cfg.PausePolicy != "run" || cfg.ListenAddr != ":9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	body := "listen_addr: \":7000\"\nclock_initial: 5m\nmax_sessions: 50\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LISTEN_ADDR", ":7001") // env wins over file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7001" {
		t.Fatalf("listen = %q, want env override", cfg.ListenAddr)
	}
	if cfg.ClockInitial != 5*time.Minute || cfg.MaxSessions != 50 {
		t.Fatalf("file values lost: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CLOCK_INITIAL", "banana")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad CLOCK_INITIAL")
	}

	t.Setenv("CLOCK_INITIAL", "1m")
	t.Setenv("CLOCK_PAUSE_POLICY", "freeze")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad pause policy")
	}
}
