package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var keys = []string{
	"ENV_FILE", "PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "REDIS_URL", "JWT_SECRET",
	"STORE_DRIVER", "PUBLISH_TIMEOUT", "TYPING_TTL", "PRESENCE_WINDOW", "TYPING_SWEEP_INTERVAL", "RATE_LIMIT",
}

// clearEnv unsets every config key for the test and restores the previous
// values afterwards, including keys the env file loader sets.
func clearEnv(t *testing.T) {
	t.Helper()
	saved := make(map[string]string)
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			saved[k] = v
		}
		_ = os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
			if v, ok := saved[k]; ok {
				_ = os.Setenv(k, v)
			}
		}
	})
}

func writeEnvFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	_ = os.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	_ = os.Setenv("JWT_SECRET", "dev-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8081" || cfg.Env != "development" || cfg.StoreDriver != StoreDriverPostgres {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PublishTimeout != 2*time.Second || cfg.TypingTTL != 5*time.Second ||
		cfg.PresenceWindow != 5*time.Minute || cfg.TypingSweepInterval != 30*time.Second {
		t.Errorf("durations = %s %s %s %s", cfg.PublishTimeout, cfg.TypingTTL, cfg.PresenceWindow, cfg.TypingSweepInterval)
	}
	if cfg.RateLimit != "600-M" {
		t.Errorf("RateLimit = %q", cfg.RateLimit)
	}
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, `
PORT=9090
JWT_SECRET=file-secret
STORE_DRIVER=Memory
TYPING_TTL=3s
PRESENCE_WINDOW=2m
`)
	_ = os.Setenv("ENV_FILE", path)
	_ = os.Setenv("PORT", "7070")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want the process env to win", cfg.Port)
	}
	if cfg.JWTSecret != "file-secret" || cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TypingTTL != 3*time.Second || cfg.PresenceWindow != 2*time.Minute {
		t.Errorf("durations = %s %s", cfg.TypingTTL, cfg.PresenceWindow)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET is required"},
		{"bad driver", map[string]string{"JWT_SECRET": "x", "STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"bad duration", map[string]string{"JWT_SECRET": "x", "TYPING_TTL": "soon"}, "TYPING_TTL"},
		{"negative duration", map[string]string{"JWT_SECRET": "x", "PUBLISH_TIMEOUT": "-1s"}, "PUBLISH_TIMEOUT must be positive"},
		{"bad rate limit", map[string]string{"JWT_SECRET": "x", "RATE_LIMIT": "lots"}, "RATE_LIMIT"},
		{"short production secret", map[string]string{"JWT_SECRET": "short", "ENV": "production"}, "at least 32 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_ = os.Setenv("ENV_FILE", "")
			for k, v := range tt.env {
				_ = os.Setenv(k, v)
			}
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("TEST_DURATION", "1m30s")
	d, err := GetDurationEnv("TEST_DURATION", time.Second)
	if err != nil || d != 90*time.Second {
		t.Errorf("got %s, %v", d, err)
	}
	d, err = GetDurationEnv("TEST_DURATION_UNSET", time.Second)
	if err != nil || d != time.Second {
		t.Errorf("default: got %s, %v", d, err)
	}
}
