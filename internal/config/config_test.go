package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Player.PollInterval != 500*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Player.PollInterval)
	}
	if cfg.Sync.Expiry != 5*time.Second || cfg.Sync.Retention != 10*time.Second {
		t.Errorf("sync timings = %v / %v", cfg.Sync.Expiry, cfg.Sync.Retention)
	}
	if cfg.Storage.Quota != 5*1024*1024 {
		t.Errorf("quota = %d", cfg.Storage.Quota)
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "streamfluency.yaml")
	yamlBody := `
languages:
  native: es
  learning: ja
player:
  poll_interval: 250ms
storage:
  driver: memory
server:
  addr: ":9000"
`
	if err := os.WriteFile(yamlPath, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	envPath := filepath.Join(dir, "test.env")
	envBody := "STREAMFLUENCY_SERVER_ADDR=:9100\nSTREAMFLUENCY_SYNC_TRANSPORT=storage\n"
	if err := os.WriteFile(envPath, []byte(envBody), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("STREAMFLUENCY_SERVER_ADDR")
		os.Unsetenv("STREAMFLUENCY_SYNC_TRANSPORT")
	})

	t.Setenv("STREAMFLUENCY_LANGUAGES_LEARNING", "fr")
	t.Setenv("STREAMFLUENCY_SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(yamlPath, envPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"yaml overrides default", cfg.Languages.Native, "es"},
		{"env overrides yaml", cfg.Languages.Learning, "fr"},
		{"yaml duration", cfg.Player.PollInterval, 250 * time.Millisecond},
		{"default kept", cfg.Player.LoopInterval, 100 * time.Millisecond},
		{"yaml driver", cfg.Storage.Driver, DriverMemory},
		{"dotenv overrides yaml", cfg.Server.Addr, ":9100"},
		{"dotenv fills transport", cfg.Sync.Transport, TransportStorage},
		{"env list", strings.Join(cfg.Server.AllowedOrigins, " "), "http://a.test http://b.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("backup:\n  dir: /srv/backups\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("", noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backup.Dir != "/srv/backups" {
		t.Errorf("backup dir = %q", cfg.Backup.Dir)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("player: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("storage:\n  driver: postgres\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), "failed to read config file"},
		{"malformed yaml", bad, "failed to parse config file"},
		{"invalid values", invalid, `unknown storage driver "postgres"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, noEnvFile(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"zero poll interval", func(c *Config) { c.Player.PollInterval = 0 }, "player.poll_interval must be positive"},
		{"negative expiry", func(c *Config) { c.Sync.Expiry = -time.Second }, "sync.expiry must be positive"},
		{"retention below expiry", func(c *Config) { c.Sync.Retention = time.Second }, "sync.retention must be at least sync.expiry"},
		{"unknown transport", func(c *Config) { c.Sync.Transport = "kafka" }, `unknown sync transport "kafka"`},
		{"redis without addr", func(c *Config) { c.Sync.Transport = TransportRedis }, "sync.redis.addr is required"},
		{"empty language", func(c *Config) { c.Languages.Native = " " }, "languages.native and languages.learning are required"},
		{"ffmpeg without media", func(c *Config) { c.Captions.Source = CaptionsFFmpeg }, "captions.media is required"},
		{"minio without endpoint", func(c *Config) { c.Backup.Sink = SinkMinio }, "backup.minio.endpoint"},
		{"unknown provider", func(c *Config) { c.Translation.Provider = "mymemory" }, `unknown translation provider "mymemory"`},
		{"zero batch size", func(c *Config) { c.Translation.BatchSize = 0 }, "translation.concurrency and translation.batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestAPIKeyFallsBackToUnprefixedEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-unprefixed")

	cfg, err := Load("", noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Translation.APIKey("anthropic"); got != "sk-unprefixed" {
		t.Errorf("anthropic key = %q", got)
	}

	t.Setenv("STREAMFLUENCY_TRANSLATION_ANTHROPIC_API_KEY", "sk-prefixed")
	cfg, err = Load("", noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Translation.APIKey("anthropic"); got != "sk-prefixed" {
		t.Errorf("prefixed key should win, got %q", got)
	}
	if got := cfg.Translation.APIKey("unknown"); got != "" {
		t.Errorf("unknown provider key = %q", got)
	}
}
