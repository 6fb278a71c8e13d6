package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[api]
base_url = "http://studio.local:9000"
request_timeout_seconds = 12

[credentials]
backend = "redis"
redis_addr = "cache:6379"

[events]
kafka_brokers = ["k1:9092"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CLIPSTUDIO_URL", "http://override:5000")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://override:5000" {
		t.Fatalf("base url = %q; want env override", cfg.API.BaseURL)
	}
	if cfg.ClipPollInterval() != ClipPollInterval || cfg.JobPollInterval() != JobPollInterval {
		t.Fatalf("poll intervals = %s/%s; want defaults", cfg.ClipPollInterval(), cfg.JobPollInterval())
	}
	if cfg.API.RequestTimeoutSeconds != 12 {
		t.Fatalf("timeout = %d; want 12", cfg.API.RequestTimeoutSeconds)
	}
	if cfg.Credentials.Backend != "redis" || cfg.Credentials.RedisAddr != "cache:6379" {
		t.Fatalf("unexpected credentials config: %+v", cfg.Credentials)
	}
	if cfg.Credentials.RedisDB != 2 {
		t.Fatalf("redis db = %d; want 2", cfg.Credentials.RedisDB)
	}
	if len(cfg.Events.KafkaBrokers) != 1 || cfg.Events.KafkaTopic == "" {
		t.Fatalf("unexpected events config: %+v", cfg.Events)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad url", func(c *Config) { c.API.BaseURL = "not a url" }, true},
		{"zero timeout", func(c *Config) { c.API.RequestTimeoutSeconds = 0 }, true},
		{"zero poll interval", func(c *Config) { c.API.JobPollIntervalMS = 0 }, true},
		{"unknown backend", func(c *Config) { c.Credentials.Backend = "keychain" }, true},
		{"file without path", func(c *Config) { c.Credentials.Path = " " }, true},
		{"brokers without topic", func(c *Config) {
			c.Events.KafkaBrokers = []string{"k:9092"}
			c.Events.KafkaTopic = ""
		}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() error = %v; wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	for _, d := range []int{4, 8, 12} {
		if !IsValidDuration(d) {
			t.Fatalf("IsValidDuration(%d) = false", d)
		}
	}
	if IsValidDuration(5) {
		t.Fatal("IsValidDuration(5) = true")
	}
	if got := NextDuration(4); got != 8 {
		t.Fatalf("NextDuration(4) = %d; want 8", got)
	}
	if got := NextDuration(12); got != 4 {
		t.Fatalf("NextDuration(12) = %d; want 4", got)
	}
}
