package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// API contains the generation service connection settings.
type API struct {
	BaseURL               string `toml:"base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	ClipPollIntervalMS    int    `toml:"clip_poll_interval_ms"`
	JobPollIntervalMS     int    `toml:"job_poll_interval_ms"`
}

// Logging contains log output settings.
type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Credentials selects where the client-held API key lives.
type Credentials struct {
	Backend       string `toml:"backend"` // "file" or "redis"
	Path          string `toml:"path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Archive contains settings for keeping downloaded videos.
type Archive struct {
	Dir            string `toml:"dir"`
	S3Bucket       string `toml:"s3_bucket"`
	S3Prefix       string `toml:"s3_prefix"`
	S3Region       string `toml:"s3_region"`
	S3Profile      string `toml:"s3_profile"`
	S3UsePathStyle bool   `toml:"s3_use_path_style"`
}

// Events contains settings for completion event publishing.
type Events struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
}

// YouTube contains settings for publishing finished videos.
type YouTube struct {
	ServiceAccountFile string `toml:"service_account_file"`
	PrivacyStatus      string `toml:"privacy_status"`
}

// Config is the complete client configuration.
type Config struct {
	API         API         `toml:"api"`
	Logging     Logging     `toml:"logging"`
	Credentials Credentials `toml:"credentials"`
	Archive     Archive     `toml:"archive"`
	Events      Events      `toml:"events"`
	YouTube     YouTube     `toml:"youtube"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		API: API{
			BaseURL:               "http://localhost:5000",
			RequestTimeoutSeconds: 30,
			ClipPollIntervalMS:    int(ClipPollInterval / time.Millisecond),
			JobPollIntervalMS:     int(JobPollInterval / time.Millisecond),
		},
		Logging: Logging{
			Level: "info",
			File:  filepath.Join(os.TempDir(), "clipstudio.log"),
		},
		Credentials: Credentials{
			Backend:   "file",
			Path:      filepath.Join(home, CredentialDir, CredentialFile),
			RedisAddr: "localhost:6379",
		},
		Events: Events{
			KafkaTopic: "clipstudio.completions",
		},
		YouTube: YouTube{
			PrivacyStatus: YouTubePrivacyStatus,
		},
	}
}

// DefaultPath returns the config file looked up when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, CredentialDir, "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path (or
// DefaultPath when empty) and environment overrides. A missing file is not
// an error unless path was given explicitly.
func Load(path string) (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnvOrDefault("CLIPSTUDIO_URL", cfg.API.BaseURL)
	if v := os.Getenv("CLIPSTUDIO_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.API.RequestTimeoutSeconds = secs
		}
	}

	cfg.Logging.Level = getEnvOrDefault("CLIPSTUDIO_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = getEnvOrDefault("CLIPSTUDIO_LOG_FILE", cfg.Logging.File)

	cfg.Credentials.Backend = getEnvOrDefault("CLIPSTUDIO_CREDENTIALS", cfg.Credentials.Backend)
	cfg.Credentials.Path = getEnvOrDefault("CLIPSTUDIO_CREDENTIALS_PATH", cfg.Credentials.Path)
	cfg.Credentials.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.Credentials.RedisAddr)
	cfg.Credentials.RedisPassword = getEnvOrDefault("REDIS_PASS", cfg.Credentials.RedisPassword)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil && db >= 0 {
			cfg.Credentials.RedisDB = db
		}
	}

	cfg.Archive.Dir = getEnvOrDefault("CLIPSTUDIO_ARCHIVE_DIR", cfg.Archive.Dir)
	cfg.Archive.S3Bucket = strings.TrimSpace(getEnvOrDefault("S3_BUCKET", cfg.Archive.S3Bucket))
	cfg.Archive.S3Prefix = strings.TrimSpace(getEnvOrDefault("S3_PREFIX", cfg.Archive.S3Prefix))
	cfg.Archive.S3Region = strings.TrimSpace(getEnvOrDefault("S3_REGION", cfg.Archive.S3Region))
	cfg.Archive.S3Profile = strings.TrimSpace(getEnvOrDefault("S3_PROFILE", cfg.Archive.S3Profile))
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		cfg.Archive.S3UsePathStyle = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.KafkaBrokers = splitList(v)
	}
	cfg.Events.KafkaTopic = getEnvOrDefault("KAFKA_TOPIC", cfg.Events.KafkaTopic)

	cfg.YouTube.ServiceAccountFile = getEnvOrDefault("YOUTUBE_SERVICE_ACCOUNT_FILE", cfg.YouTube.ServiceAccountFile)
	cfg.YouTube.PrivacyStatus = getEnvOrDefault("YOUTUBE_PRIVACY_STATUS", cfg.YouTube.PrivacyStatus)
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base_url %q", c.API.BaseURL)
	}
	if c.API.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("api request_timeout_seconds must be positive")
	}
	if c.API.ClipPollIntervalMS <= 0 || c.API.JobPollIntervalMS <= 0 {
		return fmt.Errorf("api poll intervals must be positive")
	}
	switch c.Credentials.Backend {
	case "file":
		if strings.TrimSpace(c.Credentials.Path) == "" {
			return fmt.Errorf("credentials path is required for the file backend")
		}
	case "redis":
		if strings.TrimSpace(c.Credentials.RedisAddr) == "" {
			return fmt.Errorf("credentials redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend)
	}
	if len(c.Events.KafkaBrokers) > 0 && strings.TrimSpace(c.Events.KafkaTopic) == "" {
		return fmt.Errorf("events kafka_topic is required when brokers are set")
	}
	return nil
}

// RequestTimeout returns the HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

// ClipPollInterval returns the wait between clip status checks.
func (c *Config) ClipPollInterval() time.Duration {
	return time.Duration(c.API.ClipPollIntervalMS) * time.Millisecond
}

// JobPollInterval returns the wait between job status checks.
func (c *Config) JobPollInterval() time.Duration {
	return time.Duration(c.API.JobPollIntervalMS) * time.Millisecond
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
