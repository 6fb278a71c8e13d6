package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"clipstudio/config"
)

// EnvKey is the environment variable that overrides the stored key.
const EnvKey = "OPENAI_API_KEY"

// Store persists the client-held API key under config.CredentialKey.
// Get returns an empty string when no key is stored.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// New builds the store selected by cfg.Backend.
func New(cfg config.Credentials) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Path), nil
	case "redis":
		return NewRedisStore(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", cfg.Backend)
	}
}

// Resolve returns the key to send with generation requests. OPENAI_API_KEY
// in the environment wins over the store. An empty result means the server
// default key will be used.
func Resolve(ctx context.Context, store Store) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvKey)); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}
	if store == nil {
		return "", nil
	}
	key, err := store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read stored API key: %w", err)
	}
	return strings.TrimSpace(key), nil
}

// Mask hides all but the first three and last four characters of key.
func Mask(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-7) + key[len(key)-4:]
}
