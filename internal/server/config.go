package server

import (
	"os"
	"strings"
	"time"
)

// Config holds the sync server's configuration, loaded from environment
// variables (mirrors the teacher's internal/api.Config pattern).
type Config struct {
	ListenAddr      string
	DataDir         string
	ShutdownTimeout time.Duration
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	// APIKeys maps bearer token -> client label, for the static
	// single-key-map auth middleware (spec.md's Authentication service
	// is explicitly out of core scope; this is enough to exercise the
	// wire protocol under a real bearer check).
	APIKeys map[string]string
}

// LoadConfig reads configuration from environment variables with
// sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8090",
		DataDir:         "./data/peek-sync",
		ShutdownTimeout: 10 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
		APIKeys:         make(map[string]string),
	}

	if v := os.Getenv("PEEK_SYNC_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PEEK_SYNC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PEEK_SYNC_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("PEEK_SYNC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PEEK_SYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// PEEK_SYNC_API_KEYS is a comma-separated list of key:label pairs,
	// e.g. "sk-abc:laptop,sk-def:phone". A bare key with no ":label" is
	// accepted with an empty label.
	if v := os.Getenv("PEEK_SYNC_API_KEYS"); v != "" {
		for _, pair := range strings.Split(v, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, label, _ := strings.Cut(pair, ":")
			cfg.APIKeys[key] = label
		}
	}

	return cfg
}
