// Package syncconfig implements the configuration-provider side of
// spec.md's sync engine setConfig/getConfig callbacks: a
// ~/.config/peek/config.json file with environment variable
// overrides, adapted from the teacher's own syncconfig package.
package syncconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds everything the sync engine needs to reach a server
// profile: server URL, API key and optional profile id. The
// lastSyncTime cursor is not stored here; the sync engine keeps it in
// the store's settings.
type Config struct {
	ServerURL       string `json:"server_url"`
	APIKey          string `json:"api_key"`
	ServerProfileID string `json:"server_profile_id,omitempty"`
}

// ConfigDir returns ~/.config/peek, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "peek")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

func configPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file, returning a zero-value Config if it
// does not yet exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to the config file (0600, since it may carry an
// API key).
func Save(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Env var names, checked before the config file (spec.md §9's
// "setConfig/getConfig provider" made concrete).
const (
	EnvServerURL  = "PEEK_SYNC_URL"
	EnvAPIKey     = "PEEK_SYNC_API_KEY"
	EnvProfileID  = "PEEK_SYNC_PROFILE"
)

// Resolve merges the config file with environment overrides: env
// always wins over file, file always wins over the zero value.
func Resolve() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvProfileID); v != "" {
		cfg.ServerProfileID = v
	}
	return cfg, nil
}
