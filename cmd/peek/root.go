// Package main implements the peek CLI: a thin host application over
// the data engine and sync engine, standing in for the UI layer
// spec.md explicitly leaves unspecified.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/engine"
	"github.com/autonome/peek/internal/storage"
	"github.com/autonome/peek/internal/storage/sqlite"
	"github.com/autonome/peek/internal/sync"
	"github.com/autonome/peek/internal/syncclient"
	"github.com/autonome/peek/internal/syncconfig"
)

var (
	versionStr string
	dbPathFlag string
	clientID   string
)

// SetVersion sets the version string and enables --version flag.
func SetVersion(v string) {
	versionStr = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "peek",
	Short: "A pocket-knowledge capture and sync CLI",
	Long: `peek captures URLs, text snippets, and tags for later recall,
ranked by how often and how recently you reach for them, with optional
sync to a peek-sync server.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "path to the peek database (default: ~/.local/share/peek/peek.db)")

	home, _ := os.Hostname()
	if home == "" {
		home = "peek-cli"
	}
	clientID = home
}

// defaultDBPath returns the --db flag value if set, else PEEK_DB_PATH
// if set, else ~/.local/share/peek/peek.db, respecting XDG_DATA_HOME
// when set.
func defaultDBPath() (string, error) {
	if dbPathFlag != "" {
		return dbPathFlag, nil
	}
	if v := os.Getenv("PEEK_DB_PATH"); v != "" {
		return v, nil
	}
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determine home dir: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "peek", "peek.db"), nil
}

// openEngine opens the database and returns both the raw store (for
// sync) and the data engine built on top of it. Callers must Close
// the store when done.
func openEngine() (storage.Store, *engine.Engine, error) {
	path, err := defaultDBPath()
	if err != nil {
		return nil, nil, err
	}
	store := sqlite.New(path)
	if err := store.Open(); err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store, engine.New(store), nil
}

// openSyncEngine builds a sync.Engine wired to the resolved server
// config (env overrides > config file), backed by the same store/
// engine pair used for local operations.
func openSyncEngine(store storage.Store, de *engine.Engine) (*sync.Engine, error) {
	cfg, err := syncconfig.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve sync config: %w", err)
	}
	client := syncclient.New(cfg.ServerURL, cfg.APIKey, clientID)
	req := sync.NewClientAdapter(client)
	se := sync.New(store, de, req, sync.Config{
		ServerURL: cfg.ServerURL, APIKey: cfg.APIKey, ServerProfileID: cfg.ServerProfileID,
	})
	return se, nil
}
