package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
	"github.com/autonome/peek/internal/syncconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or change the sync server configuration",
}

var configSetServerCmd = &cobra.Command{
	Use:   "set-server <url> <api-key>",
	Short: "Configure the sync server URL and API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		cfg := &syncconfig.Config{ServerURL: args[0], APIKey: args[1], ServerProfileID: profile}
		if err := syncconfig.Save(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		cliutil.Success("Configured sync server %s", args[0])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved sync configuration (env overrides file)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := syncconfig.Resolve()
		if err != nil {
			return fmt.Errorf("resolve config: %w", err)
		}
		fmt.Printf("Server URL: %s\n", cfg.ServerURL)
		fmt.Printf("Profile:    %s\n", cfg.ServerProfileID)
		masked := "(not set)"
		if cfg.APIKey != "" {
			masked = "****" + lastN(cfg.APIKey, 4)
		}
		fmt.Printf("API key:    %s\n", masked)
		return nil
	},
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetServerCmd)
	configCmd.AddCommand(configShowCmd)
	configSetServerCmd.Flags().String("profile", "", "server-side profile id to sync against")
}
