package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync local items with the configured server",
	Long:  `Sync manages the bidirectional sync engine. Run 'peek config set-server' first.`,
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run a full pull-then-push sync cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		se, err := openSyncEngine(store, de)
		if err != nil {
			return err
		}

		result, err := se.SyncAll()
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		cliutil.Success("pulled=%d pushed=%d conflicts=%d failed=%d", result.Pulled, result.Pushed, result.Conflicts, result.Failed)
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull items updated on the server since the last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		se, err := openSyncEngine(store, de)
		if err != nil {
			return err
		}

		result, err := se.PullFromServer(nil)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		cliutil.Success("pulled=%d conflicts=%d", result.Pulled, result.Conflicts)
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push locally changed items to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		se, err := openSyncEngine(store, de)
		if err != nil {
			return err
		}

		result, err := se.PushToServer()
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		cliutil.Success("pushed=%d failed=%d", result.Pushed, result.Failed)
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync configuration and pending-push count",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		se, err := openSyncEngine(store, de)
		if err != nil {
			return err
		}

		status, err := se.GetSyncStatus()
		if err != nil {
			return fmt.Errorf("sync status: %w", err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return cliutil.JSON(status)
		}
		fmt.Printf("Configured:     %v\n", status.Configured)
		fmt.Printf("Last sync:      %s\n", cliutil.TimeAgo(status.LastSyncTime))
		fmt.Printf("Pending pushes: %d\n", status.PendingCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncAllCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncStatusCmd.Flags().Bool("json", false, "JSON output")
}
