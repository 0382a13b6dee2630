package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate counts of items and tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := de.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return cliutil.JSON(stats)
		}

		fmt.Printf("Total items:   %d\n", stats.TotalItems)
		fmt.Printf("Deleted items: %d\n", stats.DeletedItems)
		fmt.Printf("Total tags:    %d\n", stats.TotalTags)
		for t, n := range stats.ItemsByType {
			fmt.Printf("  %-8s %d\n", t, n)
		}
		return nil
	},
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Garbage-collect duplicate items, keeping the earliest of each group",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := de.DeduplicateItems()
		if err != nil {
			return fmt.Errorf("deduplicate items: %w", err)
		}
		cliutil.Success("Removed %d duplicate content items, %d duplicate tagsets", result.RemovedContent, result.RemovedTagsets)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dedupeCmd)
	statsCmd.Flags().Bool("json", false, "JSON output")
}
