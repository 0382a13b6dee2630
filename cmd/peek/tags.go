package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags ordered by frecency (frequency decayed by recency)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		tags, err := de.GetTagsByFrecency()
		if err != nil {
			return fmt.Errorf("get tags by frecency: %w", err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return cliutil.JSON(tags)
		}

		if len(tags) == 0 {
			fmt.Println("No tags found")
			return nil
		}
		for _, t := range tags {
			fmt.Printf("%-24s  freq=%-4d  score=%-8.2f  last used %s\n", t.Name, t.Frequency, t.FrecencyScore, cliutil.TimeAgo(t.LastUsedAt))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
	tagsCmd.Flags().Bool("json", false, "JSON output")
}
