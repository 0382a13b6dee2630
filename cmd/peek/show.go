package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Display a single item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		item, err := de.GetItem(args[0])
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if item == nil {
			return fmt.Errorf("no item with id %q", args[0])
		}

		tags, err := de.GetItemTags(item.ID)
		if err != nil {
			return fmt.Errorf("get item tags: %w", err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			type withTags struct {
				ID        string   `json:"id"`
				Type      string   `json:"type"`
				Content   string   `json:"content,omitempty"`
				Metadata  string   `json:"metadata,omitempty"`
				Tags      []string `json:"tags"`
				CreatedAt int64    `json:"created_at"`
				UpdatedAt int64    `json:"updated_at"`
			}
			names := make([]string, len(tags))
			for i, t := range tags {
				names[i] = t.Name
			}
			return cliutil.JSON(withTags{
				ID: item.ID, Type: string(item.Type), Content: item.Content,
				Metadata: item.Metadata, Tags: names,
				CreatedAt: item.CreatedAt, UpdatedAt: item.UpdatedAt,
			})
		}

		fmt.Printf("%s: %s\n", item.ID, item.Type)
		if item.Content != "" {
			fmt.Printf("\n%s\n\n", item.Content)
		}
		if len(tags) > 0 {
			names := make([]string, len(tags))
			for i, t := range tags {
				names[i] = t.Name
			}
			fmt.Printf("Tags: %v\n", names)
		}
		fmt.Printf("Created: %s\n", cliutil.TimeAgo(item.CreatedAt))
		fmt.Printf("Updated: %s\n", cliutil.TimeAgo(item.UpdatedAt))
		if item.SyncSource != "" {
			fmt.Printf("Sync: %s (synced %s)\n", item.SyncSource, cliutil.TimeAgo(item.SyncedAt))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "JSON output")
}
