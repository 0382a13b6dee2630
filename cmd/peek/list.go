package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "query"},
	Short:   "List saved items",
	Long: `List lists live items (all items, soft-deleted included, with --all),
optionally filtered by type. There is no last-updated filter.

Examples:
  peek list
  peek list --type url
  peek list --all
  peek list --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typeStr, _ := cmd.Flags().GetString("type")
		includeDeleted, _ := cmd.Flags().GetBool("all")
		jsonOut, _ := cmd.Flags().GetBool("json")

		filter := storage.ItemFilter{IncludeDeleted: includeDeleted}
		if typeStr != "" {
			t := models.ItemType(typeStr)
			if !models.IsValidItemType(t) {
				return fmt.Errorf("invalid --type %q", typeStr)
			}
			filter.Type = &t
		}

		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := de.QueryItems(filter)
		if err != nil {
			return fmt.Errorf("query items: %w", err)
		}

		if jsonOut {
			return cliutil.JSON(items)
		}

		if len(items) == 0 {
			fmt.Println("No items found")
			return nil
		}
		for _, it := range items {
			content := it.Content
			if len(content) > 60 {
				content = content[:57] + "..."
			}
			fmt.Printf("%s  %-6s  %-60s  %s\n", it.ID, it.Type, content, cliutil.TimeAgo(it.UpdatedAt))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("type", "", "filter by item type: url, text, tagset, image")
	listCmd.Flags().Bool("all", false, "include soft-deleted items")
	listCmd.Flags().Bool("json", false, "JSON output")
}
