package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
	"github.com/autonome/peek/internal/models"
)

var saveCmd = &cobra.Command{
	Use:   "save <content>",
	Short: "Save a URL, text snippet, or tagset",
	Long: `Save captures a new item.

Examples:
  peek save "https://example.com/article" --type url --tags reading,later
  peek save "remember to check the staging config" --type text
  peek save "" --type tagset --tags inbox,triage`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeStr, _ := cmd.Flags().GetString("type")
		tagsStr, _ := cmd.Flags().GetString("tags")
		metadata, _ := cmd.Flags().GetString("metadata")

		itemType := models.ItemType(typeStr)
		if !models.IsValidItemType(itemType) {
			return fmt.Errorf("invalid --type %q (want one of url, text, tagset, image)", typeStr)
		}

		var tags []string
		for _, t := range strings.Split(tagsStr, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}

		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := de.SaveItem(itemType, args[0], tags, metadata, "")
		if err != nil {
			return fmt.Errorf("save item: %w", err)
		}

		cliutil.Success("SAVED %s", result.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().String("type", string(models.ItemTypeText), "item type: url, text, tagset, image")
	saveCmd.Flags().String("tags", "", "comma-separated tag names")
	saveCmd.Flags().String("metadata", "", "opaque JSON metadata string")
}
