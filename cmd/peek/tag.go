package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
)

var tagCmd = &cobra.Command{
	Use:   "tag <item-id> <tag-name>",
	Short: "Attach a tag to an item, creating the tag if needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := de.GetOrCreateTag(args[1])
		if err != nil {
			return fmt.Errorf("get or create tag: %w", err)
		}
		if err := de.TagItem(args[0], result.Tag.ID); err != nil {
			return fmt.Errorf("tag item: %w", err)
		}
		cliutil.Success("TAGGED %s with %s", args[0], result.Tag.Name)
		return nil
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag <item-id> <tag-name>",
	Short: "Remove a tag from an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		tags, err := de.GetItemTags(args[0])
		if err != nil {
			return fmt.Errorf("get item tags: %w", err)
		}
		for _, t := range tags {
			if t.Name == args[1] {
				if err := de.UntagItem(args[0], t.ID); err != nil {
					return fmt.Errorf("untag item: %w", err)
				}
				cliutil.Success("UNTAGGED %s from %s", args[0], args[1])
				return nil
			}
		}
		return fmt.Errorf("item %s is not tagged %q", args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(untagCmd)
}
