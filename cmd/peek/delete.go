package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autonome/peek/internal/cliutil"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, de, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := de.DeleteItem(args[0]); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		cliutil.Success("DELETED %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
