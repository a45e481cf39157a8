package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// syncCmd downloads new daily candles
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download new daily candles for the configured universe",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.container.SyncService.Sync(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, results)
	}
	return renderSync(out, results)
}
