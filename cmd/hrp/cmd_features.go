package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var featuresOpts struct {
	symbols  []string
	lookback int
}

// featuresCmd prints per-asset features
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Show returns, volatility and indicators per asset",
	RunE:  runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)

	featuresCmd.Flags().StringSliceVar(&featuresOpts.symbols, "symbols", nil, "Symbols (default: configured universe)")
	featuresCmd.Flags().IntVar(&featuresOpts.lookback, "lookback", 120, "Days of history to load")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	if featuresOpts.lookback <= 0 {
		return fmt.Errorf("--lookback must be positive")
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := upper(featuresOpts.symbols)
	if len(symbols) == 0 {
		symbols = a.cfg.Symbols()
	}

	sets, err := a.container.FeatureService.Compute(cmd.Context(), symbols, featuresOpts.lookback)
	if err != nil {
		return fmt.Errorf("failed to compute features: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, sets)
	}
	return renderFeatures(out, sets)
}
