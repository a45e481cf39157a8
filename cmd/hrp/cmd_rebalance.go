package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebalanceDryRun bool

// rebalanceCmd moves the account towards a fresh allocation
var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Rebalance the Binance account to a fresh HRP allocation",
	Long: `Compute a fresh allocation for the configured universe and plan the market
orders that move the account towards it. Orders are only submitted with
--dry-run=false and TRADING_ENABLED=true. Every order, including dry runs,
is recorded in the trade ledger.`,
	RunE: runRebalance,
}

func init() {
	rootCmd.AddCommand(rebalanceCmd)

	rebalanceCmd.Flags().BoolVar(&rebalanceDryRun, "dry-run", true, "Plan and record orders without submitting them")
}

func runRebalance(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if !rebalanceDryRun && !a.cfg.Trading.Enabled {
		return fmt.Errorf("live rebalancing requires TRADING_ENABLED=true")
	}

	target, err := a.container.AllocationService.TargetWeights(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to compute target weights: %w", err)
	}

	report, err := a.container.Executor.Rebalance(cmd.Context(), target, rebalanceDryRun)
	if err != nil {
		return fmt.Errorf("rebalance failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else if err := renderRebalance(out, report); err != nil {
		return err
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d orders failed", report.Failed, len(report.Trades))
	}
	return nil
}
