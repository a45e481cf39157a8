package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/backtest"
	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/spf13/cobra"
)

var backtestOpts struct {
	csvPath        string
	symbols        []string
	start, end     string
	lookback       int
	rebalance      string
	feeBps         float64
	initialCapital float64
	linkage        string
}

// backtestCmd runs a walk-forward HRP backtest
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest HRP against an equal-weight benchmark",
	Long: `Run a walk-forward backtest that rebalances to a fresh HRP allocation on
every rebalance date, charging fees on turnover. The benchmark rebalances
to equal weights on the same dates.

Examples:
  hrp backtest
  hrp backtest --start 2023-01-01 --rebalance weekly --fee-bps 7.5
  hrp backtest --csv closes.csv --lookback 60`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	defaults := backtest.DefaultConfig()
	backtestCmd.Flags().StringVar(&backtestOpts.csvPath, "csv", "", "CSV file of closing prices instead of stored history")
	backtestCmd.Flags().StringSliceVar(&backtestOpts.symbols, "symbols", nil, "Symbols to trade (default: configured universe)")
	backtestCmd.Flags().StringVar(&backtestOpts.start, "start", "", "First date, YYYY-MM-DD (default: two years before end)")
	backtestCmd.Flags().StringVar(&backtestOpts.end, "end", "", "Last date, YYYY-MM-DD (default: today)")
	backtestCmd.Flags().IntVar(&backtestOpts.lookback, "lookback", defaults.LookbackDays, "Days of returns per allocation")
	backtestCmd.Flags().StringVar(&backtestOpts.rebalance, "rebalance", defaults.Rebalance, "Rebalance frequency: monthly or weekly")
	backtestCmd.Flags().Float64Var(&backtestOpts.feeBps, "fee-bps", defaults.FeeBps, "Fee in basis points of traded notional")
	backtestCmd.Flags().Float64Var(&backtestOpts.initialCapital, "capital", defaults.InitialCapital, "Initial capital")
	backtestCmd.Flags().StringVar(&backtestOpts.linkage, "linkage", string(defaults.Linkage), "Linkage method")
}

func backtestConfig() backtest.Config {
	cfg := backtest.DefaultConfig()
	cfg.LookbackDays = backtestOpts.lookback
	cfg.Rebalance = backtestOpts.rebalance
	cfg.FeeBps = backtestOpts.feeBps
	cfg.InitialCapital = backtestOpts.initialCapital
	cfg.Linkage = optimization.Linkage(backtestOpts.linkage)
	return cfg
}

func parseOptionalDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := historical.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg := backtestConfig()
	out := cmd.OutOrStdout()

	var (
		res *backtest.Result
		err error
	)
	if backtestOpts.csvPath != "" {
		res, err = backtestCSV(cmd, cfg)
	} else {
		res, err = backtestStored(cmd, cfg)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, res)
	}
	return renderBacktest(out, res)
}

func backtestCSV(cmd *cobra.Command, cfg backtest.Config) (*backtest.Result, error) {
	f, err := os.Open(backtestOpts.csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", backtestOpts.csvPath, err)
	}
	defer f.Close()

	series, err := historical.ReadPricesCSV(f)
	if err != nil {
		return nil, err
	}
	series, dropped := series.FillMissing()
	if len(dropped) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Dropped assets without prices: %v\n", dropped)
	}

	res, err := backtest.NewEngine(newLogger()).Run(cmd.Context(), series, cfg)
	if err != nil {
		return nil, fmt.Errorf("backtest failed: %w", err)
	}
	return res, nil
}

func backtestStored(cmd *cobra.Command, cfg backtest.Config) (*backtest.Result, error) {
	start, err := parseOptionalDate("start", backtestOpts.start)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end", backtestOpts.end)
	if err != nil {
		return nil, err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer a.Close()

	res, err := a.container.BacktestService.Run(cmd.Context(), backtest.Request{
		Symbols: upper(backtestOpts.symbols),
		Start:   start,
		End:     end,
		Config:  cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("backtest failed: %w", err)
	}
	return res, nil
}
