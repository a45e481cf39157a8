// Command hrp is the command line interface of hrpfolio.
//
// Examples:
//
//	hrp allocate --csv prices.csv --prices
//	hrp allocate --symbols BTCUSDT,ETHUSDT --lookback 120
//	hrp backtest --rebalance weekly --fee-bps 10
//	hrp sync
//	hrp rebalance --dry-run
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/hrpfolio/internal/config"
	"github.com/aristath/hrpfolio/internal/di"
	"github.com/aristath/hrpfolio/internal/version"
	"github.com/aristath/hrpfolio/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Global flags
var (
	jsonOutput bool
	logLevel   string
)

// rootCmd is the base command for the hrp CLI
var rootCmd = &cobra.Command{
	Use:   "hrp",
	Short: "Hierarchical Risk Parity allocation for crypto portfolios",
	Long: `hrp computes Hierarchical Risk Parity allocations from CSV files or from
daily candles stored by the hrpfolio server, backtests them and rebalances
a Binance spot account towards them.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace|debug|info|warn|error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger logs to stderr so that stdout only carries command output.
func newLogger() zerolog.Logger {
	return logger.New(logger.Config{
		Level:  logLevel,
		Pretty: true,
		Output: os.Stderr,
	})
}

// app bundles what commands that touch the database need.
type app struct {
	cfg       *config.Config
	container *di.Container
	log       zerolog.Logger
}

func openApp(ctx context.Context) (*app, error) {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to wire dependencies: %w", err)
	}

	return &app{cfg: cfg, container: container, log: log}, nil
}

func (a *app) Close() {
	if err := a.container.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database")
	}
}
