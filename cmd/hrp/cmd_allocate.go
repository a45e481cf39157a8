package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/aristath/hrpfolio/internal/modules/allocation"
	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/spf13/cobra"
)

var allocateOpts struct {
	csvPath  string
	prices   bool
	symbols  []string
	linkage  string
	lookback int
}

// allocateCmd computes an HRP allocation
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Compute an HRP allocation",
	Long: `Compute a Hierarchical Risk Parity allocation.

With --csv the allocation is computed from a file whose first column is a
date (YYYY-MM-DD) and whose header names the assets. The cells hold returns,
or closing prices with --prices. Without --csv the allocation is computed
from stored daily candles and saved as a snapshot.

Examples:
  hrp allocate --csv returns.csv
  hrp allocate --csv closes.csv --prices --lookback 90 --linkage single
  hrp allocate --symbols BTCUSDT,ETHUSDT,SOLUSDT --json`,
	RunE: runAllocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().StringVar(&allocateOpts.csvPath, "csv", "", "CSV file of returns (or prices with --prices); - reads stdin")
	allocateCmd.Flags().BoolVar(&allocateOpts.prices, "prices", false, "CSV cells are closing prices instead of returns")
	allocateCmd.Flags().StringSliceVar(&allocateOpts.symbols, "symbols", nil, "Symbols to allocate across (default: configured universe)")
	allocateCmd.Flags().StringVar(&allocateOpts.linkage, "linkage", "", "Linkage method: ward, single, complete, average (default ward)")
	allocateCmd.Flags().IntVar(&allocateOpts.lookback, "lookback", 0, "Trailing window in days (default: whole CSV or HRP_LOOKBACK_DAYS)")
}

func runAllocate(cmd *cobra.Command, args []string) error {
	linkage, err := optimization.ParseLinkage(allocateOpts.linkage)
	if err != nil {
		return err
	}
	if allocateOpts.lookback < 0 {
		return fmt.Errorf("--lookback must not be negative")
	}
	out := cmd.OutOrStdout()

	if allocateOpts.csvPath != "" {
		returns, dropped, err := readReturnsFile(cmd.InOrStdin(), allocateOpts.csvPath, allocateOpts.prices, allocateOpts.lookback)
		if err != nil {
			return err
		}
		alloc, err := optimization.NewHRPOptimizer(optimization.HRPOptions{Linkage: linkage}).AllocateDetailed(returns)
		if err != nil {
			return fmt.Errorf("allocation failed: %w", err)
		}
		if len(dropped) > 0 {
			alloc.IncludeMissing(dropped...)
			log := newLogger()
			log.Warn().Strs("symbols", dropped).Msg("Columns without data get zero weight")
		}
		if jsonOutput {
			return printJSON(out, alloc)
		}
		return renderWeights(out, alloc.Weights, alloc.Order, alloc.Excluded)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.container.AllocationService.Compute(cmd.Context(), allocation.ComputeRequest{
		Symbols:      upper(allocateOpts.symbols),
		LookbackDays: allocateOpts.lookback,
		Linkage:      allocateOpts.linkage,
	})
	if err != nil {
		return fmt.Errorf("allocation failed: %w", err)
	}
	if jsonOutput {
		return printJSON(out, snapshot)
	}
	fmt.Fprintf(out, "Snapshot %s as of %s (%d periods, %s linkage)\n\n",
		snapshot.ID, snapshot.AsOf, snapshot.Periods, snapshot.Linkage)
	return renderWeights(out, snapshot.Weights, snapshot.Order, snapshot.Excluded)
}

// readReturnsFile reads a returns matrix from path ("-" is stdin). With
// prices, closes are filled and converted to returns. A positive lookback
// keeps only the trailing lookback periods. Columns without any data are
// left out of the matrix and returned in dropped.
func readReturnsFile(stdin io.Reader, path string, prices bool, lookback int) (returns optimization.ReturnsMatrix, dropped []string, err error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return optimization.ReturnsMatrix{}, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	if !prices {
		returns, err := historical.ReadReturnsCSV(r)
		if err != nil {
			return optimization.ReturnsMatrix{}, nil, err
		}
		returns, dropped = dropEmptyColumns(returns)
		return trailingReturns(returns, lookback), dropped, nil
	}

	series, err := historical.ReadPricesCSV(r)
	if err != nil {
		return optimization.ReturnsMatrix{}, nil, err
	}
	series, dropped = series.FillMissing()
	if lookback > 0 && series.Len() > lookback+1 {
		series = series.Slice(series.Len()-lookback-1, series.Len())
	}
	returns, err = series.Returns()
	if err != nil {
		return optimization.ReturnsMatrix{}, nil, err
	}
	return returns, dropped, nil
}

// dropEmptyColumns removes assets whose returns are all missing.
func dropEmptyColumns(rm optimization.ReturnsMatrix) (optimization.ReturnsMatrix, []string) {
	var dropped []string
	kept := make([]string, 0, len(rm.Assets))
	for _, asset := range rm.Assets {
		empty := true
		for _, v := range rm.Series[asset] {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				empty = false
				break
			}
		}
		if empty {
			dropped = append(dropped, asset)
			continue
		}
		kept = append(kept, asset)
	}
	if len(dropped) == 0 {
		return rm, nil
	}
	out := optimization.ReturnsMatrix{Dates: rm.Dates, Assets: kept, Series: make(map[string][]float64, len(kept))}
	for _, asset := range kept {
		out.Series[asset] = rm.Series[asset]
	}
	return out, dropped
}

func trailingReturns(rm optimization.ReturnsMatrix, lookback int) optimization.ReturnsMatrix {
	n := rm.Periods()
	if lookback <= 0 || n <= lookback {
		return rm
	}
	out := optimization.ReturnsMatrix{
		Assets: rm.Assets,
		Series: make(map[string][]float64, len(rm.Assets)),
	}
	if len(rm.Dates) == n {
		out.Dates = rm.Dates[n-lookback:]
	}
	for _, asset := range rm.Assets {
		out.Series[asset] = rm.Series[asset][n-lookback:]
	}
	return out
}

func upper(symbols []string) []string {
	var out []string
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
