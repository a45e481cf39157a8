package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aristath/hrpfolio/internal/modules/backtest"
	"github.com/aristath/hrpfolio/internal/modules/features"
	"github.com/aristath/hrpfolio/internal/modules/marketdata"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/aristath/hrpfolio/internal/modules/trading"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderWeights(w io.Writer, weights optimization.WeightVector, order, excluded []string) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ASSET\tWEIGHT")
	for _, aw := range weights.Sorted() {
		fmt.Fprintf(tw, "%s\t%.4f%%\n", aw.Asset, aw.Weight*100)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(order) > 0 {
		fmt.Fprintf(w, "\nCluster order: %s\n", strings.Join(order, " "))
	}
	if len(excluded) > 0 {
		fmt.Fprintf(w, "Excluded (zero weight): %s\n", strings.Join(excluded, " "))
	}
	return nil
}

func renderBacktest(w io.Writer, res *backtest.Result) error {
	skipped := 0
	for _, r := range res.Rebalances {
		if r.Skipped {
			skipped++
		}
	}
	fmt.Fprintf(w, "%s to %s, %d assets, %d rebalances (%d skipped)\n\n",
		res.Start, res.End, len(res.Symbols), len(res.Rebalances), skipped)

	tw := newTable(w)
	fmt.Fprintln(tw, "METRIC\tHRP\tEQUAL WEIGHT")
	rows := []struct {
		name    string
		hrp, ew float64
		asRatio bool
	}{
		{"Total return", res.Metrics.TotalReturn, res.Benchmark.TotalReturn, false},
		{"CAGR", res.Metrics.CAGR, res.Benchmark.CAGR, false},
		{"Volatility", res.Metrics.Volatility, res.Benchmark.Volatility, false},
		{"Max drawdown", res.Metrics.MaxDrawdown, res.Benchmark.MaxDrawdown, false},
		{"Sharpe", res.Metrics.Sharpe, res.Benchmark.Sharpe, true},
		{"Sortino", res.Metrics.Sortino, res.Benchmark.Sortino, true},
		{"Calmar", res.Metrics.Calmar, res.Benchmark.Calmar, true},
		{"Turnover", res.Metrics.Turnover, res.Benchmark.Turnover, true},
	}
	for _, r := range rows {
		if r.asRatio {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", r.name, r.hrp, r.ew)
		} else {
			fmt.Fprintf(tw, "%s\t%.2f%%\t%.2f%%\n", r.name, r.hrp*100, r.ew*100)
		}
	}
	return tw.Flush()
}

func renderSync(w io.Writer, results []marketdata.SyncResult) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "SYMBOL\tFROM\tFETCHED\tLATEST\tERROR")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Symbol, r.From, r.Fetched, r.Latest, r.Error)
	}
	return tw.Flush()
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func renderFeatures(w io.Writer, sets []features.FeatureSet) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "SYMBOL\tAS OF\tCLOSE\t1D\t7D\t30D\tVOL 30D\tRSI 14\tTREND")
	for _, s := range sets {
		if s.Insufficient {
			fmt.Fprintf(tw, "%s\t%s\tinsufficient history (%d points)\t\t\t\t\t\t\n", s.Symbol, s.AsOf, s.HistoryPoints)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Symbol, s.AsOf,
			optional(s.LastClose, "%.4f"),
			optional(percent(s.Return1D), "%.2f%%"),
			optional(percent(s.Return7D), "%.2f%%"),
			optional(percent(s.Return30D), "%.2f%%"),
			optional(percent(s.Volatility30D), "%.1f%%"),
			optional(s.RSI14, "%.1f"),
			s.Trend,
		)
	}
	return tw.Flush()
}

func percent(v *float64) *float64 {
	if v == nil {
		return nil
	}
	p := *v * 100
	return &p
}

func renderRebalance(w io.Writer, report *trading.RebalanceReport) error {
	mode := "LIVE"
	if report.DryRun {
		mode = "DRY RUN"
	}
	if report.Plan != nil {
		fmt.Fprintf(w, "%s: equity %s, free cash %s\n\n",
			mode, report.Plan.Equity.StringFixed(2), report.Plan.Cash.StringFixed(2))
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "SYMBOL\tSIDE\tQUANTITY\tQUOTE\tSTATUS\tERROR")
	for _, t := range report.Trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Symbol, t.Side, t.Quantity.String(), t.QuoteQuantity.StringFixed(2), t.Status, t.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if report.Plan != nil && len(report.Plan.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, s := range report.Plan.Skipped {
			fmt.Fprintf(w, "  %s: %s\n", s.Symbol, s.Reason)
		}
	}
	fmt.Fprintf(w, "\n%d submitted, %d failed\n", report.Submitted, report.Failed)
	return nil
}
