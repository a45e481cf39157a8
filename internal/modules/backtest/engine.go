package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/aristath/hrpfolio/pkg/formulas"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Engine runs backtests. It holds no per-run state.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "backtest_engine").Logger()}
}

type allocationOutcome struct {
	weights optimization.WeightVector
	err     error
}

// Run simulates the HRP strategy and an equal-weight benchmark over series,
// which must hold filled closes. Both portfolios start fully invested at the
// first date with LookbackDays+1 prices and rebalance at the first date of
// every month (or ISO week) after that.
func (e *Engine) Run(ctx context.Context, series historical.TimeSeries, cfg Config) (*Result, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if len(series.Symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols with price history", optimization.ErrInsufficientData)
	}
	if series.Len() < cfg.LookbackDays+2 {
		return nil, fmt.Errorf("%w: need at least %d dates for a %d-day lookback, got %d",
			optimization.ErrInsufficientData, cfg.LookbackDays+2, cfg.LookbackDays, series.Len())
	}

	schedule, err := rebalanceSchedule(series.Dates, cfg.LookbackDays, cfg.Rebalance)
	if err != nil {
		return nil, err
	}

	outcomes, err := e.computeAllocations(ctx, series, schedule, cfg)
	if err != nil {
		return nil, err
	}

	strategy := simulate(series, schedule, cfg, func(k int) (optimization.WeightVector, error) {
		return outcomes[k].weights, outcomes[k].err
	})
	equal := equalWeights(series.Symbols)
	benchmark := simulate(series, schedule, cfg, func(int) (optimization.WeightVector, error) {
		return equal, nil
	})

	points := make([]EquityPoint, len(strategy.equity))
	for i := range points {
		points[i] = EquityPoint{
			Date:      series.Dates[schedule[0]+i],
			Equity:    strategy.equity[i],
			Benchmark: benchmark.equity[i],
		}
	}

	result := &Result{
		Config:     cfg,
		Symbols:    series.Symbols,
		Start:      series.Dates[schedule[0]],
		End:        series.Dates[series.Len()-1],
		Equity:     points,
		Rebalances: strategy.records,
		Metrics:    computeMetrics(strategy, cfg),
		Benchmark:  computeMetrics(benchmark, cfg),
	}

	e.log.Info().
		Int("symbols", len(series.Symbols)).
		Int("rebalances", len(schedule)).
		Float64("total_return", result.Metrics.TotalReturn).
		Float64("benchmark_return", result.Benchmark.TotalReturn).
		Msg("Backtest completed")
	return result, nil
}

// computeAllocations runs the allocator for every rebalance date in
// parallel. Allocator input errors are kept per date; anything else aborts.
func (e *Engine) computeAllocations(ctx context.Context, series historical.TimeSeries, schedule []int, cfg Config) ([]allocationOutcome, error) {
	optimizer := optimization.NewHRPOptimizer(optimization.HRPOptions{Linkage: cfg.Linkage})
	outcomes := make([]allocationOutcome, len(schedule))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for k, idx := range schedule {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			returns, err := series.Slice(idx-cfg.LookbackDays, idx+1).Returns()
			if err == nil {
				var w optimization.WeightVector
				w, err = optimizer.Allocate(returns)
				outcomes[k] = allocationOutcome{weights: w, err: err}
			} else {
				outcomes[k] = allocationOutcome{err: err}
			}
			if outcomes[k].err != nil && !errors.Is(outcomes[k].err, optimization.ErrInsufficientData) &&
				!errors.Is(outcomes[k].err, optimization.ErrDegenerateMatrix) {
				return fmt.Errorf("allocation on %s failed: %w", series.Dates[idx], outcomes[k].err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// rebalanceSchedule returns the indices of rebalance dates: the first index
// with lookback history, then every later index that starts a new period.
func rebalanceSchedule(dates []string, lookback int, frequency string) ([]int, error) {
	periodKey := func(d string) (string, error) {
		t, err := historical.ParseDate(d)
		if err != nil {
			return "", fmt.Errorf("invalid date %q: %w", d, err)
		}
		if frequency == RebalanceWeekly {
			y, w := t.ISOWeek()
			return fmt.Sprintf("%d-W%02d", y, w), nil
		}
		return t.Format("2006-01"), nil
	}

	schedule := []int{lookback}
	prev, err := periodKey(dates[lookback])
	if err != nil {
		return nil, err
	}
	for i := lookback + 1; i < len(dates)-1; i++ {
		key, err := periodKey(dates[i])
		if err != nil {
			return nil, err
		}
		if key != prev {
			schedule = append(schedule, i)
			prev = key
		}
	}
	return schedule, nil
}

type simulation struct {
	equity   []float64
	records  []RebalanceRecord
	turnover float64
}

// simulate walks forward from the first rebalance date. Weights drift with
// prices between rebalances; fees are charged on one-way turnover. A failed
// allocation keeps the current target (equal weight before any success).
func simulate(series historical.TimeSeries, schedule []int, cfg Config, target func(k int) (optimization.WeightVector, error)) simulation {
	symbols := series.Symbols
	start := schedule[0]
	n := series.Len()
	fee := cfg.FeeBps / 10000

	sim := simulation{equity: make([]float64, 0, n-start)}
	equity := cfg.InitialCapital
	current := make(map[string]float64, len(symbols))
	lastTarget := equalWeights(symbols)

	next := 0
	for t := start; t < n; t++ {
		if next < len(schedule) && schedule[next] == t {
			record := RebalanceRecord{Date: series.Dates[t]}
			w, err := target(next)
			if err != nil {
				record.Skipped = true
				record.Reason = err.Error()
			} else {
				lastTarget = w
			}

			turnover := 0.0
			for _, s := range symbols {
				turnover += math.Abs(lastTarget[s] - current[s])
			}
			// The initial purchase from cash counts as turnover too.
			cost := equity * turnover * fee
			equity -= cost
			for _, s := range symbols {
				current[s] = lastTarget[s]
			}

			record.Weights = lastTarget
			record.Turnover = turnover
			record.Fee = cost
			sim.records = append(sim.records, record)
			sim.turnover += turnover
			next++
		}

		sim.equity = append(sim.equity, equity)

		if t+1 >= n {
			break
		}

		portfolio := 0.0
		assetReturns := make(map[string]float64, len(symbols))
		for _, s := range symbols {
			p0, p1 := series.Data[s][t], series.Data[s][t+1]
			r := 0.0
			if p0 > 0 && formulas.IsFinite(p1) {
				r = p1/p0 - 1
			}
			assetReturns[s] = r
			portfolio += current[s] * r
		}

		if 1+portfolio > 0 {
			for _, s := range symbols {
				current[s] = current[s] * (1 + assetReturns[s]) / (1 + portfolio)
			}
		}
		equity *= 1 + portfolio
	}
	return sim
}

func computeMetrics(sim simulation, cfg Config) Metrics {
	m := Metrics{Turnover: sim.turnover}
	if len(sim.equity) == 0 || sim.equity[0] == 0 {
		return m
	}

	// Daily returns net of fees, derived from the equity curve.
	returns := make([]float64, 0, len(sim.equity)-1)
	for i := 1; i < len(sim.equity); i++ {
		if sim.equity[i-1] > 0 {
			returns = append(returns, sim.equity[i]/sim.equity[i-1]-1)
		}
	}

	m.TotalReturn = sim.equity[len(sim.equity)-1]/cfg.InitialCapital - 1
	m.CAGR = formulas.AnnualizedReturn(returns, cfg.PeriodsPerYear)
	m.Volatility = formulas.AnnualizedVolatility(returns, cfg.PeriodsPerYear)
	m.Sharpe = formulas.SharpeRatio(returns, cfg.RiskFreeRate, cfg.PeriodsPerYear)
	m.Sortino = formulas.SortinoRatio(returns, cfg.RiskFreeRate, cfg.PeriodsPerYear)
	m.MaxDrawdown = formulas.MaxDrawdown(append([]float64{cfg.InitialCapital}, sim.equity...))
	m.Calmar = formulas.CalmarRatio(m.CAGR, m.MaxDrawdown)
	return m
}

func equalWeights(symbols []string) optimization.WeightVector {
	w := make(optimization.WeightVector, len(symbols))
	for _, s := range symbols {
		w[s] = 1 / float64(len(symbols))
	}
	return w
}
