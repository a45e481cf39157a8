// Package backtest replays HRP allocations over stored price history.
package backtest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/aristath/hrpfolio/pkg/formulas"
)

// ErrInvalidConfig is returned for an unusable backtest configuration.
var ErrInvalidConfig = errors.New("invalid backtest config")

// Rebalance frequencies
const (
	RebalanceMonthly = "monthly"
	RebalanceWeekly  = "weekly"
)

// Config parameterizes a backtest run.
type Config struct {
	LookbackDays   int                  `json:"lookback_days"`
	Rebalance      string               `json:"rebalance"`
	InitialCapital float64              `json:"initial_capital"`
	FeeBps         float64              `json:"fee_bps"`
	PeriodsPerYear float64              `json:"periods_per_year"`
	RiskFreeRate   float64              `json:"risk_free_rate"`
	Linkage        optimization.Linkage `json:"linkage"`
}

// DefaultConfig returns a 90-day monthly backtest with 10 bps fees.
func DefaultConfig() Config {
	return Config{
		LookbackDays:   90,
		Rebalance:      RebalanceMonthly,
		InitialCapital: 10000,
		FeeBps:         10,
		PeriodsPerYear: formulas.DefaultCryptoPeriodsPerYear,
		Linkage:        optimization.DefaultLinkage,
	}
}

// withDefaults fills zero fields and validates the rest.
func (c Config) withDefaults() (Config, error) {
	d := DefaultConfig()
	if c.LookbackDays == 0 {
		c.LookbackDays = d.LookbackDays
	}
	if c.Rebalance == "" {
		c.Rebalance = d.Rebalance
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = d.InitialCapital
	}
	if c.PeriodsPerYear == 0 {
		c.PeriodsPerYear = d.PeriodsPerYear
	}
	if c.Linkage == "" {
		c.Linkage = d.Linkage
	}

	c.Rebalance = strings.ToLower(c.Rebalance)
	if c.Rebalance != RebalanceMonthly && c.Rebalance != RebalanceWeekly {
		return c, fmt.Errorf("%w: unknown rebalance frequency %q (expected monthly or weekly)", ErrInvalidConfig, c.Rebalance)
	}
	if c.LookbackDays < 2 {
		return c, fmt.Errorf("%w: lookback must be at least 2 days, got %d", ErrInvalidConfig, c.LookbackDays)
	}
	if c.InitialCapital < 0 || c.FeeBps < 0 {
		return c, fmt.Errorf("%w: initial capital and fees must be non-negative", ErrInvalidConfig)
	}
	linkage, err := optimization.ParseLinkage(string(c.Linkage))
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.Linkage = linkage
	return c, nil
}

// EquityPoint is the portfolio value at the close of a date.
type EquityPoint struct {
	Date      string  `json:"date"`
	Equity    float64 `json:"equity"`
	Benchmark float64 `json:"benchmark"`
}

// RebalanceRecord describes one scheduled rebalance.
type RebalanceRecord struct {
	Date     string                    `json:"date"`
	Weights  optimization.WeightVector `json:"weights"`
	Turnover float64                   `json:"turnover"`
	Fee      float64                   `json:"fee"`
	Skipped  bool                      `json:"skipped"`
	Reason   string                    `json:"reason,omitempty"`
}

// Metrics summarizes an equity curve.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Calmar      float64 `json:"calmar"`
	Turnover    float64 `json:"turnover"` // sum of one-way turnover over all rebalances
}

// Result is the outcome of a backtest.
type Result struct {
	Config     Config            `json:"config"`
	Symbols    []string          `json:"symbols"`
	Start      string            `json:"start"`
	End        string            `json:"end"`
	Equity     []EquityPoint     `json:"equity"`
	Rebalances []RebalanceRecord `json:"rebalances"`
	Metrics    Metrics           `json:"metrics"`
	Benchmark  Metrics           `json:"benchmark"`
}
