package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RSI returns the latest Relative Strength Index over period, or nil when
// there are not enough closes.
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	return lastValid(talib.Rsi(closes, period))
}

// EMA returns the latest Exponential Moving Average over period, or nil when
// there are not enough closes.
func EMA(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	return lastValid(talib.Ema(closes, period))
}

// RollingVolatility returns the annualized standard deviation of the last
// window returns.
func RollingVolatility(returns []float64, window int, periodsPerYear float64) *float64 {
	if window < 2 || len(returns) < window {
		return nil
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultCryptoPeriodsPerYear
	}
	// talib.StdDev is the population deviation; rescale to the sample estimate.
	sd := lastValid(talib.StdDev(returns, window, 1.0))
	if sd == nil {
		return nil
	}
	n := float64(window)
	annualized := *sd * math.Sqrt(n/(n-1)) * math.Sqrt(periodsPerYear)
	return &annualized
}

// Momentum returns the rate of change over period as a fraction
// (talib.Roc reports percent).
func Momentum(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	roc := lastValid(talib.Roc(closes, period))
	if roc == nil {
		return nil
	}
	frac := *roc / 100
	return &frac
}

func lastValid(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if !IsFinite(v) {
		return nil
	}
	return &v
}
