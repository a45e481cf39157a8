package formulas

import "math"

// DefaultCryptoPeriodsPerYear is the number of daily periods in a year for
// markets that trade every day.
const DefaultCryptoPeriodsPerYear = 365.0

// TotalReturn compounds periodic returns into a cumulative return.
func TotalReturn(returns []float64) float64 {
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	return cumulative - 1
}

// AnnualizedReturn calculates the compound annual growth rate from periodic returns.
//
// Formula: ((1+r1)*(1+r2)*...*(1+rN))^(periodsPerYear/N) - 1
//
// For fewer than 3 periods the plain cumulative return is returned to avoid
// extreme annualization.
func AnnualizedReturn(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultCryptoPeriodsPerYear
	}

	cumulative := 1.0 + TotalReturn(returns)
	if len(returns) < 3 {
		return cumulative - 1
	}
	if cumulative <= 0 {
		return -1
	}

	years := float64(len(returns)) / periodsPerYear
	return math.Pow(cumulative, 1.0/years) - 1
}

// AnnualizedVolatility scales the sample standard deviation of periodic
// returns by sqrt(periodsPerYear).
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultCryptoPeriodsPerYear
	}
	return StdDev(returns) * math.Sqrt(periodsPerYear)
}

// SharpeRatio returns the annualized Sharpe ratio. riskFreeRate is annual.
func SharpeRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultCryptoPeriodsPerYear
	}
	sd := StdDev(returns)
	if sd == 0 {
		return 0
	}
	excess := Mean(returns) - riskFreeRate/periodsPerYear
	return excess / sd * math.Sqrt(periodsPerYear)
}

// SortinoRatio returns the annualized Sortino ratio using downside deviation
// below the per-period risk-free rate.
func SortinoRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultCryptoPeriodsPerYear
	}
	target := riskFreeRate / periodsPerYear

	sumSq := 0.0
	for _, r := range returns {
		if d := r - target; d < 0 {
			sumSq += d * d
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return (Mean(returns) - target) / downside * math.Sqrt(periodsPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline of an equity curve
// as a non-positive fraction (e.g. -0.25 for a 25% drawdown).
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// CalmarRatio is the annualized return divided by the magnitude of the max drawdown.
func CalmarRatio(annualReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return annualReturn / math.Abs(maxDrawdown)
}
