// Package features derives per-asset indicators from stored daily closes.
package features

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/pkg/formulas"
	"github.com/rs/zerolog"
)

const (
	// minHistory is the number of closes needed for every feature (EMA50).
	minHistory = 50

	rsiPeriod      = 14
	fastEMAPeriod  = 20
	slowEMAPeriod  = 50
	volatilityDays = 30
)

// Trend values
const (
	TrendUp   = "up"
	TrendDown = "down"
)

// FeatureSet holds the latest indicators of a symbol. Nil fields could not
// be computed from the available history.
type FeatureSet struct {
	Symbol        string   `json:"symbol"`
	AsOf          string   `json:"as_of,omitempty"`
	HistoryPoints int      `json:"history_points"`
	Insufficient  bool     `json:"insufficient"`
	LastClose     *float64 `json:"last_close,omitempty"`
	Return1D      *float64 `json:"return_1d,omitempty"`
	Return7D      *float64 `json:"return_7d,omitempty"`
	Return30D     *float64 `json:"return_30d,omitempty"`
	Volatility30D *float64 `json:"volatility_30d,omitempty"` // annualized
	RSI14         *float64 `json:"rsi_14,omitempty"`
	EMA20         *float64 `json:"ema_20,omitempty"`
	EMA50         *float64 `json:"ema_50,omitempty"`
	Trend         string   `json:"trend,omitempty"` // up when EMA20 > EMA50
}

// Service computes feature sets
type Service struct {
	prices historical.PriceReader
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a new feature service
func NewService(prices historical.PriceReader, log zerolog.Logger) *Service {
	return &Service{
		prices: prices,
		now:    time.Now,
		log:    log.With().Str("service", "features").Logger(),
	}
}

// Compute returns one FeatureSet per symbol, in order, using the closes of
// the last lookbackDays days.
func (s *Service) Compute(ctx context.Context, symbols []string, lookbackDays int) ([]FeatureSet, error) {
	if lookbackDays < minHistory {
		lookbackDays = minHistory
	}
	since := historical.FormatDate(s.now().AddDate(0, 0, -lookbackDays))

	out := make([]FeatureSet, 0, len(symbols))
	for _, symbol := range symbols {
		prices, err := s.prices.GetDailyPrices(ctx, symbol, since, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
		}
		fs := Calculate(symbol, prices)
		if fs.Insufficient {
			s.log.Debug().Str("symbol", symbol).Int("history_points", fs.HistoryPoints).Msg("Insufficient history for all features")
		}
		out = append(out, fs)
	}
	return out, nil
}

// Calculate derives features from candles sorted oldest first.
func Calculate(symbol string, prices []historical.DailyPrice) FeatureSet {
	fs := FeatureSet{
		Symbol:        symbol,
		HistoryPoints: len(prices),
		Insufficient:  len(prices) < minHistory,
	}
	if len(prices) == 0 {
		return fs
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}
	last := closes[len(closes)-1]
	fs.AsOf = prices[len(prices)-1].Date
	fs.LastClose = &last

	fs.Return1D = formulas.Momentum(closes, 1)
	fs.Return7D = formulas.Momentum(closes, 7)
	fs.Return30D = formulas.Momentum(closes, 30)
	fs.Volatility30D = formulas.RollingVolatility(formulas.CalculateReturns(closes), volatilityDays, formulas.DefaultCryptoPeriodsPerYear)
	fs.RSI14 = formulas.RSI(closes, rsiPeriod)
	fs.EMA20 = formulas.EMA(closes, fastEMAPeriod)
	fs.EMA50 = formulas.EMA(closes, slowEMAPeriod)

	if fs.EMA20 != nil && fs.EMA50 != nil {
		if *fs.EMA20 > *fs.EMA50 {
			fs.Trend = TrendUp
		} else {
			fs.Trend = TrendDown
		}
	}
	return fs
}
