package historical

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// PriceReader is the read side of HistoryDB.
type PriceReader interface {
	GetDailyPrices(ctx context.Context, symbol, since, until string) ([]DailyPrice, error)
}

// Loader assembles aligned price series and return matrices from stored candles.
type Loader struct {
	prices PriceReader
	log    zerolog.Logger
}

// NewLoader creates a new loader
func NewLoader(prices PriceReader, log zerolog.Logger) *Loader {
	return &Loader{
		prices: prices,
		log:    log.With().Str("component", "history_loader").Logger(),
	}
}

// LoadSeries returns filled closes for symbols between since and until (inclusive).
func (l *Loader) LoadSeries(ctx context.Context, symbols []string, since, until time.Time) (TimeSeries, error) {
	if len(symbols) == 0 {
		return TimeSeries{}, fmt.Errorf("no symbols provided")
	}

	bySymbol := make(map[string][]DailyPrice, len(symbols))
	for _, symbol := range symbols {
		prices, err := l.prices.GetDailyPrices(ctx, symbol, FormatDate(since), FormatDate(until))
		if err != nil {
			return TimeSeries{}, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
		}
		bySymbol[symbol] = prices
	}

	series, dropped := BuildTimeSeries(symbols, bySymbol).FillMissing()
	if len(dropped) > 0 {
		l.log.Warn().Strs("symbols", dropped).Msg("Dropped symbols without price history")
	}

	l.log.Debug().
		Int("num_dates", series.Len()).
		Int("num_symbols", len(series.Symbols)).
		Msg("Built price time series")

	return series, nil
}

// LoadReturns returns the daily returns matrix of the lookbackDays days
// ending at asOf. It needs lookbackDays+1 closes.
func (l *Loader) LoadReturns(ctx context.Context, symbols []string, lookbackDays int, asOf time.Time) (optimization.ReturnsMatrix, error) {
	if lookbackDays < 1 {
		return optimization.ReturnsMatrix{}, fmt.Errorf("lookback must be positive, got %d", lookbackDays)
	}

	since := asOf.AddDate(0, 0, -lookbackDays)
	series, err := l.LoadSeries(ctx, symbols, since, asOf)
	if err != nil {
		return optimization.ReturnsMatrix{}, err
	}
	if len(series.Symbols) == 0 {
		return optimization.ReturnsMatrix{}, fmt.Errorf("%w: no stored history for %v", optimization.ErrInsufficientData, symbols)
	}

	return series.Returns()
}
