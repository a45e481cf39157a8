// Package marketdata keeps stored daily candles in sync with the exchange.
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentFetches = 4

// KlineFetcher fetches closed daily candles.
type KlineFetcher interface {
	DailyKlines(ctx context.Context, symbol string, start, end time.Time) ([]historical.DailyPrice, error)
}

// PriceStore is the write side of HistoryDB.
type PriceStore interface {
	GetLatestDate(ctx context.Context, symbol string) (string, error)
	UpsertDailyPrices(ctx context.Context, prices []historical.DailyPrice) error
}

// SyncResult reports the outcome for one symbol.
type SyncResult struct {
	Symbol   string `json:"symbol"`
	From     string `json:"from"`
	Fetched  int    `json:"fetched"`
	Latest   string `json:"latest,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// SyncService pulls daily candles for the universe into the history store.
type SyncService struct {
	fetcher      KlineFetcher
	store        PriceStore
	symbols      []string
	backfillDays int
	now          func() time.Time
	log          zerolog.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(fetcher KlineFetcher, store PriceStore, symbols []string, backfillDays int, log zerolog.Logger) *SyncService {
	return &SyncService{
		fetcher:      fetcher,
		store:        store,
		symbols:      symbols,
		backfillDays: backfillDays,
		now:          time.Now,
		log:          log.With().Str("service", "marketdata_sync").Logger(),
	}
}

// Symbols returns the synced universe.
func (s *SyncService) Symbols() []string {
	return s.symbols
}

// Sync fetches candles for every symbol, at most four at a time. A failure
// on one symbol is recorded in its result and does not stop the others.
// The returned error is non-nil only when every symbol failed.
func (s *SyncService) Sync(ctx context.Context) ([]SyncResult, error) {
	results := make([]SyncResult, len(s.symbols))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, symbol := range s.symbols {
		g.Go(func() error {
			res := s.syncSymbol(gctx, symbol)
			mu.Lock()
			results[i] = res
			if res.Error != "" {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().
		Int("symbols", len(s.symbols)).
		Int("failed", failed).
		Msg("Market data sync completed")

	if len(s.symbols) > 0 && failed == len(s.symbols) {
		return results, fmt.Errorf("market data sync failed for all %d symbols", failed)
	}
	return results, nil
}

func (s *SyncService) syncSymbol(ctx context.Context, symbol string) (res SyncResult) {
	started := time.Now()
	res = SyncResult{Symbol: symbol}
	defer func() { res.Duration = time.Since(started).Round(time.Millisecond).String() }()

	now := s.now().UTC()
	start := now.AddDate(0, 0, -s.backfillDays)

	latest, err := s.store.GetLatestDate(ctx, symbol)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if latest != "" {
		// Re-fetch the latest stored day in case it was written before it closed.
		if t, err := historical.ParseDate(latest); err == nil && t.After(start) {
			start = t
		}
	}
	res.From = historical.FormatDate(start)

	prices, err := s.fetcher.DailyKlines(ctx, symbol, start, now)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch klines")
		res.Error = err.Error()
		return res
	}
	if err := s.store.UpsertDailyPrices(ctx, prices); err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to store klines")
		res.Error = err.Error()
		return res
	}

	res.Fetched = len(prices)
	if len(prices) > 0 {
		res.Latest = prices[len(prices)-1].Date
	}
	return res
}
