package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	starts map[string]time.Time
	fail   map[string]bool
}

func (f *fakeFetcher) DailyKlines(_ context.Context, symbol string, start, end time.Time) ([]historical.DailyPrice, error) {
	f.mu.Lock()
	f.starts[symbol] = start
	f.mu.Unlock()
	if f.fail[symbol] {
		return nil, errors.New("exchange unavailable")
	}
	var out []historical.DailyPrice
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, historical.DailyPrice{Symbol: symbol, Date: historical.FormatDate(d), Close: 1})
	}
	return out, nil
}

type fakeStore struct {
	mu     sync.Mutex
	latest map[string]string
	stored map[string]int
}

func (s *fakeStore) GetLatestDate(_ context.Context, symbol string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[symbol], nil
}

func (s *fakeStore) UpsertDailyPrices(_ context.Context, prices []historical.DailyPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prices {
		s.stored[p.Symbol]++
	}
	return nil
}

func TestSync_IncrementalAndBackfill(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{starts: map[string]time.Time{}, fail: map[string]bool{"DOGEUSDT": true}}
	store := &fakeStore{latest: map[string]string{"BTCUSDT": "2024-06-08"}, stored: map[string]int{}}

	svc := NewSyncService(fetcher, store, []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT"}, 10, zerolog.Nop())
	svc.now = func() time.Time { return now }

	results, err := svc.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "BTCUSDT", results[0].Symbol)
	assert.Equal(t, "2024-06-08", results[0].From, "resumes from latest stored date")
	assert.Equal(t, 3, results[0].Fetched)
	assert.Equal(t, "2024-06-10", results[0].Latest)
	for _, r := range results {
		assert.NotEmpty(t, r.Duration, r.Symbol)
	}

	assert.Equal(t, "2024-05-31", results[1].From, "backfills when empty")
	assert.Equal(t, 11, store.stored["ETHUSDT"])

	assert.Contains(t, results[2].Error, "exchange unavailable")
	assert.Zero(t, store.stored["DOGEUSDT"])
}

func TestSync_OldLatestIsClampedToBackfill(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{starts: map[string]time.Time{}}
	store := &fakeStore{latest: map[string]string{"BTCUSDT": "2019-01-01"}, stored: map[string]int{}}

	svc := NewSyncService(fetcher, store, []string{"BTCUSDT"}, 5, zerolog.Nop())
	svc.now = func() time.Time { return now }

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -5), fetcher.starts["BTCUSDT"])
}

func TestSync_AllFailed(t *testing.T) {
	fetcher := &fakeFetcher{starts: map[string]time.Time{}, fail: map[string]bool{"BTCUSDT": true}}
	store := &fakeStore{latest: map[string]string{}, stored: map[string]int{}}

	results, err := NewSyncService(fetcher, store, []string{"BTCUSDT"}, 5, zerolog.Nop()).Sync(context.Background())
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
	assert.NotEmpty(t, results[0].Duration)
}
