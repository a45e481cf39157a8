package historical

import (
	"context"
	"testing"

	"github.com/aristath/hrpfolio/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryDB(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return NewHistoryDB(db.Conn(), zerolog.Nop())
}

func candle(symbol, date string, close float64) DailyPrice {
	return DailyPrice{Symbol: symbol, Date: date, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestHistoryDB_UpsertAndQuery(t *testing.T) {
	h := newTestHistoryDB(t)
	ctx := context.Background()

	require.NoError(t, h.UpsertDailyPrices(ctx, []DailyPrice{
		candle("BTCUSDT", "2024-01-03", 103),
		candle("BTCUSDT", "2024-01-01", 101),
		candle("BTCUSDT", "2024-01-02", 102),
		candle("ETHUSDT", "2024-01-02", 12),
	}))

	prices, err := h.GetDailyPrices(ctx, "BTCUSDT", "", "")
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, "2024-01-01", prices[0].Date, "oldest first")
	assert.Equal(t, 103.0, prices[2].Close)

	ranged, err := h.GetDailyPrices(ctx, "BTCUSDT", "2024-01-02", "2024-01-02")
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 102.0, ranged[0].Close)

	// Replacing a candle overwrites it.
	require.NoError(t, h.UpsertDailyPrices(ctx, []DailyPrice{candle("BTCUSDT", "2024-01-03", 99)}))
	latest, err := h.GetDailyPrices(ctx, "BTCUSDT", "2024-01-03", "")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 99.0, latest[0].Close)

	date, err := h.GetLatestDate(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", date)

	symbols, err := h.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestHistoryDB_LatestDateEmpty(t *testing.T) {
	h := newTestHistoryDB(t)
	date, err := h.GetLatestDate(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.Empty(t, date)
}

func TestHistoryDB_RejectsBadDate(t *testing.T) {
	h := newTestHistoryDB(t)
	err := h.UpsertDailyPrices(context.Background(), []DailyPrice{candle("BTCUSDT", "01/02/2024", 1)})
	require.Error(t, err)

	prices, err := h.GetDailyPrices(context.Background(), "BTCUSDT", "", "")
	require.NoError(t, err)
	assert.Empty(t, prices, "transaction rolled back")
}
