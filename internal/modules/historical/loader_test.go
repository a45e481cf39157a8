package historical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	prices map[string][]DailyPrice
	err    error
	calls  []string
}

func (s *stubReader) GetDailyPrices(_ context.Context, symbol, since, until string) ([]DailyPrice, error) {
	s.calls = append(s.calls, symbol+" "+since+" "+until)
	if s.err != nil {
		return nil, s.err
	}
	var out []DailyPrice
	for _, p := range s.prices[symbol] {
		if p.Date >= since && p.Date <= until {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestLoader_LoadReturns(t *testing.T) {
	reader := &stubReader{prices: map[string][]DailyPrice{
		"BTCUSDT": {
			candle("BTCUSDT", "2023-12-31", 1), // outside the window
			candle("BTCUSDT", "2024-01-01", 100),
			candle("BTCUSDT", "2024-01-02", 102),
			candle("BTCUSDT", "2024-01-03", 101),
		},
		"ETHUSDT": {
			candle("ETHUSDT", "2024-01-01", 10),
			candle("ETHUSDT", "2024-01-03", 11),
		},
	}}
	loader := NewLoader(reader, zerolog.Nop())
	asOf := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	rm, err := loader.LoadReturns(context.Background(), []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT"}, 2, asOf)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, rm.Assets, "symbol without history is dropped")
	assert.Equal(t, 2, rm.Periods())
	assert.InDelta(t, 0.02, rm.Series["BTCUSDT"][0], 1e-12)
	assert.InDelta(t, 0.0, rm.Series["ETHUSDT"][0], 1e-12, "gap forward-filled")
	assert.InDelta(t, 0.1, rm.Series["ETHUSDT"][1], 1e-12)
	assert.Contains(t, reader.calls, "BTCUSDT 2024-01-01 2024-01-03")
}

func TestLoader_NoHistory(t *testing.T) {
	loader := NewLoader(&stubReader{}, zerolog.Nop())
	_, err := loader.LoadReturns(context.Background(), []string{"BTCUSDT"}, 30, time.Now())
	assert.True(t, errors.Is(err, optimization.ErrInsufficientData))
}

func TestLoader_Errors(t *testing.T) {
	loader := NewLoader(&stubReader{err: errors.New("db down")}, zerolog.Nop())

	_, err := loader.LoadReturns(context.Background(), []string{"BTCUSDT"}, 30, time.Now())
	assert.ErrorContains(t, err, "db down")

	_, err = loader.LoadReturns(context.Background(), nil, 30, time.Now())
	assert.Error(t, err)

	_, err = loader.LoadReturns(context.Background(), []string{"BTCUSDT"}, 0, time.Now())
	assert.Error(t, err)
}
