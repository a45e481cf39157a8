package historical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTimeSeries_AlignsOnUnionOfDates(t *testing.T) {
	ts := BuildTimeSeries([]string{"A", "B"}, map[string][]DailyPrice{
		"A": {candle("A", "2024-01-01", 10), candle("A", "2024-01-03", 12)},
		"B": {candle("B", "2024-01-02", 20), candle("B", "2024-01-03", 21)},
	})

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, ts.Dates)
	assert.Equal(t, 10.0, ts.Data["A"][0])
	assert.True(t, math.IsNaN(ts.Data["A"][1]))
	assert.True(t, math.IsNaN(ts.Data["B"][0]))
}

func TestFillMissing(t *testing.T) {
	nan := math.NaN()
	ts := TimeSeries{
		Symbols: []string{"A", "B", "EMPTY"},
		Dates:   []string{"d1", "d2", "d3", "d4"},
		Data: map[string][]float64{
			"A":     {nan, 2, nan, 4},
			"B":     {1, nan, nan, nan},
			"EMPTY": {nan, nan, nan, nan},
		},
	}

	filled, dropped := ts.FillMissing()
	assert.Equal(t, []string{"EMPTY"}, dropped)
	assert.Equal(t, []string{"A", "B"}, filled.Symbols)
	assert.Equal(t, []float64{2, 2, 2, 4}, filled.Data["A"])
	assert.Equal(t, []float64{1, 1, 1, 1}, filled.Data["B"])
	assert.True(t, math.IsNaN(ts.Data["A"][0]), "input untouched")
}

func TestReturns(t *testing.T) {
	ts := TimeSeries{
		Symbols: []string{"A", "B"},
		Dates:   []string{"2024-01-01", "2024-01-02", "2024-01-03"},
		Data: map[string][]float64{
			"A": {100, 110, 99},
			"B": {0, 5, 10},
		},
	}

	rm, err := ts.Returns()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, rm.Assets)
	assert.Equal(t, 2, rm.Periods())
	require.Len(t, rm.Dates, 2)
	assert.Equal(t, "2024-01-02", FormatDate(rm.Dates[0]))
	assert.InDelta(t, 0.10, rm.Series["A"][0], 1e-12)
	assert.InDelta(t, -0.10, rm.Series["A"][1], 1e-12)
	assert.True(t, math.IsNaN(rm.Series["B"][0]), "zero price gives NaN")
	assert.InDelta(t, 1.0, rm.Series["B"][1], 1e-12)
}

func TestReturns_TooShort(t *testing.T) {
	ts := TimeSeries{Symbols: []string{"A"}, Dates: []string{"2024-01-01"}, Data: map[string][]float64{"A": {1}}}
	_, err := ts.Returns()
	require.Error(t, err)
}

func TestSlice(t *testing.T) {
	ts := TimeSeries{
		Symbols: []string{"A"},
		Dates:   []string{"d1", "d2", "d3"},
		Data:    map[string][]float64{"A": {1, 2, 3}},
	}
	s := ts.Slice(1, 3)
	assert.Equal(t, []string{"d2", "d3"}, s.Dates)
	assert.Equal(t, []float64{2, 3}, s.Data["A"])
}
