package historical

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
)

// TimeSeries holds date-aligned closing prices. Data[symbol][i] is the close
// on Dates[i], or NaN when the symbol has no candle for that date.
type TimeSeries struct {
	Symbols []string
	Dates   []string
	Data    map[string][]float64
}

// BuildTimeSeries aligns candles of several symbols on the union of their
// dates. Symbols keep the given order; symbols without candles are kept as
// all-NaN columns so that FillMissing can report them.
func BuildTimeSeries(symbols []string, pricesBySymbol map[string][]DailyPrice) TimeSeries {
	closes := make(map[string]map[string]float64, len(symbols))
	dateSet := make(map[string]struct{})
	for _, symbol := range symbols {
		m := make(map[string]float64)
		for _, p := range pricesBySymbol[symbol] {
			m[p.Date] = p.Close
			dateSet[p.Date] = struct{}{}
		}
		closes[symbol] = m
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	data := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		col := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := closes[symbol][d]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		data[symbol] = col
	}

	return TimeSeries{
		Symbols: append([]string(nil), symbols...),
		Dates:   dates,
		Data:    data,
	}
}

// Len returns the number of dates.
func (ts TimeSeries) Len() int {
	return len(ts.Dates)
}

// FillMissing forward-fills gaps with the previous close and back-fills
// leading gaps with the first close. Symbols that have no close at all are
// removed and returned in dropped.
func (ts TimeSeries) FillMissing() (filled TimeSeries, dropped []string) {
	filled = TimeSeries{
		Dates: ts.Dates,
		Data:  make(map[string][]float64, len(ts.Symbols)),
	}

	for _, symbol := range ts.Symbols {
		col := append([]float64(nil), ts.Data[symbol]...)

		var last float64
		hasLast := false
		for i := range col {
			if math.IsNaN(col[i]) {
				if hasLast {
					col[i] = last
				}
			} else {
				last = col[i]
				hasLast = true
			}
		}
		if !hasLast {
			dropped = append(dropped, symbol)
			continue
		}

		var next float64
		hasNext := false
		for i := len(col) - 1; i >= 0; i-- {
			if math.IsNaN(col[i]) {
				if hasNext {
					col[i] = next
				}
			} else {
				next = col[i]
				hasNext = true
			}
		}

		filled.Symbols = append(filled.Symbols, symbol)
		filled.Data[symbol] = col
	}

	return filled, dropped
}

// Slice returns the dates in [from, to) sharing the underlying arrays.
func (ts TimeSeries) Slice(from, to int) TimeSeries {
	out := TimeSeries{
		Symbols: ts.Symbols,
		Dates:   ts.Dates[from:to],
		Data:    make(map[string][]float64, len(ts.Symbols)),
	}
	for _, symbol := range ts.Symbols {
		out.Data[symbol] = ts.Data[symbol][from:to]
	}
	return out
}

// Returns converts closes to simple returns. Row t of the result is the
// return from Dates[t] to Dates[t+1]. A non-positive or missing price yields
// NaN, which the allocator drops together with its row.
func (ts TimeSeries) Returns() (optimization.ReturnsMatrix, error) {
	if len(ts.Dates) < 2 {
		return optimization.ReturnsMatrix{}, fmt.Errorf("%w: need at least 2 prices, got %d", optimization.ErrInsufficientData, len(ts.Dates))
	}

	dates := make([]time.Time, 0, len(ts.Dates)-1)
	for _, d := range ts.Dates[1:] {
		t, err := ParseDate(d)
		if err != nil {
			return optimization.ReturnsMatrix{}, fmt.Errorf("invalid date %q: %w", d, err)
		}
		dates = append(dates, t)
	}

	series := make(map[string][]float64, len(ts.Symbols))
	for _, symbol := range ts.Symbols {
		prices := ts.Data[symbol]
		r := make([]float64, len(prices)-1)
		for i := 1; i < len(prices); i++ {
			prev, cur := prices[i-1], prices[i]
			if prev > 0 && !math.IsNaN(prev) && !math.IsNaN(cur) {
				r[i-1] = (cur - prev) / prev
			} else {
				r[i-1] = math.NaN()
			}
		}
		series[symbol] = r
	}

	return optimization.NewReturnsMatrix(dates, append([]string(nil), ts.Symbols...), series)
}
