// Package historical stores daily candles and turns them into aligned
// return matrices for the allocator.
package historical

import "time"

// DateLayout is the storage format of DailyPrice.Date.
const DateLayout = "2006-01-02"

// DailyPrice represents a daily OHLCV candle for an exchange symbol.
type DailyPrice struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD (UTC)
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// FormatDate truncates t to its UTC day.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
