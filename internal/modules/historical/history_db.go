package historical

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/database"
	"github.com/rs/zerolog"
)

// HistoryDB provides access to the daily_prices table
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// UpsertDailyPrices inserts or replaces candles in one transaction.
func (h *HistoryDB) UpsertDailyPrices(ctx context.Context, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	now := time.Now().Unix()
	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices
			(symbol, date, open, high, low, close, volume, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if _, err := ParseDate(p.Date); err != nil {
				return fmt.Errorf("invalid date %q for %s: %w", p.Date, p.Symbol, err)
			}
			if _, err := stmt.ExecContext(ctx, p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, now); err != nil {
				return fmt.Errorf("failed to insert daily price %s %s: %w", p.Symbol, p.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Debug().Int("count", len(prices)).Msg("Upserted daily prices")
	return nil
}

// GetDailyPrices returns candles for symbol with since <= date <= until,
// oldest first. Empty bounds are open.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, symbol, since, until string) ([]DailyPrice, error) {
	if until == "" {
		until = "9999-12-31"
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// GetLatestDate returns the most recent stored date for symbol, or "" if none.
func (h *HistoryDB) GetLatestDate(ctx context.Context, symbol string) (string, error) {
	var latest sql.NullString
	err := h.db.QueryRowContext(ctx, `SELECT MAX(date) FROM daily_prices WHERE symbol = ?`, symbol).Scan(&latest)
	if err != nil {
		return "", fmt.Errorf("failed to query latest date for %s: %w", symbol, err)
	}
	return latest.String, nil
}

// ListSymbols returns every symbol with stored history.
func (h *HistoryDB) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
