package trading

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tradesColumns is the column list of the trades table, in scanTrade order.
const tradesColumns = `id, client_order_id, exchange_order_id, symbol, side, quantity,
	executed_quantity, quote_quantity, status, error, dry_run, created_at`

// TradeRepository handles trade ledger database operations
// Table: trades (append-only)
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// Record inserts a trade and sets its ID. CreatedAt defaults to now.
func (r *TradeRepository) Record(ctx context.Context, trade *Trade) error {
	if trade.ClientOrderID == "" {
		return fmt.Errorf("failed to record trade: client order id is required")
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}

	var exchangeOrderID sql.NullInt64
	if trade.ExchangeOrderID != 0 {
		exchangeOrderID = sql.NullInt64{Int64: trade.ExchangeOrderID, Valid: true}
	}
	var errMsg sql.NullString
	if trade.Error != "" {
		errMsg = sql.NullString{String: trade.Error, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO trades
		(client_order_id, exchange_order_id, symbol, side, quantity,
		 executed_quantity, quote_quantity, status, error, dry_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trade.ClientOrderID,
		exchangeOrderID,
		trade.Symbol,
		string(trade.Side),
		trade.Quantity.String(),
		trade.ExecutedQuantity.String(),
		trade.QuoteQuantity.String(),
		trade.Status,
		errMsg,
		boolToInt(trade.DryRun),
		trade.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read trade id: %w", err)
	}
	trade.ID = id

	r.log.Info().
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Str("quantity", trade.Quantity.String()).
		Str("status", trade.Status).
		Bool("dry_run", trade.DryRun).
		Msg("Trade recorded")
	return nil
}

// List returns up to limit trades, newest first. limit <= 0 means 50.
func (r *TradeRepository) List(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tradesColumns+" FROM trades ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

func scanTrade(rows *sql.Rows) (Trade, error) {
	var (
		t                    Trade
		side                 string
		qty, executed, quote string
		exchangeOrderID      sql.NullInt64
		errMsg               sql.NullString
		dryRun               int
		createdAt            int64
	)
	err := rows.Scan(&t.ID, &t.ClientOrderID, &exchangeOrderID, &t.Symbol, &side, &qty,
		&executed, &quote, &t.Status, &errMsg, &dryRun, &createdAt)
	if err != nil {
		return t, fmt.Errorf("failed to scan trade: %w", err)
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&t.Quantity, qty}, {&t.ExecutedQuantity, executed}, {&t.QuoteQuantity, quote}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return t, fmt.Errorf("failed to parse trade %d quantity %q: %w", t.ID, f.src, err)
		}
	}

	t.Side = domain.OrderSide(side)
	t.ExchangeOrderID = exchangeOrderID.Int64
	t.Error = errMsg.String
	t.DryRun = dryRun != 0
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
