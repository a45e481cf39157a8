// Package trading turns target weights into exchange orders.
package trading

import (
	"time"

	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// Order statuses recorded in the trade ledger besides the exchange's own.
const (
	StatusDryRun = "DRY_RUN"
	StatusFailed = "FAILED"
)

// PlannedOrder is a market order the planner wants to place.
type PlannedOrder struct {
	Symbol        string           `json:"symbol"`
	Side          domain.OrderSide `json:"side"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         decimal.Decimal  `json:"price"`
	Notional      decimal.Decimal  `json:"notional"`
	TargetWeight  float64          `json:"target_weight"`
	CurrentWeight float64          `json:"current_weight"`
}

// SkippedOrder is a position the planner left untouched.
type SkippedOrder struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Plan is the planner output: sells first, then buys, each sorted by symbol.
type Plan struct {
	Equity   decimal.Decimal `json:"equity"`
	Cash     decimal.Decimal `json:"cash"` // free quote balance
	Orders   []PlannedOrder  `json:"orders"`
	Skipped  []SkippedOrder  `json:"skipped"`
	BuyScale float64         `json:"buy_scale"` // < 1 when buys were shrunk to the available cash
}

// Trade is one row of the trade ledger.
type Trade struct {
	ID               int64            `json:"id"`
	ClientOrderID    string           `json:"client_order_id"`
	ExchangeOrderID  int64            `json:"exchange_order_id,omitempty"`
	Symbol           string           `json:"symbol"`
	Side             domain.OrderSide `json:"side"`
	Quantity         decimal.Decimal  `json:"quantity"`
	ExecutedQuantity decimal.Decimal  `json:"executed_quantity"`
	QuoteQuantity    decimal.Decimal  `json:"quote_quantity"`
	Status           string           `json:"status"`
	Error            string           `json:"error,omitempty"`
	DryRun           bool             `json:"dry_run"`
	CreatedAt        time.Time        `json:"created_at"`
}

// RebalanceReport summarizes one rebalance run.
type RebalanceReport struct {
	DryRun    bool          `json:"dry_run"`
	Plan      *Plan         `json:"plan"`
	Trades    []Trade       `json:"trades"`
	Submitted int           `json:"submitted"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}
