package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TradeRecorder persists ledger rows.
type TradeRecorder interface {
	Record(ctx context.Context, trade *Trade) error
	List(ctx context.Context, limit int) ([]Trade, error)
}

// Executor plans and submits the orders of a rebalance.
//
// Dependencies:
//   - domain.BrokerClient: balances, prices, lot sizes and order placement
//   - domain.PriceSource: optional streamed prices, preferred over REST
//   - TradeRecorder: the trade ledger
type Executor struct {
	broker  domain.BrokerClient
	prices  domain.PriceSource
	planner *Planner
	trades  TradeRecorder
	newID   func() string
	log     zerolog.Logger
}

// NewExecutor creates a new executor. prices may be nil.
func NewExecutor(broker domain.BrokerClient, prices domain.PriceSource, planner *Planner, trades TradeRecorder, log zerolog.Logger) *Executor {
	return &Executor{
		broker:  broker,
		prices:  prices,
		planner: planner,
		trades:  trades,
		newID:   uuid.NewString,
		log:     log.With().Str("service", "trading").Logger(),
	}
}

// Rebalance moves the account to target. With dryRun the plan is recorded
// but nothing is sent to the exchange. A failed order is recorded and does
// not stop the remaining ones.
func (e *Executor) Rebalance(ctx context.Context, target optimization.WeightVector, dryRun bool) (*RebalanceReport, error) {
	report := &RebalanceReport{DryRun: dryRun, StartedAt: time.Now().UTC()}
	symbols := e.planner.Symbols(target)

	account, err := e.broker.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	prices, err := e.currentPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}
	lots, err := e.broker.LotSizes(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to get lot sizes: %w", err)
	}

	plan, err := e.planner.Plan(target, account, prices, lots)
	if err != nil {
		return nil, fmt.Errorf("failed to plan rebalance: %w", err)
	}
	report.Plan = plan

	e.log.Info().
		Str("equity", plan.Equity.StringFixed(2)).
		Int("orders", len(plan.Orders)).
		Int("skipped", len(plan.Skipped)).
		Bool("dry_run", dryRun).
		Msg("Rebalance planned")

	for _, order := range plan.Orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		trade := e.execute(ctx, order, dryRun)
		if err := e.trades.Record(ctx, &trade); err != nil {
			// The order may already be live; keep going so the report is complete.
			e.log.Error().Err(err).Str("client_order_id", trade.ClientOrderID).Msg("Failed to record trade")
		}
		report.Trades = append(report.Trades, trade)
	}

	report.Submitted = len(lo.Filter(report.Trades, func(t Trade, _ int) bool {
		return !t.DryRun && t.Status != StatusFailed
	}))
	report.Failed = len(lo.Filter(report.Trades, func(t Trade, _ int) bool {
		return t.Status == StatusFailed
	}))
	report.Duration = time.Since(report.StartedAt)

	e.log.Info().
		Int("submitted", report.Submitted).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Rebalance finished")
	return report, nil
}

func (e *Executor) execute(ctx context.Context, order PlannedOrder, dryRun bool) Trade {
	trade := Trade{
		ClientOrderID: e.newID(),
		Symbol:        order.Symbol,
		Side:          order.Side,
		Quantity:      order.Quantity,
		DryRun:        dryRun,
	}
	if dryRun {
		trade.Status = StatusDryRun
		trade.QuoteQuantity = order.Notional
		return trade
	}

	result, err := e.broker.SubmitMarketOrder(ctx, domain.BrokerOrderRequest{
		Symbol:        order.Symbol,
		Side:          order.Side,
		Quantity:      order.Quantity,
		ClientOrderID: trade.ClientOrderID,
	})
	if err != nil {
		e.log.Error().
			Err(err).
			Str("symbol", order.Symbol).
			Str("side", string(order.Side)).
			Str("quantity", order.Quantity.String()).
			Msg("Order submission failed")
		trade.Status = StatusFailed
		trade.Error = err.Error()
		return trade
	}

	trade.ExchangeOrderID = result.OrderID
	trade.Status = result.Status
	trade.ExecutedQuantity = result.ExecutedQuantity
	trade.QuoteQuantity = result.QuoteQuantity
	return trade
}

// currentPrices takes fresh streamed prices first and asks the broker for
// the rest.
func (e *Executor) currentPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	missing := symbols
	if e.prices != nil {
		missing = nil
		for _, symbol := range symbols {
			if p, ok := e.prices.Latest(symbol); ok {
				prices[symbol] = p
			} else {
				missing = append(missing, symbol)
			}
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := e.broker.Prices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	for symbol, p := range fetched {
		prices[symbol] = p
	}
	return prices, nil
}

// Trades returns recent ledger rows.
func (e *Executor) Trades(ctx context.Context, limit int) ([]Trade, error) {
	return e.trades.List(ctx, limit)
}
