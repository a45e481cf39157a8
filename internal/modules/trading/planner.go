package trading

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PlannerConfig holds the sizing rules of the planner.
type PlannerConfig struct {
	QuoteAsset  string   // Cash asset all pairs are quoted in (USDT)
	Universe    []string // Symbols the planner may sell even when absent from the target
	MinNotional float64  // Orders below this quote value are skipped
	CashBuffer  float64  // Fraction of equity kept in cash
}

// Planner sizes market orders that move an account towards target weights.
type Planner struct {
	cfg         PlannerConfig
	minNotional decimal.Decimal
	investable  decimal.Decimal
}

// NewPlanner creates a new planner
func NewPlanner(cfg PlannerConfig) *Planner {
	return &Planner{
		cfg:         cfg,
		minNotional: decimal.NewFromFloat(cfg.MinNotional),
		investable:  decimal.NewFromInt(1).Sub(decimal.NewFromFloat(cfg.CashBuffer)),
	}
}

// BaseAsset strips the quote asset from a symbol (BTCUSDT -> BTC).
func (p *Planner) BaseAsset(symbol string) string {
	return strings.TrimSuffix(symbol, p.cfg.QuoteAsset)
}

// Symbols returns the sorted union of target symbols and the universe.
func (p *Planner) Symbols(target optimization.WeightVector) []string {
	symbols := lo.Uniq(append(lo.Keys(target), p.cfg.Universe...))
	sort.Strings(symbols)
	return symbols
}

// Plan computes the orders that bring account to target. Every symbol in
// Symbols(target) needs a price. Held symbols missing from target are sold.
func (p *Planner) Plan(
	target optimization.WeightVector,
	account domain.BrokerAccount,
	prices map[string]decimal.Decimal,
	lots map[string]domain.BrokerLotSize,
) (*Plan, error) {
	symbols := p.Symbols(target)

	quote := account.Balance(p.cfg.QuoteAsset)
	equity := quote.Total()
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok || !price.IsPositive() {
			return nil, fmt.Errorf("missing price for %s", symbol)
		}
		held := account.Balance(p.BaseAsset(symbol)).Total()
		equity = equity.Add(held.Mul(price))
	}

	plan := &Plan{Equity: equity, Cash: quote.Free, BuyScale: 1}
	if !equity.IsPositive() {
		plan.Skipped = append(plan.Skipped, SkippedOrder{Reason: "account has no equity"})
		return plan, nil
	}
	investable := equity.Mul(p.investable)

	var sells, buys []PlannedOrder
	for _, symbol := range symbols {
		price := prices[symbol]
		balance := account.Balance(p.BaseAsset(symbol))
		held := balance.Total()
		current := held.Mul(price)
		weight := target.Get(symbol)
		targetValue := investable.Mul(decimal.NewFromFloat(weight))
		delta := targetValue.Sub(current)

		order := PlannedOrder{
			Symbol:        symbol,
			Price:         price,
			TargetWeight:  weight,
			CurrentWeight: current.Div(equity).InexactFloat64(),
		}

		if delta.Abs().LessThan(p.minNotional) {
			plan.Skipped = append(plan.Skipped, SkippedOrder{Symbol: symbol, Reason: "below min notional"})
			continue
		}

		lot := lots[symbol]
		if delta.IsNegative() {
			order.Side = domain.SideSell
			qty := delta.Neg().Div(price)
			if weight == 0 || qty.GreaterThan(balance.Free) {
				qty = balance.Free
			}
			order.Quantity = floorToStep(qty, lot.StepSize)
		} else {
			order.Side = domain.SideBuy
			order.Quantity = floorToStep(delta.Div(price), lot.StepSize)
		}
		order.Notional = order.Quantity.Mul(price)

		if reason := p.rejectReason(order, lot); reason != "" {
			plan.Skipped = append(plan.Skipped, SkippedOrder{Symbol: symbol, Reason: reason})
			continue
		}
		if order.Side == domain.SideSell {
			sells = append(sells, order)
		} else {
			buys = append(buys, order)
		}
	}

	buys = p.fitBuysToCash(plan, buys, sells, lots)
	plan.Orders = append(sells, buys...)
	return plan, nil
}

func (p *Planner) rejectReason(order PlannedOrder, lot domain.BrokerLotSize) string {
	switch {
	case !order.Quantity.IsPositive():
		return "quantity rounds to zero"
	case order.Quantity.LessThan(lot.MinQty):
		return "below lot min quantity"
	case order.Notional.LessThan(p.minNotional):
		return "below min notional"
	}
	return ""
}

// fitBuysToCash shrinks buys proportionally when they cost more than the
// free quote cash plus the proceeds of the sells.
func (p *Planner) fitBuysToCash(plan *Plan, buys, sells []PlannedOrder, lots map[string]domain.BrokerLotSize) []PlannedOrder {
	available := plan.Cash
	for _, s := range sells {
		available = available.Add(s.Notional)
	}
	cost := decimal.Zero
	for _, b := range buys {
		cost = cost.Add(b.Notional)
	}
	if cost.LessThanOrEqual(available) || cost.IsZero() {
		return buys
	}

	scale := available.Div(cost)
	plan.BuyScale = scale.InexactFloat64()

	fitted := make([]PlannedOrder, 0, len(buys))
	for _, b := range buys {
		lot := lots[b.Symbol]
		b.Quantity = floorToStep(b.Quantity.Mul(scale), lot.StepSize)
		b.Notional = b.Quantity.Mul(b.Price)
		if reason := p.rejectReason(b, lot); reason != "" {
			plan.Skipped = append(plan.Skipped, SkippedOrder{Symbol: b.Symbol, Reason: reason + " after cash limit"})
			continue
		}
		fitted = append(fitted, b)
	}
	return fitted
}

// floorToStep rounds qty down to a multiple of step. A zero step leaves qty
// unchanged.
func floorToStep(qty, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}
