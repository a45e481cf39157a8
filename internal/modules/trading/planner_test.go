package trading

import (
	"testing"

	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balance(asset, free string) domain.BrokerBalance {
	return domain.BrokerBalance{Asset: asset, Free: d(free), Locked: decimal.Zero}
}

var testPrices = map[string]decimal.Decimal{
	"BTCUSDT": d("50000"),
	"ETHUSDT": d("2000"),
	"SOLUSDT": d("100"),
}

var testLots = map[string]domain.BrokerLotSize{
	"BTCUSDT": {MinQty: d("0.0001"), StepSize: d("0.0001")},
	"ETHUSDT": {MinQty: d("0.001"), StepSize: d("0.001")},
	"SOLUSDT": {MinQty: d("0.01"), StepSize: d("0.01")},
}

func TestPlanner_BuysFromCash(t *testing.T) {
	planner := NewPlanner(PlannerConfig{QuoteAsset: "USDT", MinNotional: 10})
	account := domain.BrokerAccount{Balances: []domain.BrokerBalance{
		balance("USDT", "1000"),
		balance("BTC", "0.01"),
	}}

	plan, err := planner.Plan(optimization.WeightVector{"BTCUSDT": 0.5, "ETHUSDT": 0.5}, account, testPrices, testLots)
	require.NoError(t, err)

	assert.True(t, plan.Equity.Equal(d("1500")))
	require.Len(t, plan.Orders, 2)

	btc, eth := plan.Orders[0], plan.Orders[1]
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, domain.SideBuy, btc.Side)
	assert.True(t, btc.Quantity.Equal(d("0.005")), btc.Quantity.String())
	assert.InDelta(t, 1.0/3, btc.CurrentWeight, 1e-12)

	assert.Equal(t, "ETHUSDT", eth.Symbol)
	assert.True(t, eth.Quantity.Equal(d("0.375")), eth.Quantity.String())
	assert.True(t, eth.Notional.Equal(d("750")))
	assert.Equal(t, 1.0, plan.BuyScale)
}

func TestPlanner_SellsUntargetedHoldingsFirst(t *testing.T) {
	planner := NewPlanner(PlannerConfig{
		QuoteAsset:  "USDT",
		Universe:    []string{"BTCUSDT", "SOLUSDT"},
		MinNotional: 10,
		CashBuffer:  0.02,
	})
	account := domain.BrokerAccount{Balances: []domain.BrokerBalance{
		balance("SOL", "10"),
		balance("BNB", "1"), // not in the universe, left alone
	}}

	plan, err := planner.Plan(optimization.WeightVector{"BTCUSDT": 1}, account, testPrices, testLots)
	require.NoError(t, err)

	require.Len(t, plan.Orders, 2)
	assert.Equal(t, "SOLUSDT", plan.Orders[0].Symbol)
	assert.Equal(t, domain.SideSell, plan.Orders[0].Side)
	assert.True(t, plan.Orders[0].Quantity.Equal(d("10")))
	assert.Zero(t, plan.Orders[0].TargetWeight)

	assert.Equal(t, "BTCUSDT", plan.Orders[1].Symbol)
	assert.Equal(t, domain.SideBuy, plan.Orders[1].Side)
	assert.True(t, plan.Orders[1].Quantity.Equal(d("0.0196")), plan.Orders[1].Quantity.String())
}

func TestPlanner_SkipsSmallDeltas(t *testing.T) {
	planner := NewPlanner(PlannerConfig{QuoteAsset: "USDT", MinNotional: 10})
	account := domain.BrokerAccount{Balances: []domain.BrokerBalance{
		balance("USDT", "5"),
		balance("BTC", "0.02"),
		balance("ETH", "0.5"),
	}}

	// Equity 2005: BTC is 1000 and ETH 1000, both within 10 of their targets.
	plan, err := planner.Plan(optimization.WeightVector{"BTCUSDT": 0.5, "ETHUSDT": 0.5}, account, testPrices, testLots)
	require.NoError(t, err)

	assert.Empty(t, plan.Orders)
	require.Len(t, plan.Skipped, 2)
	assert.Equal(t, "below min notional", plan.Skipped[0].Reason)
}

func TestPlanner_ShrinksBuysToFreeCash(t *testing.T) {
	planner := NewPlanner(PlannerConfig{QuoteAsset: "USDT", MinNotional: 10})
	account := domain.BrokerAccount{Balances: []domain.BrokerBalance{
		{Asset: "USDT", Free: d("500"), Locked: d("500")},
	}}

	plan, err := planner.Plan(optimization.WeightVector{"BTCUSDT": 1}, account, testPrices, testLots)
	require.NoError(t, err)

	require.Len(t, plan.Orders, 1)
	assert.True(t, plan.Orders[0].Quantity.Equal(d("0.01")), plan.Orders[0].Quantity.String())
	assert.InDelta(t, 0.5, plan.BuyScale, 1e-12)
}

func TestPlanner_Errors(t *testing.T) {
	planner := NewPlanner(PlannerConfig{QuoteAsset: "USDT", MinNotional: 10})

	_, err := planner.Plan(optimization.WeightVector{"DOGEUSDT": 1}, domain.BrokerAccount{}, testPrices, testLots)
	assert.ErrorContains(t, err, "missing price for DOGEUSDT")

	plan, err := planner.Plan(optimization.WeightVector{"BTCUSDT": 1}, domain.BrokerAccount{}, testPrices, testLots)
	require.NoError(t, err)
	assert.Empty(t, plan.Orders)
	assert.Equal(t, "account has no equity", plan.Skipped[0].Reason)
}

func TestFloorToStep(t *testing.T) {
	assert.True(t, floorToStep(d("0.123456"), d("0.001")).Equal(d("0.123")))
	assert.True(t, floorToStep(d("5"), d("2")).Equal(d("4")))
	assert.True(t, floorToStep(d("0.123456"), decimal.Zero).Equal(d("0.123456")))
}

func TestPlanner_BaseAsset(t *testing.T) {
	planner := NewPlanner(PlannerConfig{QuoteAsset: "USDT"})
	assert.Equal(t, "BTC", planner.BaseAsset("BTCUSDT"))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, planner.Symbols(optimization.WeightVector{"ETHUSDT": 0.5, "BTCUSDT": 0.5}))
}
