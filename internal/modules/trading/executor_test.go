package trading

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBroker is a mock broker client for testing
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Account(ctx context.Context) (domain.BrokerAccount, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.BrokerAccount), args.Error(1)
}

func (m *MockBroker) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockBroker) LotSizes(ctx context.Context, symbols []string) (map[string]domain.BrokerLotSize, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.BrokerLotSize), args.Error(1)
}

func (m *MockBroker) SubmitMarketOrder(ctx context.Context, req domain.BrokerOrderRequest) (*domain.BrokerOrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BrokerOrderResult), args.Error(1)
}

type stubPriceSource map[string]decimal.Decimal

func (s stubPriceSource) Latest(symbol string) (decimal.Decimal, bool) {
	p, ok := s[symbol]
	return p, ok
}

var twoAssetTarget = optimization.WeightVector{"BTCUSDT": 0.5, "ETHUSDT": 0.5}

func cashAccount() domain.BrokerAccount {
	return domain.BrokerAccount{Balances: []domain.BrokerBalance{balance("USDT", "1000")}}
}

func newTestExecutor(t *testing.T, broker domain.BrokerClient, prices domain.PriceSource) (*Executor, *TradeRepository) {
	t.Helper()
	repo := newTestTradeRepository(t)
	planner := NewPlanner(PlannerConfig{QuoteAsset: "USDT", MinNotional: 10})
	executor := NewExecutor(broker, prices, planner, repo, zerolog.Nop())
	ids := []string{"id-1", "id-2", "id-3"}
	executor.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	return executor, repo
}

func TestExecutor_Rebalance(t *testing.T) {
	broker := new(MockBroker)
	symbols := []string{"BTCUSDT", "ETHUSDT"}
	broker.On("Account", mock.Anything).Return(cashAccount(), nil)
	broker.On("Prices", mock.Anything, symbols).Return(testPrices, nil)
	broker.On("LotSizes", mock.Anything, symbols).Return(testLots, nil)
	broker.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(func(req domain.BrokerOrderRequest) bool {
		return req.Symbol == "BTCUSDT"
	})).Return(&domain.BrokerOrderResult{
		OrderID:          42,
		ClientOrderID:    "id-1",
		Symbol:           "BTCUSDT",
		Status:           "FILLED",
		ExecutedQuantity: d("0.01"),
		QuoteQuantity:    d("499.5"),
	}, nil)
	broker.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(func(req domain.BrokerOrderRequest) bool {
		return req.Symbol == "ETHUSDT"
	})).Return(nil, errors.New("insufficient balance"))

	executor, repo := newTestExecutor(t, broker, nil)
	report, err := executor.Rebalance(context.Background(), twoAssetTarget, false)
	require.NoError(t, err)

	assert.False(t, report.DryRun)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Trades, 2)
	assert.Equal(t, int64(42), report.Trades[0].ExchangeOrderID)
	assert.Equal(t, StatusFailed, report.Trades[1].Status)
	assert.Equal(t, "insufficient balance", report.Trades[1].Error)

	broker.AssertCalled(t, "SubmitMarketOrder", mock.Anything, mock.MatchedBy(func(req domain.BrokerOrderRequest) bool {
		return req.Symbol == "BTCUSDT" && req.Side == domain.SideBuy &&
			req.Quantity.Equal(d("0.01")) && req.ClientOrderID == "id-1"
	}))

	trades, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.ElementsMatch(t, []string{"id-1", "id-2"}, []string{trades[0].ClientOrderID, trades[1].ClientOrderID})
	broker.AssertExpectations(t)
}

func TestExecutor_RebalanceDryRun(t *testing.T) {
	broker := new(MockBroker)
	symbols := []string{"BTCUSDT", "ETHUSDT"}
	broker.On("Account", mock.Anything).Return(cashAccount(), nil)
	broker.On("Prices", mock.Anything, []string{"ETHUSDT"}).Return(map[string]decimal.Decimal{"ETHUSDT": d("2000")}, nil)
	broker.On("LotSizes", mock.Anything, symbols).Return(testLots, nil)

	executor, repo := newTestExecutor(t, broker, stubPriceSource{"BTCUSDT": d("50000")})
	report, err := executor.Rebalance(context.Background(), twoAssetTarget, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Zero(t, report.Submitted)
	require.Len(t, report.Trades, 2)
	for _, trade := range report.Trades {
		assert.Equal(t, StatusDryRun, trade.Status)
		assert.True(t, trade.QuoteQuantity.Equal(d("500")))
	}
	broker.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)

	trades, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.True(t, trades[0].DryRun)
}

func TestExecutor_RebalanceBrokerErrors(t *testing.T) {
	broker := new(MockBroker)
	broker.On("Account", mock.Anything).Return(domain.BrokerAccount{}, errors.New("invalid api key"))

	executor, _ := newTestExecutor(t, broker, nil)
	_, err := executor.Rebalance(context.Background(), twoAssetTarget, false)
	assert.ErrorContains(t, err, "invalid api key")

	broker = new(MockBroker)
	broker.On("Account", mock.Anything).Return(cashAccount(), nil)
	broker.On("Prices", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	executor, _ = newTestExecutor(t, broker, nil)
	_, err = executor.Rebalance(context.Background(), twoAssetTarget, false)
	assert.ErrorContains(t, err, "failed to get prices")
}
