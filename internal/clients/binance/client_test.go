package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

// fakeExchange serves the subset of the spot REST API used by Client.
func fakeExchange(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		// Align to the next UTC midnight at or after start.
		open := (start + dayMs - 1) / dayMs * dayMs
		rows := [][]interface{}{}
		for ; open <= end && len(rows) < limit; open += dayMs {
			c := fmt.Sprintf("%d.5", open/dayMs%1000+1)
			rows = append(rows, []interface{}{
				open, c, c, c, c, "10", open + dayMs - 1, "0", 1, "0", "0", "0",
			})
		}
		_ = json.NewEncoder(w).Encode(rows)
	})

	mux.HandleFunc("/api/v3/account", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balances":[
			{"asset":"BTC","free":"0.50000000","locked":"0.10000000"},
			{"asset":"USDT","free":"1000.00","locked":"0.00"},
			{"asset":"DOGE","free":"0.00000000","locked":"0.00000000"}]}`))
	})

	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"40000.10"},{"symbol":"ETHUSDT","price":"2500.00"},{"symbol":"LTCBTC","price":"0.002"}]`))
	})

	mux.HandleFunc("/api/v3/exchangeInfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","filters":[
			{"filterType":"PRICE_FILTER","minPrice":"0.01","maxPrice":"1000000","tickSize":"0.01"},
			{"filterType":"LOT_SIZE","minQty":"0.00001000","maxQty":"9000.00000000","stepSize":"0.00001000"}]}]}`))
	})

	mux.HandleFunc("/api/v3/order", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "MARKET", r.Form.Get("type"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol":              r.Form.Get("symbol"),
			"orderId":             42,
			"clientOrderId":       r.Form.Get("newClientOrderId"),
			"transactTime":        1,
			"origQty":             r.Form.Get("quantity"),
			"executedQty":         r.Form.Get("quantity"),
			"cummulativeQuoteQty": "400.001",
			"status":              "FILLED",
			"type":                "MARKET",
			"side":                r.Form.Get("side"),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	srv := fakeExchange(t)
	c := NewClient(Config{APIKey: "key", APISecret: "secret", BaseURL: srv.URL}, zerolog.Nop())
	c.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestNewClient_BaseURL(t *testing.T) {
	assert.Equal(t, TestnetBaseURL, NewClient(Config{Testnet: true}, zerolog.Nop()).BaseURL())
	assert.Equal(t, MainnetBaseURL, NewClient(Config{}, zerolog.Nop()).BaseURL())
	assert.Equal(t, "http://x", NewClient(Config{Testnet: true, BaseURL: "http://x"}, zerolog.Nop()).BaseURL())
}

func TestDailyKlines_Pages(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1499)

	prices, err := c.DailyKlines(context.Background(), "BTCUSDT", start, end)
	require.NoError(t, err)

	require.Len(t, prices, 1500)
	assert.Equal(t, "2020-01-01", prices[0].Date)
	assert.Equal(t, "BTCUSDT", prices[0].Symbol)
	assert.Equal(t, end.Format("2006-01-02"), prices[len(prices)-1].Date)
	for i := 1; i < len(prices); i++ {
		require.Less(t, prices[i-1].Date, prices[i].Date)
	}
}

func TestDailyKlines_SkipsOpenCandle(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start.Add(36 * time.Hour) }

	prices, err := c.DailyKlines(context.Background(), "BTCUSDT", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "2024-03-01", prices[0].Date)
}

func TestBrokerAdapter(t *testing.T) {
	adapter := NewBrokerAdapter(newTestClient(t))
	ctx := context.Background()

	account, err := adapter.Account(ctx)
	require.NoError(t, err)
	require.Len(t, account.Balances, 2, "zero balances omitted")
	assert.True(t, account.Balance("BTC").Total().Equal(decimal.RequireFromString("0.6")))

	prices, err := adapter.Prices(ctx, []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.True(t, prices["BTCUSDT"].Equal(decimal.RequireFromString("40000.1")))

	_, err = adapter.Prices(ctx, []string{"SOLUSDT"})
	assert.ErrorContains(t, err, "SOLUSDT")

	lots, err := adapter.LotSizes(ctx, []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.True(t, lots["BTCUSDT"].StepSize.Equal(decimal.RequireFromString("0.00001")))

	result, err := adapter.SubmitMarketOrder(ctx, domain.BrokerOrderRequest{
		Symbol:        "BTCUSDT",
		Side:          domain.SideSell,
		Quantity:      decimal.RequireFromString("0.01"),
		ClientOrderID: "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.OrderID)
	assert.Equal(t, "abc", result.ClientOrderID)
	assert.Equal(t, "FILLED", result.Status)
	assert.True(t, result.ExecutedQuantity.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, result.QuoteQuantity.Equal(decimal.RequireFromString("400.001")))
}
