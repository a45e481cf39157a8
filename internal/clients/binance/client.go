// Package binance wraps the Binance spot REST API and market streams.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	// MainnetBaseURL is the production spot REST endpoint
	MainnetBaseURL = "https://api.binance.com"
	// TestnetBaseURL is the spot testnet REST endpoint
	TestnetBaseURL = "https://testnet.binance.vision"

	klineLimit    = 1000
	intervalDaily = "1d"

	// Spot allows 6000 request weight per minute; stay well below it.
	requestsPerSecond = 10
	requestBurst      = 5
)

// Config selects credentials and endpoint.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	BaseURL   string // Overrides the Testnet switch when set
}

// Client is a throttled Binance spot client.
type Client struct {
	api     *gobinance.Client
	limiter *rate.Limiter
	now     func() time.Time
	log     zerolog.Logger
}

// NewClient creates a new spot client. The endpoint is chosen per client,
// so testnet and mainnet clients can coexist.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	api := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	switch {
	case cfg.BaseURL != "":
		api.BaseURL = cfg.BaseURL
	case cfg.Testnet:
		api.BaseURL = TestnetBaseURL
	default:
		api.BaseURL = MainnetBaseURL
	}

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		now:     time.Now,
		log:     log.With().Str("client", "binance").Str("base_url", api.BaseURL).Logger(),
	}
}

// BaseURL returns the REST endpoint in use.
func (c *Client) BaseURL() string {
	return c.api.BaseURL
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// DailyKlines returns closed daily candles of symbol opening in [start, end],
// paging through the API 1000 candles at a time. The still-open candle of
// the current day is skipped.
func (c *Client) DailyKlines(ctx context.Context, symbol string, start, end time.Time) ([]historical.DailyPrice, error) {
	startMs := start.UTC().UnixMilli()
	endMs := end.UTC().UnixMilli()
	nowMs := c.now().UnixMilli()

	var out []historical.DailyPrice
	for startMs <= endMs {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		klines, err := c.api.NewKlinesService().
			Symbol(symbol).
			Interval(intervalDaily).
			StartTime(startMs).
			EndTime(endMs).
			Limit(klineLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			if k.CloseTime >= nowMs {
				continue
			}
			price, err := transformKline(symbol, k)
			if err != nil {
				return nil, err
			}
			out = append(out, price)
		}

		if len(klines) < klineLimit {
			break
		}
		startMs = klines[len(klines)-1].OpenTime + 1
	}

	c.log.Debug().Str("symbol", symbol).Int("count", len(out)).Msg("Fetched daily klines")
	return out, nil
}

// Account returns the raw account balances.
func (c *Client) Account(ctx context.Context) ([]gobinance.Balance, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return account.Balances, nil
}

// Prices returns the last trade price of each requested symbol as a string.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	all, err := c.api.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}

	wanted := lo.SliceToMap(symbols, func(s string) (string, struct{}) { return s, struct{}{} })
	out := make(map[string]string, len(symbols))
	for _, p := range all {
		if _, ok := wanted[p.Symbol]; ok {
			out[p.Symbol] = p.Price
		}
	}
	if missing := lo.Filter(symbols, func(s string, _ int) bool { _, ok := out[s]; return !ok }); len(missing) > 0 {
		return nil, fmt.Errorf("no price for symbols %v", missing)
	}
	return out, nil
}

// LotSizes returns the LOT_SIZE filter (min quantity, step size) per symbol.
func (c *Client) LotSizes(ctx context.Context, symbols []string) (map[string]gobinance.LotSizeFilter, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	info, err := c.api.NewExchangeInfoService().Symbols(symbols...).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange info: %w", err)
	}

	out := make(map[string]gobinance.LotSizeFilter, len(info.Symbols))
	for _, s := range info.Symbols {
		if f := s.LotSizeFilter(); f != nil {
			out[s.Symbol] = *f
		}
	}
	return out, nil
}

// MarketOrder describes a market order in exchange terms.
type MarketOrder struct {
	Symbol        string
	Side          gobinance.SideType
	Quantity      string
	ClientOrderID string
}

// SubmitMarketOrder places a market order.
func (c *Client) SubmitMarketOrder(ctx context.Context, order MarketOrder) (*gobinance.CreateOrderResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.api.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(order.Side).
		Type(gobinance.OrderTypeMarket).
		Quantity(order.Quantity).
		NewClientOrderID(order.ClientOrderID).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s %s order: %w", order.Side, order.Symbol, err)
	}

	c.log.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("quantity", order.Quantity).
		Int64("order_id", resp.OrderID).
		Str("status", string(resp.Status)).
		Msg("Market order submitted")
	return resp, nil
}

func transformKline(symbol string, k *gobinance.Kline) (historical.DailyPrice, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return historical.DailyPrice{}, fmt.Errorf("invalid kline value %q for %s: %w", f, symbol, err)
		}
		values[i] = v
	}

	return historical.DailyPrice{
		Symbol: symbol,
		Date:   historical.FormatDate(time.UnixMilli(k.OpenTime)),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
