package binance

import (
	"context"
	"fmt"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BrokerAdapter adapts Client to domain.BrokerClient
type BrokerAdapter struct {
	client *Client
}

// NewBrokerAdapter creates a new Binance broker adapter
func NewBrokerAdapter(client *Client) *BrokerAdapter {
	return &BrokerAdapter{client: client}
}

// Account implements domain.BrokerClient. Zero balances are omitted.
func (a *BrokerAdapter) Account(ctx context.Context) (domain.BrokerAccount, error) {
	raw, err := a.client.Account(ctx)
	if err != nil {
		return domain.BrokerAccount{}, err
	}

	balances := make([]domain.BrokerBalance, 0, len(raw))
	for _, b := range raw {
		balance, err := transformBalance(b)
		if err != nil {
			return domain.BrokerAccount{}, err
		}
		if balance.Total().IsZero() {
			continue
		}
		balances = append(balances, balance)
	}
	return domain.BrokerAccount{Balances: balances}, nil
}

// Prices implements domain.BrokerClient
func (a *BrokerAdapter) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	raw, err := a.client.Prices(ctx, symbols)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(raw))
	for symbol, s := range raw {
		p, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for %s: %w", s, symbol, err)
		}
		out[symbol] = p
	}
	return out, nil
}

// LotSizes implements domain.BrokerClient
func (a *BrokerAdapter) LotSizes(ctx context.Context, symbols []string) (map[string]domain.BrokerLotSize, error) {
	raw, err := a.client.LotSizes(ctx, symbols)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.BrokerLotSize, len(raw))
	for symbol, f := range raw {
		minQty, err := decimal.NewFromString(f.MinQuantity)
		if err != nil {
			return nil, fmt.Errorf("invalid min quantity %q for %s: %w", f.MinQuantity, symbol, err)
		}
		step, err := decimal.NewFromString(f.StepSize)
		if err != nil {
			return nil, fmt.Errorf("invalid step size %q for %s: %w", f.StepSize, symbol, err)
		}
		out[symbol] = domain.BrokerLotSize{MinQty: minQty, StepSize: step}
	}
	return out, nil
}

// SubmitMarketOrder implements domain.BrokerClient
func (a *BrokerAdapter) SubmitMarketOrder(ctx context.Context, req domain.BrokerOrderRequest) (*domain.BrokerOrderResult, error) {
	side := gobinance.SideTypeBuy
	if req.Side == domain.SideSell {
		side = gobinance.SideTypeSell
	}

	resp, err := a.client.SubmitMarketOrder(ctx, MarketOrder{
		Symbol:        req.Symbol,
		Side:          side,
		Quantity:      req.Quantity.String(),
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return nil, err
	}
	return transformOrderResponse(resp), nil
}

func transformBalance(b gobinance.Balance) (domain.BrokerBalance, error) {
	free, err := decimal.NewFromString(b.Free)
	if err != nil {
		return domain.BrokerBalance{}, fmt.Errorf("invalid free balance %q for %s: %w", b.Free, b.Asset, err)
	}
	locked, err := decimal.NewFromString(b.Locked)
	if err != nil {
		return domain.BrokerBalance{}, fmt.Errorf("invalid locked balance %q for %s: %w", b.Locked, b.Asset, err)
	}
	return domain.BrokerBalance{Asset: b.Asset, Free: free, Locked: locked}, nil
}

func transformOrderResponse(resp *gobinance.CreateOrderResponse) *domain.BrokerOrderResult {
	parse := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		return lo.Ternary(err == nil, d, decimal.Zero)
	}
	return &domain.BrokerOrderResult{
		OrderID:          resp.OrderID,
		ClientOrderID:    resp.ClientOrderID,
		Symbol:           resp.Symbol,
		Status:           string(resp.Status),
		ExecutedQuantity: parse(resp.ExecutedQuantity),
		QuoteQuantity:    parse(resp.CummulativeQuoteQuantity),
	}
}
