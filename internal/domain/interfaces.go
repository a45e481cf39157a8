// Package domain holds broker-agnostic types shared by clients and trading.
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// BrokerClient defines the spot exchange operations needed for rebalancing.
// Implementations live in internal/clients.
type BrokerClient interface {
	Account(ctx context.Context) (BrokerAccount, error)
	Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
	LotSizes(ctx context.Context, symbols []string) (map[string]BrokerLotSize, error)
	SubmitMarketOrder(ctx context.Context, req BrokerOrderRequest) (*BrokerOrderResult, error)
}

// PriceSource provides recent prices without a REST round trip.
// ok is false when the price is unknown or stale.
type PriceSource interface {
	Latest(symbol string) (price decimal.Decimal, ok bool)
}
