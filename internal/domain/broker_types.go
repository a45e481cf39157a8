package domain

import "github.com/shopspring/decimal"

// Broker-agnostic types for spot exchange accounts.
// Quantities and prices use decimal math; exchanges quote them as strings.

// OrderSide is BUY or SELL.
type OrderSide string

const (
	// SideBuy buys the base asset with the quote asset
	SideBuy OrderSide = "BUY"
	// SideSell sells the base asset for the quote asset
	SideSell OrderSide = "SELL"
)

// BrokerBalance is the holding of a single asset.
type BrokerBalance struct {
	Asset  string          // Asset code (BTC, USDT, ...)
	Free   decimal.Decimal // Available quantity
	Locked decimal.Decimal // Quantity reserved by open orders
}

// Total returns free plus locked quantity.
func (b BrokerBalance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// BrokerAccount is a snapshot of all non-zero balances.
type BrokerAccount struct {
	Balances []BrokerBalance
}

// Balance returns the balance of asset, or a zero balance.
func (a BrokerAccount) Balance(asset string) BrokerBalance {
	for _, b := range a.Balances {
		if b.Asset == asset {
			return b
		}
	}
	return BrokerBalance{Asset: asset}
}

// BrokerLotSize is the quantity filter of a trading pair.
type BrokerLotSize struct {
	MinQty   decimal.Decimal
	StepSize decimal.Decimal
}

// BrokerOrderRequest is a market order for a trading pair.
type BrokerOrderRequest struct {
	Symbol        string          // Trading pair (BTCUSDT)
	Side          OrderSide       // BUY or SELL
	Quantity      decimal.Decimal // Base asset quantity
	ClientOrderID string          // Idempotency key
}

// BrokerOrderResult is the exchange acknowledgement of an order.
type BrokerOrderResult struct {
	OrderID          int64
	ClientOrderID    string
	Symbol           string
	Status           string
	ExecutedQuantity decimal.Decimal
	QuoteQuantity    decimal.Decimal // Quote asset spent or received
}
