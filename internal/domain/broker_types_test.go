package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBrokerAccount_Balance(t *testing.T) {
	account := BrokerAccount{Balances: []BrokerBalance{
		{Asset: "BTC", Free: decimal.RequireFromString("0.5"), Locked: decimal.RequireFromString("0.1")},
	}}

	assert.True(t, account.Balance("BTC").Total().Equal(decimal.RequireFromString("0.6")))

	missing := account.Balance("ETH")
	assert.Equal(t, "ETH", missing.Asset)
	assert.True(t, missing.Total().IsZero())
}
