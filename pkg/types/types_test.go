package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsCryptoSymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol string
		want   bool
	}{
		{"BTC/USD", true},
		{"BTCUSD", true},
		{"ETH/USDT", true},
		{"AAPL", false},
		{"TSLA", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.symbol, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsCryptoSymbol(tt.symbol))
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BTCUSD", NormalizeSymbol("BTC/USD"))
	assert.Equal(t, "AAPL", NormalizeSymbol("AAPL"))
}

func TestTradePnLPercent(t *testing.T) {
	t.Parallel()

	trade := Trade{
		EntryPrice: decimal.NewFromInt(100),
		ExitPrice:  decimal.NewFromInt(110),
	}
	assert.True(t, trade.PnLPercent().Equal(decimal.NewFromInt(10)),
		"got %s", trade.PnLPercent())

	zero := Trade{}
	assert.True(t, zero.PnLPercent().IsZero(), "zero entry never divides")
}
