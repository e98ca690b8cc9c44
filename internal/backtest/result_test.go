package backtest

import (
	"testing"
	"time"

	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tradeWithPnL(pnl int64) types.Trade {
	return types.Trade{
		Symbol: "AAPL",
		PnL:    decimal.NewFromInt(pnl),
	}
}

func curveOf(values ...int64) []types.EquityPoint {
	start := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	out := make([]types.EquityPoint, len(values))
	for i, v := range values {
		out[i] = types.EquityPoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Equity:    decimal.NewFromInt(v),
		}
	}
	return out
}

func TestWinRateEmptyResult(t *testing.T) {
	t.Parallel()

	r := newEmptyResult("AAPL", decimal.NewFromInt(100000))
	assert.Equal(t, 0.0, r.WinRate())
	assert.True(t, r.AvgWin().IsZero())
	assert.True(t, r.AvgLoss().IsZero())
	assert.True(t, r.MaxDrawdown().IsZero())
}

func TestWinRateAndAverages(t *testing.T) {
	t.Parallel()

	r := &Result{
		Symbol:       "AAPL",
		StartingCash: decimal.NewFromInt(100000),
		Trades: []types.Trade{
			tradeWithPnL(100),
			tradeWithPnL(300),
			tradeWithPnL(-50),
			tradeWithPnL(0), // break-even counts as neither win nor loss
		},
	}

	assert.Equal(t, 2, r.NumWins())
	assert.Equal(t, 1, r.NumLosses())
	assert.InDelta(t, 0.5, r.WinRate(), 1e-12)
	assert.True(t, r.AvgWin().Equal(decimal.NewFromInt(200)), "avg win %s", r.AvgWin())
	assert.True(t, r.AvgLoss().Equal(decimal.NewFromInt(-50)), "avg loss %s", r.AvgLoss())
	assert.True(t, r.TotalPnL().Equal(decimal.NewFromInt(350)))
}

func TestMaxDrawdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		curve []types.EquityPoint
		want  string
	}{
		{"monotonic rise", curveOf(100, 110, 120), "0"},
		{"ten percent dip", curveOf(100000, 90000, 95000), "0.1"},
		{"deepest of several dips", curveOf(100, 80, 95, 76, 110), "0.24"},
		{"empty curve", nil, "0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &Result{EquityCurve: tt.curve}
			assert.True(t, r.MaxDrawdown().Equal(decimal.RequireFromString(tt.want)),
				"got %s", r.MaxDrawdown())
		})
	}
}

func TestReturnPct(t *testing.T) {
	t.Parallel()

	r := &Result{
		StartingCash: decimal.NewFromInt(100000),
		Trades:       []types.Trade{tradeWithPnL(5000)},
	}
	assert.True(t, r.ReturnPct().Equal(decimal.NewFromInt(5)),
		"got %s", r.ReturnPct())
}

func TestSummaryKeys(t *testing.T) {
	t.Parallel()

	r := newEmptyResult("BTC/USD", decimal.NewFromInt(100000))
	summary := r.Summary()

	for _, key := range []string{
		"symbol", "total_trades", "win_rate", "total_pnl",
		"max_drawdown", "final_equity", "return_pct",
	} {
		assert.Contains(t, summary, key)
	}
	assert.Equal(t, "BTC/USD", summary["symbol"])
}
