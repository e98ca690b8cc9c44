package backtest

import (
	"testing"
	"time"

	"github.com/quantmill/tradecore/internal/strategy"
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flatBars builds n bars at a constant close price, one hour apart.
func flatBars(n int, price int64) []types.Bar {
	start := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
	p := decimal.NewFromInt(price)
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p, Low: p, Close: p,
			Volume: decimal.NewFromInt(1000),
		}
	}
	return bars
}

// buyAtSellAt trades on bar counts: buy when the window reaches buyLen
// bars, sell at sellLen.
func buyAtSellAt(buyLen, sellLen int) strategy.Strategy {
	return strategy.Func(func(bars []types.Bar) types.Signal {
		switch len(bars) {
		case buyLen:
			return types.SignalBuy
		case sellLen:
			return types.SignalSell
		default:
			return types.SignalHold
		}
	})
}

func newTestEngine(t *testing.T, cfg Config, strat strategy.Strategy) *Engine {
	t.Helper()
	eng, err := NewEngine(zap.NewNop(), cfg, strat)
	require.NoError(t, err)
	return eng
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StartingCash = decimal.Zero
	_, err := NewEngine(zap.NewNop(), cfg, strategy.Hold)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.RiskPerTrade = 0
	_, err = NewEngine(zap.NewNop(), cfg, strategy.Hold)
	assert.Error(t, err)
}

func TestRunBarsEmptyInput(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, DefaultConfig(), strategy.Hold)
	result := eng.RunBars("AAPL", nil)

	assert.True(t, result.IsEmpty())
	assert.Equal(t, 0, result.TotalTrades())
	assert.Equal(t, 0.0, result.WinRate())
	assert.True(t, result.FinalEquity().Equal(DefaultConfig().StartingCash))
}

func TestSellSignalWhileFlatIsNoOp(t *testing.T) {
	t.Parallel()

	// Sell fires on every bar past warm-up with nothing to flatten.
	alwaysSell := strategy.Func(func([]types.Bar) types.Signal { return types.SignalSell })

	start := DefaultConfig().StartingCash
	eng := newTestEngine(t, DefaultConfig(), alwaysSell)
	result := eng.RunBars("AAPL", flatBars(30, 100))

	assert.Empty(t, result.Trades)
	assert.True(t, result.FinalCash.Equal(start), "cash %s", result.FinalCash)
	for _, p := range result.EquityCurve {
		assert.True(t, p.Equity.Equal(start), "equity must stay flat, got %s", p.Equity)
	}
}

func TestWarmupBlocksEarlySignals(t *testing.T) {
	t.Parallel()

	// Always-buy strategy: the first possible entry is the first bar
	// after the warm-up window.
	alwaysBuy := strategy.Func(func([]types.Bar) types.Signal { return types.SignalBuy })

	bars := flatBars(30, 100)
	eng := newTestEngine(t, DefaultConfig(), alwaysBuy)
	result := eng.RunBars("AAPL", bars)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, bars[WarmupBars].Timestamp, trade.EntryTime)
	assert.Equal(t, "end_of_data", trade.ExitReason)
}

func TestStockRoundTripMath(t *testing.T) {
	t.Parallel()

	bars := flatBars(30, 100)
	eng := newTestEngine(t, DefaultConfig(), buyAtSellAt(21, 26))
	result := eng.RunBars("AAPL", bars)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]

	// qty = 100000 * 0.02 / 100 = 20; fills carry 5 bps slippage each way.
	assert.True(t, trade.Qty.Equal(decimal.NewFromInt(20)), "qty %s", trade.Qty)
	assert.True(t, trade.EntryPrice.Equal(decimal.RequireFromString("100.05")), "entry %s", trade.EntryPrice)
	assert.True(t, trade.ExitPrice.Equal(decimal.RequireFromString("99.95")), "exit %s", trade.ExitPrice)
	assert.True(t, trade.PnL.Equal(decimal.NewFromInt(-2)), "pnl %s", trade.PnL)
	assert.True(t, trade.Commission.IsZero(), "stock commission defaults to zero")
	assert.Equal(t, "signal", trade.ExitReason)

	// Equity identity: final = start + pnl - commission.
	assert.True(t, result.FinalEquity().Equal(decimal.NewFromInt(99998)),
		"final equity %s", result.FinalEquity())
}

func TestCryptoCommission(t *testing.T) {
	t.Parallel()

	bars := flatBars(30, 100)
	eng := newTestEngine(t, DefaultConfig(), buyAtSellAt(21, 26))
	result := eng.RunBars("BTC/USD", bars)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]

	// 25 bps of each fill's notional.
	entryCommission := trade.Qty.Mul(trade.EntryPrice).Mul(decimal.RequireFromString("0.0025"))
	exitCommission := trade.Qty.Mul(trade.ExitPrice).Mul(decimal.RequireFromString("0.0025"))
	assert.True(t, trade.Commission.Equal(entryCommission.Add(exitCommission)),
		"commission %s", trade.Commission)

	wantFinal := result.StartingCash.Add(trade.PnL).Sub(trade.Commission)
	assert.True(t, result.FinalEquity().Equal(wantFinal),
		"final %s want %s", result.FinalEquity(), wantFinal)
}

func TestBuyCappedToCash(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RiskPerTrade = 1.0 // try to spend everything; slippage pushes cost over cash
	bars := flatBars(30, 100)

	eng := newTestEngine(t, cfg, buyAtSellAt(21, 26))
	result := eng.RunBars("BTC/USD", bars)

	require.Len(t, result.Trades, 1)

	// The entry must consume exactly the available cash and never go
	// negative: the low point of the equity-backing cash balance is zero.
	trade := result.Trades[0]
	perUnit := trade.EntryPrice.Mul(decimal.RequireFromString("1.0025"))
	cost, _ := trade.Qty.Mul(perUnit).Float64()
	want, _ := cfg.StartingCash.Float64()
	assert.InDelta(t, want, cost, 1e-6)

	// Mid-trade equity never dips below zero cash.
	for _, p := range result.EquityCurve {
		assert.False(t, p.Equity.IsNegative(), "equity %s at %s", p.Equity, p.Timestamp)
	}
}

func TestForceCloseMarksCurve(t *testing.T) {
	t.Parallel()

	bars := flatBars(25, 50)
	eng := newTestEngine(t, DefaultConfig(), buyAtSellAt(22, 9999))
	result := eng.RunBars("AAPL", bars)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "end_of_data", result.Trades[0].ExitReason)

	// After the forced close the last equity point equals final cash.
	last := result.EquityCurve[len(result.EquityCurve)-1]
	assert.True(t, last.Equity.Equal(result.FinalCash))
	assert.Len(t, result.EquityCurve, len(bars))
}

func TestDeterministicLedger(t *testing.T) {
	t.Parallel()

	bars := flatBars(60, 100)
	strat := buyAtSellAt(25, 40)

	first := newTestEngine(t, DefaultConfig(), strat).RunBars("ETH/USD", bars)
	second := newTestEngine(t, DefaultConfig(), strat).RunBars("ETH/USD", bars)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.True(t, first.FinalCash.Equal(second.FinalCash))
}
