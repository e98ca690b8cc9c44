package strategy

import (
	"testing"
	"time"

	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func barsFromCloses(closes []int64) []types.Bar {
	start := time.Date(2024, time.February, 5, 9, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		p := decimal.NewFromInt(c)
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p, Low: p, Close: p,
			Volume: decimal.NewFromInt(100),
		}
	}
	return bars
}

func TestSMACrossoverHoldsOnShortWindow(t *testing.T) {
	t.Parallel()

	s := NewSMACrossover()
	bars := barsFromCloses(make([]int64, 15))
	assert.Equal(t, types.SignalHold, s.EvaluateSignal(bars))
}

func TestSMACrossoverBuySignal(t *testing.T) {
	t.Parallel()

	s := SMACrossover{Fast: 2, Slow: 4}

	// Downtrend keeps fast below slow, then a sharp rally pushes the
	// 2-bar average through the 4-bar average on the final close.
	closes := []int64{110, 108, 106, 104, 102, 100, 130}
	assert.Equal(t, types.SignalBuy, s.EvaluateSignal(barsFromCloses(closes)))
}

func TestSMACrossoverSellSignal(t *testing.T) {
	t.Parallel()

	s := SMACrossover{Fast: 2, Slow: 4}

	closes := []int64{90, 92, 94, 96, 98, 100, 70}
	assert.Equal(t, types.SignalSell, s.EvaluateSignal(barsFromCloses(closes)))
}

func TestSMACrossoverHoldsWithoutCross(t *testing.T) {
	t.Parallel()

	s := SMACrossover{Fast: 2, Slow: 4}

	// Steady uptrend: fast stays above slow the whole way.
	closes := []int64{100, 102, 104, 106, 108, 110, 112}
	assert.Equal(t, types.SignalHold, s.EvaluateSignal(barsFromCloses(closes)))
}

func TestFuncAdapterAndHold(t *testing.T) {
	t.Parallel()

	called := false
	f := Func(func([]types.Bar) types.Signal {
		called = true
		return types.SignalBuy
	})
	assert.Equal(t, types.SignalBuy, f.EvaluateSignal(nil))
	assert.True(t, called)

	assert.Equal(t, types.SignalHold, Hold.EvaluateSignal(nil))
}
