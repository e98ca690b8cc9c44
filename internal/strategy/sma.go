package strategy

import (
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
)

// SMACrossover signals buy when the fast simple moving average closes
// above the slow one and sell when it closes below. Pure function of
// the bar window.
type SMACrossover struct {
	Fast int
	Slow int
}

// NewSMACrossover returns the classic 10/20 crossover.
func NewSMACrossover() SMACrossover {
	return SMACrossover{Fast: 10, Slow: 20}
}

// EvaluateSignal implements Strategy.
func (s SMACrossover) EvaluateSignal(bars []types.Bar) types.Signal {
	if len(bars) < s.Slow+1 {
		return types.SignalHold
	}

	fastNow := sma(bars, s.Fast, 0)
	slowNow := sma(bars, s.Slow, 0)
	fastPrev := sma(bars, s.Fast, 1)
	slowPrev := sma(bars, s.Slow, 1)

	switch {
	case fastPrev.LessThanOrEqual(slowPrev) && fastNow.GreaterThan(slowNow):
		return types.SignalBuy
	case fastPrev.GreaterThanOrEqual(slowPrev) && fastNow.LessThan(slowNow):
		return types.SignalSell
	default:
		return types.SignalHold
	}
}

// sma averages the last n closes, offset bars back from the end.
func sma(bars []types.Bar, n, offset int) decimal.Decimal {
	end := len(bars) - offset
	sum := decimal.Zero
	for _, bar := range bars[end-n : end] {
		sum = sum.Add(bar.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
