// Package strategy defines the contract a trading strategy must satisfy.
// Concrete indicator math lives outside the core; the engine and the
// backtester only depend on this interface.
package strategy

import "github.com/quantmill/tradecore/pkg/types"

// Strategy turns a bar window into a buy/sell/hold verdict. Production
// implementations must behave as pure functions of the window; the same
// bars must always yield the same signal.
type Strategy interface {
	EvaluateSignal(bars []types.Bar) types.Signal
}

// Func adapts an ordinary function to the Strategy interface.
type Func func(bars []types.Bar) types.Signal

// EvaluateSignal implements Strategy.
func (f Func) EvaluateSignal(bars []types.Bar) types.Signal {
	return f(bars)
}

// Hold is a no-op strategy that never trades.
var Hold = Func(func([]types.Bar) types.Signal { return types.SignalHold })
