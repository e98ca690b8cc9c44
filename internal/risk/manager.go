package risk

import (
	"sync"
	"time"

	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
)

// ExitReason is the outcome of a stop/target scan.
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// PositionManager sizes and tracks positions under a risk Config.
// State is purely in-memory; the manager never performs I/O. Each
// strategy/symbol pair owns its own instance, so position limits and
// daily-loss accounting never interfere across symbols.
type PositionManager struct {
	mu       sync.RWMutex
	config   Config
	open     []types.Position
	dailyPnL decimal.Decimal
}

// NewPositionManager validates the config and returns a manager.
func NewPositionManager(config Config) (*PositionManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &PositionManager{config: config}, nil
}

// Config returns the manager's risk parameters.
func (pm *PositionManager) Config() Config {
	return pm.config
}

// SizeForEntry calculates position size from the configured percentage
// stop. stopDistance = entryPrice * stopLossPct; this is the canonical
// sizing path.
func (pm *PositionManager) SizeForEntry(accountEquity, entryPrice decimal.Decimal) decimal.Decimal {
	stopDistance := entryPrice.Mul(decimal.NewFromFloat(pm.config.StopLossPct))
	return pm.SizeForStopDistance(accountEquity, stopDistance)
}

// SizeForStopDistance calculates position size from a caller-supplied
// stop distance, supporting volatility-based stops.
//
//	qty = floor(equity * riskPerTrade / stopDistance)
//
// clamped to [0, maxPositionSize]. A non-positive stop distance yields
// zero rather than an error.
func (pm *PositionManager) SizeForStopDistance(accountEquity, stopDistance decimal.Decimal) decimal.Decimal {
	if stopDistance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	riskAmount := accountEquity.Mul(decimal.NewFromFloat(pm.config.RiskPerTrade))
	qty := riskAmount.Div(stopDistance).Floor()

	maxQty := decimal.NewFromInt(int64(pm.config.MaxPositionSize))
	if qty.GreaterThan(maxQty) {
		qty = maxQty
	}
	if qty.LessThan(decimal.Zero) {
		qty = decimal.Zero
	}
	return qty
}

// OpenPosition records a new position with derived stop and target prices.
func (pm *PositionManager) OpenPosition(symbol string, entryPrice, qty decimal.Decimal, entryDate time.Time) types.Position {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	one := decimal.NewFromInt(1)
	pos := types.Position{
		Symbol:          symbol,
		EntryPrice:      entryPrice,
		EntryDate:       entryDate,
		Qty:             qty,
		StopLossPrice:   entryPrice.Mul(one.Sub(decimal.NewFromFloat(pm.config.StopLossPct))),
		TakeProfitPrice: entryPrice.Mul(one.Add(decimal.NewFromFloat(pm.config.TakeProfitPct))),
	}
	pm.open = append(pm.open, pos)
	return pos
}

// CanOpenPosition is the single admission gate evaluated before every
// new entry. It refuses when the concurrent-position limit is reached or
// when realized daily losses have tripped the circuit breaker.
func (pm *PositionManager) CanOpenPosition(accountEquity decimal.Decimal) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if len(pm.open) >= pm.config.MaxPositionsOpen {
		return false
	}

	maxLoss := accountEquity.Mul(decimal.NewFromFloat(pm.config.MaxDailyLossPct))
	return !pm.dailyPnL.LessThan(maxLoss.Neg())
}

// CheckPositionExit scans the symbol's position against stop and target.
// First match wins. The caller must poll; exits are not self-triggering.
func (pm *PositionManager) CheckPositionExit(symbol string, currentPrice decimal.Decimal) ExitReason {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, pos := range pm.open {
		if pos.Symbol != symbol {
			continue
		}
		if currentPrice.LessThanOrEqual(pos.StopLossPrice) {
			return ExitStopLoss
		}
		if currentPrice.GreaterThanOrEqual(pos.TakeProfitPrice) {
			return ExitTakeProfit
		}
	}
	return ExitNone
}

// ClosePosition realizes pnl into the daily accumulator and removes the
// symbol's position(s). Closing an already-closed symbol is a no-op.
func (pm *PositionManager) ClosePosition(symbol string, exitPrice decimal.Decimal) decimal.Decimal {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var realized decimal.Decimal
	kept := pm.open[:0]
	for _, pos := range pm.open {
		if pos.Symbol != symbol {
			kept = append(kept, pos)
			continue
		}
		pnl := exitPrice.Sub(pos.EntryPrice).Mul(pos.Qty)
		realized = realized.Add(pnl)
	}
	pm.open = kept
	pm.dailyPnL = pm.dailyPnL.Add(realized)
	return realized
}

// Position returns the tracked position for symbol, or false when flat.
func (pm *PositionManager) Position(symbol string) (types.Position, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, pos := range pm.open {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return types.Position{}, false
}

// NumOpenPositions returns the count of open positions.
func (pm *PositionManager) NumOpenPositions() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.open)
}

// DailyPnL returns realized pnl accumulated since the last rollover.
func (pm *PositionManager) DailyPnL() decimal.Decimal {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.dailyPnL
}

// ResetDailyPnL clears the circuit-breaker accumulator. Only an external
// daily-rollover trigger calls this; it never happens automatically.
func (pm *PositionManager) ResetDailyPnL() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.dailyPnL = decimal.Zero
}
