// Package risk provides risk-bounded position sizing and lifecycle tracking.
package risk

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a risk parameter fails validation.
// Construction-time failures wrap this error so callers can fail fast.
var ErrInvalidConfig = errors.New("invalid risk config")

// Config is the immutable risk-parameter bundle shared by a position
// manager and the components that gate on it.
type Config struct {
	RiskPerTrade     float64 `json:"riskPerTrade"`     // fraction of equity risked per trade
	StopLossPct      float64 `json:"stopLossPct"`      // stop distance as fraction of entry
	TakeProfitPct    float64 `json:"takeProfitPct"`    // target distance as fraction of entry
	MaxPositionSize  int     `json:"maxPositionSize"`  // max qty per trade
	MaxPositionsOpen int     `json:"maxPositionsOpen"` // max concurrent positions
	MaxDailyLossPct  float64 `json:"maxDailyLossPct"`  // daily realized-loss circuit breaker
}

// DefaultConfig returns conservative defaults: 2% risk per trade, 5% stop,
// 10% target, 100 shares max, 3 concurrent positions, 5% daily loss cap.
func DefaultConfig() Config {
	return Config{
		RiskPerTrade:     0.02,
		StopLossPct:      0.05,
		TakeProfitPct:    0.10,
		MaxPositionSize:  100,
		MaxPositionsOpen: 3,
		MaxDailyLossPct:  0.05,
	}
}

// Validate checks every parameter and reports the first violation.
func (c Config) Validate() error {
	switch {
	case c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1:
		return fmt.Errorf("%w: riskPerTrade %v must be in (0, 1)", ErrInvalidConfig, c.RiskPerTrade)
	case c.StopLossPct <= 0 || c.StopLossPct >= 1:
		return fmt.Errorf("%w: stopLossPct %v must be in (0, 1)", ErrInvalidConfig, c.StopLossPct)
	case c.TakeProfitPct <= 0 || c.TakeProfitPct >= 1:
		return fmt.Errorf("%w: takeProfitPct %v must be in (0, 1)", ErrInvalidConfig, c.TakeProfitPct)
	case c.MaxPositionSize <= 0:
		return fmt.Errorf("%w: maxPositionSize %d must be positive", ErrInvalidConfig, c.MaxPositionSize)
	case c.MaxPositionsOpen <= 0:
		return fmt.Errorf("%w: maxPositionsOpen %d must be positive", ErrInvalidConfig, c.MaxPositionsOpen)
	case c.MaxDailyLossPct <= 0 || c.MaxDailyLossPct >= 1:
		return fmt.Errorf("%w: maxDailyLossPct %v must be in (0, 1)", ErrInvalidConfig, c.MaxDailyLossPct)
	}
	return nil
}
