package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantmill/tradecore/internal/risk"
	"github.com/quantmill/tradecore/internal/strategy"
	"github.com/quantmill/tradecore/pkg/types"
)

// StrategyConfig binds a strategy implementation to a symbol with its
// own schedule and risk parameters. Registered configs are keyed by
// Name; registering the same name twice replaces the earlier binding.
type StrategyConfig struct {
	Name      string
	Symbol    string
	AssetType types.AssetType
	Timeframe types.Timeframe
	Interval  time.Duration
	Risk      risk.Config
	Strategy  strategy.Strategy
}

// Validate rejects configs the engine cannot schedule or size.
func (c StrategyConfig) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: strategy name required", ErrConfiguration)
	case c.Symbol == "":
		return fmt.Errorf("%w: symbol required for strategy %q", ErrConfiguration, c.Name)
	case c.AssetType != types.AssetStock && c.AssetType != types.AssetCrypto:
		return fmt.Errorf("%w: strategy %q has unknown asset type %q", ErrConfiguration, c.Name, c.AssetType)
	case c.Interval <= 0:
		return fmt.Errorf("%w: strategy %q needs a positive interval", ErrConfiguration, c.Name)
	case c.Strategy == nil:
		return fmt.Errorf("%w: strategy %q has no implementation", ErrConfiguration, c.Name)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("%w: strategy %q: %v", ErrConfiguration, c.Name, err)
	}
	return nil
}

// withDefaults fills optional fields. An unnamed config is keyed by
// its symbol and asset type, so one symbol can carry both a stock and
// a crypto binding without clashing.
func (c StrategyConfig) withDefaults() StrategyConfig {
	if c.Name == "" && c.Symbol != "" {
		c.Name = fmt.Sprintf("%s_%s",
			strings.ToLower(types.NormalizeSymbol(c.Symbol)), c.AssetType)
	}
	if c.Timeframe == "" {
		c.Timeframe = types.Timeframe1h
	}
	return c
}
