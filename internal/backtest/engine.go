// Package backtest replays historical bars through a strategy and the
// risk engine's friction model, producing a derived-metrics result.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/quantmill/tradecore/internal/marketdata"
	"github.com/quantmill/tradecore/internal/strategy"
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WarmupBars is the fixed number of leading bars excluded from trading
// decisions while indicators stabilize. Policy constant, not data-derived.
const WarmupBars = 20

// Config parameterizes a backtest run.
type Config struct {
	StartingCash        decimal.Decimal `json:"startingCash"`
	RiskPerTrade        float64         `json:"riskPerTrade"`        // entry notional as fraction of cash
	SlippagePct         float64         `json:"slippagePct"`         // execution price deviation
	CryptoCommissionPct float64         `json:"cryptoCommissionPct"` // fraction of notional per crypto fill
	StockCommission     decimal.Decimal `json:"stockCommission"`     // fixed per stock trade
}

// DefaultConfig mirrors the friction defaults used across strategy
// comparison runs: 5 bps slippage, 25 bps crypto commission, free stock
// trades, $100k starting cash.
func DefaultConfig() Config {
	return Config{
		StartingCash:        decimal.NewFromInt(100000),
		RiskPerTrade:        0.02,
		SlippagePct:         0.0005,
		CryptoCommissionPct: 0.0025,
		StockCommission:     decimal.Zero,
	}
}

// Engine is the deterministic bar-replay state machine. It is fully
// synchronous; re-running with identical bars, strategy, and config
// produces an identical trade ledger.
type Engine struct {
	logger *zap.Logger
	config Config
	strat  strategy.Strategy
}

// NewEngine creates a backtest engine.
func NewEngine(logger *zap.Logger, config Config, strat strategy.Strategy) (*Engine, error) {
	if config.StartingCash.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("backtest: starting cash %s must be positive", config.StartingCash)
	}
	if config.RiskPerTrade <= 0 || config.RiskPerTrade > 1 {
		return nil, fmt.Errorf("backtest: riskPerTrade %v must be in (0, 1]", config.RiskPerTrade)
	}
	return &Engine{
		logger: logger.Named("backtest"),
		config: config,
		strat:  strat,
	}, nil
}

// Run fetches history from the provider and replays it. Empty or missing
// data yields the empty-result sentinel rather than an error, so batch
// runs over many symbols continue uninterrupted.
func (e *Engine) Run(ctx context.Context, provider marketdata.Provider, symbol string, timeframe types.Timeframe, daysBack int) (*Result, error) {
	bars, err := provider.GetBars(ctx, symbol, timeframe, 1000, daysBack)
	if err != nil {
		e.logger.Warn("no data for backtest",
			zap.String("symbol", symbol),
			zap.Error(err))
		return newEmptyResult(symbol, e.config.StartingCash), nil
	}
	return e.RunBars(symbol, bars), nil
}

// RunBars replays an already-fetched, ascending bar series.
func (e *Engine) RunBars(symbol string, bars []types.Bar) *Result {
	if len(bars) == 0 {
		return newEmptyResult(symbol, e.config.StartingCash)
	}

	result := &Result{
		Symbol:        symbol,
		StartingCash:  e.config.StartingCash,
		BarsProcessed: len(bars),
	}

	cash := e.config.StartingCash
	var pos openLot
	holding := false

	one := decimal.NewFromInt(1)
	slipUp := one.Add(decimal.NewFromFloat(e.config.SlippagePct))
	slipDown := one.Sub(decimal.NewFromFloat(e.config.SlippagePct))
	risk := decimal.NewFromFloat(e.config.RiskPerTrade)

	for i, bar := range bars {
		price := bar.Close

		if i >= WarmupBars {
			signal := e.strat.EvaluateSignal(bars[:i+1])

			switch {
			case signal == types.SignalBuy && !holding:
				fill := price.Mul(slipUp)
				qty := cash.Mul(risk).Div(price)
				qty, cost, commission := e.capToCash(symbol, qty, fill, cash)
				if qty.GreaterThan(decimal.Zero) {
					cash = cash.Sub(cost)
					pos = openLot{
						qty:        qty,
						fillPrice:  fill,
						entryTime:  bar.Timestamp,
						commission: commission,
						slippage:   fill.Sub(price).Mul(qty),
					}
					holding = true
				}

			case signal == types.SignalSell && holding:
				cash = e.closeLot(result, symbol, &pos, price, slipDown, "signal", bar, cash)
				holding = false
			}
		}

		equity := cash
		if holding {
			equity = equity.Add(pos.qty.Mul(price))
		}
		result.EquityCurve = append(result.EquityCurve, types.EquityPoint{
			Timestamp: bar.Timestamp,
			Equity:    equity,
		})
	}

	// Every run ends flat: force-close at the final close with the
	// normal sell friction model.
	if holding {
		last := bars[len(bars)-1]
		cash = e.closeLot(result, symbol, &pos, last.Close, slipDown, "end_of_data", last, cash)
		result.EquityCurve[len(result.EquityCurve)-1].Equity = cash
	}

	result.FinalCash = cash
	return result
}

// openLot is the engine's single tracked long position.
type openLot struct {
	qty        decimal.Decimal
	fillPrice  decimal.Decimal
	entryTime  time.Time
	commission decimal.Decimal
	slippage   decimal.Decimal
}

// capToCash scales a buy down so total cost never exceeds available
// cash. Crypto commission scales with notional, so the cap solves for
// qty at per-unit cost; stock commission is fixed and comes off the
// notional budget first.
func (e *Engine) capToCash(symbol string, qty, fill, cash decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	one := decimal.NewFromInt(1)

	if types.IsCryptoSymbol(symbol) {
		rate := decimal.NewFromFloat(e.config.CryptoCommissionPct)
		perUnit := fill.Mul(one.Add(rate))
		cost := qty.Mul(perUnit)
		if cost.GreaterThan(cash) {
			qty = cash.Div(perUnit)
			cost = cash
		}
		return qty, cost, qty.Mul(fill).Mul(rate)
	}

	commission := e.config.StockCommission
	cost := qty.Mul(fill).Add(commission)
	if cost.GreaterThan(cash) {
		budget := cash.Sub(commission)
		if budget.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, decimal.Zero, decimal.Zero
		}
		qty = budget.Div(fill)
		cost = cash
	}
	return qty, cost, commission
}

// commissionFor returns the sell-side commission for a fill notional.
func (e *Engine) commissionFor(symbol string, notional decimal.Decimal) decimal.Decimal {
	if types.IsCryptoSymbol(symbol) {
		return notional.Mul(decimal.NewFromFloat(e.config.CryptoCommissionPct))
	}
	return e.config.StockCommission
}

// closeLot realizes the open lot at price with sell-side slippage,
// appends the Trade, and returns the updated cash balance.
func (e *Engine) closeLot(result *Result, symbol string, pos *openLot, price, slipDown decimal.Decimal, reason string, bar types.Bar, cash decimal.Decimal) decimal.Decimal {
	fill := price.Mul(slipDown)
	notional := pos.qty.Mul(fill)
	commission := e.commissionFor(symbol, notional)
	cash = cash.Add(notional).Sub(commission)

	trade := types.Trade{
		ID:         fmt.Sprintf("%s-%d", types.NormalizeSymbol(symbol), len(result.Trades)+1),
		Symbol:     symbol,
		EntryPrice: pos.fillPrice,
		ExitPrice:  fill,
		Qty:        pos.qty,
		EntryTime:  pos.entryTime,
		ExitTime:   bar.Timestamp,
		PnL:        fill.Sub(pos.fillPrice).Mul(pos.qty),
		Commission: pos.commission.Add(commission),
		Slippage:   pos.slippage.Add(price.Sub(fill).Mul(pos.qty)),
		ExitReason: reason,
	}
	result.Trades = append(result.Trades, trade)
	*pos = openLot{}
	return cash
}
