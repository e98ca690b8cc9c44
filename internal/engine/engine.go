// Package engine runs registered strategies against live market data,
// routing entries and exits through a broker and recording completed
// trades in the journal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantmill/tradecore/internal/broker"
	"github.com/quantmill/tradecore/internal/journal"
	"github.com/quantmill/tradecore/internal/marketdata"
	"github.com/quantmill/tradecore/internal/risk"
	"github.com/quantmill/tradecore/internal/schedule"
	"github.com/quantmill/tradecore/pkg/id"
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine error taxonomy. Callers match with errors.Is.
var (
	ErrConfiguration   = errors.New("engine configuration error")
	ErrDataUnavailable = errors.New("market data unavailable")
	ErrOrderTimeout    = errors.New("order fill timeout")
)

// minBarsForSignal is the minimum history handed to a strategy. Shorter
// windows are skipped, not errored; data usually catches up.
const minBarsForSignal = 20

// stopJoinTimeout bounds how long Stop waits for the loop to exit.
const stopJoinTimeout = 5 * time.Second

// Config holds engine timing parameters.
type Config struct {
	TickInterval time.Duration
	FillTimeout  time.Duration
	FillInterval time.Duration
}

// DefaultConfig returns production timing: 1s scheduler tick, fills
// polled every second for up to 30 seconds.
func DefaultConfig() Config {
	return Config{
		TickInterval: 1 * time.Second,
		FillTimeout:  defaultFillTimeout,
		FillInterval: defaultFillInterval,
	}
}

// strategyRuntime is the loop-owned state for one registered strategy.
type strategyRuntime struct {
	cfg     StrategyConfig
	pm      *risk.PositionManager
	enabled bool
	lastRun time.Time

	trades int
	wins   int
	losses int
	netPnL decimal.Decimal
}

// TradingEngine multiplexes strategies over a single scheduler loop.
// The loop goroutine is the sole writer of the strategy registry;
// external calls are funneled through a command channel while the
// engine runs, so per-strategy state needs no locking.
type TradingEngine struct {
	logger   *zap.Logger
	broker   broker.Broker
	provider marketdata.Provider
	journal  journal.TradeLogger

	tickInterval time.Duration
	fillTimeout  time.Duration
	fillInterval time.Duration

	onTrade func(journal.TradeRecord)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	cmds     chan func()

	registry   map[string]*strategyRuntime
	currentDay string
}

// New creates a trading engine. A nil trade logger disables journaling.
func New(logger *zap.Logger, cfg Config, b broker.Broker, provider marketdata.Provider, tradeLog journal.TradeLogger) *TradingEngine {
	if tradeLog == nil {
		tradeLog = journal.Nop{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = defaultFillTimeout
	}
	if cfg.FillInterval <= 0 {
		cfg.FillInterval = defaultFillInterval
	}
	return &TradingEngine{
		logger:       logger.Named("engine"),
		broker:       b,
		provider:     provider,
		journal:      tradeLog,
		tickInterval: cfg.TickInterval,
		fillTimeout:  cfg.FillTimeout,
		fillInterval: cfg.FillInterval,
		cmds:         make(chan func(), 16),
		registry:     make(map[string]*strategyRuntime),
	}
}

// SetOnTrade installs a callback invoked after every completed trade.
// Must be called before Start.
func (e *TradingEngine) SetOnTrade(fn func(journal.TradeRecord)) {
	e.onTrade = fn
}

// RegisterStrategy adds (or replaces) a strategy binding. Safe to call
// while the engine is running.
func (e *TradingEngine) RegisterStrategy(cfg StrategyConfig) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	pm, err := risk.NewPositionManager(cfg.Risk)
	if err != nil {
		return fmt.Errorf("%w: strategy %q: %v", ErrConfiguration, cfg.Name, err)
	}

	e.dispatch(func() {
		e.registry[cfg.Name] = &strategyRuntime{cfg: cfg, pm: pm, enabled: true}
		e.logger.Info("strategy registered",
			zap.String("strategy", cfg.Name),
			zap.String("symbol", cfg.Symbol),
			zap.String("asset_type", string(cfg.AssetType)))
	})
	return nil
}

// RemoveStrategy unregisters a strategy by name. Unknown names are a
// no-op.
func (e *TradingEngine) RemoveStrategy(name string) {
	e.dispatch(func() {
		delete(e.registry, name)
	})
}

// SetStrategyEnabled pauses or resumes scheduling for one strategy
// without unregistering it. Disabled strategies keep their positions
// and risk state; they are simply skipped each tick.
func (e *TradingEngine) SetStrategyEnabled(name string, enabled bool) {
	e.dispatch(func() {
		rt, ok := e.registry[name]
		if !ok {
			return
		}
		if rt.enabled != enabled {
			rt.enabled = enabled
			e.logger.Info("strategy toggled",
				zap.String("strategy", name),
				zap.Bool("enabled", enabled))
		}
	})
}

// ResetDaily flushes each strategy's daily summary to the journal and
// clears the daily-loss accumulators. Normally driven by the engine's
// own day rollover; exposed for operational use.
func (e *TradingEngine) ResetDaily() {
	e.dispatch(func() {
		day := e.currentDay
		if day == "" {
			day = time.Now().Format("2006-01-02")
		}
		e.flushDaily(day)
	})
}

// dispatch runs fn on the loop goroutine while running, or directly
// under the lock while stopped.
func (e *TradingEngine) dispatch(fn func()) {
	e.mu.Lock()
	running := e.running
	stop := e.stopChan
	e.mu.Unlock()

	if !running {
		e.mu.Lock()
		fn()
		e.mu.Unlock()
		return
	}
	select {
	case e.cmds <- fn:
	case <-stop:
		e.mu.Lock()
		fn()
		e.mu.Unlock()
	}
}

// dispatchSync is dispatch that waits for fn to complete.
func (e *TradingEngine) dispatchSync(fn func()) {
	done := make(chan struct{})
	e.dispatch(func() {
		fn()
		close(done)
	})
	<-done
}

// StrategyStatus is a point-in-time view of one strategy's state.
type StrategyStatus struct {
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	AssetType     types.AssetType `json:"assetType"`
	Enabled       bool            `json:"enabled"`
	LastRun       time.Time       `json:"lastRun"`
	OpenPositions int             `json:"openPositions"`
	TradesToday   int             `json:"tradesToday"`
	DailyPnL      decimal.Decimal `json:"dailyPnl"`
}

// Status is the engine-wide snapshot served by the status endpoint.
type Status struct {
	Running    bool             `json:"running"`
	Strategies []StrategyStatus `json:"strategies"`
}

// Status returns a consistent snapshot of all strategies.
func (e *TradingEngine) Status() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	var out Status
	e.dispatchSync(func() {
		out.Running = running
		for _, rt := range e.registry {
			out.Strategies = append(out.Strategies, StrategyStatus{
				Name:          rt.cfg.Name,
				Symbol:        rt.cfg.Symbol,
				AssetType:     rt.cfg.AssetType,
				Enabled:       rt.enabled,
				LastRun:       rt.lastRun,
				OpenPositions: rt.pm.NumOpenPositions(),
				TradesToday:   rt.trades,
				DailyPnL:      rt.pm.DailyPnL(),
			})
		}
	})
	sort.Slice(out.Strategies, func(i, j int) bool {
		return out.Strategies[i].Name < out.Strategies[j].Name
	})
	return out
}

// Start launches the scheduler loop. Starting a running engine logs a
// notice and returns without error.
func (e *TradingEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.logger.Info("engine already running")
		return nil
	}

	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	e.running = true
	go e.loop(e.stopChan, e.doneChan)

	e.logger.Info("engine started",
		zap.Duration("tick_interval", e.tickInterval),
		zap.Int("strategies", len(e.registry)))
	return nil
}

// Stop signals the loop and waits up to stopJoinTimeout for it to
// drain. Stopping a stopped engine logs a notice and returns nil.
func (e *TradingEngine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		e.logger.Info("engine already stopped")
		return nil
	}
	stop, done := e.stopChan, e.doneChan
	e.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		e.logger.Warn("engine loop did not exit in time",
			zap.Duration("timeout", stopJoinTimeout))
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	e.logger.Info("engine stopped")
	return nil
}

func (e *TradingEngine) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case fn := <-e.cmds:
			fn()
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

// tick runs the day rollover and then every registered strategy. A
// failing or panicking strategy is logged and skipped; it never takes
// down its siblings or the loop.
func (e *TradingEngine) tick(now time.Time) {
	ticksTotal.Inc()
	e.rolloverIfNewDay(now)

	open := 0
	for _, rt := range e.registry {
		if rt.enabled {
			if err := e.safeRunCycle(rt, now); err != nil {
				e.logger.Error("strategy cycle failed",
					zap.String("strategy", rt.cfg.Name),
					zap.String("symbol", rt.cfg.Symbol),
					zap.Error(err))
			}
		}
		open += rt.pm.NumOpenPositions()
	}
	openPositions.Set(float64(open))
}

// safeRunCycle contains strategy panics at the cycle boundary.
func (e *TradingEngine) safeRunCycle(rt *strategyRuntime, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return e.runCycle(rt, now)
}

// rolloverIfNewDay writes each strategy's daily summary and resets the
// loss circuit breakers when the calendar day changes.
func (e *TradingEngine) rolloverIfNewDay(now time.Time) {
	day := now.Format("2006-01-02")
	if e.currentDay == "" {
		e.currentDay = day
		return
	}
	if day == e.currentDay {
		return
	}

	e.flushDaily(e.currentDay)
	e.logger.Info("daily rollover",
		zap.String("from", e.currentDay),
		zap.String("to", day))
	e.currentDay = day
}

// flushDaily writes each strategy's summary for the given day and
// resets the counters and loss breakers.
func (e *TradingEngine) flushDaily(day string) {
	for _, rt := range e.registry {
		summary := journal.DailySummary{
			Date:      day,
			Symbol:    rt.cfg.Symbol,
			NumTrades: rt.trades,
			Wins:      rt.wins,
			Losses:    rt.losses,
			NetPnL:    rt.netPnL,
		}
		if err := e.journal.RecordDailySummary(summary); err != nil {
			e.logger.Error("daily summary write failed",
				zap.String("strategy", rt.cfg.Name),
				zap.Error(err))
		}
		rt.pm.ResetDailyPnL()
		rt.trades, rt.wins, rt.losses = 0, 0, 0
		rt.netPnL = decimal.Zero
	}
}

// runCycle executes one scheduling decision for a strategy: admission
// by market hours and interval, then exit checks, then signal handling.
func (e *TradingEngine) runCycle(rt *strategyRuntime, now time.Time) error {
	due, err := schedule.ShouldRun(rt.cfg.AssetType, rt.lastRun, rt.cfg.Interval, now)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}
	// The attempt counts against the interval whether or not it
	// succeeds, so a persistent upstream failure retries at the
	// configured cadence instead of every tick.
	defer func() { rt.lastRun = now }()
	cyclesTotal.WithLabelValues(rt.cfg.Name).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), e.fillTimeout+30*time.Second)
	defer cancel()

	symbol := rt.cfg.Symbol
	bars, err := e.provider.GetBars(ctx, symbol, rt.cfg.Timeframe, 200, 7)
	if err != nil {
		cyclesSkipped.WithLabelValues(rt.cfg.Name, "no_data").Inc()
		return fmt.Errorf("%w: bars for %s: %v", ErrDataUnavailable, symbol, err)
	}
	if len(bars) < minBarsForSignal {
		cyclesSkipped.WithLabelValues(rt.cfg.Name, "short_history").Inc()
		e.logger.Debug("insufficient history, skipping",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)))
		return nil
	}

	price, err := e.provider.GetLatestPrice(ctx, symbol)
	if err != nil {
		// Stale-but-recent beats nothing for exit checks.
		price = bars[len(bars)-1].Close
	}

	if pos, held := rt.pm.Position(symbol); held {
		if reason := rt.pm.CheckPositionExit(symbol, price); reason != risk.ExitNone {
			return e.closeCycle(ctx, rt, pos, price, string(reason), now)
		}
	}

	switch rt.cfg.Strategy.EvaluateSignal(bars) {
	case types.SignalBuy:
		if _, held := rt.pm.Position(symbol); !held {
			return e.buyCycle(ctx, rt, price, now)
		}
	case types.SignalSell:
		if pos, held := rt.pm.Position(symbol); held {
			return e.closeCycle(ctx, rt, pos, price, "signal", now)
		}
	}
	return nil
}

// buyCycle sizes, submits, and reconciles an entry order.
func (e *TradingEngine) buyCycle(ctx context.Context, rt *strategyRuntime, price decimal.Decimal, now time.Time) error {
	symbol := rt.cfg.Symbol

	account, err := e.broker.GetAccountSummary(ctx)
	if err != nil {
		return fmt.Errorf("account summary: %w", err)
	}
	if !rt.pm.CanOpenPosition(account.PortfolioValue) {
		e.logger.Debug("entry refused by risk gate",
			zap.String("strategy", rt.cfg.Name),
			zap.String("daily_pnl", rt.pm.DailyPnL().String()))
		return nil
	}

	qty := rt.pm.SizeForEntry(account.PortfolioValue, price)
	if cost := qty.Mul(price); cost.GreaterThan(account.Cash) {
		qty = account.Cash.Div(price)
		if rt.cfg.AssetType == types.AssetStock {
			qty = qty.Floor()
		}
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	qtyBefore := decimal.Zero
	if types.IsCryptoSymbol(symbol) {
		if qtyBefore, err = e.positionQty(ctx, symbol); err != nil {
			e.logger.Warn("pre-order position lookup failed",
				zap.String("symbol", symbol),
				zap.Error(err))
			qtyBefore = decimal.Zero
		}
	}

	order, err := e.broker.Buy(ctx, symbol, qty)
	if err != nil {
		return fmt.Errorf("buy %s: %w", symbol, err)
	}

	f, err := e.awaitFill(ctx, order, symbol, broker.SideBuy, qtyBefore)
	if err != nil {
		return err
	}
	if f.qty.LessThanOrEqual(decimal.Zero) {
		// Nothing confirmed filled (timed-out order still pending).
		// Tracking a position of unknown size is worse than missing
		// one; the next cycle re-evaluates from broker state.
		e.logger.Warn("no confirmed fill, position not tracked",
			zap.String("strategy", rt.cfg.Name),
			zap.String("symbol", symbol),
			zap.String("order_id", order.ID))
		return nil
	}
	if f.price.IsZero() {
		f.price = price
	}

	pos := rt.pm.OpenPosition(symbol, f.price, f.qty, now)
	e.logger.Info("position opened",
		zap.String("strategy", rt.cfg.Name),
		zap.String("symbol", symbol),
		zap.String("qty", f.qty.String()),
		zap.String("fill_price", f.price.String()),
		zap.String("stop", pos.StopLossPrice.String()),
		zap.String("target", pos.TakeProfitPrice.String()))
	return nil
}

// closeCycle liquidates the strategy's position, realizes pnl, and
// journals the round trip.
func (e *TradingEngine) closeCycle(ctx context.Context, rt *strategyRuntime, pos types.Position, price decimal.Decimal, reason string, now time.Time) error {
	symbol := rt.cfg.Symbol

	qtyBefore := decimal.Zero
	if types.IsCryptoSymbol(symbol) {
		qb, err := e.positionQty(ctx, symbol)
		if err != nil {
			e.logger.Warn("pre-order position lookup failed",
				zap.String("symbol", symbol),
				zap.Error(err))
		} else {
			qtyBefore = qb
		}
	}

	order, err := e.broker.Sell(ctx, symbol, pos.Qty)
	if err != nil {
		return fmt.Errorf("sell %s: %w", symbol, err)
	}
	f, err := e.awaitFill(ctx, order, symbol, broker.SideSell, qtyBefore)
	if err != nil {
		return err
	}
	if f.price.IsZero() {
		f.price = price
	}

	realized := rt.pm.ClosePosition(symbol, f.price)
	rt.trades++
	if realized.GreaterThan(decimal.Zero) {
		rt.wins++
	} else if realized.LessThan(decimal.Zero) {
		rt.losses++
	}
	rt.netPnL = rt.netPnL.Add(realized)

	record := journal.TradeRecord{
		ID:         id.New(),
		Symbol:     symbol,
		Strategy:   rt.cfg.Name,
		Side:       broker.SideSell,
		Qty:        pos.Qty,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  f.price,
		PnL:        realized,
		ExitReason: reason,
		EntryTime:  pos.EntryDate,
		ExitTime:   now,
	}
	// Journaling failures must never abort trading.
	if err := e.journal.RecordTrade(record); err != nil {
		e.logger.Error("trade journal write failed",
			zap.String("trade_id", record.ID),
			zap.Error(err))
	}
	if e.onTrade != nil {
		e.onTrade(record)
	}

	e.logger.Info("position closed",
		zap.String("strategy", rt.cfg.Name),
		zap.String("symbol", symbol),
		zap.String("exit_reason", reason),
		zap.String("pnl", realized.String()))
	return nil
}
