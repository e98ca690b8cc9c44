package backtest

import (
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
)

// Result is the full output of a backtest run: the realized trade
// ledger, the per-bar equity curve, and the final cash balance. All
// performance metrics are derived on demand from these.
type Result struct {
	Symbol        string              `json:"symbol"`
	StartingCash  decimal.Decimal     `json:"startingCash"`
	FinalCash     decimal.Decimal     `json:"finalCash"`
	BarsProcessed int                 `json:"barsProcessed"`
	Trades        []types.Trade       `json:"trades"`
	EquityCurve   []types.EquityPoint `json:"equityCurve"`
}

// newEmptyResult is the sentinel for runs with no usable data. Every
// metric on it evaluates to zero.
func newEmptyResult(symbol string, startingCash decimal.Decimal) *Result {
	return &Result{
		Symbol:       symbol,
		StartingCash: startingCash,
		FinalCash:    startingCash,
	}
}

// IsEmpty reports whether the run processed no bars.
func (r *Result) IsEmpty() bool {
	return r.BarsProcessed == 0
}

// TotalTrades is the number of completed round trips.
func (r *Result) TotalTrades() int {
	return len(r.Trades)
}

// TotalPnL sums realized trade PnL, before commissions.
func (r *Result) TotalPnL() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Trades {
		total = total.Add(t.PnL)
	}
	return total
}

// TotalCommission sums commissions across all trades.
func (r *Result) TotalCommission() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Trades {
		total = total.Add(t.Commission)
	}
	return total
}

// TotalSlippage sums slippage cost across all trades.
func (r *Result) TotalSlippage() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Trades {
		total = total.Add(t.Slippage)
	}
	return total
}

// NumWins counts trades with positive PnL.
func (r *Result) NumWins() int {
	n := 0
	for _, t := range r.Trades {
		if t.PnL.GreaterThan(decimal.Zero) {
			n++
		}
	}
	return n
}

// NumLosses counts trades with negative PnL.
func (r *Result) NumLosses() int {
	n := 0
	for _, t := range r.Trades {
		if t.PnL.LessThan(decimal.Zero) {
			n++
		}
	}
	return n
}

// WinRate is winning trades over total trades; 0.0 when no trades
// completed, never a division error.
func (r *Result) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0.0
	}
	return float64(r.NumWins()) / float64(len(r.Trades))
}

// AvgWin is the mean PnL of winning trades, zero if there are none.
func (r *Result) AvgWin() decimal.Decimal {
	total, n := decimal.Zero, 0
	for _, t := range r.Trades {
		if t.PnL.GreaterThan(decimal.Zero) {
			total = total.Add(t.PnL)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n)))
}

// AvgLoss is the mean PnL of losing trades, zero if there are none.
func (r *Result) AvgLoss() decimal.Decimal {
	total, n := decimal.Zero, 0
	for _, t := range r.Trades {
		if t.PnL.LessThan(decimal.Zero) {
			total = total.Add(t.PnL)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n)))
}

// FinalEquity is the last point of the equity curve, or starting cash
// for an empty run.
func (r *Result) FinalEquity() decimal.Decimal {
	if len(r.EquityCurve) == 0 {
		return r.StartingCash
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Equity
}

// ReturnPct is total pnl as a percentage of starting cash.
func (r *Result) ReturnPct() decimal.Decimal {
	if r.StartingCash.IsZero() {
		return decimal.Zero
	}
	return r.TotalPnL().Div(r.StartingCash).Mul(decimal.NewFromInt(100))
}

// MaxDrawdown is the largest peak-to-trough equity decline as a
// fraction of the running peak. A monotonically rising curve yields 0.
func (r *Result) MaxDrawdown() decimal.Decimal {
	maxDD := decimal.Zero
	peak := decimal.Zero
	for _, p := range r.EquityCurve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(p.Equity).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}

// Summary flattens the derived metrics into a report map, ready for
// JSON serialization or console rendering.
func (r *Result) Summary() map[string]interface{} {
	winRate := decimal.NewFromFloat(r.WinRate())
	return map[string]interface{}{
		"symbol":           r.Symbol,
		"bars_processed":   r.BarsProcessed,
		"starting_cash":    r.StartingCash,
		"final_equity":     r.FinalEquity(),
		"return_pct":       r.ReturnPct(),
		"total_trades":     r.TotalTrades(),
		"wins":             r.NumWins(),
		"losses":           r.NumLosses(),
		"win_rate":         winRate,
		"avg_win":          r.AvgWin(),
		"avg_loss":         r.AvgLoss(),
		"total_pnl":        r.TotalPnL(),
		"total_commission": r.TotalCommission(),
		"total_slippage":   r.TotalSlippage(),
		"max_drawdown":     r.MaxDrawdown(),
	}
}
