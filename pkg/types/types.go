// Package types provides shared type definitions for the trading core.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a strategy's verdict for the most recent bar window.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// AssetType distinguishes market-hours handling.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetCrypto AssetType = "crypto"
)

// Timeframe represents bar timeframes.
type Timeframe string

const (
	Timeframe1m Timeframe = "1Min"
	Timeframe1h Timeframe = "1Hour"
	Timeframe1d Timeframe = "1Day"
)

// Bar is a single OHLCV sample for a fixed timeframe.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Position is an open long position tracked by a position manager.
type Position struct {
	Symbol          string          `json:"symbol"`
	EntryPrice      decimal.Decimal `json:"entryPrice"`
	EntryDate       time.Time       `json:"entryDate"`
	Qty             decimal.Decimal `json:"qty"`
	StopLossPrice   decimal.Decimal `json:"stopLossPrice"`
	TakeProfitPrice decimal.Decimal `json:"takeProfitPrice"`
}

// Trade is a completed round trip. Immutable once recorded.
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	Qty        decimal.Decimal `json:"qty"`
	EntryTime  time.Time       `json:"entryTime"`
	ExitTime   time.Time       `json:"exitTime"`
	PnL        decimal.Decimal `json:"pnl"`
	Commission decimal.Decimal `json:"commission"`
	Slippage   decimal.Decimal `json:"slippage"`
	ExitReason string          `json:"exitReason"`
}

// PnLPercent returns the trade's return relative to its entry notional.
func (t Trade) PnLPercent() decimal.Decimal {
	if t.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return t.ExitPrice.Sub(t.EntryPrice).Div(t.EntryPrice).Mul(decimal.NewFromInt(100))
}

// EquityPoint is one mark-to-market sample of total equity.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
}

// IsCryptoSymbol reports whether a symbol denotes a crypto pair.
// Crypto pairs are quoted either with a slash ("BTC/USD") or a
// concatenated USD suffix ("BTCUSD").
func IsCryptoSymbol(symbol string) bool {
	return strings.Contains(symbol, "/") || strings.Contains(symbol, "USD")
}

// NormalizeSymbol strips path-hostile characters for use in filenames
// and broker position lookups ("BTC/USD" -> "BTCUSD").
func NormalizeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
