// Package journal persists executed trades and daily summaries. Two
// backends are provided: per-day CSV/JSON files for simple audits, and
// a SQL store (SQLite or Postgres) for queryable history.
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one executed round trip as written to the journal.
type TradeRecord struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Strategy   string          `json:"strategy"`
	Side       string          `json:"side"`
	Qty        decimal.Decimal `json:"qty"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	PnL        decimal.Decimal `json:"pnl"`
	ExitReason string          `json:"exitReason"`
	EntryTime  time.Time       `json:"entryTime"`
	ExitTime   time.Time       `json:"exitTime"`
}

// DailySummary aggregates one trading day for a symbol.
type DailySummary struct {
	Date      string          `json:"date"`
	Symbol    string          `json:"symbol"`
	NumTrades int             `json:"numTrades"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	NetPnL    decimal.Decimal `json:"netPnl"`
}

// TradeLogger is the journaling contract the engine writes through.
type TradeLogger interface {
	RecordTrade(record TradeRecord) error
	RecordDailySummary(summary DailySummary) error
	Close() error
}

// Nop discards everything. Used when journaling is disabled.
type Nop struct{}

// RecordTrade implements TradeLogger.
func (Nop) RecordTrade(TradeRecord) error { return nil }

// RecordDailySummary implements TradeLogger.
func (Nop) RecordDailySummary(DailySummary) error { return nil }

// Close implements TradeLogger.
func (Nop) Close() error { return nil }
