package journal

import (
	"database/sql"
	"fmt"

	// Drivers are selected by name at open time.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/quantmill/tradecore/pkg/id"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	side TEXT NOT NULL,
	qty TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	pnl TEXT NOT NULL,
	exit_reason TEXT NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_summaries (
	date TEXT NOT NULL,
	symbol TEXT NOT NULL,
	num_trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	net_pnl TEXT NOT NULL,
	PRIMARY KEY (date, symbol)
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_exit ON trades(symbol, exit_time);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	side TEXT NOT NULL,
	qty TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	pnl TEXT NOT NULL,
	exit_reason TEXT NOT NULL,
	entry_time TIMESTAMPTZ NOT NULL,
	exit_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_summaries (
	date TEXT NOT NULL,
	symbol TEXT NOT NULL,
	num_trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	net_pnl TEXT NOT NULL,
	PRIMARY KEY (date, symbol)
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_exit ON trades(symbol, exit_time);
`

// SQLJournal stores trades in a relational database. The "sqlite3" and
// "postgres" drivers are supported; prices are stored as decimal
// strings so no precision is lost to REAL columns.
type SQLJournal struct {
	logger *zap.Logger
	db     *sql.DB
	driver string
}

// NewSQL opens (or creates) the journal database. driver must be
// "sqlite3" or "postgres"; dsn follows the driver's conventions.
func NewSQL(logger *zap.Logger, driver, dsn string) (*SQLJournal, error) {
	var schema string
	switch driver {
	case "sqlite3":
		schema = sqliteSchema
	case "postgres":
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	return &SQLJournal{
		logger: logger.Named("journal"),
		db:     db,
		driver: driver,
	}, nil
}

// bind rewrites ?-style placeholders for drivers that number them.
func (j *SQLJournal) bind(query string) string {
	if j.driver != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// RecordTrade implements TradeLogger. A missing record ID is assigned a
// fresh ULID so rows are always uniquely keyed.
func (j *SQLJournal) RecordTrade(record TradeRecord) error {
	if record.ID == "" {
		record.ID = id.New()
	}

	_, err := j.db.Exec(j.bind(`
		INSERT INTO trades
		(id, symbol, strategy, side, qty, entry_price, exit_price, pnl, exit_reason, entry_time, exit_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		record.ID, record.Symbol, record.Strategy, record.Side,
		record.Qty.String(), record.EntryPrice.String(), record.ExitPrice.String(),
		record.PnL.String(), record.ExitReason, record.EntryTime, record.ExitTime,
	)
	if err != nil {
		return fmt.Errorf("journal: insert trade %s: %w", record.ID, err)
	}
	return nil
}

// RecordDailySummary implements TradeLogger, replacing any existing row
// for the same date and symbol.
func (j *SQLJournal) RecordDailySummary(summary DailySummary) error {
	_, err := j.db.Exec(j.bind(`
		INSERT INTO daily_summaries (date, symbol, num_trades, wins, losses, net_pnl)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, symbol) DO UPDATE SET
			num_trades = excluded.num_trades,
			wins = excluded.wins,
			losses = excluded.losses,
			net_pnl = excluded.net_pnl`),
		summary.Date, summary.Symbol, summary.NumTrades,
		summary.Wins, summary.Losses, summary.NetPnL.String(),
	)
	if err != nil {
		return fmt.Errorf("journal: upsert summary %s/%s: %w", summary.Date, summary.Symbol, err)
	}
	return nil
}

// TradesForSymbol returns the journaled trades for a symbol in exit
// order, oldest first.
func (j *SQLJournal) TradesForSymbol(symbol string) ([]TradeRecord, error) {
	rows, err := j.db.Query(j.bind(`
		SELECT id, symbol, strategy, side, qty, entry_price, exit_price, pnl, exit_reason, entry_time, exit_time
		FROM trades WHERE symbol = ? ORDER BY exit_time ASC`), symbol)
	if err != nil {
		return nil, fmt.Errorf("journal: query trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var r TradeRecord
		var qty, entry, exit, pnl string
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Strategy, &r.Side, &qty,
			&entry, &exit, &pnl, &r.ExitReason, &r.EntryTime, &r.ExitTime); err != nil {
			return nil, fmt.Errorf("journal: scan trade: %w", err)
		}
		if r.Qty, err = decimalFromStore(qty); err != nil {
			return nil, err
		}
		if r.EntryPrice, err = decimalFromStore(entry); err != nil {
			return nil, err
		}
		if r.ExitPrice, err = decimalFromStore(exit); err != nil {
			return nil, err
		}
		if r.PnL, err = decimalFromStore(pnl); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements TradeLogger.
func (j *SQLJournal) Close() error {
	return j.db.Close()
}

func decimalFromStore(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("journal: parse decimal %q: %w", s, err)
	}
	return d, nil
}
