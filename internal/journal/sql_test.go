package journal

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteJournal(t *testing.T) *SQLJournal {
	t.Helper()
	j, err := NewSQL(zap.NewNop(), "sqlite3", filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLJournalUnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := NewSQL(zap.NewNop(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestSQLJournalTradeRoundTrip(t *testing.T) {
	t.Parallel()

	j := newSQLiteJournal(t)

	record := sampleRecord()
	require.NoError(t, j.RecordTrade(record))

	got, err := j.TradesForSymbol("BTC/USD")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, record.ID, got[0].ID)
	assert.Equal(t, record.Strategy, got[0].Strategy)
	assert.True(t, got[0].Qty.Equal(record.Qty))
	assert.True(t, got[0].EntryPrice.Equal(record.EntryPrice))
	assert.True(t, got[0].PnL.Equal(record.PnL))
	assert.Equal(t, record.ExitReason, got[0].ExitReason)
}

func TestSQLJournalAssignsMissingID(t *testing.T) {
	t.Parallel()

	j := newSQLiteJournal(t)

	record := sampleRecord()
	record.ID = ""
	require.NoError(t, j.RecordTrade(record))

	got, err := j.TradesForSymbol("BTC/USD")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID, "missing IDs are assigned, not stored blank")
}

func TestSQLJournalSummaryUpsert(t *testing.T) {
	t.Parallel()

	j := newSQLiteJournal(t)

	summary := DailySummary{
		Date: "2024-07-10", Symbol: "BTC/USD",
		NumTrades: 1, Wins: 1, NetPnL: decimal.NewFromInt(100),
	}
	require.NoError(t, j.RecordDailySummary(summary))

	summary.NumTrades = 4
	summary.NetPnL = decimal.NewFromInt(400)
	require.NoError(t, j.RecordDailySummary(summary), "same day replaces, not duplicates")
}

func TestSQLJournalBindPostgres(t *testing.T) {
	t.Parallel()

	j := &SQLJournal{driver: "postgres"}
	assert.Equal(t, "VALUES ($1, $2, $3)", j.bind("VALUES (?, ?, ?)"))

	j.driver = "sqlite3"
	assert.Equal(t, "VALUES (?, ?)", j.bind("VALUES (?, ?)"))
}
