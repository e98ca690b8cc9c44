package journal

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRecord() TradeRecord {
	exit := time.Date(2024, time.July, 10, 15, 30, 0, 0, time.UTC)
	return TradeRecord{
		ID:         "01HZXEXAMPLE",
		Symbol:     "BTC/USD",
		Strategy:   "momentum",
		Side:       "sell",
		Qty:        decimal.RequireFromString("0.5"),
		EntryPrice: decimal.NewFromInt(60000),
		ExitPrice:  decimal.NewFromInt(61000),
		PnL:        decimal.NewFromInt(500),
		ExitReason: "take_profit",
		EntryTime:  exit.Add(-2 * time.Hour),
		ExitTime:   exit,
	}
}

func TestCSVJournalWritesTrades(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(zap.NewNop(), dir)
	require.NoError(t, err)

	require.NoError(t, j.RecordTrade(sampleRecord()))
	require.NoError(t, j.RecordTrade(sampleRecord()))
	require.NoError(t, j.Close())

	// Slash stripped from the filename, date taken from exit time.
	path := filepath.Join(dir, "trades_BTCUSD_2024-07-10.csv")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two trades")

	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "01HZXEXAMPLE", rows[1][0])
	assert.Equal(t, "BTC/USD", rows[1][1])
	assert.Equal(t, "500", rows[1][7])
}

func TestCSVJournalAppendsAcrossReopens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	j, err := NewCSV(zap.NewNop(), dir)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleRecord()))
	require.NoError(t, j.Close())

	j2, err := NewCSV(zap.NewNop(), dir)
	require.NoError(t, err)
	require.NoError(t, j2.RecordTrade(sampleRecord()))
	require.NoError(t, j2.Close())

	f, err := os.Open(filepath.Join(dir, "trades_BTCUSD_2024-07-10.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header written once, rows appended")
}

func TestCSVJournalDailySummary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(zap.NewNop(), dir)
	require.NoError(t, err)
	defer j.Close()

	summary := DailySummary{
		Date:      "2024-07-10",
		Symbol:    "BTC/USD",
		NumTrades: 3,
		Wins:      2,
		Losses:    1,
		NetPnL:    decimal.NewFromInt(750),
	}
	require.NoError(t, j.RecordDailySummary(summary))

	data, err := os.ReadFile(filepath.Join(dir, "daily_summary_2024-07-10.json"))
	require.NoError(t, err)

	var got DailySummary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, summary.Date, got.Date)
	assert.Equal(t, 3, got.NumTrades)
	assert.True(t, got.NetPnL.Equal(summary.NetPnL))
}
