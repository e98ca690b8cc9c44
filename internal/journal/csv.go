package journal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantmill/tradecore/pkg/types"
	"go.uber.org/zap"
)

var csvHeader = []string{
	"id", "symbol", "strategy", "side", "qty",
	"entry_price", "exit_price", "pnl", "exit_reason",
	"entry_time", "exit_time",
}

// CSVJournal appends trades to per-symbol, per-day CSV files
// (trades_<SYMBOL>_<YYYY-MM-DD>.csv) and writes daily summaries as
// JSON (daily_summary_<YYYY-MM-DD>.json) in the same directory.
type CSVJournal struct {
	logger *zap.Logger
	dir    string

	mu    sync.Mutex
	files map[string]*csvFile
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// NewCSV creates a CSV journal rooted at dir, creating it if needed.
func NewCSV(logger *zap.Logger, dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
	}
	return &CSVJournal{
		logger: logger.Named("journal"),
		dir:    dir,
		files:  make(map[string]*csvFile),
	}, nil
}

// RecordTrade implements TradeLogger. The target file is keyed by the
// trade's symbol and exit date; the header is written once per file.
func (j *CSVJournal) RecordTrade(record TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	name := fmt.Sprintf("trades_%s_%s.csv",
		types.NormalizeSymbol(record.Symbol),
		record.ExitTime.Format("2006-01-02"))

	cf, err := j.open(name)
	if err != nil {
		return err
	}

	err = cf.w.Write([]string{
		record.ID,
		record.Symbol,
		record.Strategy,
		record.Side,
		record.Qty.String(),
		record.EntryPrice.String(),
		record.ExitPrice.String(),
		record.PnL.String(),
		record.ExitReason,
		record.EntryTime.UTC().Format(time.RFC3339),
		record.ExitTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("journal: write trade %s: %w", record.ID, err)
	}
	cf.w.Flush()
	return cf.w.Error()
}

// RecordDailySummary implements TradeLogger. The summary file is
// overwritten on each call so reruns within a day stay consistent.
func (j *CSVJournal) RecordDailySummary(summary DailySummary) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: marshal summary: %w", err)
	}
	path := filepath.Join(j.dir, fmt.Sprintf("daily_summary_%s.json", summary.Date))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("journal: write summary %s: %w", path, err)
	}
	return nil
}

func (j *CSVJournal) open(name string) (*csvFile, error) {
	if cf, ok := j.files[name]; ok {
		return cf, nil
	}

	path := filepath.Join(j.dir, name)
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("journal: write header %s: %w", path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	cf := &csvFile{f: f, w: w}
	j.files[name] = cf
	j.logger.Debug("opened trade log", zap.String("path", path))
	return cf, nil
}

// Close flushes and closes all open files.
func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var firstErr error
	for name, cf := range j.files {
		cf.w.Flush()
		if err := cf.w.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(j.files, name)
	}
	return firstErr
}
