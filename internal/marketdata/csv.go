package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CSVProvider serves bars from on-disk CSV files, one file per symbol
// (<SYMBOL>.csv with a timestamp,open,high,low,close,volume header).
// Files are parsed once and cached; the provider is safe for
// concurrent use.
type CSVProvider struct {
	logger *zap.Logger
	dir    string

	mu    sync.Mutex
	cache map[string][]types.Bar
}

// NewCSVProvider creates a provider rooted at dir.
func NewCSVProvider(logger *zap.Logger, dir string) *CSVProvider {
	return &CSVProvider{
		logger: logger.Named("csv-data"),
		dir:    dir,
		cache:  make(map[string][]types.Bar),
	}
}

// GetBars implements Provider. Timeframe is ignored; each file carries
// a single series. The window is the most recent `limit` bars within
// `daysBack` days of the newest bar.
func (p *CSVProvider) GetBars(ctx context.Context, symbol string, timeframe types.Timeframe, limit, daysBack int) ([]types.Bar, error) {
	bars, err := p.load(symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s", symbol)
	}

	if daysBack > 0 {
		cutoff := bars[len(bars)-1].Timestamp.AddDate(0, 0, -daysBack)
		i := sort.Search(len(bars), func(i int) bool {
			return !bars[i].Timestamp.Before(cutoff)
		})
		bars = bars[i:]
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// GetLatestPrice implements Provider, returning the newest close.
func (p *CSVProvider) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	bars, err := p.load(symbol)
	if err != nil || len(bars) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return bars[len(bars)-1].Close, nil
}

func (p *CSVProvider) load(symbol string) ([]types.Bar, error) {
	key := types.NormalizeSymbol(symbol)

	p.mu.Lock()
	defer p.mu.Unlock()
	if bars, ok := p.cache[key]; ok {
		return bars, nil
	}

	path := filepath.Join(p.dir, key+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars for %s: %w", symbol, err)
	}
	defer f.Close()

	bars, err := ParseBars(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	p.cache[key] = bars
	p.logger.Debug("loaded bar series",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)))
	return bars, nil
}

// ParseBars reads a timestamp,open,high,low,close,volume CSV stream.
// A header row is detected and skipped.
func ParseBars(r io.Reader) ([]types.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6

	var bars []types.Bar
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && record[0] == "timestamp" {
			continue
		}

		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp %q: %w", line, record[0], err)
		}

		fields := make([]decimal.Decimal, 5)
		for i := 0; i < 5; i++ {
			fields[i], err = decimal.NewFromString(record[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value %q: %w", line, record[i+1], err)
			}
		}

		bars = append(bars, types.Bar{
			Timestamp: ts,
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}
	return bars, nil
}
