package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quantmill/tradecore/internal/backtest"
	"github.com/quantmill/tradecore/internal/broker"
	"github.com/quantmill/tradecore/internal/engine"
	"github.com/quantmill/tradecore/internal/journal"
	"github.com/quantmill/tradecore/internal/strategy"
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedProvider struct {
	bars []types.Bar
}

func (p *fixedProvider) GetBars(ctx context.Context, symbol string, timeframe types.Timeframe, limit, daysBack int) ([]types.Bar, error) {
	return p.bars, nil
}

func (p *fixedProvider) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if len(p.bars) == 0 {
		return decimal.Zero, assert.AnError
	}
	return p.bars[len(p.bars)-1].Close, nil
}

func testBars(n int) []types.Bar {
	start := time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)
	p := decimal.NewFromInt(100)
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p, Low: p, Close: p,
			Volume: decimal.NewFromInt(10),
		}
	}
	return bars
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := zap.NewNop()
	provider := &fixedProvider{bars: testBars(40)}
	pb := broker.NewPaperBroker(logger, decimal.NewFromInt(100000))
	eng := engine.New(logger, engine.DefaultConfig(), pb, provider, nil)

	return NewServer(logger, DefaultConfig(), eng, provider, backtest.DefaultConfig(),
		map[string]strategy.Strategy{"hold": strategy.Hold})
}

func TestOnTradeNegativePnL(t *testing.T) {
	s := newTestServer(t)

	before := testutil.ToFloat64(tradePnL.WithLabelValues("BTC/USD"))
	assert.NotPanics(t, func() {
		s.OnTrade(journal.TradeRecord{
			ID:         "t1",
			Symbol:     "BTC/USD",
			ExitReason: "stop_loss",
			PnL:        decimal.NewFromInt(-250),
		})
	})
	after := testutil.ToFloat64(tradePnL.WithLabelValues("BTC/USD"))
	assert.InDelta(t, -250, after-before, 1e-9, "losses must pull the pnl metric down")
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleEngineStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/engine/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
}

func TestHandleRunBacktest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"symbol":   "AAPL",
		"strategy": "hold",
		"daysBack": 30,
	})
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/backtest/run", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Summary map[string]interface{} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Summary["symbol"])
	assert.EqualValues(t, 0, resp.Summary["total_trades"])
}

func TestHandleRunBacktestValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing symbol", `{"strategy":"hold"}`},
		{"unknown strategy", `{"symbol":"AAPL","strategy":"nope"}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/backtest/run", bytes.NewBufferString(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
