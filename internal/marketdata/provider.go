// Package marketdata defines the data-vendor contract the core consumes.
package marketdata

import (
	"context"
	"errors"

	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when a vendor has no current quote.
var ErrPriceUnavailable = errors.New("latest price unavailable")

// Provider supplies historical bars and live quotes. Bars are returned
// in ascending timestamp order.
type Provider interface {
	GetBars(ctx context.Context, symbol string, timeframe types.Timeframe, limit, daysBack int) ([]types.Bar, error)
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
