// Package schedule provides stateless market-hours and interval admission
// checks. Every function takes the current time as an argument so tests
// can inject a clock.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/quantmill/tradecore/pkg/types"
)

// ErrUnknownAssetType signals caller misconfiguration: asset types other
// than "stock" and "crypto" are not schedulable.
var ErrUnknownAssetType = errors.New("unknown asset type")

// US equity session, America/New_York.
const (
	stockOpenMinutes  = 9*60 + 30 // 09:30
	stockCloseMinutes = 16 * 60   // 16:00
)

var newYork *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fall back to a fixed offset; only hit on systems without tzdata.
		loc = time.FixedZone("EST", -5*60*60)
	}
	newYork = loc
}

// IsMarketOpen reports whether the market for assetType is open at now.
// Crypto trades around the clock. Stocks trade Monday through Friday,
// 09:30 (inclusive) to 16:00 (exclusive) exchange time.
func IsMarketOpen(assetType types.AssetType, now time.Time) (bool, error) {
	switch assetType {
	case types.AssetCrypto:
		return true, nil
	case types.AssetStock:
		local := now.In(newYork)
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return false, nil
		}
		minutes := local.Hour()*60 + local.Minute()
		return minutes >= stockOpenMinutes && minutes < stockCloseMinutes, nil
	default:
		return false, fmt.Errorf("%w: %q (use %q or %q)",
			ErrUnknownAssetType, assetType, types.AssetStock, types.AssetCrypto)
	}
}

// ShouldRun decides whether a strategy is due at now. A closed market
// always refuses. A zero lastRun means the strategy has never run and is
// immediately due; otherwise the configured interval must have elapsed.
func ShouldRun(assetType types.AssetType, lastRun time.Time, interval time.Duration, now time.Time) (bool, error) {
	open, err := IsMarketOpen(assetType, now)
	if err != nil {
		return false, err
	}
	if !open {
		return false, nil
	}
	if lastRun.IsZero() {
		return true, nil
	}
	return now.Sub(lastRun) >= interval, nil
}
