package engine

import (
	"context"
	"errors"
	"time"

	"github.com/quantmill/tradecore/internal/broker"
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fill polling bounds. Orders not confirmed within the timeout are
// handled with whatever status the broker last reported; the engine
// never blocks a cycle indefinitely on a slow broker.
const (
	defaultFillTimeout  = 30 * time.Second
	defaultFillInterval = 1 * time.Second
)

// fill is the reconciled outcome of an order.
type fill struct {
	qty   decimal.Decimal
	price decimal.Decimal
}

// positionQty returns the broker-reported quantity held for symbol.
// Broker APIs report crypto positions under the normalized symbol.
func (e *TradingEngine) positionQty(ctx context.Context, symbol string) (decimal.Decimal, error) {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	want := types.NormalizeSymbol(symbol)
	for _, p := range positions {
		if types.NormalizeSymbol(p.Symbol) == want {
			return p.Qty, nil
		}
	}
	return decimal.Zero, nil
}

// awaitFill polls the order until it reports filled, then reconciles
// the executed quantity.
//
// Crypto orders are reconciled against the broker position delta
// (qtyBefore captured before submission, after-minus-before for buys,
// before-minus-after for sells): exchanges deduct taker fees from the
// received asset, so the order's own filled quantity overstates what
// the account actually holds. A non-positive delta (position feed
// lagging, concurrent account activity) falls back to the order's
// reported fill. For stocks the order's fill field is authoritative.
//
// A poll timeout is a warning, not a failure: the last reported status
// is used as-is and the order is never auto-retried.
func (e *TradingEngine) awaitFill(ctx context.Context, order *broker.Order, symbol, side string, qtyBefore decimal.Decimal) (fill, error) {
	details, err := e.pollOrder(ctx, order, symbol)
	if errors.Is(err, ErrOrderTimeout) {
		e.logger.Warn("fill confirmation timed out, proceeding with last status",
			zap.String("order_id", order.ID),
			zap.String("symbol", symbol),
			zap.String("status", details.Status))
	} else if err != nil {
		return fill{}, err
	}

	f := fill{qty: details.FilledQty, price: details.FilledPrice}

	if types.IsCryptoSymbol(symbol) {
		qtyAfter, err := e.positionQty(ctx, symbol)
		if err != nil {
			e.logger.Warn("position lookup failed, using order fill qty",
				zap.String("symbol", symbol),
				zap.Error(err))
			return f, nil
		}
		delta := qtyAfter.Sub(qtyBefore)
		if side == broker.SideSell {
			delta = delta.Neg()
		}
		if delta.GreaterThan(decimal.Zero) {
			f.qty = delta
		}
	}
	return f, nil
}

// pollOrder checks order status at fillInterval until fillTimeout. On
// timeout it returns the last reported details alongside
// ErrOrderTimeout.
func (e *TradingEngine) pollOrder(ctx context.Context, order *broker.Order, symbol string) (broker.OrderDetails, error) {
	deadline := time.NewTimer(e.fillTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(e.fillInterval)
	defer tick.Stop()

	var last broker.OrderDetails
	for {
		details, err := e.broker.GetOrderDetails(ctx, order, symbol)
		if err == nil {
			last = details
			if details.Filled() {
				return details, nil
			}
		} else {
			e.logger.Warn("order status check failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, ErrOrderTimeout
		case <-tick.C:
		}
	}
}
