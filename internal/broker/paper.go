package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantmill/tradecore/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaperBroker simulates a brokerage account in memory. Orders fill
// instantly at the quoted price. For crypto symbols a taker fee is
// deducted from the received asset quantity, mirroring how exchanges
// report crypto fills, while the order itself still reports the
// requested quantity as filled.
type PaperBroker struct {
	logger *zap.Logger

	mu        sync.Mutex
	cash      decimal.Decimal
	prices    map[string]decimal.Decimal
	positions map[string]decimal.Decimal
	orders    map[string]OrderDetails
	polls     map[string]int

	// TakerFeePct is deducted from received qty on crypto buys.
	TakerFeePct decimal.Decimal
	// SettleAfterPolls holds orders in pending status for that many
	// GetOrderDetails calls before reporting them filled.
	SettleAfterPolls int
}

// NewPaperBroker creates a paper account with the given starting cash.
func NewPaperBroker(logger *zap.Logger, startingCash decimal.Decimal) *PaperBroker {
	return &PaperBroker{
		logger:    logger.Named("paper-broker"),
		cash:      startingCash,
		prices:    make(map[string]decimal.Decimal),
		positions: make(map[string]decimal.Decimal),
		orders:    make(map[string]OrderDetails),
		polls:     make(map[string]int),
	}
}

// SetPrice sets the quote used to fill subsequent orders.
func (pb *PaperBroker) SetPrice(symbol string, price decimal.Decimal) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.prices[symbol] = price
}

// GetAccountSummary implements Broker.
func (pb *PaperBroker) GetAccountSummary(ctx context.Context) (AccountSummary, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	value := pb.cash
	for symbol, qty := range pb.positions {
		value = value.Add(qty.Mul(pb.prices[symbol]))
	}
	return AccountSummary{Cash: pb.cash, PortfolioValue: value}, nil
}

// GetPositions implements Broker.
func (pb *PaperBroker) GetPositions(ctx context.Context) ([]Position, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	out := make([]Position, 0, len(pb.positions))
	for symbol, qty := range pb.positions {
		out = append(out, Position{
			Symbol:      symbol,
			Qty:         qty,
			MarketValue: qty.Mul(pb.prices[symbol]),
		})
	}
	return out, nil
}

// Buy implements Broker.
func (pb *PaperBroker) Buy(ctx context.Context, symbol string, qty decimal.Decimal) (*Order, error) {
	return pb.submit(symbol, SideBuy, qty)
}

// Sell implements Broker.
func (pb *PaperBroker) Sell(ctx context.Context, symbol string, qty decimal.Decimal) (*Order, error) {
	return pb.submit(symbol, SideSell, qty)
}

func (pb *PaperBroker) submit(symbol, side string, qty decimal.Decimal) (*Order, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	price, ok := pb.prices[symbol]
	if !ok || price.IsZero() {
		return nil, fmt.Errorf("paper broker: no quote for %s", symbol)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("paper broker: non-positive qty %s for %s", qty, symbol)
	}
	if side == SideBuy {
		if cost := qty.Mul(price); cost.GreaterThan(pb.cash) {
			return nil, fmt.Errorf("paper broker: insufficient cash for %s: need %s, have %s",
				symbol, cost, pb.cash)
		}
	}

	order := &Order{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		SubmittedAt: time.Now(),
	}

	received := qty
	if side == SideBuy {
		pb.cash = pb.cash.Sub(qty.Mul(price))
		if types.IsCryptoSymbol(symbol) && !pb.TakerFeePct.IsZero() {
			received = qty.Mul(decimal.NewFromInt(1).Sub(pb.TakerFeePct))
		}
		pb.positions[symbol] = pb.positions[symbol].Add(received)
	} else {
		held := pb.positions[symbol]
		if qty.GreaterThan(held) {
			qty = held
		}
		pb.cash = pb.cash.Add(qty.Mul(price))
		pb.positions[symbol] = held.Sub(qty)
		if pb.positions[symbol].LessThanOrEqual(decimal.Zero) {
			delete(pb.positions, symbol)
		}
	}

	pb.orders[order.ID] = OrderDetails{
		FilledQty:    order.Qty,
		FilledPrice:  price,
		Status:       OrderStatusFilled,
		QtyRequested: order.Qty,
	}
	pb.polls[order.ID] = 0

	pb.logger.Debug("paper fill",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.String("qty", order.Qty.String()),
		zap.String("price", price.String()))

	return order, nil
}

// GetOrderDetails implements Broker. When SettleAfterPolls is set, the
// order reports pending with zero fill until polled that many times.
func (pb *PaperBroker) GetOrderDetails(ctx context.Context, order *Order, symbol string) (OrderDetails, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	details, ok := pb.orders[order.ID]
	if !ok {
		return OrderDetails{}, fmt.Errorf("paper broker: unknown order %s", order.ID)
	}

	if pb.SettleAfterPolls > 0 && pb.polls[order.ID] < pb.SettleAfterPolls {
		pb.polls[order.ID]++
		return OrderDetails{
			Status:       OrderStatusPending,
			QtyRequested: details.QtyRequested,
		}, nil
	}
	return details, nil
}
