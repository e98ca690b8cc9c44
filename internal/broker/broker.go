// Package broker defines the brokerage contract the core consumes and an
// in-memory paper implementation for tests and dry runs.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses as reported by GetOrderDetails.
const (
	OrderStatusNew             = "new"
	OrderStatusPending         = "pending"
	OrderStatusFilled          = "filled"
	OrderStatusPartiallyFilled = "partially_filled"
	OrderStatusRejected        = "rejected"
)

// Order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// AccountSummary is a snapshot of account cash and total value.
type AccountSummary struct {
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolioValue"`
}

// Position is a broker-reported holding.
type Position struct {
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	MarketValue decimal.Decimal `json:"marketValue"`
}

// Order is the handle returned by Buy/Sell, used to query fill status.
type Order struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Qty         decimal.Decimal `json:"qty"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// OrderDetails is the broker's view of an order's fill state.
type OrderDetails struct {
	FilledQty    decimal.Decimal `json:"filledQty"`
	FilledPrice  decimal.Decimal `json:"filledPrice"`
	Status       string          `json:"status"`
	QtyRequested decimal.Decimal `json:"qtyRequested"`
}

// Filled reports whether the order has reached a terminal filled state.
func (d OrderDetails) Filled() bool {
	return d.Status == OrderStatusFilled || d.Status == OrderStatusPartiallyFilled
}

// Broker is the order-execution contract. Implementations wrap a real
// brokerage API; PaperBroker simulates one in memory.
type Broker interface {
	GetAccountSummary(ctx context.Context) (AccountSummary, error)
	GetPositions(ctx context.Context) ([]Position, error)
	Buy(ctx context.Context, symbol string, qty decimal.Decimal) (*Order, error)
	Sell(ctx context.Context, symbol string, qty decimal.Decimal) (*Order, error)
	GetOrderDetails(ctx context.Context, order *Order, symbol string) (OrderDetails, error)
}
