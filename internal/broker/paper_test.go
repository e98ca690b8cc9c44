package broker

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuyRejectedWhenCostExceedsCash(t *testing.T) {
	t.Parallel()

	pb := NewPaperBroker(zap.NewNop(), decimal.NewFromInt(1000))
	pb.SetPrice("AAPL", decimal.NewFromInt(100))

	_, err := pb.Buy(context.Background(), "AAPL", decimal.NewFromInt(11))
	require.Error(t, err)

	account, err := pb.GetAccountSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.NewFromInt(1000)),
		"rejected order must not touch cash, got %s", account.Cash)

	positions, err := pb.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestBuySpendingAllCashIsAllowed(t *testing.T) {
	t.Parallel()

	pb := NewPaperBroker(zap.NewNop(), decimal.NewFromInt(1000))
	pb.SetPrice("AAPL", decimal.NewFromInt(100))

	_, err := pb.Buy(context.Background(), "AAPL", decimal.NewFromInt(10))
	require.NoError(t, err)

	account, err := pb.GetAccountSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, account.Cash.IsZero(), "cash %s", account.Cash)
}

func TestSellClampedToHeldQty(t *testing.T) {
	t.Parallel()

	pb := NewPaperBroker(zap.NewNop(), decimal.NewFromInt(1000))
	pb.SetPrice("AAPL", decimal.NewFromInt(100))

	_, err := pb.Buy(context.Background(), "AAPL", decimal.NewFromInt(5))
	require.NoError(t, err)

	_, err = pb.Sell(context.Background(), "AAPL", decimal.NewFromInt(50))
	require.NoError(t, err)

	account, err := pb.GetAccountSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.NewFromInt(1000)),
		"oversized sell must liquidate only the held qty, got %s", account.Cash)

	positions, err := pb.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}
