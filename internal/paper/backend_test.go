package paper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsebot-go/internal/execution"
	"dnsebot-go/internal/signal"
)

func testOrder(side signal.Side, qty, price float64) execution.Order {
	return execution.Order{
		ID:        "ord-1",
		Symbol:    "VCB",
		Side:      side,
		Qty:       qty,
		Price:     price,
		Status:    execution.StatusSubmitted,
		CreatedAt: time.Now(),
	}
}

func TestBackendPlaceFillsAccount(t *testing.T) {
	account := NewAccount(100_000_000)
	ledger := NewLedger(16)
	backend := NewBackend(BackendConfig{}, account, ledger, nil)

	result, err := backend.Place(context.Background(), testOrder(signal.SideBuy, 100, 95_000))
	require.NoError(t, err)

	assert.Equal(t, execution.StatusFilled, result.Status)
	assert.Equal(t, 100.0, result.FilledQty)
	assert.Equal(t, 95_000.0, result.AvgFillPrice)
	assert.InDelta(t, 90_500_000, account.Cash(), 0.001)
	assert.Equal(t, 100.0, account.Position("VCB"))
	assert.Len(t, ledger.Snapshot(), 1)
}

func TestBackendPlaceRejectsOnInsufficientCash(t *testing.T) {
	account := NewAccount(1_000_000)
	backend := NewBackend(BackendConfig{}, account, nil, nil)

	result, err := backend.Place(context.Background(), testOrder(signal.SideBuy, 100, 95_000))
	require.NoError(t, err, "account rejection is definitive, not transient")

	assert.Equal(t, execution.StatusRejected, result.Status)
	assert.NotEmpty(t, result.Err)
	assert.InDelta(t, 1_000_000, account.Cash(), 0.001)
}

func TestBackendAppliesAdverseSlippage(t *testing.T) {
	account := NewAccount(100_000_000)
	backend := NewBackend(BackendConfig{SlippageBps: 10}, account, nil, nil)

	buy, err := backend.Place(context.Background(), testOrder(signal.SideBuy, 100, 95_000))
	require.NoError(t, err)
	assert.InDelta(t, 95_095, buy.AvgFillPrice, 0.001)

	sell, err := backend.Place(context.Background(), testOrder(signal.SideSell, 100, 95_000))
	require.NoError(t, err)
	assert.InDelta(t, 94_905, sell.AvgFillPrice, 0.001)
}

func TestBackendCancelAlwaysFails(t *testing.T) {
	backend := NewBackend(BackendConfig{}, NewAccount(1), nil, nil)
	assert.Error(t, backend.Cancel(context.Background(), "any"))
}
