package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dnsebot-go/internal/execution"
	"dnsebot-go/internal/signal"
)

// BackendConfig shapes how realistic the simulated fills are.
type BackendConfig struct {
	SlippageBps     float64 // adverse price movement applied to every fill
	PartialFillProb float64 // chance a fill reports a partial stage first
}

// Backend simulates a venue against the in-memory account. Fills are
// immediate; the only rejection source is the account itself (insufficient
// cash or inventory).
type Backend struct {
	cfg      BackendConfig
	account  *Account
	ledger   *Ledger
	recorder FillRecorder

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackend wires the simulated venue. recorder may be nil.
func NewBackend(cfg BackendConfig, account *Account, ledger *Ledger, recorder FillRecorder) *Backend {
	return &Backend{
		cfg:      cfg,
		account:  account,
		ledger:   ledger,
		recorder: recorder,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *Backend) Name() string { return "paper" }

// Place fills the order against the account at the requested price plus
// slippage. Account rejections are definitive, never transient.
func (b *Backend) Place(_ context.Context, order execution.Order) (execution.Result, error) {
	price := b.slipped(order)
	if err := b.account.Fill(order.Symbol, order.Side, order.Qty, price); err != nil {
		return execution.Result{
			Status: execution.StatusRejected,
			Err:    err.Error(),
		}, nil
	}
	fill := execution.Fill{
		OrderID: order.ID,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Qty:     order.Qty,
		Price:   price,
		Ts:      time.Now(),
	}
	if b.ledger != nil {
		b.ledger.Record(fill)
	}
	if b.recorder != nil {
		b.recorder.Record(fill)
	}
	return execution.Result{
		BrokerID:     fmt.Sprintf("paper-%s", order.ID),
		Status:       execution.StatusFilled,
		FilledQty:    order.Qty,
		AvgFillPrice: price,
		Partial:      b.roll(),
	}, nil
}

// Cancel always fails in paper mode because fills are immediate.
func (b *Backend) Cancel(context.Context, string) error {
	return fmt.Errorf("paper orders fill immediately, nothing to cancel")
}

// slipped applies adverse slippage: buys pay up, sells receive less.
func (b *Backend) slipped(order execution.Order) float64 {
	slip := order.Price * b.cfg.SlippageBps / 10_000
	if order.Side == signal.SideSell {
		return order.Price - slip
	}
	return order.Price + slip
}

func (b *Backend) roll() bool {
	if b.cfg.PartialFillProb <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64() < b.cfg.PartialFillProb
}
