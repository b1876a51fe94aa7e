package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dnsebot-go/internal/broker"
	"dnsebot-go/internal/signal"
)

// LiveBackend places real orders through the brokerage REST API and polls
// until the venue reports a terminal state.
type LiveBackend struct {
	client       *broker.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          zerolog.Logger
}

// NewLiveBackend wires the brokerage client.
func NewLiveBackend(client *broker.Client, log zerolog.Logger) *LiveBackend {
	return &LiveBackend{
		client:       client,
		pollInterval: 2 * time.Second,
		pollTimeout:  2 * time.Minute,
		log:          log,
	}
}

func (b *LiveBackend) Name() string { return "live" }

// Place submits the order and follows it to a terminal venue state. A venue
// rejection comes back as a REJECTED result with nil error; transport and
// 5xx failures return an error so the executor can retry. The client order
// ID makes a retried placement land on the same venue order.
func (b *LiveBackend) Place(ctx context.Context, order Order) (Result, error) {
	req := broker.OrderRequest{
		Symbol:         order.Symbol,
		Side:           brokerSide(order.Side),
		Quantity:       order.Qty,
		Price:          order.Price,
		OrderType:      string(order.Type),
		IdempotencyKey: order.IdempotencyKey,
	}
	brokerID, err := b.client.PlaceOrder(ctx, req)
	if err != nil {
		if broker.IsReject(err) {
			return Result{Status: StatusRejected, Err: err.Error()}, nil
		}
		return Result{}, err
	}
	return b.follow(ctx, order.Qty, brokerID)
}

// Cancel asks the venue to cancel an outstanding order.
func (b *LiveBackend) Cancel(ctx context.Context, brokerID string) error {
	if brokerID == "" {
		return fmt.Errorf("no venue order id")
	}
	return b.client.CancelOrder(ctx, brokerID)
}

// follow polls order status until terminal. If the deadline passes or the
// caller shuts down first, the order is cancelled at the venue so nothing
// is left outstanding and untracked.
func (b *LiveBackend) follow(ctx context.Context, qty float64, brokerID string) (Result, error) {
	deadline := time.NewTimer(b.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	var state broker.OrderState
	for {
		select {
		case <-ctx.Done():
			return b.abandon(brokerID, qty, state)
		case <-deadline.C:
			return b.abandon(brokerID, qty, state)
		case <-ticker.C:
			latest, err := b.client.OrderStatus(ctx, brokerID)
			if err != nil {
				b.log.Warn().Err(err).Str("broker_id", brokerID).Msg("status poll failed")
				continue
			}
			state = latest
			if broker.TerminalState(state.Status) {
				return terminalResult(brokerID, qty, state), nil
			}
		}
	}
}

// abandon cancels an order the backend will stop tracking. The cancel uses
// a fresh context because the caller's may already be done.
func (b *LiveBackend) abandon(brokerID string, qty float64, state broker.OrderState) (Result, error) {
	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.client.CancelOrder(cancelCtx, brokerID); err != nil {
		b.log.Error().Err(err).Str("broker_id", brokerID).Msg("cancel of abandoned order failed")
	}
	return Result{
		BrokerID:     brokerID,
		Status:       StatusCancelled,
		FilledQty:    state.FilledQuantity,
		AvgFillPrice: state.AvgFilledPrice,
		Partial:      state.FilledQuantity > 0,
		Err:          "order abandoned before terminal venue state",
	}, nil
}

func terminalResult(brokerID string, qty float64, state broker.OrderState) Result {
	result := Result{
		BrokerID:     brokerID,
		Status:       StatusCancelled,
		FilledQty:    state.FilledQuantity,
		AvgFillPrice: state.AvgFilledPrice,
		Partial:      state.FilledQuantity > 0 && state.FilledQuantity < qty,
	}
	switch state.Status {
	case broker.StateFilled:
		result.Status = StatusFilled
	case broker.StateRejected:
		result.Status = StatusRejected
		result.Err = state.Message
	case broker.StateCanceled, broker.StateExpired:
		result.Status = StatusCancelled
		result.Err = state.Message
	}
	return result
}

func brokerSide(side signal.Side) string {
	if side == signal.SideSell {
		return "NS" // normal sell
	}
	return "NB" // normal buy
}
