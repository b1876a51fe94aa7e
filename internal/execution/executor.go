package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dnsebot-go/internal/events"
	"dnsebot-go/internal/metrics"
	"dnsebot-go/internal/signal"
)

var (
	// ErrInvalidIntent refuses malformed submissions locally.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrUnknownOrder is returned for status/cancel of an order the
	// executor never created.
	ErrUnknownOrder = errors.New("unknown order")
)

// Result is the backend's report for one placement attempt. A returned
// error means the attempt was transient and may be retried; a definitive
// venue rejection comes back as Status REJECTED with a nil error.
type Result struct {
	BrokerID     string
	Status       Status
	FilledQty    float64
	AvgFillPrice float64
	Partial      bool // fill went through a partial stage
	Err          string
}

// Backend abstracts the venue. Exactly one implementation is selected at
// construction; business logic never branches on paper vs live.
type Backend interface {
	Name() string
	Place(ctx context.Context, order Order) (Result, error)
	Cancel(ctx context.Context, brokerID string) error
}

// Config bounds the retry policy for transient submission failures.
type Config struct {
	RetryMax      uint64
	RetryBase     time.Duration
	SubmitTimeout time.Duration
}

// Executor owns the order book and drives the state machine. Orders for the
// same symbol are submitted strictly sequentially, regardless of which part
// of the pipeline triggered them.
type Executor struct {
	backend Backend
	cfg     Config
	log     zerolog.Logger
	bus     *events.Bus

	mu       sync.Mutex
	orders   map[string]*Order
	byIdem   map[string]string // idempotency key -> order ID
	brokerID map[string]string // order ID -> venue ID
	symLocks map[string]*sync.Mutex
}

// NewExecutor wires the selected backend.
func NewExecutor(backend Backend, cfg Config, bus *events.Bus, log zerolog.Logger) *Executor {
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	return &Executor{
		backend:  backend,
		cfg:      cfg,
		log:      log,
		bus:      bus,
		orders:   make(map[string]*Order),
		byIdem:   make(map[string]string),
		brokerID: make(map[string]string),
		symLocks: make(map[string]*sync.Mutex),
	}
}

// Submit turns an approved intent into an order and drives it to a state
// the caller can act on. Submitting the same intent twice returns the
// original order without touching the venue again.
func (e *Executor) Submit(ctx context.Context, intent signal.Intent) (Order, error) {
	if intent.Symbol == "" || intent.Qty <= 0 || intent.Price <= 0 || intent.ID == "" {
		return Order{}, ErrInvalidIntent
	}

	e.mu.Lock()
	if existingID, dup := e.byIdem[intent.ID]; dup {
		order := *e.orders[existingID]
		e.mu.Unlock()
		e.log.Warn().Str("intent", intent.ID).Str("order", order.ID).Msg("duplicate intent, returning original order")
		return order, nil
	}
	now := time.Now()
	order := &Order{
		ID:             uuid.NewString(),
		IdempotencyKey: intent.ID,
		Symbol:         intent.Symbol,
		Side:           intent.Side,
		Qty:            intent.Qty,
		Price:          intent.Price,
		Type:           orderType(intent.Kind),
		Status:         StatusCreated,
		Reason:         intent.Reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.orders[order.ID] = order
	e.byIdem[intent.ID] = order.ID
	lock := e.symLock(intent.Symbol)
	e.mu.Unlock()

	// strict per-symbol serialization: a signal-driven BUY and a
	// stop-driven SELL can never race each other onto the wire
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	defer cancel()

	e.setStatus(order.ID, StatusSubmitted)
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()

	result, err := e.placeWithRetry(ctx, *e.snapshot(order.ID))
	if err != nil {
		// retry budget exhausted with no confirmed venue order; close the
		// order out locally rather than risk a duplicate submission
		e.finish(order.ID, Result{Status: StatusCancelled, Err: fmt.Sprintf("submission failed: %v", err)})
		return *e.snapshot(order.ID), fmt.Errorf("submit %s %s: %w", order.Side, order.Symbol, err)
	}
	e.finish(order.ID, result)
	return *e.snapshot(order.ID), nil
}

// Cancel requests cancellation of an outstanding order.
func (e *Executor) Cancel(ctx context.Context, orderID string) error {
	e.mu.Lock()
	order, ok := e.orders[orderID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownOrder
	}
	if order.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("order %s already %s", orderID, order.Status)
	}
	brokerID := e.brokerID[orderID]
	e.mu.Unlock()

	if err := e.backend.Cancel(ctx, brokerID); err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}
	e.finish(orderID, Result{Status: StatusCancelled})
	return nil
}

// Status returns the executor's view of an order.
func (e *Executor) Status(orderID string) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	return *order, nil
}

// Orders lists every tracked order, most useful for shutdown accounting.
func (e *Executor) Orders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	return out
}

// Outstanding reports orders not yet in a terminal state.
func (e *Executor) Outstanding() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Order
	for _, o := range e.orders {
		if !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

func (e *Executor) placeWithRetry(ctx context.Context, order Order) (Result, error) {
	var result Result
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryBase

	operation := func() error {
		res, err := e.backend.Place(ctx, order)
		if err != nil {
			e.log.Warn().Err(err).Str("order", order.ID).Str("sym", order.Symbol).Msg("transient submission failure, retrying")
			return err
		}
		result = res
		return nil
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, e.cfg.RetryMax), ctx))
	return result, err
}

func (e *Executor) symLock(symbol string) *sync.Mutex {
	lock, ok := e.symLocks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.symLocks[symbol] = lock
	}
	return lock
}

func (e *Executor) snapshot(orderID string) *Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := *e.orders[orderID]
	return &snap
}

func (e *Executor) setStatus(orderID string, status Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders[orderID].transition(status, time.Now())
}

// finish applies the backend result and publishes the fill and terminal
// events.
func (e *Executor) finish(orderID string, result Result) {
	e.mu.Lock()
	order := e.orders[orderID]
	now := time.Now()
	if result.BrokerID != "" {
		e.brokerID[orderID] = result.BrokerID
	}
	if result.Partial {
		order.transition(StatusPartiallyFilled, now)
	}
	order.FilledQty = result.FilledQty
	order.AvgFillPrice = result.AvgFillPrice
	order.Err = result.Err
	order.transition(result.Status, now)
	snapshot := *order
	e.mu.Unlock()

	if !snapshot.Status.Terminal() {
		return
	}
	if snapshot.Status == StatusRejected {
		metrics.OrdersRejected.WithLabelValues(snapshot.Symbol, string(snapshot.Side)).Inc()
	}
	e.log.Info().Str("order", snapshot.ID).Str("sym", snapshot.Symbol).
		Str("side", string(snapshot.Side)).Str("status", string(snapshot.Status)).
		Float64("filled", snapshot.FilledQty).Float64("px", snapshot.AvgFillPrice).
		Msg("order terminal")
	if e.bus == nil {
		return
	}
	if snapshot.FilledQty > 0 {
		e.bus.Publish(events.Event{
			Kind:    events.KindFill,
			Symbol:  snapshot.Symbol,
			OrderID: snapshot.ID,
			Side:    string(snapshot.Side),
			Qty:     snapshot.FilledQty,
			Price:   snapshot.AvgFillPrice,
			Ts:      snapshot.UpdatedAt,
		})
	}
	e.bus.Publish(events.Event{
		Kind:    events.KindOrderTerminal,
		Symbol:  snapshot.Symbol,
		OrderID: snapshot.ID,
		Side:    string(snapshot.Side),
		Qty:     snapshot.FilledQty,
		Price:   snapshot.AvgFillPrice,
		Status:  string(snapshot.Status),
		Reason:  snapshot.Reason,
		Ts:      snapshot.UpdatedAt,
	})
}

func orderType(kind signal.Kind) Type {
	if kind == signal.CutLoss {
		return TypeMarket
	}
	return TypeLimit
}
