// Package feed hosts connectors for market data sources and normalizes
// their output into the shared tick stream.
package feed

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dnsebot-go/internal/events"
	"dnsebot-go/internal/market"
	"dnsebot-go/internal/metrics"
)

const (
	// ProviderStub emits deterministic synthetic ticks, useful for tests
	// and offline work.
	ProviderStub = "stub"
	// ProviderDNSE streams live trades from the brokerage market-data
	// websocket.
	ProviderDNSE = "dnse"
)

// State describes the transport health the orchestrator can observe.
type State string

const (
	StateConnecting State = "CONNECTING"
	StateConnected  State = "CONNECTED"
	// StateDegraded means the reconnect budget is exhausted; the feed keeps
	// retrying but consumers should treat data as stale.
	StateDegraded State = "DEGRADED"
	StateStopped  State = "STOPPED"
)

// StateFunc is invoked on every transport state change.
type StateFunc func(State)

// PublishState returns a StateFunc that mirrors every transport transition
// onto the event bus and logs the degraded case, so outside consumers see
// feed health the same way they see fills.
func PublishState(bus *events.Bus, log zerolog.Logger) StateFunc {
	return func(state State) {
		if state == StateDegraded {
			log.Error().Msg("market data feed degraded, positions remain protected by stop polling")
		}
		if bus == nil {
			return
		}
		bus.Publish(events.Event{
			Kind:   events.KindFeedState,
			Status: string(state),
			Ts:     time.Now(),
		})
	}
}

// Config bounds the ingestor's queues and transport behavior.
type Config struct {
	Provider      string
	URL           string
	QueueSize     int           // per-symbol bounded queue depth
	DedupWindow   time.Duration // ticks identical within this window are dropped
	MaxReconnects int           // consecutive failures before DEGRADED
	StubInterval  time.Duration
}

// Ingestor normalizes a provider stream into per-symbol bounded queues and
// a single merged output channel. A slow consumer loses the oldest ticks
// for its symbol, never the newest, and never stalls other symbols.
type Ingestor struct {
	cfg   Config
	log   zerolog.Logger
	out   chan market.Tick
	onSta StateFunc

	mu       sync.Mutex
	symbols  map[string]struct{}
	queues   map[string]chan market.Tick
	lastSeen map[string]tickKey
	state    State
	resub    chan struct{} // pokes the transport to refresh subscriptions
	wg       sync.WaitGroup
}

// tickKey identifies a tick for dedup purposes.
type tickKey struct {
	ts    time.Time
	price float64
}

// NewIngestor constructs an ingestor for the configured provider.
func NewIngestor(cfg Config, log zerolog.Logger, onState StateFunc) *Ingestor {
	if cfg.Provider == "" {
		cfg.Provider = ProviderStub
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.StubInterval <= 0 {
		cfg.StubInterval = 500 * time.Millisecond
	}
	cfg.Provider = strings.ToLower(cfg.Provider)
	return &Ingestor{
		cfg:      cfg,
		log:      log,
		out:      make(chan market.Tick, cfg.QueueSize),
		onSta:    onState,
		symbols:  make(map[string]struct{}),
		queues:   make(map[string]chan market.Tick),
		lastSeen: make(map[string]tickKey),
		state:    StateConnecting,
		resub:    make(chan struct{}, 1),
	}
}

// Stream is the merged tick output consumed by the orchestrator.
func (in *Ingestor) Stream() <-chan market.Tick { return in.out }

// State returns the current transport state.
func (in *Ingestor) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Subscribe starts delivering ticks for a symbol. Safe while running; the
// transport refreshes its venue subscriptions on the next cycle.
func (in *Ingestor) Subscribe(symbol string) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return
	}
	in.mu.Lock()
	if _, ok := in.symbols[symbol]; ok {
		in.mu.Unlock()
		return
	}
	in.symbols[symbol] = struct{}{}
	in.mu.Unlock()
	in.pokeResub()
	in.log.Info().Str("sym", symbol).Msg("subscribed")
}

// Unsubscribe stops delivering ticks for a symbol. Ticks still queued for
// it are discarded, not delivered.
func (in *Ingestor) Unsubscribe(symbol string) {
	in.mu.Lock()
	if _, ok := in.symbols[symbol]; !ok {
		in.mu.Unlock()
		return
	}
	delete(in.symbols, symbol)
	delete(in.lastSeen, symbol)
	in.mu.Unlock()
	in.pokeResub()
	in.log.Info().Str("sym", symbol).Msg("unsubscribed")
}

// Symbols lists current subscriptions sorted for determinism.
func (in *Ingestor) Symbols() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.symbols))
	for sym := range in.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Run drives the provider until the context is canceled, then closes the
// merged stream after all per-symbol forwarders drain.
func (in *Ingestor) Run(ctx context.Context) error {
	var err error
	switch in.cfg.Provider {
	case ProviderDNSE:
		err = in.runDNSE(ctx)
	default:
		err = in.runStub(ctx)
	}
	in.setState(StateStopped)

	in.mu.Lock()
	for sym, q := range in.queues {
		delete(in.queues, sym)
		close(q)
	}
	in.mu.Unlock()
	in.wg.Wait()
	close(in.out)
	return err
}

// dispatch routes one raw tick through dedup and the symbol's bounded
// queue. Called only from the provider goroutine.
func (in *Ingestor) dispatch(tick market.Tick) {
	in.mu.Lock()
	if _, ok := in.symbols[tick.Symbol]; !ok {
		in.mu.Unlock()
		return
	}
	if last, ok := in.lastSeen[tick.Symbol]; ok &&
		last.price == tick.Price && !tick.Ts.After(last.ts.Add(in.cfg.DedupWindow)) && !tick.Ts.Before(last.ts) {
		in.mu.Unlock()
		metrics.TicksDeduped.WithLabelValues(tick.Symbol).Inc()
		return
	}
	in.lastSeen[tick.Symbol] = tickKey{ts: tick.Ts, price: tick.Price}
	q, ok := in.queues[tick.Symbol]
	if !ok {
		q = make(chan market.Tick, in.cfg.QueueSize)
		in.queues[tick.Symbol] = q
		in.wg.Add(1)
		go in.forward(q)
	}
	in.mu.Unlock()

	for {
		select {
		case q <- tick:
			metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
			return
		default:
		}
		// queue full: shed the oldest tick and retry with the newest
		select {
		case old := <-q:
			metrics.TicksDropped.WithLabelValues(old.Symbol).Inc()
		default:
		}
	}
}

// forward copies one symbol queue onto the merged stream. Ticks queued
// before an unsubscribe are discarded here rather than delivered.
func (in *Ingestor) forward(q <-chan market.Tick) {
	defer in.wg.Done()
	for tick := range q {
		if !in.subscribed(tick.Symbol) {
			continue
		}
		in.out <- tick
	}
}

func (in *Ingestor) subscribed(symbol string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, ok := in.symbols[symbol]
	return ok
}

func (in *Ingestor) setState(next State) {
	in.mu.Lock()
	if in.state == next || in.state == StateStopped {
		in.mu.Unlock()
		return
	}
	in.state = next
	in.mu.Unlock()
	in.log.Info().Str("state", string(next)).Msg("feed state changed")
	if in.onSta != nil {
		in.onSta(next)
	}
}

func (in *Ingestor) pokeResub() {
	select {
	case in.resub <- struct{}{}:
	default:
	}
}

func (in *Ingestor) runStub(ctx context.Context) error {
	ticker := time.NewTicker(in.cfg.StubInterval)
	defer ticker.Stop()

	in.setState(StateConnected)
	px := 100.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px += 0.1
			for _, sym := range in.Symbols() {
				in.dispatch(market.Tick{Symbol: sym, Price: px, Volume: 1, Ts: ts})
			}
		}
	}
}
