// Package bot wires the feed, series store, strategy engine, risk manager
// and executor into one reactive pipeline and owns its lifecycle.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dnsebot-go/internal/config"
	"dnsebot-go/internal/execution"
	"dnsebot-go/internal/feed"
	"dnsebot-go/internal/market"
	"dnsebot-go/internal/metrics"
	"dnsebot-go/internal/risk"
	"dnsebot-go/internal/series"
	"dnsebot-go/internal/signal"
	"dnsebot-go/internal/strategy"
)

// mark is a symbol's most recent price together with the tick timestamp
// that set it, so replayed old ticks cannot move the poller's view backward.
type mark struct {
	price float64
	ts    time.Time
}

// Bot routes the merged tick stream into per-symbol workers and runs the
// periodic jobs (stop polling, DCA, portfolio summary). One worker per
// symbol keeps evaluation ordered per symbol while symbols stay independent.
type Bot struct {
	cfg      *config.Config
	log      zerolog.Logger
	ingestor *feed.Ingestor
	store    *series.Store
	engine   *strategy.Engine
	risk     *risk.Manager
	exec     *execution.Executor

	mu      sync.Mutex
	workers map[string]chan market.Tick
	prices  map[string]mark
	wg      sync.WaitGroup

	stop context.CancelFunc
	done chan error
}

// New assembles a bot from already constructed components.
func New(cfg *config.Config, ingestor *feed.Ingestor, store *series.Store, engine *strategy.Engine,
	riskMgr *risk.Manager, exec *execution.Executor, log zerolog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		log:      log,
		ingestor: ingestor,
		store:    store,
		engine:   engine,
		risk:     riskMgr,
		exec:     exec,
		workers:  make(map[string]chan market.Tick),
		prices:   make(map[string]mark),
	}
}

// Start runs the bot in the background and returns immediately. Stop
// cancels it and waits for the drain.
func (b *Bot) Start(ctx context.Context) {
	ctx, b.stop = context.WithCancel(ctx)
	b.done = make(chan error, 1)
	go func() { b.done <- b.Run(ctx) }()
}

// Stop shuts the bot down and blocks until every worker has drained.
func (b *Bot) Stop() error {
	if b.stop == nil {
		return nil
	}
	b.stop()
	return <-b.done
}

// Run starts the feed and all jobs, then blocks until the context is
// canceled and every worker has drained.
func (b *Bot) Run(ctx context.Context) error {
	for _, sym := range b.cfg.Feed.Symbols {
		b.Watch(sym)
	}

	feedErr := make(chan error, 1)
	go func() { feedErr <- b.ingestor.Run(ctx) }()

	b.wg.Add(1)
	go b.runJobs(ctx)

	// route the merged stream until the feed closes it on shutdown
	for tick := range b.ingestor.Stream() {
		b.route(tick)
	}

	b.mu.Lock()
	for sym, ch := range b.workers {
		delete(b.workers, sym)
		close(ch)
	}
	b.mu.Unlock()
	b.wg.Wait()

	if err := <-feedErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Watch subscribes a symbol and starts its worker. Safe while running.
func (b *Bot) Watch(symbol string) {
	b.mu.Lock()
	if _, ok := b.workers[symbol]; ok {
		b.mu.Unlock()
		return
	}
	ch := make(chan market.Tick, 64)
	b.workers[symbol] = ch
	b.mu.Unlock()

	b.wg.Add(1)
	go b.worker(ch)
	b.ingestor.Subscribe(symbol)
}

// Unwatch unsubscribes a symbol and stops its worker. Any open position is
// deliberately left alone; stop polling still protects it.
func (b *Bot) Unwatch(symbol string) {
	b.ingestor.Unsubscribe(symbol)
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.workers[symbol]; ok {
		delete(b.workers, symbol)
		close(ch)
	}
}

// route hands a tick to its symbol worker. The lock also serializes against
// Unwatch closing the channel; the send never blocks because a saturated
// worker sheds its oldest tick first.
func (b *Bot) route(tick market.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.prices[tick.Symbol]; !ok || !tick.Ts.Before(prev.ts) {
		b.prices[tick.Symbol] = mark{price: tick.Price, ts: tick.Ts}
	}
	ch, ok := b.workers[tick.Symbol]
	if !ok {
		return
	}
	for {
		select {
		case ch <- tick:
			return
		default:
		}
		select {
		case <-ch:
			metrics.TicksDropped.WithLabelValues(tick.Symbol).Inc()
		default:
		}
	}
}

// worker processes one symbol's ticks in arrival order.
func (b *Bot) worker(ch <-chan market.Tick) {
	defer b.wg.Done()
	for tick := range ch {
		b.onTick(tick)
	}
}

func (b *Bot) onTick(tick market.Tick) {
	// the store is the ordering authority: a tick it refuses (stale or
	// malformed) must not touch stops, trailing or strategy state either
	if !b.store.Append(tick) {
		return
	}
	b.risk.UpdatePrice(tick.Symbol, tick.Price)

	// the inline stop check beats the poller to the exit when ticks flow
	if intent := b.risk.CheckStop(tick.Symbol, tick.Price); intent != nil {
		b.submit(intent)
		return
	}

	sig := b.engine.Evaluate(tick)
	if sig == nil {
		return
	}
	intent, err := b.risk.Approve(*sig)
	if err != nil {
		b.log.Debug().Err(err).Str("sym", sig.Symbol).Str("kind", string(sig.Kind)).Msg("signal refused")
		return
	}
	b.submit(intent)
}

// submit runs the order and reports the terminal outcome back to risk.
func (b *Bot) submit(intent *signal.Intent) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Execution.Timeout())
	defer cancel()
	order, err := b.exec.Submit(ctx, *intent)
	if err != nil {
		b.log.Error().Err(err).Str("sym", intent.Symbol).Msg("order submission failed")
	}
	b.risk.OnFill(order)
}

// runJobs drives the periodic work: stop polling as a safety net under the
// inline check, DCA accumulation and the portfolio summary.
func (b *Bot) runJobs(ctx context.Context) {
	defer b.wg.Done()

	stopTicker := time.NewTicker(b.cfg.Risk.StopPoll())
	defer stopTicker.Stop()
	summaryTicker := time.NewTicker(b.cfg.Portfolio.SummaryInterval())
	defer summaryTicker.Stop()

	var dcaC <-chan time.Time
	if b.cfg.DCA.Enabled {
		dcaTicker := time.NewTicker(b.cfg.DCA.Interval())
		defer dcaTicker.Stop()
		dcaC = dcaTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopTicker.C:
			for _, intent := range b.risk.PollStops(b.priceSnapshot()) {
				b.submit(intent)
			}
		case <-dcaC:
			b.runDCA()
		case <-summaryTicker.C:
			b.logSummary()
		}
	}
}

// runDCA places one fixed-notional buy per configured symbol. Refusals are
// normal here (an open position or a full book just skips the round).
func (b *Bot) runDCA() {
	for _, sym := range b.cfg.DCA.Symbols {
		price, ok := b.lastPrice(sym)
		if !ok {
			b.log.Warn().Str("sym", sym).Msg("dca skipped, no price yet")
			continue
		}
		intent, err := b.risk.ApproveBuyAmount(sym, price, b.cfg.DCA.Amount, "dca")
		if err != nil {
			b.log.Debug().Err(err).Str("sym", sym).Msg("dca refused")
			continue
		}
		b.submit(intent)
	}
}

func (b *Bot) logSummary() {
	snap := b.risk.Portfolio(b.priceSnapshot())
	b.log.Info().
		Float64("cash", snap.Cash).
		Float64("positions_value", snap.PositionsValue).
		Float64("total_value", snap.TotalValue).
		Float64("realized_pnl", snap.RealizedPnL).
		Float64("unrealized_pnl", snap.UnrealizedPnL).
		Float64("total_return", snap.TotalReturn).
		Float64("max_drawdown", snap.MaxDrawdown).
		Int("open_positions", len(snap.Positions)).
		Msg("portfolio summary")
}

func (b *Bot) priceSnapshot() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]float64, len(b.prices))
	for sym, m := range b.prices {
		out[sym] = m.price
	}
	return out
}

func (b *Bot) lastPrice(symbol string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.prices[symbol]
	return m.price, ok && m.price > 0
}
