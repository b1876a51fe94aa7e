package strategy

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dnsebot-go/internal/indicator"
	"dnsebot-go/internal/market"
	"dnsebot-go/internal/metrics"
	"dnsebot-go/internal/series"
	"dnsebot-go/internal/signal"
)

// CooldownPolicy selects how duplicate signals inside the cool-down window
// are handled.
type CooldownPolicy string

const (
	// SuppressNewer drops the later duplicate (default).
	SuppressNewer CooldownPolicy = "suppress_newer"
	// ReplaceOlder lets the later duplicate through and restarts the window.
	ReplaceOlder CooldownPolicy = "replace_older"
)

// Engine runs the configured strategies over the rolling window and
// arbitrates conflicting signals: highest strength wins, ties defer to the
// fixed priority order the strategies were built in.
type Engine struct {
	strategies []Strategy
	store      *series.Store
	indParams  indicator.Params
	window     int
	cooldown   time.Duration
	policy     CooldownPolicy
	log        zerolog.Logger

	mu       sync.Mutex
	lastEmit map[string]time.Time // symbol|kind -> last emit
}

// NewEngine wires the strategy set to the shared rolling store.
func NewEngine(strategies []Strategy, store *series.Store, indParams indicator.Params, window int, cooldown time.Duration, policy CooldownPolicy, log zerolog.Logger) *Engine {
	if window <= 0 {
		window = 120
	}
	if policy == "" {
		policy = SuppressNewer
	}
	return &Engine{
		strategies: strategies,
		store:      store,
		indParams:  indParams,
		window:     window,
		cooldown:   cooldown,
		policy:     policy,
		log:        log,
		lastEmit:   make(map[string]time.Time),
	}
}

// Evaluate runs every strategy against the window for the tick's symbol and
// returns the winning actionable signal, or nil. HOLD is never returned.
func (e *Engine) Evaluate(tick market.Tick) *signal.Signal {
	candles := e.store.Candles(tick.Symbol, e.window)
	ser := indicator.FromCandles(candles)
	ctx := Context{
		Tick:    tick,
		Candles: candles,
		Series:  ser,
		Snap:    indicator.Compute(ser, e.indParams),
	}

	var best *signal.Signal
	for _, strat := range e.strategies {
		sig := strat.Evaluate(ctx)
		if sig == nil || sig.Kind == signal.Hold {
			continue
		}
		e.log.Debug().
			Str("sym", sig.Symbol).Str("kind", string(sig.Kind)).
			Str("strategy", sig.Strategy).Float64("strength", sig.Strength).
			Str("reason", sig.Reason).Msg("strategy fired")
		// strict greater keeps the earlier (higher priority) strategy on ties
		if best == nil || sig.Strength > best.Strength {
			best = sig
		}
	}
	if best == nil {
		return nil
	}
	if e.suppressed(best) {
		metrics.SignalsSuppressed.WithLabelValues(best.Symbol, string(best.Kind)).Inc()
		return nil
	}
	metrics.SignalsTotal.WithLabelValues(best.Symbol, string(best.Kind), best.Strategy).Inc()
	return best
}

// suppressed applies the per symbol+kind cool-down window.
func (e *Engine) suppressed(sig *signal.Signal) bool {
	if e.cooldown <= 0 {
		return false
	}
	key := sig.Symbol + "|" + string(sig.Kind)

	e.mu.Lock()
	defer e.mu.Unlock()
	last, seen := e.lastEmit[key]
	if seen && sig.Ts.Sub(last) < e.cooldown && e.policy == SuppressNewer {
		return true
	}
	e.lastEmit[key] = sig.Ts
	return false
}
