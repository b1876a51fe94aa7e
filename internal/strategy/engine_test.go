package strategy

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsebot-go/internal/indicator"
	"dnsebot-go/internal/market"
	"dnsebot-go/internal/series"
	"dnsebot-go/internal/signal"
)

type stubStrategy struct {
	name     string
	kind     signal.Kind
	strength float64
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) Evaluate(ctx Context) *signal.Signal {
	if s.kind == "" {
		return nil
	}
	return &signal.Signal{
		Symbol:   ctx.Tick.Symbol,
		Kind:     s.kind,
		Strength: s.strength,
		Strategy: s.name,
		Ts:       ctx.Tick.Ts,
	}
}

func newTestEngine(cooldown time.Duration, policy CooldownPolicy, strategies ...Strategy) *Engine {
	store := series.NewStore(64, 64, time.Minute)
	return NewEngine(strategies, store, indicator.DefaultParams(), 50, cooldown, policy, zerolog.Nop())
}

func TestEngineHighestStrengthWins(t *testing.T) {
	engine := newTestEngine(0, SuppressNewer,
		stubStrategy{name: "breakout", kind: signal.Buy, strength: 0.5},
		stubStrategy{name: "rsi", kind: signal.Sell, strength: 0.9},
	)

	sig := engine.Evaluate(market.Tick{Symbol: "VCB", Price: 100, Ts: time.Now()})
	require.NotNil(t, sig)
	assert.Equal(t, "rsi", sig.Strategy)
	assert.Equal(t, signal.Sell, sig.Kind)
}

func TestEngineEqualStrengthDefersToPriority(t *testing.T) {
	engine := newTestEngine(0, SuppressNewer,
		stubStrategy{name: "breakout", kind: signal.Buy, strength: 0.7},
		stubStrategy{name: "bollinger", kind: signal.Sell, strength: 0.7},
	)

	sig := engine.Evaluate(market.Tick{Symbol: "VCB", Price: 100, Ts: time.Now()})
	require.NotNil(t, sig)
	assert.Equal(t, "breakout", sig.Strategy, "tie must go to the earlier strategy in priority order")
}

func TestEngineCooldownSuppressesDuplicate(t *testing.T) {
	engine := newTestEngine(time.Minute, SuppressNewer,
		stubStrategy{name: "breakout", kind: signal.Buy, strength: 0.8},
	)
	now := time.Now()

	first := engine.Evaluate(market.Tick{Symbol: "VCB", Price: 100, Ts: now})
	require.NotNil(t, first)

	dup := engine.Evaluate(market.Tick{Symbol: "VCB", Price: 101, Ts: now.Add(10 * time.Second)})
	assert.Nil(t, dup, "duplicate kind inside cool-down must be suppressed")

	later := engine.Evaluate(market.Tick{Symbol: "VCB", Price: 102, Ts: now.Add(2 * time.Minute)})
	assert.NotNil(t, later, "signal after the window must pass")
}

func TestEngineCooldownScopedToSymbolAndKind(t *testing.T) {
	engine := newTestEngine(time.Minute, SuppressNewer,
		stubStrategy{name: "breakout", kind: signal.Buy, strength: 0.8},
	)
	now := time.Now()

	require.NotNil(t, engine.Evaluate(market.Tick{Symbol: "VCB", Price: 100, Ts: now}))
	assert.NotNil(t, engine.Evaluate(market.Tick{Symbol: "VHM", Price: 50, Ts: now.Add(time.Second)}),
		"cool-down on VCB must not gag VHM")
}

func TestEngineReplaceOlderPolicy(t *testing.T) {
	engine := newTestEngine(time.Minute, ReplaceOlder,
		stubStrategy{name: "breakout", kind: signal.Buy, strength: 0.8},
	)
	now := time.Now()

	require.NotNil(t, engine.Evaluate(market.Tick{Symbol: "VCB", Price: 100, Ts: now}))
	assert.NotNil(t, engine.Evaluate(market.Tick{Symbol: "VCB", Price: 101, Ts: now.Add(time.Second)}))
}

func TestEngineNoStrategiesSilent(t *testing.T) {
	engine := newTestEngine(0, SuppressNewer)
	assert.Nil(t, engine.Evaluate(market.Tick{Symbol: "VCB", Price: 100, Ts: time.Now()}))
}

func TestBuildOrdersByPriority(t *testing.T) {
	strategies := Build([]string{"bollinger", "rsi", "breakout", "unknown"}, DefaultParams())
	require.Len(t, strategies, 3)
	assert.Equal(t, "breakout", strategies[0].Name())
	assert.Equal(t, "rsi", strategies[1].Name())
	assert.Equal(t, "bollinger", strategies[2].Name())
}
