package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsebot-go/internal/indicator"
	"dnsebot-go/internal/market"
	"dnsebot-go/internal/signal"
)

func breakoutCtx(price, volume, resistance, support, avgVolume float64) Context {
	return Context{
		Tick: market.Tick{Symbol: "VCB", Price: price, Volume: volume, Ts: time.Now()},
		Snap: indicator.Snapshot{Resistance: resistance, Support: support, AvgVolume: avgVolume},
	}
}

func TestBreakoutBuy(t *testing.T) {
	strat := NewBreakout(50, 2.0)

	// VCB clears a 94000 resistance at 95000 on 2.5x the average volume
	sig := strat.Evaluate(breakoutCtx(95000, 150000, 94000, 80000, 60000))
	require.NotNil(t, sig)
	assert.Equal(t, signal.Buy, sig.Kind)
	assert.Equal(t, "breakout", sig.Strategy)
	assert.Equal(t, "VCB", sig.Symbol)
	assert.Greater(t, sig.Strength, 0.0)
}

func TestBreakoutNegatedConditions(t *testing.T) {
	strat := NewBreakout(50, 2.0)

	cases := map[string]Context{
		"price below resistance":   breakoutCtx(93000, 150000, 94000, 80000, 60000),
		"volume below threshold":   breakoutCtx(95000, 119999, 94000, 80000, 60000),
		"both conditions negated":  breakoutCtx(93000, 50000, 94000, 80000, 60000),
		"price equal to resistance": breakoutCtx(94000, 150000, 94000, 80000, 60000),
	}
	for name, ctx := range cases {
		assert.Nil(t, strat.Evaluate(ctx), name)
	}
}

func TestBreakoutSupportBreakCutLoss(t *testing.T) {
	strat := NewBreakout(50, 2.0)

	sig := strat.Evaluate(breakoutCtx(79000, 150000, 94000, 80000, 60000))
	require.NotNil(t, sig)
	assert.Equal(t, signal.CutLoss, sig.Kind)
}

func TestBreakoutNoHistory(t *testing.T) {
	strat := NewBreakout(50, 2.0)
	ctx := breakoutCtx(95000, 150000, math.NaN(), math.NaN(), math.NaN())
	assert.Nil(t, strat.Evaluate(ctx))
}
