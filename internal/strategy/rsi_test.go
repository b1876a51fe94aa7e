package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsebot-go/internal/signal"
)

// runSequence evaluates the strategy after each new close and collects every
// emitted signal, mimicking per-tick evaluation over a growing window.
func runSequence(strat Strategy, closes []float64, minLen int) []*signal.Signal {
	var out []*signal.Signal
	for i := minLen; i <= len(closes); i++ {
		if sig := strat.Evaluate(closesCtx(closes[:i])); sig != nil {
			out = append(out, sig)
		}
	}
	return out
}

func declineThenRecover() []float64 {
	closes := []float64{100}
	for i := 0; i < 15; i++ {
		closes = append(closes, closes[len(closes)-1]-1)
	}
	for i := 0; i < 12; i++ {
		closes = append(closes, closes[len(closes)-1]+0.2)
	}
	return closes
}

func rallyThenFade() []float64 {
	closes := []float64{100}
	for i := 0; i < 15; i++ {
		closes = append(closes, closes[len(closes)-1]+1)
	}
	for i := 0; i < 12; i++ {
		closes = append(closes, closes[len(closes)-1]-0.2)
	}
	return closes
}

func TestRSIOversoldRecoveryBuys(t *testing.T) {
	strat := NewRSI(3, 30, 70, 5)

	signals := runSequence(strat, declineThenRecover(), 10)
	require.NotEmpty(t, signals, "expected a buy on the oversold recovery")
	for _, sig := range signals {
		assert.Equal(t, signal.Buy, sig.Kind)
		assert.Equal(t, "rsi", sig.Strategy)
	}
}

func TestRSIOverboughtFadeSells(t *testing.T) {
	strat := NewRSI(3, 30, 70, 5)

	signals := runSequence(strat, rallyThenFade(), 10)
	require.NotEmpty(t, signals, "expected a sell on the overbought fade")
	for _, sig := range signals {
		assert.Equal(t, signal.Sell, sig.Kind)
	}
}

func TestRSISilentWithoutOversoldDip(t *testing.T) {
	strat := NewRSI(3, 30, 70, 5)

	// steady grind up never visits oversold, so no recovery buy can exist
	closes := []float64{100}
	for i := 0; i < 25; i++ {
		closes = append(closes, closes[len(closes)-1]+0.5)
	}
	for _, sig := range runSequence(strat, closes, 10) {
		assert.NotEqual(t, signal.Buy, sig.Kind)
	}
}

func TestRSIShortWindowSilent(t *testing.T) {
	strat := NewRSI(14, 30, 70, 3)
	assert.Nil(t, strat.Evaluate(closesCtx([]float64{100, 99, 98})))
}
