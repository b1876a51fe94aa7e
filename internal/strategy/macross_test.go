package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsebot-go/internal/indicator"
	"dnsebot-go/internal/market"
	"dnsebot-go/internal/signal"
)

func closesCtx(closes []float64) Context {
	last := closes[len(closes)-1]
	return Context{
		Tick:   market.Tick{Symbol: "VCB", Price: last, Ts: time.Now()},
		Series: indicator.Series{Closes: closes},
	}
}

func TestMACrossGoldenCross(t *testing.T) {
	strat := NewMACross(2, 3)

	sig := strat.Evaluate(closesCtx([]float64{10, 10, 10, 10, 9, 8, 12}))
	require.NotNil(t, sig)
	assert.Equal(t, signal.Buy, sig.Kind)
	assert.Equal(t, "macross", sig.Strategy)
}

func TestMACrossDeathCross(t *testing.T) {
	strat := NewMACross(2, 3)

	sig := strat.Evaluate(closesCtx([]float64{10, 10, 10, 10, 11, 12, 8}))
	require.NotNil(t, sig)
	assert.Equal(t, signal.Sell, sig.Kind)
}

func TestMACrossNoRetriggerAfterCross(t *testing.T) {
	strat := NewMACross(2, 3)

	// the cross happened one candle ago; the diff stays positive now, so a
	// second evaluation must stay silent
	assert.Nil(t, strat.Evaluate(closesCtx([]float64{10, 10, 10, 10, 9, 8, 12, 13})))
}

func TestMACrossFlatSeriesSilent(t *testing.T) {
	strat := NewMACross(2, 3)
	assert.Nil(t, strat.Evaluate(closesCtx([]float64{10, 10, 10, 10, 10, 10, 10})))
}

func TestMACrossShortWindow(t *testing.T) {
	strat := NewMACross(2, 3)
	assert.Nil(t, strat.Evaluate(closesCtx([]float64{10, 11, 12})))
}
