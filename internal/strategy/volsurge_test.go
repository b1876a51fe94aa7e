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

func surgeCtx(price, volume, prevClose, avgVolume float64) Context {
	return Context{
		Tick:    market.Tick{Symbol: "VCB", Price: price, Volume: volume, Ts: time.Now()},
		Candles: []market.Candle{{Symbol: "VCB", Close: prevClose}},
		Snap:    indicator.Snapshot{AvgVolume: avgVolume},
	}
}

func TestVolumeSurgeBuy(t *testing.T) {
	strat := NewVolumeSurge(2.0)

	sig := strat.Evaluate(surgeCtx(102, 500, 100, 200))
	require.NotNil(t, sig)
	assert.Equal(t, signal.Buy, sig.Kind)
	assert.Equal(t, "volsurge", sig.Strategy)
}

func TestVolumeSurgeNegativeMoveSilent(t *testing.T) {
	strat := NewVolumeSurge(2.0)
	assert.Nil(t, strat.Evaluate(surgeCtx(99, 500, 100, 200)), "surge with falling price must not buy")
	assert.Nil(t, strat.Evaluate(surgeCtx(100, 500, 100, 200)), "flat price must not buy")
}

func TestVolumeSurgeBelowMultipleSilent(t *testing.T) {
	strat := NewVolumeSurge(2.0)
	assert.Nil(t, strat.Evaluate(surgeCtx(102, 399, 100, 200)))
}

func TestVolumeSurgeNoHistorySilent(t *testing.T) {
	strat := NewVolumeSurge(2.0)
	ctx := Context{Tick: market.Tick{Symbol: "VCB", Price: 102, Volume: 500}}
	assert.Nil(t, strat.Evaluate(ctx))
}
