package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsebot-go/internal/market"
)

func flatCandles(n int, price, volume float64) []market.Candle {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.Candle{
			Symbol: "VCB",
			Open:   price, High: price, Low: price, Close: price,
			Volume: volume,
			Start:  base.Add(time.Duration(i) * time.Minute),
			End:    base.Add(time.Duration(i+1) * time.Minute),
		}
	}
	return candles
}

func TestComputeInsufficientHistory(t *testing.T) {
	snap := Compute(FromCandles(flatCandles(3, 100, 10)), DefaultParams())
	assert.True(t, math.IsNaN(snap.SMALong))
	assert.True(t, math.IsNaN(snap.RSI))
	assert.True(t, math.IsNaN(snap.ATR))
	// short windows still yield support/resistance and average volume
	assert.Equal(t, 100.0, snap.Resistance)
	assert.Equal(t, 10.0, snap.AvgVolume)
}

func TestComputeFlatSeries(t *testing.T) {
	snap := Compute(FromCandles(flatCandles(80, 100, 10)), DefaultParams())
	require.False(t, math.IsNaN(snap.SMAShort))
	assert.InDelta(t, 100.0, snap.SMAShort, 1e-9)
	assert.InDelta(t, 100.0, snap.SMALong, 1e-9)
	assert.InDelta(t, 100.0, snap.EMAShort, 1e-9)
	assert.InDelta(t, 100.0, snap.BBMiddle, 1e-9)
	// zero variance collapses the bands onto the mean
	assert.InDelta(t, snap.BBMiddle, snap.BBUpper, 1e-9)
	assert.InDelta(t, snap.BBMiddle, snap.BBLower, 1e-9)
	assert.InDelta(t, 0.0, snap.ATR, 1e-9)
	assert.Equal(t, 100.0, snap.Support)
	assert.Equal(t, 100.0, snap.Resistance)
}

func TestComputeTrendingSeries(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, 60)
	price := 100.0
	for i := range candles {
		price += 1.0
		candles[i] = market.Candle{
			Symbol: "VCB",
			Open:   price - 1, High: price + 0.5, Low: price - 1.5, Close: price,
			Volume: 100,
			Start:  base.Add(time.Duration(i) * time.Minute),
		}
	}
	snap := Compute(FromCandles(candles), DefaultParams())

	// monotonic rise: short averages above long, RSI pinned high
	assert.Greater(t, snap.SMAShort, snap.SMALong)
	assert.Greater(t, snap.EMAShort, snap.EMALong)
	assert.Greater(t, snap.RSI, 70.0)
	assert.Greater(t, snap.ATR, 0.0)
	// resistance excludes the newest finalized candle
	assert.Equal(t, candles[58].High, snap.Resistance)
}

func TestComputeExcludesNewestCandleFromReferenceLevels(t *testing.T) {
	candles := flatCandles(30, 100, 10)
	last := &candles[29]
	last.High, last.Close = 120, 118
	last.Volume = 500

	snap := Compute(FromCandles(candles), DefaultParams())

	// the just-closed breakout bar must not lift its own reference levels:
	// it is compared against the 29 bars before it
	assert.Equal(t, 100.0, snap.Resistance)
	assert.InDelta(t, 10.0, snap.AvgVolume, 1e-9)
}

func TestSupportResistanceLookback(t *testing.T) {
	highs := []float64{200, 101, 102, 103}
	lows := []float64{50, 99, 98, 97}
	support, resistance := supportResistance(highs, lows, 3)
	assert.Equal(t, 103.0, resistance, "spike outside lookback must be ignored")
	assert.Equal(t, 97.0, support)
}
