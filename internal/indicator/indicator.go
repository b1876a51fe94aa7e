// Package indicator computes technical indicator snapshots from rolling
// candle history. All computation is pure: callers pass the window in and get
// values out, nothing is cached between evaluations.
package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"dnsebot-go/internal/market"
)

// Params bundles the lookback periods used across the snapshot.
type Params struct {
	SMAShort  int
	SMALong   int
	EMAShort  int
	EMALong   int
	RSIPeriod int
	BBPeriod  int
	BBStdDev  float64
	ATRPeriod int
	SRLookback int // support/resistance window
}

// DefaultParams mirrors the conventional 20/50 SMA, 12/26 EMA, 14 RSI setup.
func DefaultParams() Params {
	return Params{
		SMAShort:   20,
		SMALong:    50,
		EMAShort:   12,
		EMALong:    26,
		RSIPeriod:  14,
		BBPeriod:   20,
		BBStdDev:   2.0,
		ATRPeriod:  14,
		SRLookback: 50,
	}
}

// Snapshot holds indicator values for one symbol at one point in time.
// Fields the window is too short to compute are NaN.
type Snapshot struct {
	SMAShort   float64
	SMALong    float64
	EMAShort   float64
	EMALong    float64
	RSI        float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	ATR        float64
	AvgVolume  float64
	Resistance float64
	Support    float64
}

// Series is the raw column view of a candle window.
type Series struct {
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// FromCandles flattens a candle window into indicator input columns.
func FromCandles(candles []market.Candle) Series {
	s := Series{
		Opens:   make([]float64, len(candles)),
		Highs:   make([]float64, len(candles)),
		Lows:    make([]float64, len(candles)),
		Closes:  make([]float64, len(candles)),
		Volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Opens[i] = c.Open
		s.Highs[i] = c.High
		s.Lows[i] = c.Low
		s.Closes[i] = c.Close
		s.Volumes[i] = c.Volume
	}
	return s
}

var nan = math.NaN()

// Compute derives a snapshot from the supplied series.
func Compute(s Series, p Params) Snapshot {
	snap := Snapshot{
		SMAShort: nan, SMALong: nan, EMAShort: nan, EMALong: nan,
		RSI: nan, BBUpper: nan, BBMiddle: nan, BBLower: nan, ATR: nan,
		AvgVolume: nan, Resistance: nan, Support: nan,
	}
	n := len(s.Closes)
	if n == 0 {
		return snap
	}
	idx := n - 1

	snap.SMAShort = lastAfter(talib.Sma(s.Closes, p.SMAShort), p.SMAShort, n)
	snap.SMALong = lastAfter(talib.Sma(s.Closes, p.SMALong), p.SMALong, n)
	snap.EMAShort = lastAfter(talib.Ema(s.Closes, p.EMAShort), p.EMAShort, n)
	snap.EMALong = lastAfter(talib.Ema(s.Closes, p.EMALong), p.EMALong, n)

	if n > p.RSIPeriod {
		snap.RSI = talib.Rsi(s.Closes, p.RSIPeriod)[idx]
	}
	if n >= p.BBPeriod {
		upper, middle, lower := talib.BBands(s.Closes, p.BBPeriod, p.BBStdDev, p.BBStdDev, talib.SMA)
		snap.BBUpper, snap.BBMiddle, snap.BBLower = upper[idx], middle[idx], lower[idx]
	}
	if n > p.ATRPeriod {
		snap.ATR = talib.Atr(s.Highs, s.Lows, s.Closes, p.ATRPeriod)[idx]
	}

	// average volume and support/resistance exclude the newest finalized
	// candle on purpose: a just-closed surge or breakout bar must not raise
	// the reference levels it is being compared against
	if n >= 2 {
		var sum float64
		for _, v := range s.Volumes[:idx] {
			sum += v
		}
		snap.AvgVolume = sum / float64(idx)
	}
	snap.Support, snap.Resistance = supportResistance(s.Highs[:idx], s.Lows[:idx], p.SRLookback)
	return snap
}

func supportResistance(highs, lows []float64, lookback int) (float64, float64) {
	if len(highs) == 0 {
		return nan, nan
	}
	if lookback > 0 && len(highs) > lookback {
		highs = highs[len(highs)-lookback:]
		lows = lows[len(lows)-lookback:]
	}
	resistance := highs[0]
	support := lows[0]
	for i := range highs {
		if highs[i] > resistance {
			resistance = highs[i]
		}
		if lows[i] < support {
			support = lows[i]
		}
	}
	return support, resistance
}

// lastAfter picks the final value of a talib output, guarding the warm-up
// region where go-talib emits zeros instead of NaN.
func lastAfter(values []float64, period, n int) float64 {
	if n < period || len(values) == 0 {
		return nan
	}
	return values[len(values)-1]
}
