// Package strategy implements the rule-based signal generators and the
// engine that arbitrates between them. Every strategy is a pure function of
// the rolling window handed to it in a Context; no strategy holds state of
// its own, which keeps them independently testable.
package strategy

import (
	"strings"

	"dnsebot-go/internal/indicator"
	"dnsebot-go/internal/market"
	"dnsebot-go/internal/signal"
)

// Context carries everything a strategy may inspect for one evaluation.
type Context struct {
	Tick    market.Tick
	Candles []market.Candle
	Series  indicator.Series
	Snap    indicator.Snapshot
}

// PrevClose returns the close of the most recent finalized candle.
func (c Context) PrevClose() (float64, bool) {
	if len(c.Candles) == 0 {
		return 0, false
	}
	return c.Candles[len(c.Candles)-1].Close, true
}

// Strategy evaluates one tick against the current window and emits at most
// one signal.
type Strategy interface {
	Name() string
	Evaluate(ctx Context) *signal.Signal
}

// Params groups the tunable knobs shared by strategy constructors.
type Params struct {
	BreakoutLookback     int
	VolumeMultiplier     float64
	MACrossShort         int
	MACrossLong          int
	RSIPeriod            int
	RSIOversold          float64
	RSIOverbought        float64
	RSIHysteresis        float64
	VolSurgeMultiplier   float64
	BollingerPeriod      int
	BollingerStdDev      float64
	MeanRevPeriod        int
	MeanRevZScore        float64
}

// DefaultParams returns the conventional parameterization.
func DefaultParams() Params {
	return Params{
		BreakoutLookback:   50,
		VolumeMultiplier:   2.0,
		MACrossShort:       20,
		MACrossLong:        50,
		RSIPeriod:          14,
		RSIOversold:        30,
		RSIOverbought:      70,
		RSIHysteresis:      3,
		VolSurgeMultiplier: 2.0,
		BollingerPeriod:    20,
		BollingerStdDev:    2.0,
		MeanRevPeriod:      20,
		MeanRevZScore:      2.0,
	}
}

// Build returns the strategies matching the enabled names, ordered by the
// fixed arbitration priority: breakout > macross > rsi > volsurge >
// bollinger > meanrev. Unknown names are skipped.
func Build(enabled []string, params Params) []Strategy {
	aliases := map[string]string{
		"ma_crossover":   "macross",
		"volume_surge":   "volsurge",
		"mean_reversion": "meanrev",
	}
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		want[name] = true
	}
	all := []Strategy{
		NewBreakout(params.BreakoutLookback, params.VolumeMultiplier),
		NewMACross(params.MACrossShort, params.MACrossLong),
		NewRSI(params.RSIPeriod, params.RSIOversold, params.RSIOverbought, params.RSIHysteresis),
		NewVolumeSurge(params.VolSurgeMultiplier),
		NewBollinger(params.BollingerPeriod, params.BollingerStdDev),
		NewMeanReversion(params.MeanRevPeriod, params.MeanRevZScore),
	}
	out := make([]Strategy, 0, len(all))
	for _, s := range all {
		if want[s.Name()] {
			out = append(out, s)
		}
	}
	return out
}
