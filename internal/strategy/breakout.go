package strategy

import (
	"fmt"
	"math"

	"dnsebot-go/internal/signal"
)

// Breakout buys when price clears the recent resistance on elevated volume
// and cuts when price falls through support the same way.
type Breakout struct {
	lookback   int
	volumeMult float64
}

// NewBreakout constructs the breakout strategy over the supplied
// support/resistance lookback.
func NewBreakout(lookback int, volumeMult float64) *Breakout {
	if lookback <= 0 {
		lookback = 50
	}
	if volumeMult <= 0 {
		volumeMult = 2.0
	}
	return &Breakout{lookback: lookback, volumeMult: volumeMult}
}

func (b *Breakout) Name() string { return "breakout" }

// Evaluate requires both conditions together: a level break and volume at or
// above the multiplier times average. Either one alone emits nothing.
func (b *Breakout) Evaluate(ctx Context) *signal.Signal {
	snap := ctx.Snap
	if math.IsNaN(snap.Resistance) || math.IsNaN(snap.AvgVolume) || snap.AvgVolume <= 0 {
		return nil
	}
	tick := ctx.Tick
	volumeOK := tick.Volume >= b.volumeMult*snap.AvgVolume
	if !volumeOK {
		return nil
	}
	volRatio := tick.Volume / (b.volumeMult * snap.AvgVolume)

	if tick.Price > snap.Resistance {
		return &signal.Signal{
			Symbol:   tick.Symbol,
			Kind:     signal.Buy,
			Price:    tick.Price,
			Strength: clamp(0.7 + 0.3*(volRatio-1)),
			Reason:   fmt.Sprintf("breakout above resistance %.2f on %.1fx volume", snap.Resistance, tick.Volume/snap.AvgVolume),
			Strategy: b.Name(),
			Ts:       tick.Ts,
		}
	}
	if !math.IsNaN(snap.Support) && tick.Price < snap.Support {
		return &signal.Signal{
			Symbol:   tick.Symbol,
			Kind:     signal.CutLoss,
			Price:    tick.Price,
			Strength: clamp(0.7 + 0.3*(volRatio-1)),
			Reason:   fmt.Sprintf("break below support %.2f on %.1fx volume", snap.Support, tick.Volume/snap.AvgVolume),
			Strategy: b.Name(),
			Ts:       tick.Ts,
		}
	}
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
