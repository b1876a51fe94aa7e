package strategy

import (
	"fmt"
	"math"

	"dnsebot-go/internal/signal"
)

// VolumeSurge buys when current volume runs at a multiple of its rolling
// average while price moves up. It never emits on the short side.
type VolumeSurge struct {
	multiplier float64
}

// NewVolumeSurge constructs the surge detector.
func NewVolumeSurge(multiplier float64) *VolumeSurge {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &VolumeSurge{multiplier: multiplier}
}

func (v *VolumeSurge) Name() string { return "volsurge" }

func (v *VolumeSurge) Evaluate(ctx Context) *signal.Signal {
	snap := ctx.Snap
	if math.IsNaN(snap.AvgVolume) || snap.AvgVolume <= 0 {
		return nil
	}
	prevClose, ok := ctx.PrevClose()
	if !ok || prevClose <= 0 {
		return nil
	}
	tick := ctx.Tick
	if tick.Volume < v.multiplier*snap.AvgVolume {
		return nil
	}
	change := (tick.Price - prevClose) / prevClose
	if change <= 0 {
		return nil
	}
	return &signal.Signal{
		Symbol:   tick.Symbol,
		Kind:     signal.Buy,
		Price:    tick.Price,
		Strength: clamp(0.3 + change*10),
		Reason:   fmt.Sprintf("volume surge %.1fx with +%.2f%% move", tick.Volume/snap.AvgVolume, change*100),
		Strategy: v.Name(),
		Ts:       tick.Ts,
	}
}
