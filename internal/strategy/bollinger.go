package strategy

import (
	"fmt"
	"math"

	"dnsebot-go/internal/signal"
)

// Bollinger sells when price runs outside the upper band while momentum is
// already fading, and buys the bounce off the lower band.
type Bollinger struct {
	period int
	stddev float64
}

// NewBollinger constructs the band strategy.
func NewBollinger(period int, stddev float64) *Bollinger {
	if period <= 0 {
		period = 20
	}
	if stddev <= 0 {
		stddev = 2.0
	}
	return &Bollinger{period: period, stddev: stddev}
}

func (b *Bollinger) Name() string { return "bollinger" }

func (b *Bollinger) Evaluate(ctx Context) *signal.Signal {
	snap := ctx.Snap
	if math.IsNaN(snap.BBUpper) || math.IsNaN(snap.BBLower) {
		return nil
	}
	closes := ctx.Series.Closes
	if len(closes) < 3 {
		return nil
	}
	tick := ctx.Tick
	idx := len(closes) - 1
	lastDelta := closes[idx] - closes[idx-1]
	prevDelta := closes[idx-1] - closes[idx-2]

	if tick.Price > snap.BBUpper && lastDelta < prevDelta {
		return &signal.Signal{
			Symbol:   tick.Symbol,
			Kind:     signal.Sell,
			Price:    ctx.Tick.Price,
			Strength: clamp(0.4 + (tick.Price-snap.BBUpper)/snap.BBUpper*20),
			Reason:   fmt.Sprintf("price %.2f above upper band %.2f with fading momentum", tick.Price, snap.BBUpper),
			Strategy: b.Name(),
			Ts:       tick.Ts,
		}
	}

	// bounce: previous close below the lower band, price now back above it
	if closes[idx-1] < snap.BBLower && tick.Price > snap.BBLower {
		return &signal.Signal{
			Symbol:   tick.Symbol,
			Kind:     signal.Buy,
			Price:    ctx.Tick.Price,
			Strength: clamp(0.4 + (snap.BBLower-closes[idx-1])/snap.BBLower*20),
			Reason:   fmt.Sprintf("bounce off lower band %.2f", snap.BBLower),
			Strategy: b.Name(),
			Ts:       tick.Ts,
		}
	}
	return nil
}
