package strategy

import (
	"fmt"
	"math"

	"dnsebot-go/internal/signal"
)

// MeanReversion trades z-score extremes against the rolling mean. Kept out
// of the default strategy set; enable it explicitly in config.
type MeanReversion struct {
	period    int
	threshold float64
}

// NewMeanReversion constructs the z-score strategy.
func NewMeanReversion(period int, threshold float64) *MeanReversion {
	if period <= 0 {
		period = 20
	}
	if threshold <= 0 {
		threshold = 2.0
	}
	return &MeanReversion{period: period, threshold: threshold}
}

func (m *MeanReversion) Name() string { return "meanrev" }

func (m *MeanReversion) Evaluate(ctx Context) *signal.Signal {
	closes := ctx.Series.Closes
	if len(closes) < m.period {
		return nil
	}
	window := closes[len(closes)-m.period:]
	mean, std := meanStd(window)
	if std <= 0 {
		return nil
	}
	z := (ctx.Tick.Price - mean) / std
	if math.Abs(z) < m.threshold {
		return nil
	}

	kind := signal.Sell
	if z < 0 {
		kind = signal.Buy
	}
	return &signal.Signal{
		Symbol:   ctx.Tick.Symbol,
		Kind:     kind,
		Price:    ctx.Tick.Price,
		Strength: clamp(0.3 + (math.Abs(z)-m.threshold)/2),
		Reason:   fmt.Sprintf("z-score %.2f vs mean %.2f", z, mean),
		Strategy: m.Name(),
		Ts:       ctx.Tick.Ts,
	}
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
