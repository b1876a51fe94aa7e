package strategy

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"dnsebot-go/internal/signal"
)

// rsiRecoveryWindow bounds how far back the dip below the oversold (or spike
// above the overbought) level may lie for a recovery cross to count.
const rsiRecoveryWindow = 5

// RSI emits on recovery crosses with a hysteresis band: price must first
// dip below oversold, then cross back up through oversold+hysteresis, so a
// value flapping exactly at the threshold stays silent.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
	hysteresis float64
}

// NewRSI constructs the RSI recovery strategy.
func NewRSI(period int, oversold, overbought, hysteresis float64) *RSI {
	if period <= 0 {
		period = 14
	}
	if oversold <= 0 || overbought <= oversold {
		oversold, overbought = 30, 70
	}
	if hysteresis < 0 {
		hysteresis = 3
	}
	return &RSI{period: period, oversold: oversold, overbought: overbought, hysteresis: hysteresis}
}

func (r *RSI) Name() string { return "rsi" }

func (r *RSI) Evaluate(ctx Context) *signal.Signal {
	closes := ctx.Series.Closes
	if len(closes) < r.period+rsiRecoveryWindow+1 {
		return nil
	}
	values := talib.Rsi(closes, r.period)
	idx := len(values) - 1
	cur, prev := values[idx], values[idx-1]
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return nil
	}

	buyLevel := r.oversold + r.hysteresis
	if cur >= buyLevel && prev < buyLevel && r.dippedBelow(values, idx, r.oversold) {
		return &signal.Signal{
			Symbol:   ctx.Tick.Symbol,
			Kind:     signal.Buy,
			Price:    ctx.Tick.Price,
			Strength: clamp(0.4 + (r.oversold-minRecent(values, idx))/r.oversold),
			Reason:   fmt.Sprintf("RSI recovered to %.1f after oversold", cur),
			Strategy: r.Name(),
			Ts:       ctx.Tick.Ts,
		}
	}

	sellLevel := r.overbought - r.hysteresis
	if cur <= sellLevel && prev > sellLevel && r.spikedAbove(values, idx, r.overbought) {
		return &signal.Signal{
			Symbol:   ctx.Tick.Symbol,
			Kind:     signal.Sell,
			Price:    ctx.Tick.Price,
			Strength: clamp(0.4 + (maxRecent(values, idx)-r.overbought)/(100-r.overbought)),
			Reason:   fmt.Sprintf("RSI fell to %.1f after overbought", cur),
			Strategy: r.Name(),
			Ts:       ctx.Tick.Ts,
		}
	}
	return nil
}

func (r *RSI) dippedBelow(values []float64, idx int, level float64) bool {
	for i := max(0, idx-rsiRecoveryWindow); i < idx; i++ {
		if values[i] < level {
			return true
		}
	}
	return false
}

func (r *RSI) spikedAbove(values []float64, idx int, level float64) bool {
	for i := max(0, idx-rsiRecoveryWindow); i < idx; i++ {
		if values[i] > level {
			return true
		}
	}
	return false
}

func minRecent(values []float64, idx int) float64 {
	m := values[idx]
	for i := max(0, idx-rsiRecoveryWindow); i < idx; i++ {
		if values[i] < m {
			m = values[i]
		}
	}
	return m
}

func maxRecent(values []float64, idx int) float64 {
	m := values[idx]
	for i := max(0, idx-rsiRecoveryWindow); i < idx; i++ {
		if values[i] > m {
			m = values[i]
		}
	}
	return m
}
