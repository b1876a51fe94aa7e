package strategy

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"dnsebot-go/internal/signal"
)

// MACross detects golden and death crosses of two simple moving averages.
// The cross is a sign change of short−long between the two most recent
// candles, not an absolute comparison, so a flat touch does not fire twice.
type MACross struct {
	short int
	long  int
}

// NewMACross builds the crossover strategy; short must be below long.
func NewMACross(short, long int) *MACross {
	if short <= 0 || long <= short {
		short, long = 20, 50
	}
	return &MACross{short: short, long: long}
}

func (m *MACross) Name() string { return "macross" }

func (m *MACross) Evaluate(ctx Context) *signal.Signal {
	closes := ctx.Series.Closes
	if len(closes) < m.long+1 {
		return nil
	}
	shortMA := talib.Sma(closes, m.short)
	longMA := talib.Sma(closes, m.long)
	idx := len(closes) - 1
	cur := shortMA[idx] - longMA[idx]
	prev := shortMA[idx-1] - longMA[idx-1]
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return nil
	}

	// magnitude of the separation relative to price scales the strength
	strength := clamp(0.5 + math.Abs(cur)/ctx.Tick.Price*100)

	switch {
	case prev <= 0 && cur > 0:
		return &signal.Signal{
			Symbol:   ctx.Tick.Symbol,
			Kind:     signal.Buy,
			Price:    ctx.Tick.Price,
			Strength: strength,
			Reason:   fmt.Sprintf("golden cross SMA%d>SMA%d", m.short, m.long),
			Strategy: m.Name(),
			Ts:       ctx.Tick.Ts,
		}
	case prev >= 0 && cur < 0:
		return &signal.Signal{
			Symbol:   ctx.Tick.Symbol,
			Kind:     signal.Sell,
			Price:    ctx.Tick.Price,
			Strength: strength,
			Reason:   fmt.Sprintf("death cross SMA%d<SMA%d", m.short, m.long),
			Strategy: m.Name(),
			Ts:       ctx.Tick.Ts,
		}
	}
	return nil
}
