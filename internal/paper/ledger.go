package paper

import (
	"sync"

	"dnsebot-go/internal/execution"
	"dnsebot-go/internal/signal"
)

// TradeStats aggregates one symbol's fills for end-of-session review.
type TradeStats struct {
	Fills        int
	BoughtQty    float64
	SoldQty      float64
	BuyNotional  float64
	SellNotional float64
}

// AvgBuyPrice is the notional-weighted average entry price.
func (s TradeStats) AvgBuyPrice() float64 {
	if s.BoughtQty <= 0 {
		return 0
	}
	return s.BuyNotional / s.BoughtQty
}

// AvgSellPrice is the notional-weighted average exit price.
func (s TradeStats) AvgSellPrice() float64 {
	if s.SoldQty <= 0 {
		return 0
	}
	return s.SellNotional / s.SoldQty
}

// Ledger keeps the session's paper fills in memory together with running
// per-symbol aggregates. When a retention bound is set the raw fill list
// drops its oldest entries, but the aggregates always cover the full
// session.
type Ledger struct {
	mu     sync.Mutex
	retain int
	fills  []execution.Fill
	stats  map[string]TradeStats
}

// NewLedger creates an empty ledger. retain bounds the raw fill history;
// zero or negative keeps everything.
func NewLedger(retain int) *Ledger {
	if retain < 0 {
		retain = 0
	}
	return &Ledger{
		retain: retain,
		stats:  make(map[string]TradeStats),
	}
}

// Record appends a fill and folds it into the symbol's aggregates.
func (l *Ledger) Record(fill execution.Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fills = append(l.fills, fill)
	if l.retain > 0 && len(l.fills) > l.retain {
		l.fills = append(l.fills[:0], l.fills[len(l.fills)-l.retain:]...)
	}

	s := l.stats[fill.Symbol]
	s.Fills++
	if fill.Side == signal.SideSell {
		s.SoldQty += fill.Qty
		s.SellNotional += fill.Qty * fill.Price
	} else {
		s.BoughtQty += fill.Qty
		s.BuyNotional += fill.Qty * fill.Price
	}
	l.stats[fill.Symbol] = s
}

// Snapshot returns a copy of the retained fills, oldest first.
func (l *Ledger) Snapshot() []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// ForSymbol returns the retained fills for one symbol, oldest first.
func (l *Ledger) ForSymbol(symbol string) []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []execution.Fill
	for _, f := range l.fills {
		if f.Symbol == symbol {
			out = append(out, f)
		}
	}
	return out
}

// Stats returns the full-session aggregates for one symbol.
func (l *Ledger) Stats(symbol string) TradeStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats[symbol]
}

// Reset clears the fills and aggregates.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.fills = l.fills[:0]
	l.stats = make(map[string]TradeStats)
	l.mu.Unlock()
}
