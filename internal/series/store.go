// Package series maintains the per-symbol rolling history the strategy layer
// computes indicators from. Each symbol's history is bounded: the oldest
// entries are evicted first, so memory stays flat for any tick sequence.
package series

import (
	"sync"
	"time"

	"dnsebot-go/internal/market"
)

// Store holds bounded tick and candle history per symbol. It is mutated only
// by the symbol's processing worker; reads return copies so callers always
// see a consistent snapshot.
type Store struct {
	mu             sync.RWMutex
	tickCapacity   int
	candleCapacity int
	interval       time.Duration
	symbols        map[string]*symbolSeries
}

type symbolSeries struct {
	ticks   *ring[market.Tick]
	candles *ring[market.Candle]
	open    *market.Candle // bucket currently being built
	lastTs  time.Time
}

const (
	defaultTickCapacity   = 512
	defaultCandleCapacity = 256
	defaultInterval       = time.Minute
)

// NewStore constructs a store with the supplied per-symbol capacities and
// candle bucket interval. Non-positive arguments fall back to defaults.
func NewStore(tickCapacity, candleCapacity int, interval time.Duration) *Store {
	if tickCapacity <= 0 {
		tickCapacity = defaultTickCapacity
	}
	if candleCapacity <= 0 {
		candleCapacity = defaultCandleCapacity
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Store{
		tickCapacity:   tickCapacity,
		candleCapacity: candleCapacity,
		interval:       interval,
		symbols:        make(map[string]*symbolSeries),
	}
}

// Append records a tick and advances candle aggregation. Ticks that do not
// move the symbol's clock forward (out of order or duplicate timestamps) are
// dropped and reported as false.
func (s *Store) Append(tick market.Tick) bool {
	if tick.Symbol == "" || tick.Price <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ser := s.symbols[tick.Symbol]
	if ser == nil {
		ser = &symbolSeries{
			ticks:   newRing[market.Tick](s.tickCapacity),
			candles: newRing[market.Candle](s.candleCapacity),
		}
		s.symbols[tick.Symbol] = ser
	}

	if !ser.lastTs.IsZero() && !tick.Ts.After(ser.lastTs) {
		return false
	}
	ser.lastTs = tick.Ts
	ser.ticks.push(tick)
	s.aggregate(ser, tick)
	return true
}

func (s *Store) aggregate(ser *symbolSeries, tick market.Tick) {
	start := tick.Ts.Truncate(s.interval)
	if ser.open != nil && start.After(ser.open.Start) {
		// the open bucket's end time has passed, finalize it
		ser.candles.push(*ser.open)
		ser.open = nil
	}
	if ser.open == nil {
		ser.open = &market.Candle{
			Symbol: tick.Symbol,
			Open:   tick.Price,
			High:   tick.Price,
			Low:    tick.Price,
			Close:  tick.Price,
			Volume: tick.Volume,
			Start:  start,
			End:    start.Add(s.interval),
		}
		return
	}
	c := ser.open
	if tick.Price > c.High {
		c.High = tick.Price
	}
	if tick.Price < c.Low {
		c.Low = tick.Price
	}
	c.Close = tick.Price
	c.Volume += tick.Volume
}

// Ticks returns up to n most recent ticks for the symbol, oldest first.
func (s *Store) Ticks(symbol string, n int) []market.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.symbols[symbol]
	if ser == nil {
		return nil
	}
	return ser.ticks.tail(n)
}

// Candles returns up to n most recent finalized candles, oldest first. The
// bucket currently being built is excluded until its end time passes.
func (s *Store) Candles(symbol string, n int) []market.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.symbols[symbol]
	if ser == nil {
		return nil
	}
	return ser.candles.tail(n)
}

// LastPrice returns the most recent traded price, or false when the symbol
// has no history yet.
func (s *Store) LastPrice(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.symbols[symbol]
	if ser == nil || ser.ticks.len() == 0 {
		return 0, false
	}
	return ser.ticks.last().Price, true
}

// Len reports the number of stored ticks for a symbol.
func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.symbols[symbol]
	if ser == nil {
		return 0
	}
	return ser.ticks.len()
}

// ring is a fixed-capacity buffer that overwrites its oldest entry when full.
type ring[T any] struct {
	buf   []T
	head  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = v
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

func (r *ring[T]) len() int { return r.count }

func (r *ring[T]) last() T {
	return r.buf[(r.head+r.count-1)%len(r.buf)]
}

// tail copies up to n most recent entries, oldest first.
func (r *ring[T]) tail(n int) []T {
	if n <= 0 || n > r.count {
		n = r.count
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	start := r.head + r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
