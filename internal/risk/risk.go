// Package risk holds the authoritative position and exposure state. It turns
// signals into approved intents, enforces the virtual stop-loss the venue
// cannot host, and is the only writer of position state.
package risk

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dnsebot-go/internal/execution"
	"dnsebot-go/internal/metrics"
	"dnsebot-go/internal/signal"
)

// Refusal reasons callers can branch on. These are terminal: a refused
// signal is dropped, never queued or retried.
var (
	ErrMaxPositions  = errors.New("maximum concurrent positions reached")
	ErrPositionOpen  = errors.New("position already open for symbol")
	ErrNoPosition    = errors.New("no open position for symbol")
	ErrClosing       = errors.New("position is already closing")
	ErrZeroSize      = errors.New("computed position size rounds to zero")
	ErrDrawdownLimit = errors.New("max drawdown limit reached")
	ErrNotActionable = errors.New("signal is not actionable")
)

type posState int

const (
	stateOpen posState = iota
	stateClosing
)

// Position is the live view of one open symbol. At most one position per
// symbol exists at a time; quantity never goes below zero.
type Position struct {
	Symbol        string
	Qty           float64
	AvgEntryPrice float64
	StopLoss      float64
	OpenedAt      time.Time
}

type position struct {
	Position
	state posState
}

// Config carries the sizing and stop parameters. All limits are enforced at
// Approve time. The poll interval for virtual stops lives with the
// orchestrator; it is a deliberate latency/risk tradeoff because a crash
// between polls can miss a stop trigger.
type Config struct {
	InitialCapital  float64
	RiskPerTrade    float64 // fraction of capital risked per trade
	MaxPositions    int
	MaxPositionSize float64 // notional cap per position
	StopLossPct     float64
	TrailActivation float64 // unrealized gain fraction that arms the trailing stop
	TrailPct        float64 // distance the armed stop trails behind price
	MaxDrawdownPct  float64
	LotSize         float64 // board lot; quantities are floored to it
}

// PortfolioSnapshot is the read-only aggregate served to the dashboard layer.
type PortfolioSnapshot struct {
	Cash           float64
	PositionsValue float64
	TotalValue     float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	TotalReturn    float64
	MaxDrawdown    float64
	Positions      []Position
}

// Manager owns position state: exclusive writes, snapshot reads.
type Manager struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	cash        float64
	peakEquity  float64
	maxDrawdown float64
	realizedPnL float64
	positions   map[string]*position
	// reserved marks symbols with an approved BUY that has not reported a
	// fill yet, so concurrent approvals cannot oversubscribe max_positions
	reserved map[string]float64 // symbol -> reserved notional
}

// NewManager constructs a manager with the full starting bankroll in cash.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	if cfg.LotSize <= 0 {
		cfg.LotSize = 100
	}
	return &Manager{
		cfg:        cfg,
		log:        log,
		cash:       cfg.InitialCapital,
		peakEquity: cfg.InitialCapital,
		positions:  make(map[string]*position),
		reserved:   make(map[string]float64),
	}
}

// Approve converts a signal into an order intent or refuses it. BUY signals
// reserve the symbol slot until the fill (or rejection) reports back.
func (m *Manager) Approve(sig signal.Signal) (*signal.Intent, error) {
	switch sig.Kind {
	case signal.Buy:
		return m.approveBuy(sig.Symbol, sig.Ts, sig.Reason, sig.Price)
	case signal.Sell, signal.CutLoss:
		return m.approveExit(sig)
	default:
		return nil, ErrNotActionable
	}
}

// ApproveBuyAmount approves a fixed-notional entry (the DCA path). Sizing
// comes from the amount instead of the risk formula; every other guard-rail
// still applies.
func (m *Manager) ApproveBuyAmount(symbol string, price, amount float64, reason string) (*signal.Intent, error) {
	if price <= 0 || amount <= 0 {
		return nil, ErrZeroSize
	}
	qty := m.floorToLot(amount / price)
	if qty <= 0 {
		return nil, ErrZeroSize
	}
	return m.approveBuyQty(symbol, price, qty, time.Now(), reason)
}

// ApproveBuyAt approves a risk-sized entry at a known price; used by the
// processing path which has the triggering tick in hand.
func (m *Manager) ApproveBuyAt(symbol string, price float64, ts time.Time, reason string) (*signal.Intent, error) {
	return m.approveBuy(symbol, ts, reason, price)
}

func (m *Manager) approveBuy(symbol string, ts time.Time, reason string, price float64) (*signal.Intent, error) {
	if price <= 0 {
		return nil, ErrZeroSize
	}
	stop := price * (1 - m.cfg.StopLossPct)
	riskPerShare := price - stop
	if riskPerShare <= 0 {
		return nil, ErrZeroSize
	}

	m.mu.Lock()
	riskCapital := m.cash * m.cfg.RiskPerTrade
	m.mu.Unlock()

	qty := m.floorToLot(riskCapital / riskPerShare)
	if m.cfg.MaxPositionSize > 0 {
		qty = math.Min(qty, m.floorToLot(m.cfg.MaxPositionSize/price))
	}
	if qty <= 0 {
		return nil, ErrZeroSize
	}
	return m.approveBuyQty(symbol, price, qty, ts, reason)
}

func (m *Manager) approveBuyQty(symbol string, price, qty float64, ts time.Time, reason string) (*signal.Intent, error) {
	notional := qty * price

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.canOpenLocked(symbol, notional); err != nil {
		return nil, err
	}
	m.reserved[symbol] = notional

	m.log.Info().Str("sym", symbol).Float64("qty", qty).Float64("px", price).
		Float64("stop", price*(1-m.cfg.StopLossPct)).Msg("buy approved")

	return &signal.Intent{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   signal.SideBuy,
		Qty:    qty,
		Price:  price,
		Kind:   signal.Buy,
		Reason: reason,
		Ts:     ts,
	}, nil
}

func (m *Manager) canOpenLocked(symbol string, notional float64) error {
	if _, held := m.positions[symbol]; held {
		return ErrPositionOpen
	}
	if _, pending := m.reserved[symbol]; pending {
		return ErrPositionOpen
	}
	if len(m.positions)+len(m.reserved) >= m.cfg.MaxPositions {
		return ErrMaxPositions
	}
	if m.cfg.MaxDrawdownPct > 0 && m.maxDrawdown >= m.cfg.MaxDrawdownPct {
		return ErrDrawdownLimit
	}
	if notional > m.cash {
		return ErrZeroSize
	}
	return nil
}

func (m *Manager) approveExit(sig signal.Signal) (*signal.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[sig.Symbol]
	if !ok {
		return nil, ErrNoPosition
	}
	if pos.state == stateClosing {
		return nil, ErrClosing
	}
	pos.state = stateClosing

	price := sig.Price
	if price <= 0 {
		price = pos.AvgEntryPrice
	}
	m.log.Info().Str("sym", sig.Symbol).Str("kind", string(sig.Kind)).
		Float64("qty", pos.Qty).Float64("px", price).Msg("exit approved")

	return &signal.Intent{
		ID:     uuid.NewString(),
		Symbol: sig.Symbol,
		Side:   signal.SideSell,
		Qty:    pos.Qty,
		Price:  price,
		Kind:   sig.Kind,
		Reason: sig.Reason,
		Ts:     sig.Ts,
	}, nil
}

// floorToLot rounds a raw quantity down to a whole number of board lots.
func (m *Manager) floorToLot(qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	return math.Floor(qty/m.cfg.LotSize) * m.cfg.LotSize
}

// OnFill reconciles a terminal order outcome into position state. It is the
// only path that opens or closes positions, so the executor's report is the
// source of truth, not the approval.
func (m *Manager) OnFill(order execution.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch order.Side {
	case signal.SideBuy:
		delete(m.reserved, order.Symbol)
		if order.Status != execution.StatusFilled || order.FilledQty <= 0 {
			m.log.Warn().Str("sym", order.Symbol).Str("status", string(order.Status)).
				Msg("buy did not fill, releasing reservation")
			return
		}
		m.cash -= order.FilledQty * order.AvgFillPrice
		m.positions[order.Symbol] = &position{
			Position: Position{
				Symbol:        order.Symbol,
				Qty:           order.FilledQty,
				AvgEntryPrice: order.AvgFillPrice,
				StopLoss:      order.AvgFillPrice * (1 - m.cfg.StopLossPct),
				OpenedAt:      order.UpdatedAt,
			},
			state: stateOpen,
		}
		m.log.Info().Str("sym", order.Symbol).Float64("qty", order.FilledQty).
			Float64("px", order.AvgFillPrice).Float64("cash", m.cash).Msg("position opened")

	case signal.SideSell:
		pos, ok := m.positions[order.Symbol]
		if !ok {
			m.log.Warn().Str("sym", order.Symbol).Msg("sell fill for unknown position")
			return
		}
		if order.Status != execution.StatusFilled || order.FilledQty <= 0 {
			// failed exit; the position is still ours, so allow another try
			pos.state = stateOpen
			m.log.Warn().Str("sym", order.Symbol).Str("status", string(order.Status)).
				Msg("sell did not fill, position reopened")
			return
		}
		proceeds := order.FilledQty * order.AvgFillPrice
		pnl := (order.AvgFillPrice - pos.AvgEntryPrice) * order.FilledQty
		m.cash += proceeds
		m.realizedPnL += pnl
		delete(m.positions, order.Symbol)
		m.updateDrawdownLocked(m.equityLocked(nil))
		m.log.Info().Str("sym", order.Symbol).Float64("qty", order.FilledQty).
			Float64("px", order.AvgFillPrice).Float64("pnl", pnl).Msg("position closed")
	}
}

// UpdatePrice feeds the latest trade price into the trailing-stop ratchet.
// Once unrealized gain reaches the activation threshold, the stop follows
// price at the trailing distance and only ever moves up.
func (m *Manager) UpdatePrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return
	}
	if m.cfg.TrailActivation > 0 && price >= pos.AvgEntryPrice*(1+m.cfg.TrailActivation) {
		if trailed := price * (1 - m.cfg.TrailPct); trailed > pos.StopLoss {
			pos.StopLoss = trailed
			m.log.Debug().Str("sym", symbol).Float64("stop", trailed).Msg("trailing stop raised")
		}
	}
	m.updateDrawdownLocked(m.equityLocked(map[string]float64{symbol: price}))
}

// CheckStop compares a price against the symbol's virtual stop. When the
// stop is breached it returns a CUTLOSS intent for the full position and
// marks it CLOSING so the check cannot fire twice.
func (m *Manager) CheckStop(symbol string, price float64) *signal.Intent {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok || pos.state == stateClosing || price <= 0 || price > pos.StopLoss {
		return nil
	}
	pos.state = stateClosing
	metrics.StopTriggers.WithLabelValues(symbol).Inc()
	m.log.Warn().Str("sym", symbol).Float64("px", price).
		Float64("stop", pos.StopLoss).Msg("virtual stop triggered")

	return &signal.Intent{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   signal.SideSell,
		Qty:    pos.Qty,
		Price:  price,
		Kind:   signal.CutLoss,
		Reason: "virtual stop-loss breached",
		Ts:     time.Now(),
	}
}

// PollStops sweeps every open position against the supplied prices and
// returns the intents for any stops that triggered. Symbols with no price
// in the map are skipped.
func (m *Manager) PollStops(prices map[string]float64) []*signal.Intent {
	m.mu.Lock()
	symbols := make([]string, 0, len(m.positions))
	for sym := range m.positions {
		symbols = append(symbols, sym)
	}
	m.mu.Unlock()

	var intents []*signal.Intent
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		if intent := m.CheckStop(sym, price); intent != nil {
			intents = append(intents, intent)
		}
	}
	return intents
}

// Positions returns a copy of the open positions.
func (m *Manager) Positions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, pos.Position)
	}
	return out
}

// Portfolio values the book at the supplied prices. Positions without a
// price fall back to their entry price.
func (m *Manager) Portfolio(prices map[string]float64) PortfolioSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := PortfolioSnapshot{
		Cash:        m.cash,
		RealizedPnL: m.realizedPnL,
		MaxDrawdown: m.maxDrawdown,
	}
	for _, pos := range m.positions {
		price := pos.AvgEntryPrice
		if p, ok := prices[pos.Symbol]; ok && p > 0 {
			price = p
		}
		snap.PositionsValue += pos.Qty * price
		snap.UnrealizedPnL += (price - pos.AvgEntryPrice) * pos.Qty
		snap.Positions = append(snap.Positions, pos.Position)
	}
	snap.TotalValue = snap.Cash + snap.PositionsValue
	if m.cfg.InitialCapital > 0 {
		snap.TotalReturn = (snap.TotalValue - m.cfg.InitialCapital) / m.cfg.InitialCapital
	}
	return snap
}

// equityLocked values cash plus open positions, marking any symbol present
// in prices to market and the rest to entry.
func (m *Manager) equityLocked(prices map[string]float64) float64 {
	equity := m.cash
	for _, pos := range m.positions {
		price := pos.AvgEntryPrice
		if p, ok := prices[pos.Symbol]; ok && p > 0 {
			price = p
		}
		equity += pos.Qty * price
	}
	return equity
}

func (m *Manager) updateDrawdownLocked(equity float64) {
	if equity > m.peakEquity {
		m.peakEquity = equity
	}
	if m.peakEquity > 0 {
		if dd := (m.peakEquity - equity) / m.peakEquity; dd > m.maxDrawdown {
			m.maxDrawdown = dd
		}
	}
}
