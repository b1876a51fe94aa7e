package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"

	"dnsebot-go/internal/market"
	"dnsebot-go/internal/metrics"
)

// tradeMessage is one matched trade from the brokerage market-data stream.
type tradeMessage struct {
	Symbol      string  `json:"symbol"`
	MatchPrice  float64 `json:"matchPrice"`
	MatchQty    float64 `json:"matchQtty"`
	BidPrice    float64 `json:"bidPrice"`
	OfferPrice  float64 `json:"offerPrice"`
	Highest     float64 `json:"highestPrice"`
	Lowest      float64 `json:"lowestPrice"`
	SendingTime int64   `json:"sendingTime"` // unix millis
}

type subscribeMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

func (in *Ingestor) runDNSE(ctx context.Context) error {
	if in.cfg.URL == "" {
		return fmt.Errorf("dnse feed requires a websocket url")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	failures := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		in.setState(StateConnecting)
		connected, err := in.consumeStream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			// a session that got as far as streaming resets the budget
			failures = 0
			backoff = time.Second
		}
		failures++
		if failures >= in.cfg.MaxReconnects {
			// degraded is observable, not fatal; the transport keeps trying
			in.setState(StateDegraded)
		}
		metrics.FeedReconnects.Inc()
		in.log.Warn().Err(err).Int("failures", failures).Dur("backoff", backoff).
			Msg("market data feed disconnected, retrying")
		select {
		case <-time.After(jittered(backoff)):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (in *Ingestor) consumeStream(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, in.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	in.log.Info().Str("provider", ProviderDNSE).Strs("symbols", in.Symbols()).Msg("connected market data feed")
	in.setState(StateConnected)

	if err := in.sendSubscribe(conn); err != nil {
		return false, err
	}

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	writeErr := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					writeErr <- fmt.Errorf("ping: %w", err)
					return
				}
			case <-in.resub:
				// symbol set changed while connected; refresh the venue side
				if err := in.sendSubscribe(conn); err != nil {
					writeErr <- err
					return
				}
			case <-writeCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case err := <-writeErr:
			return true, err
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		var trade tradeMessage
		if err := json.Unmarshal(message, &trade); err != nil {
			in.log.Warn().Err(err).Msg("failed to decode market data message")
			continue
		}
		if trade.Symbol == "" || trade.MatchPrice <= 0 {
			continue
		}
		in.dispatch(market.Tick{
			Symbol: trade.Symbol,
			Price:  trade.MatchPrice,
			Volume: trade.MatchQty,
			Bid:    trade.BidPrice,
			Ask:    trade.OfferPrice,
			High:   trade.Highest,
			Low:    trade.Lowest,
			Ts:     time.UnixMilli(trade.SendingTime),
		})
	}
}

func (in *Ingestor) sendSubscribe(conn *websocket.Conn) error {
	symbols := in.Symbols()
	if len(symbols) == 0 {
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Symbols: symbols}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// jittered spreads reconnects out so a fleet does not thunder back in sync.
func jittered(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
