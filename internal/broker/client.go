// Package broker is the REST client for the brokerage order API. Session
// and login handling live outside this core; callers inject a TokenProvider
// that yields a valid bearer token.
package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// TokenProvider supplies the session token attached to every request.
type TokenProvider interface {
	Token() (string, error)
}

// StaticToken is a TokenProvider backed by a fixed string, useful for tests
// and long-lived API tokens.
type StaticToken string

// Token returns the underlying string.
func (s StaticToken) Token() (string, error) { return string(s), nil }

// RejectError is a definitive brokerage refusal (insufficient funds, bad
// lot, invalid price). It is terminal and must never be retried.
type RejectError struct {
	Code    int
	Message string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("broker rejected request (%d): %s", e.Code, e.Message)
}

// IsReject reports whether the error is a definitive brokerage refusal.
// Everything else (timeouts, 5xx, transport failures) is transient and
// subject to the caller's retry policy.
func IsReject(err error) bool {
	var reject *RejectError
	return errors.As(err, &reject)
}

// OrderRequest is one order placement.
type OrderRequest struct {
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price,omitempty"`
	OrderType      string  `json:"orderType"`
	IdempotencyKey string  `json:"clientOrderId"`
}

// Brokerage order statuses as they appear on the wire.
const (
	StatePending         = "pending"
	StateNew             = "new"
	StatePartiallyFilled = "partiallyFilled"
	StateFilled          = "filled"
	StateRejected        = "rejected"
	StateCanceled        = "canceled"
	StateExpired         = "expired"
)

// TerminalState reports whether the venue is done with the order.
func TerminalState(status string) bool {
	switch status {
	case StateFilled, StateRejected, StateCanceled, StateExpired:
		return true
	}
	return false
}

// OrderState is the brokerage view of an order.
type OrderState struct {
	OrderID        string  `json:"orderId"`
	Symbol         string  `json:"symbol"`
	Status         string  `json:"status"`
	FilledQuantity float64 `json:"filledQuantity"`
	AvgFilledPrice float64 `json:"avgFilledPrice"`
	Message        string  `json:"message"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	OrderID string          `json:"orderId"`
}

// Client signs and sends order API calls.
type Client struct {
	baseURL   string
	accountID string
	apiKey    string
	apiSecret string
	tokens    TokenProvider
	http      *http.Client
	log       zerolog.Logger
	now       func() time.Time
}

// Option tweaks client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests inject a short timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithClock overrides the signing timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constructs a broker client. The timeout bounds every call so no
// brokerage request blocks indefinitely.
func NewClient(baseURL, accountID, apiKey, apiSecret string, tokens TokenProvider, timeout time.Duration, log zerolog.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:   baseURL,
		accountID: accountID,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		tokens:    tokens,
		http:      &http.Client{Timeout: timeout},
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceOrder submits an order and returns the brokerage order ID.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/v1/orders", req)
	if err != nil {
		return "", err
	}
	if env.OrderID == "" {
		var state OrderState
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &state); err == nil {
				return state.OrderID, nil
			}
		}
		return "", fmt.Errorf("place order: missing order id in response")
	}
	return env.OrderID, nil
}

// CancelOrder asks the venue to cancel an outstanding order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/orders/"+orderID, nil)
	return err
}

// OrderStatus fetches the current brokerage view of an order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (OrderState, error) {
	env, err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil)
	if err != nil {
		return OrderState{}, err
	}
	var state OrderState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		return OrderState{}, fmt.Errorf("decode order status: %w", err)
	}
	return state, nil
}

// OrderHistory lists recent orders for the account.
func (c *Client) OrderHistory(ctx context.Context) ([]OrderState, error) {
	env, err := c.do(ctx, http.MethodGet, "/v1/accounts/"+c.accountID+"/orders", nil)
	if err != nil {
		return nil, err
	}
	var states []OrderState
	if err := json.Unmarshal(env.Data, &states); err != nil {
		return nil, fmt.Errorf("decode order history: %w", err)
	}
	return states, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*envelope, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-TIMESTAMP", timestamp)
	req.Header.Set("X-SIGNATURE", c.sign(timestamp, method, path, body))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// 4xx carries a definitive refusal; 5xx stays transient
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%s %s: server error %d", method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return nil, &RejectError{Code: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func (c *Client) sign(timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
