// Package brokerclient implements the broker gateway over the broker's
// JSON REST API plus a websocket quote feed. Session login uses a TOTP
// second factor; the session token is refreshed transparently when the
// broker reports it expired.
package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

const defaultTimeout = 15 * time.Second

var routes = map[string]string{
	"auth.login":       "/api/v1/auth/login",
	"auth.logout":      "/api/v1/auth/logout",
	"account.position": "/api/v1/account/positions",
	"market.limits":    "/api/v1/market/price-limits",
	"order.place":      "/api/v1/orders",
	"order.cancelall":  "/api/v1/orders/open",
}

// Config holds broker connection settings and credentials.
type Config struct {
	BaseURL    string
	WSURL      string
	ClientID   string
	APIKey     string
	Password   string
	TOTPSecret string

	Timeout      time.Duration // default 15s
	QuoteTimeout time.Duration // default 5s, per snapshot fetch
	Log          *slog.Logger
}

// Client talks to the broker gateway. It implements model.BrokerGateway.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger

	mu    sync.Mutex
	token string
}

// New builds a broker client. No network call is made until the first
// gateway method needs a session.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("brokerclient: base URL is required")
	}
	if cfg.ClientID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("brokerclient: client id and api key are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QuoteTimeout == 0 {
		cfg.QuoteTimeout = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  cfg.Log,
	}, nil
}

type loginRequest struct {
	ClientID string `json:"client_id"`
	Password string `json:"password"`
	TOTP     string `json:"totp"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login establishes a session. The TOTP code is derived from the
// configured secret at call time.
func (c *Client) Login(ctx context.Context) error {
	code := ""
	if c.cfg.TOTPSecret != "" {
		var err error
		code, err = totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
		if err != nil {
			return fmt.Errorf("brokerclient: totp: %w", err)
		}
	}

	var resp loginResponse
	err := c.doJSON(ctx, http.MethodPost, "auth.login", loginRequest{
		ClientID: c.cfg.ClientID,
		Password: c.cfg.Password,
		TOTP:     code,
	}, &resp, false)
	if err != nil {
		return fmt.Errorf("brokerclient: login: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("brokerclient: login returned empty token")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	c.log.Info("broker session established", "client_id", c.cfg.ClientID)
	return nil
}

// Logout terminates the session. Safe to call without one.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.mu.Unlock()
	if token == "" {
		return nil
	}
	return c.doJSON(ctx, http.MethodPost, "auth.logout", nil, nil, true)
}

type positionRow struct {
	StockID  string `json:"stock_id"`
	Quantity string `json:"quantity"` // round-lot units
}

type positionResponse struct {
	Positions []positionRow `json:"positions"`
}

// GetPosition returns current holdings in round-lot units.
func (c *Client) GetPosition(ctx context.Context) (model.CurrentPosition, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	var resp positionResponse
	if err := c.doJSON(ctx, http.MethodGet, "account.position", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("brokerclient: get position: %w", err)
	}

	out := make(model.CurrentPosition, len(resp.Positions))
	for _, row := range resp.Positions {
		qty, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			return nil, fmt.Errorf("brokerclient: bad position quantity %q for %s: %w", row.Quantity, row.StockID, err)
		}
		out[row.StockID] = qty
	}
	return out, nil
}

type limitsRequest struct {
	StockIDs []string `json:"stock_ids"`
}

type limitRow struct {
	StockID   string `json:"stock_id"`
	LimitUp   string `json:"limit_up"`
	LimitDown string `json:"limit_down"`
}

type limitsResponse struct {
	Limits []limitRow `json:"limits"`
}

// GetPriceLimits returns the daily price band per stock. Stocks the
// broker has no band for are absent from the result.
func (c *Client) GetPriceLimits(ctx context.Context, stockIDs []string) (map[string]model.PriceLimit, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	var resp limitsResponse
	if err := c.doJSON(ctx, http.MethodPost, "market.limits", limitsRequest{StockIDs: stockIDs}, &resp, true); err != nil {
		return nil, fmt.Errorf("brokerclient: get price limits: %w", err)
	}

	out := make(map[string]model.PriceLimit, len(resp.Limits))
	for _, row := range resp.Limits {
		up, err := decimal.NewFromString(row.LimitUp)
		if err != nil {
			return nil, fmt.Errorf("brokerclient: bad limit_up %q for %s: %w", row.LimitUp, row.StockID, err)
		}
		down, err := decimal.NewFromString(row.LimitDown)
		if err != nil {
			return nil, fmt.Errorf("brokerclient: bad limit_down %q for %s: %w", row.LimitDown, row.StockID, err)
		}
		out[row.StockID] = model.PriceLimit{Up: up, Down: down}
	}
	return out, nil
}

type placeOrderRequest struct {
	StockID     string `json:"stock_id"`
	Action      string `json:"action"`
	Quantity    string `json:"quantity"` // shares
	Price       string `json:"price,omitempty"`
	PriceMode   string `json:"price_mode"`
	OddLot      bool   `json:"odd_lot"`
	Condition   string `json:"condition"`
	ExtraBidPct string `json:"extra_bid_pct,omitempty"`
}

type placeOrderResponse struct {
	Accepted bool   `json:"accepted"`
	OrderID  string `json:"order_id"`
	Message  string `json:"message"`
}

// SubmitOrder places one order. A broker-side rejection comes back as
// Accepted=false with a nil error; an error return means the order's
// fate is unknown to the caller.
func (c *Client) SubmitOrder(ctx context.Context, intent model.OrderIntent) (model.OrderResult, error) {
	if err := c.ensureSession(ctx); err != nil {
		return model.OrderResult{}, err
	}

	req := placeOrderRequest{
		StockID:   intent.StockID,
		Action:    string(intent.Action),
		Quantity:  intent.Qty.String(),
		PriceMode: string(intent.PriceMode),
		OddLot:    intent.OddLot,
		Condition: string(intent.Condition),
	}
	if intent.PriceMode == model.PriceModeFixed {
		req.Price = intent.Price.String()
	}
	if !intent.ExtraBidPct.IsZero() {
		req.ExtraBidPct = intent.ExtraBidPct.String()
	}

	var resp placeOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "order.place", req, &resp, true); err != nil {
		return model.OrderResult{}, fmt.Errorf("brokerclient: submit %s: %w", intent.StockID, err)
	}
	return model.OrderResult{
		Accepted:      resp.Accepted,
		BrokerOrderID: resp.OrderID,
		Message:       resp.Message,
	}, nil
}

// CancelAllOpenOrders cancels every open order on the account.
func (c *Client) CancelAllOpenOrders(ctx context.Context) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	if err := c.doJSON(ctx, http.MethodDelete, "order.cancelall", nil, nil, true); err != nil {
		return fmt.Errorf("brokerclient: cancel all: %w", err)
	}
	return nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	have := c.token != ""
	c.mu.Unlock()
	if have {
		return nil
	}
	return c.Login(ctx)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) doJSON(ctx context.Context, method, route string, in, out any, authed bool) error {
	err := c.doJSONOnce(ctx, method, route, in, out, authed)
	if authed && errSessionExpired(err) {
		// Session expired: one transparent re-login, then replay.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		if lerr := c.Login(ctx); lerr != nil {
			return lerr
		}
		return c.doJSONOnce(ctx, method, route, in, out, authed)
	}
	return err
}

type sessionExpiredError struct{ route string }

func (e *sessionExpiredError) Error() string {
	return fmt.Sprintf("%s: session expired", e.route)
}

func errSessionExpired(err error) bool {
	var se *sessionExpiredError
	return errors.As(err, &se)
}

func (c *Client) doJSONOnce(ctx context.Context, method, route string, in, out any, authed bool) error {
	path, ok := routes[route]
	if !ok {
		return fmt.Errorf("unknown route %q", route)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", route, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	if authed {
		c.mu.Lock()
		req.Header.Set("Authorization", "Bearer "+c.token)
		c.mu.Unlock()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", route, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && authed {
		return &sessionExpiredError{route: route}
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s (%s)", route, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("%s: http %d: %s", route, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode: %w", route, err)
		}
	}
	return nil
}
