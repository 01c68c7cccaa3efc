package brokerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

const (
	subscribeAction = 1
	modeSnapshot    = 3
)

type quoteRequest struct {
	Action int `json:"action"`
	Params struct {
		Mode     int      `json:"mode"`
		StockIDs []string `json:"stock_ids"`
	} `json:"params"`
}

type quoteMessage struct {
	StockID   string `json:"stock_id"`
	Last      string `json:"last"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	LimitUp   string `json:"limit_up"`
	LimitDown string `json:"limit_down"`
}

// GetQuote fetches a snapshot quote per stock over the websocket feed.
// One message per subscribed stock is expected; stocks the feed does not
// answer for within the quote timeout are absent from the result.
func (c *Client) GetQuote(ctx context.Context, stockIDs []string) (map[string]model.PriceQuote, error) {
	if len(stockIDs) == 0 {
		return map[string]model.PriceQuote{}, nil
	}
	if c.cfg.WSURL == "" {
		return nil, fmt.Errorf("brokerclient: quote feed URL not configured")
	}
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("X-API-Key", c.cfg.APIKey)
	header.Set("X-Client-ID", c.cfg.ClientID)
	c.mu.Lock()
	header.Set("Authorization", "Bearer "+c.token)
	c.mu.Unlock()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WSURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("brokerclient: quote feed dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("brokerclient: quote feed dial: %w", err)
	}
	defer conn.Close()

	req := quoteRequest{Action: subscribeAction}
	req.Params.Mode = modeSnapshot
	req.Params.StockIDs = stockIDs
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("brokerclient: quote subscribe: %w", err)
	}

	deadline := time.Now().Add(c.cfg.QuoteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("brokerclient: quote deadline: %w", err)
	}

	want := make(map[string]bool, len(stockIDs))
	for _, id := range stockIDs {
		want[id] = true
	}

	out := make(map[string]model.PriceQuote, len(stockIDs))
	for len(out) < len(want) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Timeout with partial data is not fatal; missing stocks
			// become per-stock skips upstream.
			if len(out) > 0 || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.Warn("quote feed ended early", "got", len(out), "want", len(want), "err", err)
				break
			}
			return nil, fmt.Errorf("brokerclient: quote read: %w", err)
		}

		var msg quoteMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("unparseable quote frame skipped", "err", err)
			continue
		}
		if !want[msg.StockID] {
			continue
		}

		quote, err := msg.toQuote()
		if err != nil {
			return nil, fmt.Errorf("brokerclient: quote %s: %w", msg.StockID, err)
		}
		out[msg.StockID] = quote
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return out, nil
}

func (m quoteMessage) toQuote() (model.PriceQuote, error) {
	q := model.PriceQuote{StockID: m.StockID}
	fields := []struct {
		raw string
		dst *decimal.NullDecimal
	}{
		{m.Last, &q.Last},
		{m.Bid, &q.Bid},
		{m.Ask, &q.Ask},
		{m.LimitUp, &q.LimitUp},
		{m.LimitDown, &q.LimitDown},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return model.PriceQuote{}, fmt.Errorf("bad price %q: %w", f.raw, err)
		}
		*f.dst = decimal.NullDecimal{Decimal: v, Valid: true}
	}
	return q, nil
}
