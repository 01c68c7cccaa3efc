package brokerclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rebalancer/internal/model"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func testClient(t *testing.T, baseURL, wsURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    baseURL,
		WSURL:      wsURL,
		ClientID:   "client-1",
		APIKey:     "key-1",
		Password:   "pw",
		TOTPSecret: testTOTPSecret,
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return c
}

func loginHandler(t *testing.T, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Helper()
		var req struct {
			ClientID string `json:"client_id"`
			Password string `json:"password"`
			TOTP     string `json:"totp"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client-1", req.ClientID)
		assert.Equal(t, "pw", req.Password)

		ok, err := totp.ValidateCustom(req.TOTP, testTOTPSecret, time.Now(), totp.ValidateOpts{
			Period: 30, Skew: 1, Digits: 6,
		})
		require.NoError(t, err)
		assert.True(t, ok, "totp code must verify against the shared secret")

		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

func TestLoginSendsValidTOTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", loginHandler(t, "tok-1"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL, "")
	require.NoError(t, c.Login(context.Background()))
}

func TestGetPositionParsesHoldings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/v1/account/positions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("X-API-Key"))
		io.WriteString(w, `{"positions":[
			{"stock_id":"2330","quantity":"3"},
			{"stock_id":"2317","quantity":"1.5"}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL, "")
	pos, err := c.GetPosition(context.Background())
	require.NoError(t, err)
	require.Len(t, pos, 2)
	assert.True(t, pos["2330"].Equal(decimal.RequireFromString("3")))
	assert.True(t, pos["2317"].Equal(decimal.RequireFromString("1.5")))
}

func TestGetPriceLimits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/v1/market/price-limits", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StockIDs []string `json:"stock_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"2330", "9999"}, req.StockIDs)
		// 9999 has no band and is simply absent.
		io.WriteString(w, `{"limits":[{"stock_id":"2330","limit_up":"110","limit_down":"90"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL, "")
	limits, err := c.GetPriceLimits(context.Background(), []string{"2330", "9999"})
	require.NoError(t, err)
	require.Len(t, limits, 1)
	assert.True(t, limits["2330"].Up.Equal(decimal.RequireFromString("110")))
	assert.True(t, limits["2330"].Down.Equal(decimal.RequireFromString("90")))
}

func TestSubmitOrderRejectionIsNotAnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BUY", req["action"])
		assert.Equal(t, "1000", req["quantity"])
		json.NewEncoder(w).Encode(map[string]any{
			"accepted": false, "message": "insufficient funds",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL, "")
	res, err := c.SubmitOrder(context.Background(), model.OrderIntent{
		StockID:   "2330",
		Action:    model.ActionBuy,
		Qty:       decimal.RequireFromString("1000"),
		Price:     decimal.RequireFromString("100"),
		PriceMode: model.PriceModeFixed,
		Condition: model.ConditionCash,
	})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "insufficient funds", res.Message)
}

func TestExpiredSessionIsRefreshedOnce(t *testing.T) {
	var logins, positionCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		n := logins.Add(1)
		token := "tok-old"
		if n > 1 {
			token = "tok-new"
		}
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/api/v1/account/positions", func(w http.ResponseWriter, r *http.Request) {
		positionCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"positions":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL, "")
	pos, err := c.GetPosition(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pos)
	assert.Equal(t, int32(2), logins.Load())
	assert.Equal(t, int32(2), positionCalls.Load())
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/v1/orders/open", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"code": "MARKET_CLOSED", "message": "market is closed",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL, "")
	err := c.CancelAllOpenOrders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market is closed")
	assert.Contains(t, err.Error(), "MARKET_CLOSED")
}

func TestGetQuoteSnapshotOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req quoteRequest
		require.NoError(t, conn.ReadJSON(&req))
		assert.Equal(t, subscribeAction, req.Action)
		assert.Equal(t, modeSnapshot, req.Params.Mode)

		for _, id := range req.Params.StockIDs {
			conn.WriteJSON(quoteMessage{
				StockID: id, Last: "100", Bid: "99.5", Ask: "100.5",
				LimitUp: "110", LimitDown: "90",
			})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	c := testClient(t, srv.URL, wsURL)

	quotes, err := c.GetQuote(context.Background(), []string{"2330", "2317"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	q := quotes["2330"]
	assert.True(t, q.Last.Valid)
	assert.True(t, q.Last.Decimal.Equal(decimal.RequireFromString("100")))
	assert.True(t, q.HasBand())
}

func TestGetQuoteEmptyRequestSkipsDial(t *testing.T) {
	c := testClient(t, "http://unreachable.invalid", "ws://unreachable.invalid")
	quotes, err := c.GetQuote(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
