package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pump-sniper/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testConfig() *ClientConfig {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.MaxReconnectDelay = 100 * time.Millisecond
	cfg.ReadTimeout = 2 * time.Second
	return &cfg
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	subs := make(chan subscribeRequest, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal subscribe: %v", err)
			return
		}
		subs <- req

		conn.WriteJSON(map[string]interface{}{
			"txType":                "create",
			"mint":                  "MintAAA",
			"pool":                  "pump",
			"vSolInBondingCurve":    30.0,
			"vTokensInBondingCurve": 1000000.0,
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.SubscribeNewTokens(); err != nil {
		t.Fatalf("SubscribeNewTokens: %v", err)
	}

	select {
	case req := <-subs:
		if req.Method != methodSubscribeNewToken {
			t.Errorf("method = %q, want %q", req.Method, methodSubscribeNewToken)
		}
	case <-time.After(time.Second):
		t.Fatal("server never saw the subscribe request")
	}

	select {
	case ev := <-client.Events():
		if ev.Kind != domain.EventCreate || ev.Mint != "MintAAA" {
			t.Errorf("event = %+v", ev)
		}
		if price, ok := ev.Price(); !ok || price != 30.0/1000000.0 {
			t.Errorf("price = %v ok=%v", price, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestClient_ResubscribeAfterReconnect(t *testing.T) {
	type seen struct {
		conn int
		req  subscribeRequest
	}
	requests := make(chan seen, 8)
	var connCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(connCount.Add(1))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req subscribeRequest
			if json.Unmarshal(msg, &req) == nil && req.Method != "" {
				requests <- seen{conn: n, req: req}
				// Drop the first connection after its first subscription
				// to force a reconnect.
				if n == 1 {
					return
				}
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.SubscribeTokenTrades("MintAAA"); err != nil {
		t.Fatalf("SubscribeTokenTrades: %v", err)
	}

	var replayed bool
	deadline := time.After(3 * time.Second)
	for !replayed {
		select {
		case s := <-requests:
			if s.conn >= 2 && s.req.Method == methodSubscribeTokenTrade {
				if len(s.req.Keys) != 1 || s.req.Keys[0] != "MintAAA" {
					t.Errorf("replayed keys = %v", s.req.Keys)
				}
				replayed = true
			}
		case <-deadline:
			t.Fatal("subscription never replayed after reconnect")
		}
	}

	if client.Reconnects() == 0 {
		t.Error("reconnect counter should have advanced")
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *domain.TradeEvent
	}{
		{
			name: "buy with tokenAmount",
			raw:  `{"txType":"buy","mint":"M1","traderPublicKey":"T1","tokenAmount":500,"vSolInBondingCurve":40,"vTokensInBondingCurve":800}`,
			want: &domain.TradeEvent{Kind: domain.EventBuy, Mint: "M1", Trader: "T1", TokenAmount: 500},
		},
		{
			name: "buy falls back to newTokenBalance",
			raw:  `{"txType":"buy","mint":"M1","traderPublicKey":"T1","newTokenBalance":750}`,
			want: &domain.TradeEvent{Kind: domain.EventBuy, Mint: "M1", Trader: "T1", TokenAmount: 750},
		},
		{
			name: "sell",
			raw:  `{"txType":"sell","mint":"M1","traderPublicKey":"T2"}`,
			want: &domain.TradeEvent{Kind: domain.EventSell, Mint: "M1", Trader: "T2"},
		},
		{
			name: "create",
			raw:  `{"txType":"create","mint":"M2","pool":"pump"}`,
			want: &domain.TradeEvent{Kind: domain.EventCreate, Mint: "M2", Pool: "pump"},
		},
		{name: "missing mint", raw: `{"txType":"buy"}`, want: nil},
		{name: "unknown txType", raw: `{"txType":"migrate","mint":"M1"}`, want: nil},
		{name: "subscription ack", raw: `{"message":"Successfully subscribed"}`, want: nil},
		{name: "malformed", raw: `{not json`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseMessage([]byte(tt.raw))
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected drop, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected an event, got nil")
			}
			if got.Kind != tt.want.Kind || got.Mint != tt.want.Mint ||
				got.Trader != tt.want.Trader || got.TokenAmount != tt.want.TokenAmount {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBumpDelay(t *testing.T) {
	if d := bumpDelay(time.Second, 30*time.Second); d != 2*time.Second {
		t.Errorf("bumpDelay(1s) = %v", d)
	}
	if d := bumpDelay(20*time.Second, 30*time.Second); d != 30*time.Second {
		t.Errorf("bumpDelay should cap at the limit, got %v", d)
	}
}

func TestClient_CloseClosesEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.Close()

	select {
	case _, ok := <-client.Events():
		if ok {
			t.Error("expected the events channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel never closed")
	}
}
