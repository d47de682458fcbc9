package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handler func(method string, params []json.RawMessage) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGetBalance(t *testing.T) {
	server := rpcServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		if method != "getBalance" {
			t.Errorf("method = %q", method)
		}
		var pubkey string
		json.Unmarshal(params[0], &pubkey)
		if pubkey != "Pub111" {
			t.Errorf("pubkey = %q", pubkey)
		}
		return map[string]uint64{"value": 2_500_000_000}, nil
	})
	defer server.Close()

	client := NewClient(server.URL)
	sol, err := client.GetBalanceSOL(context.Background(), "Pub111")
	if err != nil {
		t.Fatalf("GetBalanceSOL: %v", err)
	}
	if sol != 2.5 {
		t.Errorf("balance = %v SOL, want 2.5", sol)
	}
}

func TestGetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		if method != "getLatestBlockhash" {
			t.Errorf("method = %q", method)
		}
		return map[string]interface{}{
			"value": map[string]interface{}{
				"blockhash":            "Hash111",
				"lastValidBlockHeight": 424242,
			},
		}, nil
	})
	defer server.Close()

	client := NewClient(server.URL)
	bh, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Blockhash != "Hash111" {
		t.Errorf("blockhash = %q", bh.Blockhash)
	}
	if bh.LastValidBlockHeight != 424242 {
		t.Errorf("lastValidBlockHeight = %d", bh.LastValidBlockHeight)
	}
}

func TestSendTransaction(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	server := rpcServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		if method != "sendTransaction" {
			t.Errorf("method = %q", method)
		}
		var b64 string
		json.Unmarshal(params[0], &b64)
		if b64 != base64.StdEncoding.EncodeToString(payload) {
			t.Errorf("payload = %q", b64)
		}
		var opts map[string]interface{}
		json.Unmarshal(params[1], &opts)
		if opts["skipPreflight"] != true {
			t.Error("skipPreflight must be set")
		}
		return "sig123", nil
	})
	defer server.Close()

	client := NewClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), payload, 3)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "sig123" {
		t.Errorf("signature = %q", sig)
	}
}

func TestRPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := rpcServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		calls.Add(1)
		return nil, &rpcError{Code: -32002, Message: "Transaction simulation failed"}
	})
	defer server.Close()

	client := NewClient(server.URL, WithRetryDelay(time.Millisecond))
	if _, err := client.SendTransaction(context.Background(), []byte{0x01}, 0); err == nil {
		t.Fatal("expected an error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, RPC errors must not be retried", calls.Load())
	}
}

func TestTransportErrorRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		var req struct {
			ID uint64 `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID,
			"result": map[string]uint64{"value": 1_000_000_000},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryDelay(time.Millisecond))
	sol, err := client.GetBalanceSOL(context.Background(), "Pub111")
	if err != nil {
		t.Fatalf("GetBalanceSOL: %v", err)
	}
	if sol != 1.0 {
		t.Errorf("balance = %v", sol)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}
