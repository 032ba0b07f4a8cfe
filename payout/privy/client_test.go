package privy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xraph/clawback/payout"
	"github.com/xraph/clawback/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("app-1", "secret-1", WithBaseURL(srv.URL))
}

func TestPayoutSuccess(t *testing.T) {
	var got sendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallets/rpc/send" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if r.Header.Get("privy-app-id") != "app-1" {
			t.Error("missing privy-app-id header")
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "app-1" || pass != "secret-1" {
			t.Error("missing basic auth credentials")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(sendResponse{Hash: "0xdef", Status: "confirmed"})
	})

	res, err := c.Payout(context.Background(), payout.Request{
		BuyerAddress:   "0xbuyer",
		Amount:         types.USDC(2940),
		ChainID:        "eip155:8453",
		IdempotencyKey: "rfd_456",
	})
	if err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if !res.Success || res.ExternalTxRef != "0xdef" {
		t.Errorf("result: %+v", res)
	}

	if got.To != "0xbuyer" || got.ValueCents != 2940 || got.Asset != "USDC" {
		t.Errorf("request body: %+v", got)
	}
	if got.CAIP2 != "eip155:8453" || got.IdempotencyKey != "rfd_456" {
		t.Errorf("request body: %+v", got)
	}
}

func TestPayoutDeclined(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sendResponse{Error: "wallet frozen"})
	})

	res, err := c.Payout(context.Background(), payout.Request{BuyerAddress: "0x1", Amount: types.USDC(100)})
	if err != nil {
		t.Fatalf("a decline is not a transport error: %v", err)
	}
	if res.Success || res.ProviderError != "wallet frozen" {
		t.Errorf("result: %+v", res)
	}
}

func TestPayoutServerErrorIsAmbiguous(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(sendResponse{Error: "internal"})
	})

	res, err := c.Payout(context.Background(), payout.Request{BuyerAddress: "0x1", Amount: types.USDC(100)})
	if err == nil {
		t.Fatalf("a 5xx must surface as an error, got result %+v", res)
	}
}

func TestPayoutTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	c := New("app-1", "secret-1", WithBaseURL(srv.URL))

	_, err := c.Payout(context.Background(), payout.Request{BuyerAddress: "0x1", Amount: types.USDC(100)})
	if err == nil {
		t.Fatal("expected transport error for ambiguous outcome")
	}
}

func TestBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallets/creator-1" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(walletResponse{BalanceCents: 7700, Asset: "USDC"})
	})

	balance, err := c.Balance(context.Background(), "creator-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !balance.Equal(types.USDC(7700)) {
		t.Errorf("balance: got %v, want %v", balance, types.USDC(7700))
	}
}

func TestBalanceHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}"))
	})

	if _, err := c.Balance(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for http 404")
	}
}
