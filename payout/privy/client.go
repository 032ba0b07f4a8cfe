// Package privy implements the payout.Backend interface against the
// Privy server-wallet API.
package privy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xraph/clawback/payout"
	"github.com/xraph/clawback/types"
)

// BackendName is the name this client registers under.
const BackendName = "privy"

// DefaultBaseURL is the production Privy API endpoint.
const DefaultBaseURL = "https://api.privy.io/v1"

// Compile-time capability checks.
var (
	_ payout.Backend         = (*Client)(nil)
	_ payout.BalanceProvider = (*Client)(nil)
)

// Client is a Privy server-wallet HTTP client.
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API endpoint (staging, test doubles).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// New creates a Privy client authenticated with app credentials.
func New(appID, appSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		appID:     appID,
		appSecret: appSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements payout.Backend.
func (c *Client) Name() string { return BackendName }

type sendRequest struct {
	To             string `json:"to"`
	ValueCents     int64  `json:"value_cents"`
	Asset          string `json:"asset"`
	CAIP2          string `json:"caip2"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type sendResponse struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Payout implements payout.Backend.
func (c *Client) Payout(ctx context.Context, req payout.Request) (*payout.Result, error) {
	body := sendRequest{
		To:             req.BuyerAddress,
		ValueCents:     req.Amount.Amount,
		Asset:          strings.ToUpper(req.Amount.Currency),
		CAIP2:          req.ChainID,
		IdempotencyKey: req.IdempotencyKey,
	}

	data, status, err := c.doRequest(ctx, http.MethodPost, "/wallets/rpc/send", body)
	if err != nil {
		return nil, err
	}

	var resp sendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("privy: decode send response: %w", err)
	}

	// A 5xx is a provider-side failure whose outcome is unknown; report
	// it as an error rather than a decline so the caller reconciles.
	if status >= 500 {
		return nil, fmt.Errorf("privy: send not confirmed (http %d)", status)
	}
	if status >= 400 || resp.Error != "" {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("send declined (http %d)", status)
		}
		return &payout.Result{Success: false, ProviderError: msg}, nil
	}

	return &payout.Result{Success: true, ExternalTxRef: resp.Hash}, nil
}

type walletResponse struct {
	BalanceCents int64  `json:"balance_cents"`
	Asset        string `json:"asset"`
}

// Balance implements payout.BalanceProvider.
func (c *Client) Balance(ctx context.Context, creatorID string) (types.Money, error) {
	data, status, err := c.doRequest(ctx, http.MethodGet, "/wallets/"+creatorID, nil)
	if err != nil {
		return types.Money{}, err
	}
	if status >= 400 {
		return types.Money{}, fmt.Errorf("privy: wallet lookup failed (http %d)", status)
	}

	var resp walletResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return types.Money{}, fmt.Errorf("privy: decode wallet response: %w", err)
	}

	return types.USDC(resp.BalanceCents), nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("privy: marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("privy: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("privy-app-id", c.appID)
	req.SetBasicAuth(c.appID, c.appSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("privy: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("privy: read body: %w", err)
	}

	return data, resp.StatusCode, nil
}
