// Package crossmint implements the payout.Backend interface against the
// Crossmint custodial wallet API.
package crossmint

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
const BackendName = "crossmint"

// DefaultBaseURL is the production Crossmint API endpoint.
const DefaultBaseURL = "https://www.crossmint.com/api/v1-alpha2"

// Compile-time capability checks.
var (
	_ payout.Backend           = (*Client)(nil)
	_ payout.BalanceProvider   = (*Client)(nil)
	_ payout.WalletInitializer = (*Client)(nil)
)

// Client is a Crossmint custodial wallet HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
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

// New creates a Crossmint client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
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

type transferRequest struct {
	Recipient      string `json:"recipient"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Chain          string `json:"chain"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	TxID   string `json:"txId"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Payout implements payout.Backend. Crossmint declines (4xx or an
// explicit failed status) are reported as Success=false with the
// provider message; transport errors, 5xx responses and unparseable
// bodies surface as errors (ambiguous outcome).
func (c *Client) Payout(ctx context.Context, req payout.Request) (*payout.Result, error) {
	body := transferRequest{
		Recipient:      req.BuyerAddress,
		Amount:         req.Amount.FormatMajor(),
		Currency:       req.Amount.Currency,
		Chain:          req.ChainID,
		IdempotencyKey: req.IdempotencyKey,
	}

	data, status, err := c.doRequest(ctx, http.MethodPost, "/wallets/transfers", body)
	if err != nil {
		return nil, err
	}

	var resp transferResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("crossmint: decode transfer response: %w", err)
	}

	// A 5xx is a provider-side failure whose outcome is unknown: the
	// transfer may still have gone through. Surface it as an error so
	// the caller reconciles instead of treating it as a clean decline.
	if status >= 500 {
		return nil, fmt.Errorf("crossmint: transfer not confirmed (http %d)", status)
	}
	if status >= 400 || strings.EqualFold(resp.Status, "failed") {
		msg := resp.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("transfer declined (http %d)", status)
		}
		return &payout.Result{Success: false, ProviderError: msg}, nil
	}

	ref := resp.TxID
	if ref == "" {
		ref = resp.ID
	}
	return &payout.Result{Success: true, ExternalTxRef: ref}, nil
}

type balanceResponse struct {
	Balances []struct {
		Currency string `json:"currency"`
		Amount   int64  `json:"amount"`
	} `json:"balances"`
}

// Balance implements payout.BalanceProvider.
func (c *Client) Balance(ctx context.Context, creatorID string) (types.Money, error) {
	data, status, err := c.doRequest(ctx, http.MethodGet, "/wallets/"+creatorID+"/balances", nil)
	if err != nil {
		return types.Money{}, err
	}
	if status >= 400 {
		return types.Money{}, fmt.Errorf("crossmint: balance lookup failed (http %d)", status)
	}

	var resp balanceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return types.Money{}, fmt.Errorf("crossmint: decode balance response: %w", err)
	}

	for _, b := range resp.Balances {
		if strings.EqualFold(b.Currency, "usdc") {
			return types.USDC(b.Amount), nil
		}
	}
	return types.USDC(0), nil
}

// InitializeWallet implements payout.WalletInitializer.
func (c *Client) InitializeWallet(ctx context.Context, creatorID string) error {
	body := map[string]string{"linkedUser": creatorID, "type": "evm-smart-wallet"}
	_, status, err := c.doRequest(ctx, http.MethodPost, "/wallets", body)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("crossmint: wallet creation failed (http %d)", status)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("crossmint: marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("crossmint: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("crossmint: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("crossmint: read body: %w", err)
	}

	return data, resp.StatusCode, nil
}
