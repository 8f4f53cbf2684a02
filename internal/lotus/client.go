// Package lotus is a stateless adapter over the Lotus Bank payment API.
// It never touches local state; failures surface as *GatewayError so the
// transaction state machine stays isolated from provider fragility.
package lotus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Config struct {
	BaseURL   string
	PublicKey string
	SecretKey string
	WalletID  string
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// GatewayError covers both transport failures and non-success provider
// envelopes. No retry here; callers decide.
type GatewayError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lotus %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("lotus %s: %s (http %d)", e.Op, e.Message, e.Status)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// envelope is the provider's common response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

type VerifyResult struct {
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount"`
}

type initializeReq struct {
	WalletID string         `json:"walletId"`
	Currency string         `json:"currency"`
	Amount   int64          `json:"amount"`
	Metadata map[string]any `json:"metadata"`
}

// InitializeCheckout opens a checkout session and returns the redirect URL
// plus the provider-issued reference.
func (c *Client) InitializeCheckout(ctx context.Context, amountCents int64, currency string, metadata map[string]any) (Checkout, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	body := mustMarshal(initializeReq{
		WalletID: c.cfg.WalletID,
		Currency: currency,
		Amount:   amountCents,
		Metadata: metadata,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/checkout/initialize", bytes.NewReader(body))
	if err != nil {
		return Checkout{}, &GatewayError{Op: "initialize", Err: err}
	}
	req.Header.Set("Authorization", c.cfg.PublicKey)
	req.Header.Set("Content-Type", "application/json")

	env, status, err := c.do(req)
	if err != nil {
		return Checkout{}, &GatewayError{Op: "initialize", Err: err}
	}
	if !env.Success {
		return Checkout{}, &GatewayError{Op: "initialize", Status: status, Message: orDefault(env.Message, "initialization failed")}
	}

	var out Checkout
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return Checkout{}, &GatewayError{Op: "initialize", Err: fmt.Errorf("decode data: %w", err)}
	}
	if out.Reference == "" {
		return Checkout{}, &GatewayError{Op: "initialize", Status: status, Message: "no reference in response"}
	}
	return out, nil
}

// VerifyPayment asks the provider for the outcome of a payment.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (VerifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/payment/verify/"+reference, nil)
	if err != nil {
		return VerifyResult{}, &GatewayError{Op: "verify", Err: err}
	}
	req.Header.Set("x-api-key", c.cfg.SecretKey)

	env, status, err := c.do(req)
	if err != nil {
		return VerifyResult{}, &GatewayError{Op: "verify", Err: err}
	}
	if !env.Success {
		return VerifyResult{}, &GatewayError{Op: "verify", Status: status, Message: orDefault(env.Message, "payment verification failed")}
	}

	var out VerifyResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return VerifyResult{}, &GatewayError{Op: "verify", Err: fmt.Errorf("decode data: %w", err)}
	}
	return out, nil
}

// FetchCheckoutStatus returns the provider's raw checkout status payload.
func (c *Client) FetchCheckoutStatus(ctx context.Context, reference string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/checkout/status/"+reference, nil)
	if err != nil {
		return nil, &GatewayError{Op: "status", Err: err}
	}
	req.Header.Set("x-api-key", c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: "status", Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	raw := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &GatewayError{Op: "status", Err: fmt.Errorf("decode body: %w", err)}
	}
	if err := json.Unmarshal(raw, &env); err != nil || !env.Success {
		return nil, &GatewayError{Op: "status", Status: resp.StatusCode, Message: orDefault(env.Message, "failed to fetch checkout status")}
	}
	return raw, nil
}

func (c *Client) do(req *http.Request) (envelope, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, resp.StatusCode, fmt.Errorf("decode envelope: %w", err)
	}
	return env, resp.StatusCode, nil
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

func mustMarshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
