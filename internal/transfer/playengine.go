// Package transfer integrates the external PlayEngine point-transfer
// ledger. The relationship is one-way trust: the service records the
// outcome the provider reports and credits the local ledger idempotently
// keyed by the transfer id; it never audits the provider's accounting.
package transfer

import (
	"context"
	"encoding/json"
	"time"

	"resty.dev/v3"
)

// ProviderResponse is the provider's transfer outcome.
type ProviderResponse struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	RemainingBalance *int64 `json:"remaining_balance"`
}

// Client calls the PlayEngine transfer endpoint.
type Client struct {
	http   *resty.Client
	url    string
	apiKey string
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http:   resty.New().SetTimeout(timeout),
		url:    url,
		apiKey: apiKey,
	}
}

// Configured reports whether the provider credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// Transfer asks the provider to move points to the given email. A
// transport-level failure returns an error; a provider-level rejection
// returns the parsed response with Success=false.
func (c *Client) Transfer(ctx context.Context, email string, amount int64, transferID string) (*ProviderResponse, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-playshop-api-key", c.apiKey).
		SetBody(map[string]any{
			"email":       email,
			"amount":      amount,
			"transfer_id": transferID,
		}).
		Post(c.url)
	if err != nil {
		return nil, err
	}

	var out ProviderResponse
	if err := json.Unmarshal(res.Bytes(), &out); err != nil {
		// Not JSON; treat as a provider rejection with the raw status.
		return &ProviderResponse{Success: false, Error: "TRANSFER_FAILED"}, nil
	}
	return &out, nil
}
