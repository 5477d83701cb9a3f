package facilitatorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentmesh/agentpay/pkg/types"
)

const (
	// DefaultFacilitatorURL is the public x402 facilitator.
	DefaultFacilitatorURL = "https://x402.org/facilitator"

	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"
)

const x402Version = 1

// Config configures a facilitator client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client talks to an x402 facilitator's verify endpoint.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient creates a facilitator client, filling in defaults for any zero
// config fields.
func NewClient(config Config) *Client {
	if config.URL == "" {
		config.URL = DefaultFacilitatorURL
	}

	httpCli := &http.Client{}
	if config.Timeout > 0 {
		httpCli.Timeout = config.Timeout
	}

	return &Client{
		URL:        config.URL,
		HTTPClient: httpCli,
	}
}

// Verify sends a payment verification request to the facilitator. The caller
// bounds the call through ctx; a facilitator that hangs is cancelled, not
// waited on.
func (c *Client) Verify(ctx context.Context, payload *types.PaymentPayload, requirements *types.PaymentRequirements) (*types.VerifyResponse, error) {
	reqBody := map[string]any{
		"x402Version":         x402Version,
		"paymentPayload":      payload,
		"paymentRequirements": requirements,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/verify", c.URL), bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send verify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to verify payment: %s", resp.Status)
	}

	var verifyResp types.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return &verifyResp, nil
}
