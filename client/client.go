package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
)

// DefaultBaseURL is the production Human Pages API endpoint.
const DefaultBaseURL = "https://api.humanpages.ai/v1"

// apiKeyHeader carries the static per-agent credential.
const apiKeyHeader = "X-API-Key"

// paymentHeader carries the signed payment authorization on a 402 retry.
const paymentHeader = "X-Payment"

// DefaultBackoff is the fixed escalating schedule applied to transient
// failures before giving up.
var DefaultBackoff = []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}

// Options configure the Client. Extend via functional options to preserve
// call-site stability.
type Options struct {
	// BaseURL of the remote API. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient used for all requests. Defaults to a client with a 30s
	// timeout.
	HTTPClient *http.Client

	// Backoff schedule for transient failures. Defaults to DefaultBackoff.
	Backoff []time.Duration

	// Signer produces payment authorizations for the 402 protocol. When
	// nil, 402 responses fail with a descriptive error instead of
	// attempting payment.
	Signer core.PaymentSigner

	// Confirmer is consulted before any payment authorization is signed.
	// When nil, payment is treated as declined.
	Confirmer core.Confirmer

	// Logger for retry and payment-flow visibility. Defaults to NoOp.
	Logger logging.Logger
}

// Client issues authenticated calls to the Human Pages API.
type Client struct {
	apiKey string
	opts   Options
	logger logging.Logger
}

// New creates a Client authenticated with apiKey. An empty key is allowed
// for the registration call, which is the only unauthenticated endpoint.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Backoff:    DefaultBackoff,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Client{apiKey: apiKey, opts: opts, logger: opts.Logger}
}

// SetAPIKey installs the credential obtained from a fresh registration.
func (c *Client) SetAPIKey(key string) { c.apiKey = key }

// APIKey returns the credential currently in use.
func (c *Client) APIKey() string { return c.apiKey }

// errorBody is the error envelope the API uses across endpoints.
type errorBody struct {
	Error       string               `json:"error,omitempty"`
	Message     string               `json:"message,omitempty"`
	Code        string               `json:"code,omitempty"`
	AgentStatus core.AgentStatus     `json:"agentStatus,omitempty"`
	Accepts     []core.PaymentOption `json:"accepts,omitempty"`
}

func (b errorBody) bestMessage(raw []byte) string {
	if b.Error != "" {
		return b.Error
	}
	if b.Message != "" {
		return b.Message
	}
	return strings.TrimSpace(string(raw))
}

// Call issues method path with an optional JSON body and query string and
// returns the raw response body of a 2xx answer. Transient failures
// (network errors, 5xx) are retried on the fixed backoff schedule; 4xx
// responses fail immediately, except for the 402 payment protocol.
func (c *Client) Call(ctx context.Context, method, path string, body any, query url.Values) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= len(c.opts.Backoff); attempt++ {
		if attempt > 0 {
			delay := c.opts.Backoff[attempt-1]
			c.logger.Warn("request failed, retrying", "method", method, "path", path, "attempt", attempt, "backoff", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		status, raw, err := c.do(ctx, method, path, payload, query, "")
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case status < 300:
			return raw, nil
		case status == http.StatusPaymentRequired:
			return c.handlePaymentRequired(ctx, method, path, payload, query, raw)
		case status >= 400 && status < 500:
			return nil, c.clientError(status, raw)
		default:
			var eb errorBody
			_ = json.Unmarshal(raw, &eb)
			lastErr = &core.APIError{Status: status, Message: eb.bestMessage(raw)}
		}
	}
	return nil, fmt.Errorf("%s %s: retries exhausted: %w", method, path, lastErr)
}

// do performs one HTTP round trip and fully reads the response body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, query url.Values, payment string) (int, []byte, error) {
	u := c.opts.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	if payment != "" {
		req.Header.Set(paymentHeader, payment)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// clientError maps a non-retryable 4xx onto the error taxonomy.
func (c *Client) clientError(status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	if status == http.StatusForbidden && eb.Code == "AGENT_NOT_ACTIVE" {
		agentStatus := eb.AgentStatus
		if agentStatus == "" {
			agentStatus = core.AgentPendingVerification
		}
		return &core.ActivationError{AgentStatus: agentStatus}
	}
	return &core.APIError{Status: status, Message: eb.bestMessage(raw)}
}

// handlePaymentRequired runs the 402 side protocol: inspect the payment
// options, obtain confirmation, sign an authorization and re-issue the
// original request exactly once.
func (c *Client) handlePaymentRequired(ctx context.Context, method, path string, payload []byte, query url.Values, raw []byte) (json.RawMessage, error) {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	if len(eb.Accepts) == 0 {
		return nil, &core.APIError{Status: http.StatusPaymentRequired, Message: "response carried no payment options"}
	}
	opt := eb.Accepts[0]

	if c.opts.Signer == nil {
		return nil, &core.PaymentRequiredError{
			Reason: "no payment capability configured; provide a payment signer to call paid endpoints",
			Option: &opt,
		}
	}
	if c.opts.Confirmer == nil {
		return nil, &core.PaymentRequiredError{Reason: "no confirmer configured, payment declined", Option: &opt}
	}

	prompt := fmt.Sprintf("Endpoint %s %s requires payment of %s (%s) to %s. Proceed?", method, path, opt.MaxAmountRequired, opt.Network, opt.PayTo)
	ok, err := c.opts.Confirmer.Confirm(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("payment confirmation: %w", err)
	}
	if !ok {
		return nil, &core.PaymentRequiredError{Reason: "payment declined by operator", Option: &opt}
	}

	c.logger.Info("payment required, signing authorization", "method", method, "path", path, "network", opt.Network, "amount", opt.MaxAmountRequired)
	authorization, err := c.opts.Signer.SignPayment(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("sign payment authorization: %w", err)
	}

	status, retryRaw, err := c.do(ctx, method, path, payload, query, authorization)
	if err != nil {
		return nil, fmt.Errorf("paid retry: %w", err)
	}
	if status >= 300 {
		var reb errorBody
		_ = json.Unmarshal(retryRaw, &reb)
		return nil, &core.APIError{Status: status, Message: "paid retry failed: " + reb.bestMessage(retryRaw)}
	}
	c.logger.Info("payment accepted", "method", method, "path", path)
	return retryRaw, nil
}
