package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invitegate/internal/model"
)

// Outcome classifies the terminal result of a single delivery attempt.
type Outcome string

const (
	OutcomeDelivered          Outcome = "delivered"
	OutcomeTimeout            Outcome = "timeout"
	OutcomeTransportError     Outcome = "transport_error"
	OutcomeRemoteRejected     Outcome = "remote_rejected"
	OutcomeRemoteLogicFailure Outcome = "remote_logic_failure"
)

// DefaultTimeout bounds a delivery attempt when no explicit timeout is
// configured. Join and leave events share the same bound.
const DefaultTimeout = 10 * time.Second

// Client delivers membership events to the external webhook endpoint.
// Delivery is at most once: every outcome is terminal, nothing is queued
// or retried, and the caller decides what to log.
type Client struct {
	httpClient *http.Client
	url        string
	secret     string
	timeout    time.Duration
}

// NewClient creates a notifier posting to {baseURL}/api/discord/webhook,
// authenticated by the shared secret header.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		url:        strings.TrimRight(baseURL, "/") + "/api/discord/webhook",
		secret:     secret,
		timeout:    timeout,
	}
}

// response is the body the remote endpoint answers with.
type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Notify posts one membership event and classifies the result. The error
// is nil exactly when the outcome is OutcomeDelivered; otherwise it
// carries the diagnostic detail for that classification, including the
// remote body on a rejection.
func (c *Client) Notify(ctx context.Context, event model.MembershipEvent) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		return OutcomeTransportError, fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return OutcomeTransportError, fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return OutcomeTimeout, fmt.Errorf("webhook timed out after %s: %w", c.timeout, err)
		}
		return OutcomeTransportError, fmt.Errorf("delivering webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return OutcomeRemoteRejected, fmt.Errorf("webhook rejected with status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return OutcomeRemoteLogicFailure, fmt.Errorf("decoding webhook response: %w", err)
	}
	if !r.Success {
		return OutcomeRemoteLogicFailure, fmt.Errorf("webhook reported failure: %s", r.Error)
	}

	return OutcomeDelivered, nil
}
