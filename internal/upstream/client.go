// Package upstream talks to the merchant transaction-ingestion API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"alyapos/backend/internal/domain"
)

// ErrMissingCredential means no API token is configured. Callers route
// it to the local fallback exactly like a transport failure; keeping it
// distinct lets a later product decision change only the wording.
var ErrMissingCredential = errors.New("api credential not configured")

type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New builds a client for the given ingestion endpoint. The HTTP client
// carries no timeout: an in-flight submission cannot be cancelled and is
// awaited until success or failure.
func New(endpoint string, token string) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{},
	}
}

// Submit posts the payload to the ingestion endpoint. Any 2xx response
// is success; everything else is an error the caller escalates to the
// local fallback.
func (c *Client) Submit(ctx context.Context, payload domain.TransactionPayload) error {
	if c == nil || c.endpoint == "" || c.token == "" {
		return ErrMissingCredential
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream responded %d", resp.StatusCode)
	}
	return nil
}
