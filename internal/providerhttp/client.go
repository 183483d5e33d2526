// Package providerhttp is the shared outbound-HTTP facility every
// signal provider routes through, so deadlines, bearer auth and error
// shaping are uniform regardless of which upstream is being called.
package providerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout is the per-call deadline applied when a Config leaves
// Timeout unset. The per-call deadline is layered on the caller's
// context, so an earlier context deadline still wins.
const DefaultTimeout = 10 * time.Second

// sharedClient is reused across all providers, the way the reference
// client wraps a single package-level *http.Client.
var sharedClient = &http.Client{Timeout: DefaultTimeout}

// StatusError is returned when an upstream responds with a non-2xx
// status; it carries the status code so callers can distinguish rate
// limiting (429) from hard auth failures (401/403) without parsing
// strings.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider http: status %d: %s", e.StatusCode, e.Body)
}

// Config holds per-provider connection settings.
type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
}

// Client is a thin, provider-agnostic HTTP helper.
type Client struct {
	cfg Config
}

// New returns a Client for the given config, defaulting Timeout to
// DefaultTimeout when unset.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}
	return req, cancel, nil
}

// GetJSON performs a GET against path and decodes a JSON response into
// out. A non-2xx response yields a *StatusError.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	req, cancel, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer cancel()
	req.Header.Set("Accept", "application/json")

	resp, err := sharedClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// PostJSON performs a POST with a JSON-encoded body and decodes a
// JSON response into out (which may be nil to discard the body).
func (c *Client) PostJSON(ctx context.Context, path string, payload, out interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal provider request: %w", err)
	}

	req, cancel, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer cancel()
	req.Header.Set("Content-Type", "application/json")

	resp, err := sharedClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// GetText performs a GET and returns the raw response body as text,
// for providers that need to verify non-JSON payloads (e.g. raw file
// contents from a source-hosting API).
func (c *Client) GetText(ctx context.Context, path string) (string, error) {
	req, cancel, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer cancel()

	resp, err := sharedClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
