// Package notifyapi is the HTTP client for the notification service's
// bulk list endpoint.
package notifyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"

	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/source"
)

// maxBodyBytes caps how much of a list response is read.
const maxBodyBytes = 16 << 20

// Client fetches the notification list. It sets a request timeout,
// retries with exponential backoff on HTTP 429 and wraps every fetch in
// a circuit breaker so a dead backend fails fast.
type Client struct {
	listURL    string
	httpClient *http.Client
	maxRetries int
	breaker    *gobreaker.CircuitBreaker[[]model.RawNotification]
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMaxRetries sets how many times a rate limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[[]model.RawNotification]) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// NewClient creates a client for the list endpoint at listURL
// (e.g., http://localhost:4000/api/email/list).
func NewClient(listURL string, opts ...Option) *Client {
	c := &Client{
		listURL: listURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		breaker:    NewBreaker("notifyapi"),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBreaker returns the default circuit breaker: it opens after five
// consecutive failed fetches and half-opens after 30 seconds.
func NewBreaker(name string) *gobreaker.CircuitBreaker[[]model.RawNotification] {
	return gobreaker.NewCircuitBreaker[[]model.RawNotification](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// FetchNotifications issues one GET against the list endpoint and
// returns the decoded records in the order the server sent them.
func (c *Client) FetchNotifications(ctx context.Context) ([]model.RawNotification, error) {
	records, err := c.breaker.Execute(func() ([]model.RawNotification, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return records, nil
}

// Ping fetches the list once and reports how many records are available.
func (c *Client) Ping(ctx context.Context) (string, error) {
	records, err := c.FetchNotifications(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d notifications available at %s", len(records), c.listURL), nil
}

// fetch performs the request, retrying on 429, and decodes the body.
func (c *Client) fetch(ctx context.Context) ([]model.RawNotification, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request GET %s: %w", c.listURL, err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &source.StatusError{
				StatusCode: resp.StatusCode,
				Method:     http.MethodGet,
				URL:        c.listURL,
				Body:       string(body),
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &source.StatusError{
				StatusCode: resp.StatusCode,
				Method:     http.MethodGet,
				URL:        c.listURL,
				Body:       string(body),
			}
		}

		return c.decode(body)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// decode parses a list body. The body must be a JSON array and every
// element must carry an id and a recipient.
func (c *Client) decode(body []byte) ([]model.RawNotification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &source.DecodeError{Message: "response body is not a JSON array"}
	}

	var records []model.RawNotification
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &source.DecodeError{Message: "unmarshaling notification list", Err: err}
	}

	for i := range records {
		if err := c.validate.Struct(records[i]); err != nil {
			return nil, &source.DecodeError{
				Message: fmt.Sprintf("validating record %d", i),
				Err:     err,
			}
		}
	}

	if records == nil {
		records = []model.RawNotification{}
	}
	return records, nil
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
