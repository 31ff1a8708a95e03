// Package httpclient is the rate limited, retrying HTTP client shared by the
// market data and sentiment providers.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Observer is notified once per finished request
type Observer interface {
	ObserveProviderRequest(provider, outcome string)
}

// Options holds options for creating a new Client
type Options struct {
	Name           string
	Timeout        time.Duration
	RequestsPerSec float64
	MaxRetries     int
	MaxElapsedTime time.Duration
	InitialBackoff time.Duration
	Headers        map[string]string
	Observer       Observer
}

// Client wraps http.Client with rate limiting and exponential backoff
type Client struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	maxElapsed time.Duration
	initial    time.Duration
	headers    map[string]string
	observer   Observer
}

// New creates a new Client. Zero options fall back to 10s timeout,
// 5 requests per second and 3 retries; a negative MaxRetries disables retrying.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.MaxElapsedTime <= 0 {
		opts.MaxElapsedTime = 30 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}

	burst := int(opts.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		name:       opts.Name,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst),
		maxRetries: opts.MaxRetries,
		maxElapsed: opts.MaxElapsedTime,
		initial:    opts.InitialBackoff,
		headers:    opts.Headers,
		observer:   opts.Observer,
	}
}

// StatusError is returned for a non-200 response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GetJSON performs a GET and decodes the JSON body into out.
// 429 and 5xx responses and transport errors are retried with backoff.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Get performs a GET and returns the response body
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
			if statusErr.Retryable() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial
	policy.MaxElapsedTime = c.maxElapsed

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
	c.observe(err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) observe(err error) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	var statusErr *StatusError
	switch {
	case err == nil:
	case errors.As(err, &statusErr):
		outcome = fmt.Sprintf("%dxx", statusErr.StatusCode/100)
	default:
		outcome = "error"
	}
	c.observer.ObserveProviderRequest(c.name, outcome)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
