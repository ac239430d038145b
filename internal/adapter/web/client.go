// Package web is the outbound HTTP client shared by the scraper and the
// enrichment adapters. It adds a per-request timeout, a request rate limit,
// and bounded retries for transient failures.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/city-events-etl/internal/observability"
)

const maxBodyBytes = 10 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Options configures a Client.
type Options struct {
	Service    string // metrics label, e.g. "source", "geocoder", "weather"
	UserAgent  string
	Accept     string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	RateLimit  float64 // requests per second
}

// Client performs GET requests with retries and rate limiting.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	opts       Options
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	burst := int(opts.RateLimit)
	if burst < 1 {
		burst = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), burst),
		opts:       opts,
		metrics:    metrics,
		logger:     logger,
	}
}

// Get fetches url and returns the response body. Transport errors, 429 and
// 5xx responses are retried up to MaxRetries times with exponential backoff;
// any other status is returned immediately as a *StatusError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	backoff := retry.NewExponential(c.opts.BaseDelay)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(uint64(c.opts.MaxRetries), backoff) //nolint:gosec // bounded by config validation

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		b, err := c.do(ctx, url)
		if err == nil {
			body = b
			c.metrics.HTTPRequests.WithLabelValues(c.opts.Service, "success").Inc()
			return nil
		}
		if ctx.Err() == nil && isTransient(err) {
			c.metrics.HTTPRequests.WithLabelValues(c.opts.Service, "retry").Inc()
			c.logger.DebugContext(ctx, "transient http failure", "service", c.opts.Service, "url", url, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		c.metrics.HTTPRequests.WithLabelValues(c.opts.Service, "error").Inc()
		return nil, err
	}
	return body, nil
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if c.opts.Accept != "" {
		req.Header.Set("Accept", c.opts.Accept)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.HTTPRequestDuration.WithLabelValues(c.opts.Service).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
