package api

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBackoff is the delay before the first retry. Later retries double it.
	DefaultBackoff = 500 * time.Millisecond

	defaultTimeout = 10 * time.Second
	defaultRetries = 2
	maxBackoff     = 10 * time.Second
)

// Client reads Upbit's public quotation endpoints.
type Client struct {
	baseURL string
	hc      *http.Client
	logger  *slog.Logger
	retry   retryPolicy
}

// retryPolicy bounds how often and how slowly a failed call is repeated.
type retryPolicy struct {
	retries int
	backoff time.Duration
}

// wait returns the pause before retry n (1-based): the doubled backoff,
// capped, with +/-50% jitter.
func (p retryPolicy) wait(n int) time.Duration {
	d := p.backoff
	for i := 1; i < n && d < maxBackoff; i++ {
		d *= 2
	}
	d = min(d, maxBackoff)
	if d <= 0 {
		return 0
	}
	return d/2 + rand.N(d+1)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient returns a client rooted at baseURL (for example https://api.upbit.com/v1).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
		retry:   retryPolicy{retries: defaultRetries, backoff: DefaultBackoff},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "upbit-rest")
	return c
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// WithRetries sets how many times a retryable failure is repeated and the
// initial pause between attempts.
func WithRetries(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retry = retryPolicy{retries: max(retries, 0), backoff: backoff}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}
