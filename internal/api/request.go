package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/coinfo/internal/version"
)

// APIError is a non-2xx answer from Upbit.
type APIError struct {
	StatusCode int
	Name       string // Upbit error name, e.g. "invalid_query"
	Message    string
	RetryAfter time.Duration // From the Retry-After header, zero when absent
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("upbit %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("upbit %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether repeating the call may succeed: rate limits and
// server-side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	e := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Body: body}

	var envelope struct {
		Error struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		e.Name = envelope.Error.Name
		if envelope.Error.Message != "" {
			e.Message = envelope.Error.Message
		}
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}

// fetch performs one GET and returns the body of a 2xx response.
func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, newAPIError(resp, body)
	}
	return body, nil
}

// getJSON fetches path and decodes the body into out, repeating retryable
// failures per the client's retry policy.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	var (
		body []byte
		err  error
	)
	for attempt := 0; ; attempt++ {
		body, err = c.fetch(ctx, path, query)
		if err == nil {
			break
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return err
		}
		if attempt >= c.retry.retries {
			return fmt.Errorf("%s: giving up after %d attempts: %w", path, attempt+1, err)
		}

		pause := max(c.retry.wait(attempt+1), apiErr.RetryAfter)
		c.logger.Debug("retrying", "path", path, "status", apiErr.StatusCode, "attempt", attempt+1, "pause", pause)
		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
