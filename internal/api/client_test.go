package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/coinfo/internal/version"
)

// scripted answers each request with the next status in codes, then 200 with body.
func scripted(t *testing.T, codes []int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(codes) {
			w.WriteHeader(codes[n-1])
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{}
	tests := []struct {
		name    string
		opts    []ClientOption
		timeout time.Duration
		retries int
		hc      *http.Client
	}{
		{name: "defaults", timeout: defaultTimeout, retries: defaultRetries},
		{name: "timeout", opts: []ClientOption{WithTimeout(3 * time.Second)}, timeout: 3 * time.Second, retries: defaultRetries},
		{name: "zero timeout ignored", opts: []ClientOption{WithTimeout(0)}, timeout: defaultTimeout, retries: defaultRetries},
		{name: "negative retries clamp", opts: []ClientOption{WithRetries(-1, time.Millisecond)}, timeout: defaultTimeout, retries: 0},
		{name: "http client", opts: []ClientOption{WithHTTPClient(hc)}, hc: hc, retries: defaultRetries},
		{name: "nil logger", opts: []ClientOption{WithLogger(nil)}, timeout: defaultTimeout, retries: defaultRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("https://api.upbit.com/v1/", tt.opts...)
			if c.baseURL != "https://api.upbit.com/v1" {
				t.Errorf("baseURL = %q", c.baseURL)
			}
			if tt.hc != nil && c.hc != tt.hc {
				t.Error("custom http client not used")
			}
			if tt.hc == nil && c.hc.Timeout != tt.timeout {
				t.Errorf("timeout = %v, want %v", c.hc.Timeout, tt.timeout)
			}
			if c.retry.retries != tt.retries {
				t.Errorf("retries = %d, want %d", c.retry.retries, tt.retries)
			}
			if c.logger == nil {
				t.Error("nil logger")
			}
		})
	}
}

func TestRetryPolicy_Wait(t *testing.T) {
	p := retryPolicy{retries: 5, backoff: 100 * time.Millisecond}
	for n, base := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 400 * time.Millisecond} {
		for i := 0; i < 20; i++ {
			d := p.wait(n)
			if d < base/2 || d > base+base/2 {
				t.Fatalf("wait(%d) = %v, want within [%v, %v]", n, d, base/2, base+base/2)
			}
		}
	}
	if d := p.wait(30); d > maxBackoff+maxBackoff/2 {
		t.Errorf("wait(30) = %v exceeds cap", d)
	}
	if d := (retryPolicy{}).wait(1); d != 0 {
		t.Errorf("zero backoff wait = %v", d)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		if got := (&APIError{StatusCode: tt.code}).IsRetryable(); got != tt.retryable {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.code, got, tt.retryable)
		}
	}

	named := &APIError{StatusCode: 400, Name: "invalid_query", Message: "bad market"}
	if got := named.Error(); got != "upbit 400 invalid_query: bad market" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFetch_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"name":"invalid_query","message":"bad market"}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).fetch(context.Background(), "/x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T %v, want *APIError", err, err)
	}
	if apiErr.Name != "invalid_query" || apiErr.Message != "bad market" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v", apiErr.RetryAfter)
	}
}

func TestFetch_Headers(t *testing.T) {
	var ua, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua, accept = r.UserAgent(), r.Header.Get("Accept")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).fetch(context.Background(), "/x", nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if ua != version.UserAgent() {
		t.Errorf("User-Agent = %q", ua)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
}

func TestGetJSON_Retries(t *testing.T) {
	tests := []struct {
		name    string
		codes   []int
		retries int
		calls   int32
		wantErr string
	}{
		{name: "recovers from 5xx", codes: []int{500, 502}, retries: 3, calls: 3},
		{name: "no retry on 404", codes: []int{404}, retries: 3, calls: 1, wantErr: "upbit 404"},
		{name: "gives up", codes: []int{429, 429, 429, 429}, retries: 2, calls: 3, wantErr: "giving up after 3 attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := scripted(t, tt.codes, `{"ok":true}`)
			c := NewClient(server.URL, WithRetries(tt.retries, time.Millisecond))

			var out struct{ OK bool }
			err := c.getJSON(context.Background(), "/x", nil, &out)
			switch {
			case tt.wantErr == "" && err != nil:
				t.Fatalf("getJSON: %v", err)
			case tt.wantErr == "" && !out.OK:
				t.Error("body not decoded")
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.calls {
				t.Errorf("calls = %d, want %d", got, tt.calls)
			}
		})
	}
}

func TestGetJSON_ContextCancelledDuringBackoff(t *testing.T) {
	server, _ := scripted(t, []int{503, 503, 503}, `{}`)
	c := NewClient(server.URL, WithRetries(5, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out struct{}
	if err := c.getJSON(ctx, "/x", nil, &out); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestGetMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/all" || r.URL.Query().Get("isDetails") != "false" {
			t.Errorf("request = %s", r.URL)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"market":"KRW-BTC","korean_name":"비트코인","english_name":"Bitcoin"},
			{"market":"KRW-ETH","korean_name":"이더리움","english_name":"Ethereum"},
			{"market":" ","korean_name":"","english_name":""}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	raw, err := c.GetMarkets(context.Background())
	if err != nil {
		t.Fatalf("GetMarkets: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("len(raw) = %d, want 3", len(raw))
	}

	infos, err := c.GetMarketInfo(context.Background())
	if err != nil {
		t.Fatalf("GetMarketInfo: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
	if got := infos[0]; got.Symbol != "KRW-BTC" || got.EnglishName != "Bitcoin" || got.KoreanName != "비트코인" {
		t.Errorf("infos[0] = %+v", got)
	}
}

func TestGetMarkets_BadBody(t *testing.T) {
	server, _ := scripted(t, nil, `{not json`)
	_, err := NewClient(server.URL).GetMarkets(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decode /market/all") {
		t.Errorf("err = %v, want decode error", err)
	}
}
