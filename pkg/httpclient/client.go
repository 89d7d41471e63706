package httpclient

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

	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/middleware"
	"github.com/richxcame/truckroute/pkg/tracing"
)

const (
	tracerName = "httpclient"
	// maxErrorBody caps how much of a failed response is kept on HTTPError.
	maxErrorBody = 512
)

// Client wraps http.Client with convenience methods for provider APIs.
// It never retries; fallback between providers is the caller's concern.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// Option configures the HTTP client
type Option func(*Client)

// WithUserAgent sets the User-Agent sent on every request. Overpass asks
// clients to identify themselves.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new HTTP client. The timeout is a ceiling; callers
// normally pass a shorter context deadline.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "truckroute-navigator/1.0",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get makes a GET request with the given query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, target, nil, "", headers)
}

// Post makes a POST request with JSON body
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, payload, "application/json", headers)
}

// PostForm makes a POST request with a form-encoded body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+path, []byte(form.Encode()), "application/x-www-form-urlencoded", headers)
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, contentType string, headers map[string]string) ([]byte, error) {
	var respBody []byte

	_, err := tracing.TraceHTTPClient(ctx, tracerName, method, redactQuery(target), func(ctx context.Context) (int, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		injectCorrelationID(ctx, req)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			body := string(respBody)
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			return resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Body: body}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	return respBody, nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func injectCorrelationID(ctx context.Context, req *http.Request) {
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set(middleware.CorrelationIDHeader, correlationID)
	}
}

// redactQuery drops the query string so API keys never reach span attributes.
func redactQuery(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
