// Package remote is the client for the drive content API. It layers
// exponential-backoff retry, batch execution, paginated fetch and chunked
// resumable upload on top of plain HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Policy configures the retry behavior of every Client call. Immutable after
// construction.
type Policy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffFactor     float64
	RetryableStatuses map[int]bool
	RetryableCodes    map[string]bool
}

// DefaultPolicy returns the retry policy used when none is supplied.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		RetryableStatuses: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		RetryableCodes: map[string]bool{
			"activityLimitReached": true,
			"serviceNotAvailable":  true,
			"quotaLimitReached":    true,
		},
	}
}

// Response is the outcome of one logical API call.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client talks to the remote drive API with retry. Credentials come from an
// oauth2.TokenSource supplied by the authentication subsystem.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  oauth2.TokenSource
	policy  Policy
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, tokens oauth2.TokenSource, policy Policy, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		tokens:  tokens,
		policy:  policy,
	}
	if c.policy.BackoffFactor <= 0 {
		c.policy = DefaultPolicy()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request executes one logical call through the retry wrapper. body, when
// non-nil, is JSON-encoded. endpoint may be relative to the base URL or an
// absolute URL (as returned in pagination links and upload sessions).
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, headers map[string]string) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	resp, err := c.doWithRetry(ctx, method, c.resolve(endpoint), payload, headers)
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, httpError(resp)
	}
	return resp, nil
}

// DownloadBytes fetches binary content from url (absolute or relative).
func (c *Client) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, c.resolve(url), nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, httpError(resp)
	}
	return resp.Body, nil
}

// page mirrors the list-response envelope: an item array plus an opaque
// next-page link.
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// GetAllPages follows next-page links from endpoint, concatenating item
// lists, until no link remains or maxPages pages have been fetched.
func (c *Client) GetAllPages(ctx context.Context, endpoint string, maxPages int) ([]json.RawMessage, error) {
	if maxPages <= 0 {
		maxPages = 100
	}

	var items []json.RawMessage
	url := endpoint
	for i := 0; i < maxPages && url != ""; i++ {
		resp, err := c.Request(ctx, http.MethodGet, url, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		var p page
		if err := resp.JSON(&p); err != nil {
			return nil, fmt.Errorf("decode page %d: %w", i+1, err)
		}
		items = append(items, p.Value...)
		url = p.NextLink
	}
	if url != "" {
		slog.Warn("pagination stopped at safety bound", "endpoint", endpoint, "maxPages", maxPages)
	}
	return items, nil
}

// doWithRetry performs the HTTP exchange, retrying transient failures with
// exponential backoff up to MaxRetries total attempts. The request body is
// replayed from payload on every attempt. Non-2xx responses that are not
// retryable are returned as-is for the caller to classify.
func (c *Client) doWithRetry(ctx context.Context, method, url string, payload []byte, headers map[string]string) (*Response, error) {
	attempts := c.policy.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	var lastResp *Response
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithBackoff(ctx, c.policy, attempt-1); err != nil {
				return nil, err
			}
		}

		resp, err := c.do(ctx, method, url, payload, headers)
		if err != nil {
			lastErr, lastResp = err, nil
			if !c.retryableError(err) {
				return nil, err
			}
			slog.Debug("retrying request", "method", method, "url", url, "attempt", attempt+1, "err", err)
			continue
		}
		if resp.Status >= 200 && resp.Status <= 299 {
			return resp, nil
		}

		herr := httpError(resp)
		lastErr, lastResp = herr, resp
		if !c.retryableError(herr) {
			return resp, nil
		}
		slog.Debug("retrying request", "method", method, "url", url, "attempt", attempt+1, "err", herr)
	}
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// do performs a single HTTP exchange with no retry.
func (c *Client) do(ctx context.Context, method, url string, payload []byte, headers map[string]string) (*Response, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) accessToken() (string, error) {
	if c.tokens == nil {
		return "", &AuthError{Reason: "no token source configured"}
	}
	token, err := c.tokens.Token()
	if err != nil {
		return "", &AuthError{Reason: err.Error()}
	}
	if token.AccessToken == "" {
		return "", &AuthError{Reason: "empty access token"}
	}
	return token.AccessToken, nil
}

// retryableStatus reports whether a response status warrants a retry.
// 429 is always retryable regardless of configuration.
func (c *Client) retryableStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return c.policy.RetryableStatuses[status]
}

// retryableError classifies a call error. Network failures retry; auth
// failures and context cancellation never do; HTTP errors retry when their
// status or API error code is configured retryable.
func (c *Client) retryableError(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return c.retryableStatus(httpErr.Status) || c.policy.RetryableCodes[httpErr.Code]
	}
	return false
}

// apiError is the error envelope the API returns alongside non-2xx statuses.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func httpError(resp *Response) *HTTPError {
	e := &HTTPError{Status: resp.Status, Body: string(resp.Body)}
	var ae apiError
	if json.Unmarshal(resp.Body, &ae) == nil {
		e.Code = ae.Error.Code
	}
	return e
}

// sleepWithBackoff waits for the backoff delay of the given attempt,
// respecting context cancellation.
func sleepWithBackoff(ctx context.Context, policy Policy, attempt int) error {
	delay := calculateBackoff(policy, attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// calculateBackoff computes min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func calculateBackoff(policy Policy, attempt int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.BackoffFactor, float64(attempt))
	if time.Duration(delay) > policy.MaxDelay {
		return policy.MaxDelay
	}
	return time.Duration(delay)
}

func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}
