// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeranaias/proxima-tui/internal/database"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout is the default timeout for requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries bounds attempts for idempotent requests.
	DefaultMaxRetries = 3

	// DefaultRateLimit is the default sustained request rate per second.
	DefaultRateLimit = 20

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 250 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 5 * time.Second

	// MaxResponseSize bounds reply bodies.
	MaxResponseSize = 32 * 1024 * 1024

	// RequestIDHeader carries a per-request id for log correlation.
	RequestIDHeader = "X-Request-ID"
)

var (
	// ErrNotAuthenticated indicates no session token is held or it was rejected.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthFailed indicates the pseudonym/password pair was refused.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrResponseTooLarge indicates a reply exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response too large")
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client talks to the backend's /auth, /db and /ai endpoints.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int

	mu       sync.RWMutex
	token    string
	deviceID int
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		maxRetries: DefaultMaxRetries,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries sets the number of attempts for idempotent requests.
func (c *Client) WithMaxRetries(n int) *Client {
	if n < 1 {
		n = 1
	}
	c.maxRetries = n
	return c
}

// WithRateLimit sets the sustained request rate and burst.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithToken installs an existing session token.
func (c *Client) WithToken(token string) *Client {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// DeviceID returns the device id assigned at authentication.
func (c *Client) DeviceID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Auth exchanges credentials for a session token and keeps it for later
// requests.
func (c *Client) Auth(ctx context.Context, pseudonym, password string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.post(ctx, PathAuth, AuthPayload{Password: password, Pseudonym: pseudonym}, &resp, false)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
			return AuthResponse{}, fmt.Errorf("%w: %s", ErrAuthFailed, se.Message)
		}
		return AuthResponse{}, err
	}

	c.mu.Lock()
	c.token = resp.SessionToken
	c.deviceID = resp.DeviceID
	c.mu.Unlock()
	glog.Infof("[remote] authenticated %s as device %d", pseudonym, resp.DeviceID)
	return resp, nil
}

// Do sends a database request. An Error reply is returned together with the
// error it describes. Only Get and GetAll are retried.
func (c *Client) Do(ctx context.Context, req database.Request) (database.Reply, error) {
	token := c.Token()
	if token == "" {
		return database.Reply{}, ErrNotAuthenticated
	}
	var resp DBResponse
	if err := c.post(ctx, PathDB, DBPayload{AuthKey: token, Request: req}, &resp, req.Idempotent()); err != nil {
		return database.Reply{}, fmt.Errorf("%s: %w", req, err)
	}
	return resp.Reply, resp.Reply.Err()
}

// Respond asks the backend to continue a chat.
func (c *Client) Respond(ctx context.Context, req AIRequest) (AIReply, error) {
	token := c.Token()
	if token == "" {
		return AIReply{}, ErrNotAuthenticated
	}
	var resp AIResponse
	if err := c.post(ctx, PathAI, AIPayload{AuthKey: token, Request: req}, &resp, false); err != nil {
		return AIReply{}, err
	}
	return resp.Reply, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// post sends body as JSON and decodes a 2xx reply into out. Transient
// failures are retried with backoff when retry is set.
func (c *Client) post(ctx context.Context, path string, body, out any, retry bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	attempts := 1
	if retry {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.once(ctx, path, payload, out)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		glog.V(2).Infof("[remote] %s attempt %d failed: %v", path, attempt+1, lastErr)
	}
	if attempts > 1 {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "proxima/0.1.0")
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	glog.V(2).Infof("[remote] %s %s -> %d (%v) id=%s", req.Method, path, resp.StatusCode, time.Since(start), requestID)

	body, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er ErrorResponse
		_ = json.Unmarshal(body, &er)
		se := &StatusError{Status: resp.StatusCode, Message: er.Error}
		if resp.StatusCode == http.StatusUnauthorized && path != PathAuth {
			return fmt.Errorf("%w: %v", ErrNotAuthenticated, se)
		}
		return se
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// Transport errors (connection refused, reset) are worth another try.
	return !errors.Is(err, ErrNotAuthenticated) && !errors.Is(err, ErrResponseTooLarge) &&
		!strings.Contains(err.Error(), "failed to decode")
}

// calculateBackoff returns the delay before retry attempt n (n >= 1).
func calculateBackoff(attempt int) time.Duration {
	if attempt > 16 {
		return retryMaxDelay
	}
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay
}
