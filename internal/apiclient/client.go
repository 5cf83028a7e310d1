// Package apiclient issues calls against the generation backend with
// per-call timeouts, bounded exponential-backoff retries and response
// caching. Cancellation is cooperative: a fired timeout stops the client
// from waiting but does not guarantee the server stops working.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/gridmap/internal/cache"
)

// Defaults for the client configuration.
const (
	DefaultTimeout        = 300 * time.Second
	DefaultRetryBaseDelay = 2 * time.Second
	DefaultMaxAttempts    = 3
	DefaultCacheTTL       = 5 * time.Minute
	DefaultUserAgent      = "gridmap/1.0 (OpenStreetMap data analysis)"
)

// Hooks receives request lifecycle notifications. Both funcs are optional;
// they let the session layer mirror the set of in-flight request tokens.
type Hooks struct {
	OnRequestStart func(token int64)
	OnRequestEnd   func(token int64)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. "http://127.0.0.1:5000".
	BaseURL string
	// Timeout is the default per-call cancellation timer.
	Timeout time.Duration
	// RetryBaseDelay is the backoff base between retry attempts.
	RetryBaseDelay time.Duration
	// CacheTTL is the default lifetime of cached GET responses.
	CacheTTL time.Duration
	// UserAgent is sent on every request.
	UserAgent string
	// HTTPClient allows injecting a transport; defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger for request lifecycle events.
	Logger *slog.Logger
	// Hooks for active-request bookkeeping.
	Hooks Hooks
}

// Client is the resilient request layer in front of the backend API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.Cache
	logger     *slog.Logger

	nextToken atomic.Int64
	mu        sync.Mutex
	active    map[int64]time.Time
}

// New creates a client with defaults filled in.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		cfg:        cfg,
		httpClient: cfg.HTTPClient,
		cache:      cache.New(),
		logger:     cfg.Logger,
	}
}

// Cache exposes the response cache, mainly for explicit invalidation.
func (c *Client) Cache() *cache.Cache { return c.cache }

// errorEnvelope is the backend's structured error body.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Request issues one call. The timeout starts a cancellation timer for this
// call only; zero means the configured default. The response body is
// returned raw for the caller to decode.
func (c *Client) Request(ctx context.Context, method, path string, body any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	token := c.beginRequest()
	defer c.endRequest(token)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		mapped := c.mapTransportError(ctx, err)
		c.logger.Warn("request failed",
			"method", method,
			"path", path,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", mapped,
		)
		return nil, mapped
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.mapTransportError(ctx, err)
	}

	if resp.StatusCode >= 400 {
		httpErr := &HTTPError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
		c.logger.Warn("request rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"error", httpErr.Message,
		)
		return nil, httpErr
	}

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(data),
	)
	return data, nil
}

// Get issues a GET with the default timeout.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, path, nil, 0)
}

// Post issues a POST with the default timeout.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPost, path, body, 0)
}

// CachedGet returns a cached response for path when fresh, issuing the GET
// and filling the cache otherwise. A non-positive ttl uses the configured
// default.
func (c *Client) CachedGet(ctx context.Context, path string, ttl time.Duration) (json.RawMessage, error) {
	if ttl <= 0 {
		ttl = c.cfg.CacheTTL
	}
	if v, ok := c.cache.Get(path); ok {
		c.logger.Debug("cache hit", "path", path)
		return v.(json.RawMessage), nil
	}
	data, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	c.cache.Set(path, data, ttl)
	return data, nil
}

// Download streams a binary endpoint (file export) to w. The response is not
// cached and not decoded.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	token := c.beginRequest()
	defer c.endRequest(token)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &HTTPError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, c.mapTransportError(ctx, err)
	}
	return n, nil
}

// ActiveRequests returns the number of registered in-flight calls.
func (c *Client) ActiveRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// CancelAll clears the active-request bookkeeping set immediately. This is
// best-effort cancellation: sockets already past their timeout window are
// not force-aborted and server-side work may continue.
func (c *Client) CancelAll() {
	c.mu.Lock()
	n := len(c.active)
	c.active = nil
	c.mu.Unlock()
	if n > 0 {
		c.logger.Info("cancelled request bookkeeping", "cleared", n)
	}
}

func (c *Client) beginRequest() int64 {
	token := c.nextToken.Add(1)
	c.mu.Lock()
	if c.active == nil {
		c.active = make(map[int64]time.Time)
	}
	c.active[token] = time.Now()
	c.mu.Unlock()
	if c.cfg.Hooks.OnRequestStart != nil {
		c.cfg.Hooks.OnRequestStart(token)
	}
	return token
}

func (c *Client) endRequest(token int64) {
	c.mu.Lock()
	delete(c.active, token)
	c.mu.Unlock()
	if c.cfg.Hooks.OnRequestEnd != nil {
		c.cfg.Hooks.OnRequestEnd(token)
	}
}

func (c *Client) url(path string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// mapTransportError folds transport failures into the error taxonomy. The
// per-call deadline maps to ErrTimeout, caller cancellation to ErrAborted,
// everything else is a connection-level NetworkError.
func (c *Client) mapTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return ErrAborted
	default:
		return &NetworkError{Err: err}
	}
}

func errorMessage(status int, body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return env.Error
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}
