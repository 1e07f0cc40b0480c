// Package api is the HTTP transport to the pipeline backend. Every request
// carries a correlation id and, when available, a bearer token; failures are
// logged and surfaced to the user as error notifications.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/pipeboard/internal/auth"
	"github.com/npratt/pipeboard/internal/notify"
)

const (
	// HeaderCorrelationID links client logs with backend audit entries.
	HeaderCorrelationID = "X-Correlation-ID"

	// DefaultTimeout matches the backend's expectations for slow endpoints.
	DefaultTimeout = 30 * time.Second
)

// Request describes a single backend call.
type Request struct {
	Method string
	Path   string // relative to the base URL, e.g. "/projects/42"
	Query  url.Values
	Body   any // JSON-encoded when non-nil
	Header http.Header

	// SkipNotify keeps every failure of this request off the screen.
	SkipNotify bool
	// QuietStatuses lists HTTP statuses that are expected (probe requests)
	// and must not produce a notification.
	QuietStatuses []int
}

// Response is a successful (2xx) backend response.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          []byte
	CorrelationID string
}

// Client sends requests to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenSource
	notifier   notify.Notifier
	logger     *slog.Logger
	newID      func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithNotifier sets the notification sink for failures.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     auth.StaticToken(""),
		notifier:   notify.Discard,
		logger:     slog.Default(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api")
	return c
}

// Send performs the request. It returns *NetworkError when no response was
// received and *HTTPError for non-2xx statuses.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, corrID, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		netErr := &NetworkError{Method: req.Method, URL: httpReq.URL.String(), Err: err}
		// A caller that went away does not need a toast.
		if ctx.Err() != nil {
			c.logger.Debug("request canceled", "method", req.Method, "path", req.Path, "correlation_id", corrID)
			return nil, netErr
		}
		c.fail(req, corrID, 0, netErr)
		return nil, netErr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		netErr := &NetworkError{Method: req.Method, URL: httpReq.URL.String(), Err: fmt.Errorf("read body: %w", err)}
		c.fail(req, corrID, resp.StatusCode, netErr)
		return nil, netErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{
			Method:        req.Method,
			Path:          req.Path,
			Status:        resp.StatusCode,
			Detail:        extractDetail(body),
			CorrelationID: corrID,
		}
		c.fail(req, corrID, resp.StatusCode, httpErr)
		return nil, httpErr
	}

	c.logger.Debug("request completed",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"correlation_id", corrID,
		"duration", time.Since(start),
	)

	return &Response{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		Body:          body,
		CorrelationID: corrID,
	}, nil
}

// Do sends the request and decodes a JSON response into out.
// An empty or null body leaves out untouched.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req *Request) (*http.Request, string, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	corrID := httpReq.Header.Get(HeaderCorrelationID)
	if corrID == "" {
		corrID = c.newID()
		httpReq.Header.Set(HeaderCorrelationID, corrID)
	}

	c.authorize(httpReq)
	return httpReq, corrID, nil
}

// Authorize attaches the bearer token, if any, to an arbitrary request.
// The stream client uses it for its long-lived connection.
func (c *Client) Authorize(r *http.Request) { c.authorize(r) }

func (c *Client) authorize(r *http.Request) {
	tok, err := c.tokens.Token()
	if err != nil {
		c.logger.Warn("token lookup failed, sending request unauthenticated", "error", err)
		return
	}
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
}

func (c *Client) fail(req *Request, corrID string, status int, err error) {
	msg := Message(err)
	quiet := req.SkipNotify || (status != 0 && slices.Contains(req.QuietStatuses, status))

	level := slog.LevelError
	if quiet {
		level = slog.LevelDebug
	}
	c.logger.Log(context.Background(), level, "API request failed",
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"correlation_id", corrID,
		"error", msg,
	)

	if quiet {
		return
	}
	c.notifier.Notify(notify.LevelError, msg)
}
