package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/pipeboard/internal/config"
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errStreamClosed = errors.New("stream closed by server")

// Handler receives dispatched events.
type Handler func(Event)

// Authorizer decorates the stream request with credentials.
type Authorizer interface {
	Authorize(r *http.Request)
}

type subscriber struct {
	id uint64
	fn Handler
}

// Subscription is returned by On. Unsubscribe is idempotent.
type Subscription struct {
	c         *Client
	eventType EventType
	id        uint64
	once      sync.Once
}

// Unsubscribe stops delivery to the subscription's handler.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.c.off(s.eventType, s.id) })
}

// Client holds at most one live connection. Handlers run synchronously on
// the connection's reader goroutine and must not call Connect or Disconnect
// directly.
type Client struct {
	cfg        config.StreamConfig
	httpClient *http.Client
	auth       Authorizer
	logger     *slog.Logger
	newID      func() string

	subMu   sync.RWMutex
	subs    map[EventType][]subscriber
	nextSub uint64

	stateMu  sync.Mutex
	state    State
	stateObs []stateObserver
	nextObs  uint64

	connMu    sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	projectID string
}

type stateObserver struct {
	id uint64
	fn func(State)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. It must not set a Timeout, which
// would cut long-lived streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthorizer attaches credentials to each connection attempt.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Client) { c.auth = a }
}

// New creates a disconnected client. An empty cfg.BaseURL makes Connect a
// logged no-op.
func New(cfg *config.StreamConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:        *cfg,
		httpClient: &http.Client{},
		logger:     logger.With("component", "stream"),
		newID:      uuid.NewString,
		subs:       make(map[EventType][]subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the stream for projectID, tearing down any existing
// connection first. It returns once the connection attempt has started.
func (c *Client) Connect(ctx context.Context, projectID string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.stopLocked()

	if c.cfg.BaseURL == "" {
		c.logger.Warn("stream URL not configured; skipping connection")
		return nil
	}
	if projectID == "" {
		return errors.New("project id is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.projectID = projectID

	c.setState(StateConnecting)
	go c.run(runCtx, projectID, c.done)
	return nil
}

// Disconnect closes the connection and waits for its reader to exit.
// Safe to call when not connected.
func (c *Client) Disconnect() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.stopLocked()
}

func (c *Client) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.logger.Info("stream disconnected", "project_id", c.projectID)
	c.cancel = nil
	c.done = nil
	c.projectID = ""
	c.setState(StateDisconnected)
}

// ProjectID returns the project the client is connected to, if any.
func (c *Client) ProjectID() string {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.projectID
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// OnStateChange registers fn for every state change.
func (c *Client) OnStateChange(fn func(State)) (cancel func()) {
	c.stateMu.Lock()
	c.nextObs++
	id := c.nextObs
	c.stateObs = append(c.stateObs, stateObserver{id: id, fn: fn})
	c.stateMu.Unlock()

	return func() {
		c.stateMu.Lock()
		defer c.stateMu.Unlock()
		c.stateObs = slices.DeleteFunc(c.stateObs, func(o stateObserver) bool { return o.id == id })
	}
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	if c.state == s {
		c.stateMu.Unlock()
		return
	}
	c.state = s
	obs := slices.Clone(c.stateObs)
	c.stateMu.Unlock()

	for _, o := range obs {
		o.fn(s)
	}
}

// On subscribes fn to eventType, or to every event with Wildcard.
func (c *Client) On(eventType EventType, fn Handler) *Subscription {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.subs[eventType] = append(c.subs[eventType], subscriber{id: id, fn: fn})
	return &Subscription{c: c, eventType: eventType, id: id}
}

func (c *Client) off(eventType EventType, id uint64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.subs[eventType] = slices.DeleteFunc(c.subs[eventType], func(s subscriber) bool { return s.id == id })
	if len(c.subs[eventType]) == 0 {
		delete(c.subs, eventType)
	}
}

// Publish delivers ev to subscribers exactly as if it had arrived on the
// stream: exact-type handlers first, then wildcard handlers, each in
// registration order.
func (c *Client) Publish(ev Event) {
	c.subMu.RLock()
	exact := slices.Clone(c.subs[ev.Type()])
	wild := slices.Clone(c.subs[Wildcard])
	c.subMu.RUnlock()

	for _, s := range exact {
		s.fn(ev)
	}
	for _, s := range wild {
		s.fn(ev)
	}
}

// backoff returns the wait before reconnect attempt n (1-based): the
// initial delay grown by the multiplier, capped at the max.
func backoff(attempt int, initial, maxDelay time.Duration, multiplier float64) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * multiplier)
		if d > maxDelay {
			return maxDelay
		}
	}
	return min(d, maxDelay)
}

func (c *Client) streamURL(projectID string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/projects/" + url.PathEscape(projectID) + "/events"
}

// run owns one logical connection, reconnecting until ctx is canceled.
func (c *Client) run(ctx context.Context, projectID string, done chan struct{}) {
	defer close(done)

	target := c.streamURL(projectID)
	var (
		attempt     int
		lastEventID string
		serverRetry time.Duration
	)

	for {
		c.setState(StateConnecting)
		connected, err := c.stream(ctx, target, &lastEventID, &serverRetry)
		if ctx.Err() != nil {
			c.abandon(done)
			return
		}
		if connected {
			attempt = 0
		}

		c.logger.Warn("stream error", "project_id", projectID, "error", err)
		c.setState(StateError)
		if !c.cfg.Reconnect {
			return
		}

		attempt++
		initial := max(c.cfg.ReconnectDelay, serverRetry)
		delay := backoff(attempt, initial, max(c.cfg.MaxReconnectDelay, initial), c.cfg.Multiplier)
		c.logger.Debug("reconnecting", "project_id", projectID, "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.abandon(done)
			return
		case <-timer.C:
		}
	}
}

// abandon handles a run whose context ended without Disconnect, such as the
// caller's Connect context being canceled. The connection is forgotten once
// the run has exited, unless a newer Connect or Disconnect got there first.
func (c *Client) abandon(done chan struct{}) {
	c.setState(StateDisconnected)
	go func() {
		<-done
		c.connMu.Lock()
		defer c.connMu.Unlock()
		if c.done != done {
			return
		}
		c.cancel()
		c.logger.Info("stream closed by caller context", "project_id", c.projectID)
		c.cancel = nil
		c.done = nil
		c.projectID = ""
	}()
}

// stream performs one connection attempt and reads it to completion.
// connected reports whether the server accepted the stream.
func (c *Client) stream(ctx context.Context, target string, lastEventID *string, serverRetry *time.Duration) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Correlation-ID", c.newID())
	if *lastEventID != "" {
		req.Header.Set("Last-Event-ID", *lastEventID)
	}
	if c.auth != nil {
		c.auth.Authorize(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		return false, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	c.setState(StateConnected)
	c.logger.Info("stream connected", "url", target)

	err = readFrames(resp.Body, func(f frame) {
		if f.ID != "" {
			*lastEventID = f.ID
		}
		if f.Retry > 0 {
			*serverRetry = f.Retry
		}
		if !f.HasData {
			return
		}
		if f.Event != "" && f.Event != "message" {
			c.logger.Debug("ignoring named event", "event", f.Event)
			return
		}
		ev, err := Parse([]byte(f.Data))
		if err != nil {
			c.logger.Warn("dropping malformed live event", "error", err)
			return
		}
		c.Publish(ev)
	})
	if err == nil {
		err = errStreamClosed
	}
	return true, err
}
