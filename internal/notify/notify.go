// Package notify provides user-visible notifications (toasts) and the
// channel-based center that fans them out to the dashboard.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a single toast.
type Notification struct {
	Level   Level
	Message string
	Time    time.Time
	// Suppressed is true when throttling kept the toast off screen.
	// It is still recorded in history.
	Suppressed bool
}

func (n Notification) String() string {
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Level, string) {})

// Success is shorthand for n.Notify(LevelSuccess, message).
func Success(n Notifier, message string) { n.Notify(LevelSuccess, message) }

// Error is shorthand for n.Notify(LevelError, message).
func Error(n Notifier, message string) { n.Notify(LevelError, message) }

// DefaultBufferSize is the default channel buffer size for subscribers.
const DefaultBufferSize = 32

// DefaultHistory is the number of notifications kept when none is configured.
const DefaultHistory = 50

// Center records notifications and delivers them to subscribers.
// Delivery is non-blocking: a full subscriber channel drops the toast.
// A token bucket bounds how many success and info toasts reach subscribers
// in a burst. Errors are never throttled: every failure is shown once.
type Center struct {
	mu          sync.RWMutex
	subscribers []chan Notification
	history     []Notification
	maxHistory  int
	limiter     *rate.Limiter
	logger      *slog.Logger
	now         func() time.Time
	closed      bool
}

// Option configures a Center.
type Option func(*Center)

// WithRateLimit limits delivered toasts to perSecond with the given burst.
// A non-positive perSecond disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Center) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHistory sets how many notifications History retains.
func WithHistory(n int) Option {
	return func(c *Center) {
		if n > 0 {
			c.maxHistory = n
		}
	}
}

// WithLogger sets the logger used for dropped and suppressed toasts.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Center) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCenter creates a notification center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		maxHistory: DefaultHistory,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "notify")
	return c
}

// Notify records a notification and delivers it to subscribers.
// Safe to call concurrently and after Close (recording still happens).
func (c *Center) Notify(level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := Notification{Level: level, Message: message, Time: c.now()}
	if level != LevelError && c.limiter != nil && !c.limiter.AllowN(n.Time, 1) {
		n.Suppressed = true
	}

	c.history = append(c.history, n)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}

	if n.Suppressed {
		c.logger.Debug("notification suppressed", "level", level, "message", message)
		return
	}
	if c.closed {
		return
	}

	for _, ch := range c.subscribers {
		select {
		case ch <- n:
		default:
			c.logger.Warn("notification dropped: subscriber channel full", "message", message)
		}
	}
}

// Subscribe returns a channel that receives delivered notifications.
// The returned channel is closed when the center is closed.
func (c *Center) Subscribe() <-chan Notification {
	return c.SubscribeBuffered(DefaultBufferSize)
}

// SubscribeBuffered returns a subscription channel with the given buffer size.
func (c *Center) SubscribeBuffered(size int) <-chan Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		ch := make(chan Notification)
		close(ch)
		return ch
	}

	ch := make(chan Notification, size)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// It is safe to call with a channel that was never subscribed.
func (c *Center) Unsubscribe(ch <-chan Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// History returns recorded notifications, oldest first.
func (c *Center) History() []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Notification, len(c.history))
	copy(out, c.history)
	return out
}

// Close closes all subscriber channels. Safe to call multiple times.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
}

// Recorder is a Notifier that keeps every notification in memory.
// It is meant for tests and for CLI commands that print toasts at exit.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Level: level, Message: message, Time: time.Now()})
}

// Notifications returns a copy of everything recorded so far.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
