// Package pipeline is the per-session container that ties the backend
// services, the server-state cache, the live-event stream and the view state
// together. Views and commands talk to a *Session; nothing here is global.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/npratt/pipeboard/internal/api"
	"github.com/npratt/pipeboard/internal/auth"
	"github.com/npratt/pipeboard/internal/cache"
	"github.com/npratt/pipeboard/internal/config"
	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/services"
	"github.com/npratt/pipeboard/internal/stream"
	"github.com/npratt/pipeboard/internal/viewstate"
)

// Deps are the collaborators of a Session. Only Services is required.
type Deps struct {
	Services *services.Services
	Cache    *cache.Cache
	Stream   *stream.Client // nil disables live updates
	View     *viewstate.Store
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Session holds everything one dashboard or CLI run shares.
type Session struct {
	Services *services.Services
	Cache    *cache.Cache
	Stream   *stream.Client
	View     *viewstate.Store
	Notifier notify.Notifier

	logger *slog.Logger

	mu       sync.Mutex
	live     *stream.Subscription
	watching string
	closed   bool
}

// New assembles a session, filling in defaults for optional deps.
func New(d Deps) *Session {
	s := &Session{
		Services: d.Services,
		Cache:    d.Cache,
		Stream:   d.Stream,
		View:     d.View,
		Notifier: d.Notifier,
		logger:   d.Logger,
	}
	if s.Cache == nil {
		s.Cache = cache.New(cache.WithLogger(d.Logger))
	}
	if s.View == nil {
		s.View = viewstate.New()
	}
	if s.Notifier == nil {
		s.Notifier = notify.Discard
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "session")
	return s
}

// Build wires a session from configuration. tokens may be nil for
// unauthenticated use.
func Build(cfg *config.Config, tokens auth.TokenSource, notifier notify.Notifier, logger *slog.Logger) *Session {
	if notifier == nil {
		notifier = notify.Discard
	}
	opts := []api.Option{
		api.WithTimeout(cfg.API.Timeout),
		api.WithNotifier(notifier),
		api.WithLogger(logger),
	}
	if tokens != nil {
		opts = append(opts, api.WithTokenSource(tokens))
	}
	client := api.NewClient(cfg.API.BaseURL, opts...)

	return New(Deps{
		Services: services.New(client),
		Cache: cache.New(
			cache.WithIdleEntries(cfg.Cache.IdleEntries),
			cache.WithFetchTimeout(cfg.Cache.FetchTimeout),
			cache.WithLogger(logger),
		),
		Stream:   stream.New(&cfg.Stream, logger, stream.WithAuthorizer(client)),
		View:     viewstate.New(),
		Notifier: notifier,
		Logger:   logger,
	})
}

// Watching returns the project whose live events are being applied.
func (s *Session) Watching() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching
}

// Watch selects projectID in the view state and starts applying its live
// events to the cache. Any previous watch is stopped first. An empty id
// stops watching and resets the view state.
func (s *Session) Watch(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unwatchLocked()
	s.View.SetProject(projectID)
	if projectID == "" || s.Stream == nil {
		return nil
	}

	sub := s.Stream.On(stream.Wildcard, func(ev stream.Event) {
		s.applyLiveEvent(projectID, ev)
	})
	if err := s.Stream.Connect(ctx, projectID); err != nil {
		sub.Unsubscribe()
		return err
	}
	s.live = sub
	s.watching = projectID
	s.logger.Info("watching project", "project_id", projectID)
	return nil
}

// Unwatch stops applying live events and closes the stream.
func (s *Session) Unwatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unwatchLocked()
}

func (s *Session) unwatchLocked() {
	if s.live != nil {
		s.live.Unsubscribe()
		s.live = nil
	}
	if s.Stream != nil {
		s.Stream.Disconnect()
	}
	s.watching = ""
}

// Close ends the session: the stream is closed, cached state dropped and the
// view state reset. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.unwatchLocked()
	s.Cache.Clear()
	s.View.Reset()
	s.logger.Debug("session closed")
}
