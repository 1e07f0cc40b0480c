package tui

import (
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/cache"
	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/pipeline"
	"github.com/npratt/pipeboard/internal/stream"
)

const bridgeBufferSize = 64

// invalidatedMsg reports that a retained cache key went stale.
type invalidatedMsg struct {
	key cache.Key
}

// streamStateMsg reports a live-stream connection change.
type streamStateMsg stream.State

// notificationMsg carries a toast from the notification center.
type notificationMsg notify.Notification

// bridge moves callbacks from the session's goroutines into the bubbletea
// loop. Callbacks never block: when a buffer is full the signal is dropped.
type bridge struct {
	invalidated chan cache.Key
	states      chan stream.State
	notes       <-chan notify.Notification
	history     func() []notify.Notification

	logger   *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
	stops    []func()
}

func newBridge(s *pipeline.Session, center *notify.Center, logger *slog.Logger) *bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &bridge{
		invalidated: make(chan cache.Key, bridgeBufferSize),
		states:      make(chan stream.State, bridgeBufferSize),
		logger:      logger,
		done:        make(chan struct{}),
	}

	b.stops = append(b.stops, s.Cache.Observe(func(k cache.Key) {
		select {
		case <-b.done:
		case b.invalidated <- k:
		default:
			b.logger.Warn("invalidation dropped: TUI channel full", "key", k.String())
		}
	}))

	if s.Stream != nil {
		b.stops = append(b.stops, s.Stream.OnStateChange(func(st stream.State) {
			select {
			case <-b.done:
			case b.states <- st:
			default:
				b.logger.Warn("stream state dropped: TUI channel full", "state", st.String())
			}
		}))
	}

	if center != nil {
		ch := center.Subscribe()
		b.notes = ch
		b.history = center.History
		b.stops = append(b.stops, func() { center.Unsubscribe(ch) })
	}
	return b
}

// listen returns the commands that wait on every bridged source.
func (b *bridge) listen() tea.Cmd {
	return tea.Batch(b.waitInvalidated(), b.waitState(), b.waitNotification())
}

func (b *bridge) waitInvalidated() tea.Cmd {
	return func() tea.Msg {
		select {
		case k := <-b.invalidated:
			return invalidatedMsg{key: k}
		case <-b.done:
			return nil
		}
	}
}

func (b *bridge) waitState() tea.Cmd {
	return func() tea.Msg {
		select {
		case st := <-b.states:
			return streamStateMsg(st)
		case <-b.done:
			return nil
		}
	}
}

func (b *bridge) waitNotification() tea.Cmd {
	if b.notes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n, ok := <-b.notes:
			if !ok {
				return nil
			}
			return notificationMsg(n)
		case <-b.done:
			return nil
		}
	}
}

// close detaches every callback. Waiting commands return nil.
func (b *bridge) close() {
	b.stopOnce.Do(func() {
		close(b.done)
		for _, stop := range b.stops {
			stop()
		}
	})
}
