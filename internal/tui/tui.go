// Package tui provides the interactive pipeline dashboard using bubbletea.
package tui

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/pipeline"
)

// TUI is the terminal dashboard for one pipeline session.
type TUI struct {
	session   *pipeline.Session
	center    *notify.Center
	logger    *slog.Logger
	devtools  bool
	exportDir string
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a new TUI over session.
func New(session *pipeline.Session, opts ...Option) *TUI {
	t := &TUI{
		session: session,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithNotifications shows the center's notifications as toasts.
func WithNotifications(c *notify.Center) Option {
	return func(t *TUI) {
		t.center = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *TUI) {
		t.logger = logger
	}
}

// WithDevtools enables the cache inspector on 'D'.
func WithDevtools(enabled bool) Option {
	return func(t *TUI) {
		t.devtools = enabled
	}
}

// WithExportDir sets where exports and bundle downloads are written.
func WithExportDir(dir string) Option {
	return func(t *TUI) {
		t.exportDir = dir
	}
}

// Run starts the TUI and blocks until it exits or ctx is done.
func (t *TUI) Run(ctx context.Context) error {
	b := newBridge(t.session, t.center, t.logger)
	defer b.close()

	m := newModel(ctx, t.session, b, modelOptions{
		logger:    t.logger,
		devtools:  t.devtools,
		exportDir: t.exportDir,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.leavePage()
		fm.closePicker()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
