package tui

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/npratt/pipeboard/internal/notify"
)

// TestTUILifecycleSmoke runs the full program headlessly: it selects the
// project, renders the dashboard, switches pages, and quits.
func TestTUILifecycleSmoke(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	center := notify.NewCenter(notify.WithLogger(logger))
	t.Cleanup(center.Close)

	s := newTestSession(t, newDemoBackend(), center)
	s.View.SetProject("p1")

	b := newBridge(s, center, logger)
	t.Cleanup(b.close)
	m := newModel(context.Background(), s, b, modelOptions{logger: logger, exportDir: t.TempDir()})

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Project information"))
	}, teatest.WithDuration(5*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("REQ-001"))
	}, teatest.WithDuration(5*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
	final, ok := fm.(model)
	if !ok {
		t.Fatalf("expected model, got %T", fm)
	}
	if final.page != PageRequirements {
		t.Errorf("expected requirements page, got %s", final.page)
	}
	if len(final.retained) != 0 {
		t.Errorf("expected queries released on quit, got %d", len(final.retained))
	}
}

// TestTUILifecycleCtrlCQuit verifies that ctrl+c quits while the picker
// is open.
func TestTUILifecycleCtrlCQuit(t *testing.T) {
	m, _, _ := newTestModel(t)

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Select project"))
	}, teatest.WithDuration(5*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})

	fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
	if final, ok := fm.(model); !ok || final.picker != nil {
		t.Error("expected picker closed after quit")
	}
}
