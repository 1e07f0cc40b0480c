package tui

import (
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/stream"
)

func TestViewLoading(t *testing.T) {
	m, _, _ := newTestModel(t)
	if got := m.View(); got != "Loading..." {
		t.Errorf("expected Loading..., got %q", got)
	}
}

func TestViewTooSmall(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(m, tea.WindowSizeMsg{Width: 40, Height: 10})
	if !strings.Contains(m.View(), "Terminal too small") {
		t.Error("expected too-small message")
	}
}

func TestViewDashboard(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = loadProject(t, m, "p1")

	out := m.View()
	for _, want := range []string{"pipeboard", "Demo", "Project information", "2 Requirements", "requirements captured", "41"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}

	lines := strings.Split(out, "\n")
	if len(lines) != 30 {
		t.Errorf("expected view to fill 30 lines, got %d", len(lines))
	}
	for i, l := range lines {
		if w := lipgloss.Width(l); w > 100 {
			t.Errorf("line %d is %d wide", i, w)
		}
	}
}

func TestViewSidebarHidden(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = loadProject(t, m, "p1")
	m, _ = update(m, keyMsg("s"))

	if strings.Contains(m.View(), "2 Requirements") {
		t.Error("expected sidebar hidden")
	}
}

func TestViewNoProject(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if !strings.Contains(m.View(), "No project selected") {
		t.Error("expected no-project hint")
	}
}

func TestViewRequirementsPage(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = loadProject(t, m, "p1")
	m, cmd := update(m, keyMsg("2"))
	m = settle(m, cmd)

	out := m.View()
	for _, want := range []string{"REQ-001", "Login", "n: new"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestViewOverlays(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = loadProject(t, m, "p1")

	t.Run("picker", func(t *testing.T) {
		m, cmd := update(m, keyMsg("P"))
		m = settle(m, cmd)
		out := m.View()
		if !strings.Contains(out, "Select project") || !strings.Contains(out, "Other") {
			t.Error("expected picker with projects")
		}
	})

	t.Run("devtools disabled", func(t *testing.T) {
		m, _ := update(m, keyMsg("D"))
		if m.devOpen {
			t.Error("expected devtools to stay closed when disabled")
		}
	})

	t.Run("devtools", func(t *testing.T) {
		m := m
		m.devtools = true
		m, _ = update(m, keyMsg("D"))
		if !strings.Contains(m.View(), "Cache inspector") {
			t.Error("expected cache inspector")
		}
		m, _ = update(m, keyMsg("esc"))
		if m.devOpen {
			t.Error("expected inspector closed on esc")
		}
	})
}

func TestViewDevtoolsShowsNotificationHistory(t *testing.T) {
	m, _, _ := newTestModel(t)
	center := notify.NewCenter(notify.WithLogger(slog.New(slog.DiscardHandler)))
	t.Cleanup(center.Close)
	b := newBridge(m.session, center, slog.New(slog.DiscardHandler))
	t.Cleanup(b.close)
	m.bridge = b
	m.devtools = true

	center.Notify(notify.LevelError, "Plan generation failed")
	center.Notify(notify.LevelSuccess, "Requirements saved")

	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(m, keyMsg("D"))
	view := m.View()
	for _, want := range []string{"Live stream:", "not watching", "Notifications (2)", "Plan generation failed", "Requirements saved"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in devtools view:\n%s", want, view)
		}
	}
	if strings.Index(view, "Requirements saved") > strings.Index(view, "Plan generation failed") {
		t.Error("expected newest notification listed first")
	}
}

func TestStreamIndicator(t *testing.T) {
	tests := []struct {
		state stream.State
		want  string
	}{
		{stream.StateConnected, "live"},
		{stream.StateConnecting, "connecting"},
		{stream.StateError, "offline"},
		{stream.StateDisconnected, "idle"},
	}
	for _, tt := range tests {
		if got := streamIndicator(tt.state); !strings.Contains(got, tt.want) {
			t.Errorf("%s: expected %q in %q", tt.state, tt.want, got)
		}
	}
}

func TestSafeWidth(t *testing.T) {
	if safeWidth(-3) != 1 || safeWidth(0) != 1 || safeWidth(7) != 7 {
		t.Error("expected widths clamped to at least 1")
	}
}
