package tui

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/api"
	"github.com/npratt/pipeboard/internal/config"
	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/pipeline"
	"github.com/npratt/pipeboard/internal/services"
	"github.com/npratt/pipeboard/internal/stream"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const (
	demoStatus   = `{"id":"p1","name":"Demo","state":"DRAFT","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:00:00","recent_events":[{"type":"AGENT_COMPLETED","action":"requirements captured","success":true,"created_at":"2024-05-01T11:00:00"}]}`
	demoAudit    = `{"items":[{"id":"a1","project_id":"p1","event_type":"AGENT_COMPLETED","agent_type":"REQUIREMENTS","action":"captured","success":true,"created_at":"2024-05-01T11:00:00"}],"total":41,"page":1,"page_size":20,"total_pages":3}`
	demoReqs     = `[{"key":"REQ-001","title":"Login","priority":"high","acceptance_criteria":["works"],"dependencies":[]}]`
	demoProjects = `[{"id":"p1","name":"Demo","status":"DRAFT","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:00:00"},{"id":"p2","name":"Other","status":"PLAN_READY","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:00:00"}]`
)

// fakeBackend answers "METHOD /path" routes with 200 and counts hits.
// Unknown routes get a 404.
type fakeBackend struct {
	mu     sync.Mutex
	routes map[string]string
	hits   map[string]int
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.hits[key]++
	body, ok := b.routes[key]
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
		return
	}
	_, _ = io.WriteString(w, body)
}

func (b *fakeBackend) set(key, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[key] = body
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func newDemoBackend() *fakeBackend {
	b := &fakeBackend{routes: map[string]string{}, hits: map[string]int{}}
	b.set("GET /projects/", demoProjects)
	b.set("GET /projects/p1", demoStatus)
	b.set("GET /projects/p1/audit", demoAudit)
	b.set("GET /projects/p1/requirements", demoReqs)
	return b
}

func newTestSession(t *testing.T, backend *fakeBackend, notifier notify.Notifier) *pipeline.Session {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.DiscardHandler)
	client := api.NewClient(srv.URL, api.WithNotifier(notifier), api.WithLogger(logger))
	s := pipeline.New(pipeline.Deps{
		Services: services.New(client),
		Stream:   stream.New(&config.StreamConfig{}, logger),
		Notifier: notifier,
		Logger:   logger,
	})
	t.Cleanup(s.Close)
	return s
}

// newTestModel returns a model over the demo backend. Notifications are
// recorded instead of shown.
func newTestModel(t *testing.T) (model, *fakeBackend, *notify.Recorder) {
	t.Helper()
	backend := newDemoBackend()
	rec := &notify.Recorder{}
	s := newTestSession(t, backend, rec)

	logger := slog.New(slog.DiscardHandler)
	b := newBridge(s, nil, logger)
	t.Cleanup(b.close)

	m := newModel(context.Background(), s, b, modelOptions{logger: logger, exportDir: t.TempDir()})
	m.now = func() time.Time { return testNow }
	return m, backend, rec
}

func update(m model, msg tea.Msg) (model, tea.Cmd) {
	nm, cmd := m.Update(msg)
	return nm.(model), cmd
}

// collect runs cmd and flattens batches. Only use it on commands that
// return promptly; bridge listeners block.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// settle feeds the messages produced by cmd back into the model.
func settle(m model, cmd tea.Cmd) model {
	for _, msg := range collect(cmd) {
		m, _ = update(m, msg)
	}
	return m
}

// loadProject watches id and applies the first page's query results.
func loadProject(t *testing.T, m model, id string) model {
	t.Helper()
	msg := watchCmd(context.Background(), m.session, id)()
	m, cmd := update(m, msg)
	return settle(m, cmd)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func hasNotification(rec *notify.Recorder, substr string) bool {
	for _, n := range rec.Notifications() {
		if strings.Contains(n.Message, substr) {
			return true
		}
	}
	return false
}
