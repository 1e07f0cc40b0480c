package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/pipeline"
	"github.com/npratt/pipeboard/internal/services"
	"github.com/npratt/pipeboard/internal/stream"
)

// Page is one screen of the dashboard.
type Page int

const (
	PageDashboard Page = iota
	PageRequirements
	PagePlanning
	PagePrompts
	PageChecklist
	PageAudit
)

var pageTitles = []string{
	PageDashboard:    "Dashboard",
	PageRequirements: "Requirements",
	PagePlanning:     "Planning",
	PagePrompts:      "Prompts",
	PageChecklist:    "Code Checklist",
	PageAudit:        "Audit Log",
}

func (p Page) String() string {
	if p < 0 || int(p) >= len(pageTitles) {
		return "Unknown"
	}
	return pageTitles[p]
}

// Layout constants.
const (
	minWidth     = 60
	minHeight    = 15
	sidebarWidth = 20
	maxToasts    = 3
	toastTTL     = 5 * time.Second
	auditPerPage = 20
)

// queryState tracks one cached query as the current page sees it.
type queryState[T any] struct {
	value   T
	err     error
	loading bool
	loaded  bool
}

func (q *queryState[T]) start() {
	q.loading = true
}

func (q *queryState[T]) settle(v T, err error) {
	q.loading = false
	q.loaded = true
	q.err = err
	if err == nil {
		q.value = v
	}
}

// toast is a notification on screen.
type toast struct {
	notify.Notification
	expires time.Time
}

// model is the bubbletea model for the dashboard.
type model struct {
	session *pipeline.Session
	bridge  *bridge
	logger  *slog.Logger
	now     func() time.Time

	// Root context for the program; page contexts derive from it.
	ctx context.Context

	// Per-page lifetime: cancelled and released on page or project change.
	pageCtx    context.Context
	pageCancel context.CancelFunc
	retained   []retainedQuery

	page   Page
	width  int
	height int

	// Cached queries
	project  queryState[*services.ProjectStatus]
	projects queryState[[]services.Project]
	reqs     queryState[[]services.Requirement]
	plan     queryState[*services.Plan]
	prompts  queryState[*services.PromptBundle]
	audit    queryState[*services.Page[services.AuditLogEntry]]

	// Widgets
	reqTable    table.Model
	auditTable  table.Model
	promptView  viewport.Model
	markdown    *markdownRenderer
	spinner     spinner.Model
	promptIndex int
	auditPage   int
	includeCode bool

	// Overlays
	form          *requirementForm
	picker        *projectPicker
	pickerRelease func()
	devtools      bool
	devOpen       bool

	// Status
	streamState stream.State
	toasts      []toast
	busy        string
	exportDir   string
	lastExport  string
}

// newModel creates a model bound to a session.
func newModel(ctx context.Context, session *pipeline.Session, b *bridge, opts modelOptions) model {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}
	exportDir := opts.exportDir
	if exportDir == "" {
		exportDir = "."
	}

	m := model{
		session:     session,
		bridge:      b,
		logger:      logger.With("component", "tui"),
		now:         time.Now,
		ctx:         ctx,
		page:        PageDashboard,
		auditPage:   1,
		includeCode: true,
		devtools:    opts.devtools,
		exportDir:   exportDir,
		reqTable:    newRequirementsTable(),
		auditTable:  newAuditTable(),
		promptView:  viewport.New(0, 0),
		markdown:    newMarkdownRenderer(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	if session.Stream != nil {
		m.streamState = session.Stream.State()
	}
	return m
}

type modelOptions struct {
	logger    *slog.Logger
	devtools  bool
	exportDir string
}

// projectID returns the selected project.
func (m model) projectID() string {
	return m.session.View.ProjectID()
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.bridge.listen(),
		m.spinner.Tick,
		doTick(),
	}
	if id := m.projectID(); id != "" {
		cmds = append(cmds, watchCmd(m.ctx, m.session, id))
	} else {
		cmds = append(cmds, func() tea.Msg { return openPickerMsg{} })
	}
	return tea.Batch(cmds...)
}
