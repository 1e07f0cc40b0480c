package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/api"
	"github.com/npratt/pipeboard/internal/cache"
	"github.com/npratt/pipeboard/internal/pipeline"
	"github.com/npratt/pipeboard/internal/services"
)

// queryKind names a cached query a page can read.
type queryKind int

const (
	queryProject queryKind = iota
	queryProjects
	queryRequirements
	queryPlan
	queryPrompts
	queryAudit
)

// pageQueries lists what each page reads. The dashboard reads the first
// audit page for the entry total.
var pageQueries = map[Page][]queryKind{
	PageDashboard:    {queryProject, queryAudit},
	PageRequirements: {queryProject, queryRequirements},
	PagePlanning:     {queryPlan},
	PagePrompts:      {queryPrompts},
	PageChecklist:    nil,
	PageAudit:        {queryAudit},
}

// retainedQuery is a cache key the current page holds open.
type retainedQuery struct {
	kind    queryKind
	key     cache.Key
	release func()
}

// queryResultMsg delivers a settled query.
type queryResultMsg struct {
	kind      queryKind
	projectID string
	value     any
	err       error
}

// watchedMsg reports that the session switched projects.
type watchedMsg struct {
	projectID string
	err       error
}

// mutationDoneMsg reports the end of a write.
type mutationDoneMsg struct {
	label string
	err   error
}

// fileWrittenMsg reports a completed export or download.
type fileWrittenMsg struct {
	path string
	size int
	err  error
}

// openPickerMsg asks the model to show the project picker.
type openPickerMsg struct{}

func (m model) auditQuery() services.AuditQuery {
	if m.page == PageDashboard {
		return services.AuditQuery{Page: 1, PageSize: services.MinAuditPageSize}
	}
	return services.AuditQuery{Page: m.auditPage, PageSize: auditPerPage}
}

func (m model) keyFor(kind queryKind, projectID string) cache.Key {
	switch kind {
	case queryProject:
		return pipeline.ProjectKey(projectID)
	case queryProjects:
		return pipeline.ProjectsKey()
	case queryRequirements:
		return pipeline.RequirementsKey(projectID)
	case queryPlan:
		return pipeline.LatestPlanKey(projectID)
	case queryPrompts:
		return pipeline.LatestPromptsKey(projectID)
	case queryAudit:
		return pipeline.AuditKey(projectID, m.auditQuery())
	}
	return nil
}

// fetchCmd reads one query through the session cache.
func (m model) fetchCmd(ctx context.Context, kind queryKind, projectID string) tea.Cmd {
	s := m.session
	auditQ := m.auditQuery()
	return func() tea.Msg {
		var (
			v   any
			err error
		)
		switch kind {
		case queryProject:
			v, err = s.Project(ctx, projectID)
		case queryProjects:
			v, err = s.ProjectList(ctx)
		case queryRequirements:
			v, err = s.Requirements(ctx, projectID)
		case queryPlan:
			v, err = s.LatestPlan(ctx, projectID)
		case queryPrompts:
			v, err = s.LatestPrompts(ctx, projectID)
		case queryAudit:
			v, err = s.AuditLogs(ctx, projectID, auditQ)
		}
		return queryResultMsg{kind: kind, projectID: projectID, value: v, err: err}
	}
}

// loadPage tears down the previous page's interest and starts the current
// page's queries.
func (m *model) loadPage() tea.Cmd {
	m.leavePage()

	id := m.projectID()
	if id == "" {
		return nil
	}
	m.pageCtx, m.pageCancel = context.WithCancel(m.ctx)

	var cmds []tea.Cmd
	for _, kind := range pageQueries[m.page] {
		cmds = append(cmds, m.retainAndFetch(kind, id))
	}
	return tea.Batch(cmds...)
}

func (m *model) retainAndFetch(kind queryKind, id string) tea.Cmd {
	key := m.keyFor(kind, id)
	m.retained = append(m.retained, retainedQuery{
		kind:    kind,
		key:     key,
		release: m.session.Cache.Retain(key),
	})
	m.markLoading(kind)
	return m.fetchCmd(m.pageCtx, kind, id)
}

// reloadQuery swaps the retained key of kind, e.g. after paging.
func (m *model) reloadQuery(kind queryKind) tea.Cmd {
	id := m.projectID()
	if id == "" || m.pageCtx == nil {
		return nil
	}
	kept := m.retained[:0]
	for _, r := range m.retained {
		if r.kind == kind {
			r.release()
			continue
		}
		kept = append(kept, r)
	}
	m.retained = kept
	return m.retainAndFetch(kind, id)
}

// leavePage cancels in-flight reads and releases retained keys.
func (m *model) leavePage() {
	if m.pageCancel != nil {
		m.pageCancel()
		m.pageCancel = nil
	}
	for _, r := range m.retained {
		r.release()
	}
	m.retained = nil
}

// refetchInvalidated refetches every retained query whose key went stale.
func (m *model) refetchInvalidated(key cache.Key) tea.Cmd {
	var cmds []tea.Cmd
	id := m.projectID()
	for _, r := range m.retained {
		if r.key.Equal(key) {
			m.markLoading(r.kind)
			cmds = append(cmds, m.fetchCmd(m.pageCtx, r.kind, id))
		}
	}
	if m.picker != nil && key.Equal(pipeline.ProjectsKey()) {
		m.projects.start()
		cmds = append(cmds, m.fetchCmd(m.ctx, queryProjects, ""))
	}
	return tea.Batch(cmds...)
}

// refresh marks the current page's data stale; observers trigger refetches.
func (m *model) refresh() {
	for _, r := range m.retained {
		m.session.Cache.Invalidate(r.key)
	}
}

func (m *model) markLoading(kind queryKind) {
	switch kind {
	case queryProject:
		m.project.start()
	case queryProjects:
		m.projects.start()
	case queryRequirements:
		m.reqs.start()
	case queryPlan:
		m.plan.start()
	case queryPrompts:
		m.prompts.start()
	case queryAudit:
		m.audit.start()
	}
}

// applyResult stores a settled query and refreshes dependent widgets.
func (m *model) applyResult(msg queryResultMsg) {
	switch msg.kind {
	case queryProject:
		v, _ := msg.value.(*services.ProjectStatus)
		m.project.settle(v, msg.err)
	case queryProjects:
		v, _ := msg.value.([]services.Project)
		m.projects.settle(v, msg.err)
		if m.picker != nil {
			m.picker.setProjects(m.projects.value)
		}
	case queryRequirements:
		v, _ := msg.value.([]services.Requirement)
		m.reqs.settle(v, msg.err)
		m.reqTable.SetRows(requirementRows(m.reqs.value))
	case queryPlan:
		v, _ := msg.value.(*services.Plan)
		m.plan.settle(v, msg.err)
	case queryPrompts:
		v, _ := msg.value.(*services.PromptBundle)
		m.prompts.settle(v, msg.err)
		m.clampPromptIndex()
		m.updatePromptView()
	case queryAudit:
		v, _ := msg.value.(*services.Page[services.AuditLogEntry])
		m.audit.settle(v, msg.err)
		if v != nil {
			m.auditTable.SetRows(auditRows(v.Items, m.now()))
		}
	}
}

// resetData forgets everything shown for the previous project.
func (m *model) resetData() {
	m.project = queryState[*services.ProjectStatus]{}
	m.reqs = queryState[[]services.Requirement]{}
	m.plan = queryState[*services.Plan]{}
	m.prompts = queryState[*services.PromptBundle]{}
	m.audit = queryState[*services.Page[services.AuditLogEntry]]{}
	m.reqTable.SetRows(nil)
	m.auditTable.SetRows(nil)
	m.promptIndex = 0
	m.auditPage = 1
	m.updatePromptView()
}

// watchCmd switches the session to projectID.
func watchCmd(ctx context.Context, s *pipeline.Session, projectID string) tea.Cmd {
	return func() tea.Msg {
		return watchedMsg{projectID: projectID, err: s.Watch(ctx, projectID)}
	}
}

// mutate runs a write outside the update loop.
func (m *model) mutate(label string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy = label
	ctx := m.ctx
	return func() tea.Msg {
		return mutationDoneMsg{label: label, err: fn(ctx)}
	}
}

// writeFileCmd fetches bytes and stores them under dir/name.
func writeFileCmd(ctx context.Context, dir, name string, fetch func(ctx context.Context) ([]byte, error)) tea.Cmd {
	return func() tea.Msg {
		data, err := fetch(ctx)
		if err != nil {
			return fileWrittenMsg{err: err}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fileWrittenMsg{err: fmt.Errorf("create %s: %w", dir, err)}
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fileWrittenMsg{err: fmt.Errorf("write %s: %w", path, err)}
		}
		return fileWrittenMsg{path: path, size: len(data)}
	}
}

// reported tells whether the transport already notified the user about err.
func reported(err error) bool {
	var httpErr *api.HTTPError
	var netErr *api.NetworkError
	return errors.As(err, &httpErr) || errors.As(err, &netErr)
}

// abandoned tells whether err only means the page went away.
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled)
}
