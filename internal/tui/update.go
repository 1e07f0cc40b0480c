package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/pipeline"
	"github.com/npratt/pipeboard/internal/services"
	"github.com/npratt/pipeboard/internal/stream"
)

// tickInterval drives toast expiry.
const tickInterval = time.Second

// tickMsg signals a periodic tick.
type tickMsg time.Time

func doTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case watchedMsg:
		if msg.err != nil {
			notify.Error(m.session.Notifier, "Live updates unavailable: "+msg.err.Error())
		}
		if msg.projectID != m.projectID() {
			return m, nil
		}
		m.resetData()
		return m, m.loadPage()

	case queryResultMsg:
		if msg.kind != queryProjects && msg.projectID != m.projectID() {
			return m, nil
		}
		if abandoned(msg.err) {
			return m, nil
		}
		m.applyResult(msg)
		return m, nil

	case invalidatedMsg:
		return m, tea.Batch(m.refetchInvalidated(msg.key), m.bridge.waitInvalidated())

	case streamStateMsg:
		m.streamState = stream.State(msg)
		return m, m.bridge.waitState()

	case notificationMsg:
		m.pushToast(notify.Notification(msg))
		return m, m.bridge.waitNotification()

	case mutationDoneMsg:
		m.busy = ""
		if msg.err != nil && !reported(msg.err) {
			notify.Error(m.session.Notifier, fmt.Sprintf("%s failed: %v", msg.label, msg.err))
		}
		return m, nil

	case fileWrittenMsg:
		m.busy = ""
		if msg.err != nil {
			if !reported(msg.err) {
				notify.Error(m.session.Notifier, msg.err.Error())
			}
			return m, nil
		}
		m.lastExport = msg.path
		notify.Success(m.session.Notifier, fmt.Sprintf("Saved %s (%s)", msg.path, formatBytes(msg.size)))
		return m, nil

	case openPickerMsg:
		return m, m.openPicker()

	case tickMsg:
		m.pruneToasts(time.Time(msg))
		return m, doTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		// Cursor blink and other widget messages.
		var cmd tea.Cmd
		switch {
		case m.form != nil:
			cmd, _ = m.form.update(msg)
		case m.picker != nil:
			cmd, _ = m.picker.update(msg)
		}
		return m, cmd
	}
}

// handleKey processes keyboard input and returns the updated model and command.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	// Overlays take every key while open.
	switch {
	case m.form != nil:
		return m.handleFormKey(msg)
	case m.picker != nil:
		return m.handlePickerKey(msg)
	case m.devOpen:
		switch key {
		case "esc", "D", "q":
			m.devOpen = false
		}
		return m, nil
	}

	switch key {
	case "q":
		return m.quit()
	case "1", "2", "3", "4", "5", "6":
		return m.switchPage(Page(key[0] - '1'))
	case "tab":
		return m.switchPage((m.page + 1) % Page(len(pageTitles)))
	case "shift+tab":
		return m.switchPage((m.page + Page(len(pageTitles)) - 1) % Page(len(pageTitles)))
	case "s":
		m.session.View.ToggleSidebar()
		m.resize()
		return m, nil
	case "r":
		m.refresh()
		return m, nil
	case "P":
		return m, m.openPicker()
	case "D":
		if m.devtools {
			m.devOpen = true
		}
		return m, nil
	}

	if m.projectID() == "" {
		return m, nil
	}
	return m.handlePageKey(msg)
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.leavePage()
	m.closePicker()
	return m, tea.Quit
}

func (m model) switchPage(p Page) (tea.Model, tea.Cmd) {
	if p == m.page {
		return m, nil
	}
	m.page = p
	return m, m.loadPage()
}

// handlePageKey handles the actions of the current page.
func (m model) handlePageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s, id := m.session, m.projectID()
	var cmd tea.Cmd

	switch m.page {
	case PageRequirements:
		switch msg.String() {
		case "n":
			m.form = newRequirementForm()
			return m, textinput.Blink
		case "enter":
			if i := m.reqTable.Cursor(); i >= 0 && i < len(m.reqs.value) {
				m.form = editRequirementForm(m.reqs.value[i])
				return m, textinput.Blink
			}
			return m, nil
		case "R":
			return m, m.mutate("Refine", func(ctx context.Context) error {
				_, err := s.RefineRequirements(ctx, id, "")
				return err
			})
		case "f":
			return m, m.mutate("Finalize", func(ctx context.Context) error {
				_, err := s.FinalizeRequirements(ctx, id, false)
				return err
			})
		case "e":
			return m, m.export(services.ExportMarkdown)
		case "E":
			return m, m.export(services.ExportJSON)
		}
		m.reqTable, cmd = m.reqTable.Update(msg)
		return m, cmd

	case PagePlanning:
		if msg.String() == "g" {
			return m, m.mutate("Plan generation", func(ctx context.Context) error {
				_, err := s.GeneratePlan(ctx, id, services.PlanGenerateRequest{Source: services.PlanFromRequirements})
				return err
			})
		}

	case PagePrompts:
		switch msg.String() {
		case "g":
			in := services.PromptGenerateRequest{IncludeCode: m.includeCode}
			return m, m.mutate("Prompt generation", func(ctx context.Context) error {
				_, err := s.GeneratePrompts(ctx, id, in)
				return err
			})
		case "c":
			m.includeCode = !m.includeCode
			return m, nil
		case "d":
			b := m.prompts.value
			if b == nil {
				return m, nil
			}
			m.busy = "Downloading bundle"
			bundleID := b.ID
			return m, writeFileCmd(m.ctx, m.exportDir, fmt.Sprintf("prompts-%s-v%d.zip", id, b.Version),
				func(ctx context.Context) ([]byte, error) { return s.DownloadBundle(ctx, id, bundleID) })
		case "j", "down":
			if b := m.prompts.value; b != nil && m.promptIndex < len(b.Prompts)-1 {
				m.promptIndex++
				m.updatePromptView()
			}
			return m, nil
		case "k", "up":
			if m.promptIndex > 0 {
				m.promptIndex--
				m.updatePromptView()
			}
			return m, nil
		}
		m.promptView, cmd = m.promptView.Update(msg)
		return m, cmd

	case PageAudit:
		switch msg.String() {
		case "[":
			if m.auditPage > 1 {
				m.auditPage--
				return m, m.reloadQuery(queryAudit)
			}
			return m, nil
		case "]":
			if p := m.audit.value; p != nil && m.auditPage < p.TotalPages {
				m.auditPage++
				return m, m.reloadQuery(queryAudit)
			}
			return m, nil
		}
		m.auditTable, cmd = m.auditTable.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) export(format services.ExportFormat) tea.Cmd {
	s, id := m.session, m.projectID()
	m.busy = "Exporting"
	return writeFileCmd(m.ctx, m.exportDir, fmt.Sprintf("requirements-%s.%s", id, format),
		func(ctx context.Context) ([]byte, error) { return s.ExportRequirements(ctx, id, format) })
}

func (m model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.form = nil
		return m, nil
	}
	cmd, submit := m.form.update(msg)
	if !submit {
		return m, cmd
	}
	req, err := m.form.requirement()
	if err != nil {
		m.form.err = err
		return m, nil
	}
	m.form = nil

	s, id := m.session, m.projectID()
	return m, m.mutate("Save requirement", func(ctx context.Context) error {
		_, err := s.SaveRequirements(ctx, id, []services.Requirement{req})
		return err
	})
}

func (m model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cmd, action := m.picker.update(msg)
	switch action {
	case pickerSelect:
		p, _ := m.picker.selected()
		m.closePicker()
		if p.ID == m.projectID() {
			return m, nil
		}
		m.leavePage()
		return m, watchCmd(m.ctx, m.session, p.ID)

	case pickerCreate:
		name := strings.TrimSpace(m.picker.name.Value())
		m.picker.creating = false
		m.picker.name.Blur()
		m.picker.name.SetValue("")
		s := m.session
		return m, m.mutate("Create project", func(ctx context.Context) error {
			_, err := s.CreateProject(ctx, services.ProjectCreate{Name: name})
			return err
		})

	case pickerClose:
		m.closePicker()
		return m, nil
	}
	return m, cmd
}

func (m *model) openPicker() tea.Cmd {
	if m.picker != nil {
		return nil
	}
	m.picker = newProjectPicker(m.projectID(), m.projects.value)
	m.pickerRelease = m.session.Cache.Retain(pipeline.ProjectsKey())
	m.projects.start()
	return m.fetchCmd(m.ctx, queryProjects, "")
}

func (m *model) closePicker() {
	m.picker = nil
	if m.pickerRelease != nil {
		m.pickerRelease()
		m.pickerRelease = nil
	}
}

// pushToast shows a notification until it expires.
func (m *model) pushToast(n notify.Notification) {
	if n.Suppressed {
		return
	}
	t := n.Time
	if t.IsZero() {
		t = m.now()
	}
	m.toasts = append(m.toasts, toast{Notification: n, expires: t.Add(toastTTL)})
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
}

func (m *model) pruneToasts(now time.Time) {
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if now.Before(t.expires) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

// contentSize returns the space left for the page body.
func (m model) contentSize() (int, int) {
	w := m.width - 4
	if m.session.View.SidebarOpen() {
		w -= sidebarWidth + 3
	}
	// border (2), header (1), dividers (2), toasts, footer (1)
	h := m.height - 6 - maxToasts
	return safeWidth(w), max(1, h)
}

// resize fits widgets to the terminal.
func (m *model) resize() {
	w, h := m.contentSize()

	m.reqTable.SetColumns(requirementColumns(w))
	m.reqTable.SetWidth(w)
	m.reqTable.SetHeight(max(3, h/2))

	m.auditTable.SetColumns(auditColumns(w))
	m.auditTable.SetWidth(w)
	m.auditTable.SetHeight(max(3, h-2))

	m.promptView.Width = max(20, w-min(32, w/3)-1)
	m.promptView.Height = max(3, h-3)
	m.updatePromptView()
}
