package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/pipeboard/internal/stream"
)

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	w := safeWidth(m.width - 4)
	cw, ch := m.contentSize()

	sections := []string{
		m.renderHeader(w),
		m.renderDivider(w),
		m.renderBody(cw, ch),
		m.renderDivider(w),
		m.renderToasts(w),
		m.renderFooter(w),
	}
	content := strings.Join(sections, "\n")

	return styles.Container.
		Width(safeWidth(m.width - 2)).
		Padding(0, 1).
		Render(content)
}

// renderTooSmall asks for a bigger terminal.
func (m model) renderTooSmall() string {
	msg := fmt.Sprintf("Terminal too small (%dx%d)\nNeed at least %dx%d",
		m.width, m.height, minWidth, minHeight)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, styles.Warning.Render(msg))
}

func (m model) renderHeader(width int) string {
	left := styles.Title.Render("pipeboard")
	if id := m.projectID(); id != "" {
		name := id
		if p := m.project.value; p != nil && p.ID == id && p.Name != "" {
			name = p.Name
		}
		left += styles.Muted.Render(" / ") + styles.Project.Render(truncate(safeString(name), max(10, width/2)))
	}
	left += styles.Muted.Render(" / ") + m.page.String()

	var right []string
	if m.busy != "" {
		right = append(right, m.spinner.View()+" "+styles.Muted.Render(m.busy))
	}
	if m.projectID() != "" {
		right = append(right, styleForStream(m.streamState).Render(streamIndicator(m.streamState)))
	}
	r := strings.Join(right, "  ")

	gap := width - lipgloss.Width(left) - lipgloss.Width(r)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + r
}

func streamIndicator(s stream.State) string {
	switch s {
	case stream.StateConnected:
		return "● live"
	case stream.StateConnecting:
		return "○ connecting"
	case stream.StateError:
		return "✗ offline"
	default:
		return "○ idle"
	}
}

func (m model) renderDivider(width int) string {
	return styles.Divider.Render(strings.Repeat("─", width))
}

// renderBody lays out the sidebar and the active page or overlay.
func (m model) renderBody(w, h int) string {
	var content string
	switch {
	case m.form != nil:
		content = m.overlay(m.form.view(min(w-4, 72)), w, h)
	case m.picker != nil:
		content = m.overlay(m.picker.view(min(w-4, 64), h-2, m.projects.loading, m.projects.err), w, h)
	case m.devOpen:
		content = renderDevtools(m.devtoolsData(), m.now(), w, h)
	case m.projectID() == "":
		content = styles.Muted.Render("No project selected. Press P to pick one.")
	default:
		content = m.renderPage(w, h)
	}
	body := lipgloss.NewStyle().Width(w).Height(h).MaxHeight(h).Render(content)

	if !m.session.View.SidebarOpen() {
		return body
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(h), " ", body)
}

func (m model) renderPage(w, h int) string {
	switch m.page {
	case PageRequirements:
		return m.renderRequirements(w, h)
	case PagePlanning:
		return m.renderPlanning(w, h)
	case PagePrompts:
		return m.renderPrompts(w, h)
	case PageChecklist:
		return m.renderChecklist(w, h)
	case PageAudit:
		return m.renderAudit(w, h)
	default:
		return m.renderDashboard(w, h)
	}
}

func (m model) overlay(inner string, w, h int) string {
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, styles.Overlay.Render(inner))
}

func (m model) renderSidebar(h int) string {
	lines := make([]string, 0, len(pageTitles))
	for i, title := range pageTitles {
		label := truncate(fmt.Sprintf("%d %s", i+1, title), sidebarWidth-2)
		if Page(i) == m.page {
			lines = append(lines, styles.NavSelected.Width(sidebarWidth).Render(" "+label))
		} else {
			lines = append(lines, styles.NavItem.Width(sidebarWidth).Render(" "+label))
		}
	}
	return styles.Sidebar.Height(h).Render(strings.Join(lines, "\n"))
}

// renderToasts always takes maxToasts lines so the layout does not jump.
func (m model) renderToasts(width int) string {
	lines := make([]string, maxToasts)
	for i, t := range m.toasts {
		lines[maxToasts-len(m.toasts)+i] = styleForNotification(t.Level).Render(truncate(t.Message, width))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderFooter(width int) string {
	var help string
	switch {
	case m.form != nil:
		help = "tab: next  shift+tab: prev  ctrl+s: save  esc: cancel"
	case m.picker != nil:
		help = "j/k: move  enter: open  n: new  esc: close"
	case m.devOpen:
		help = "D/esc: close devtools"
	default:
		help = "1-6: pages  s: sidebar  r: refresh  P: projects"
		if m.devtools {
			help += "  D: devtools"
		}
		if page := pageHelp[m.page]; page != "" && m.projectID() != "" {
			help = page + "  " + help
		}
		help += "  q: quit"
	}
	return styles.Footer.Render(truncate(help, width))
}

var pageHelp = map[Page]string{
	PageRequirements: "n: new  enter: edit  R: refine  f: finalize  e/E: export md/json",
	PagePlanning:     "g: generate",
	PagePrompts:      "g: generate  c: include code  d: download  j/k: select",
	PageAudit:        "[/]: page",
}

// safeWidth returns a width that is at least 1.
func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}
