package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/pipeboard/internal/api"
	"github.com/npratt/pipeboard/internal/services"
)

const recentEventsShown = 5

func newRequirementsTable() table.Model {
	t := table.New(
		table.WithColumns(requirementColumns(80)),
		table.WithFocused(true),
	)
	t.SetStyles(tableStyles())
	return t
}

func requirementColumns(width int) []table.Column {
	fixed := 12 + 10 + 10 + 6
	return []table.Column{
		{Title: "Key", Width: 12},
		{Title: "Title", Width: max(10, width-fixed)},
		{Title: "Priority", Width: 10},
		{Title: "Criteria", Width: 10},
	}
}

func requirementRows(reqs []services.Requirement) []table.Row {
	rows := make([]table.Row, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, table.Row{
			r.Key,
			safeString(r.Title),
			string(r.Priority),
			fmt.Sprintf("%d", len(r.AcceptanceCriteria)),
		})
	}
	return rows
}

func newAuditTable() table.Model {
	t := table.New(
		table.WithColumns(auditColumns(80)),
		table.WithFocused(true),
	)
	t.SetStyles(tableStyles())
	return t
}

func auditColumns(width int) []table.Column {
	fixed := 14 + 20 + 12 + 9 + 10
	return []table.Column{
		{Title: "When", Width: 14},
		{Title: "Event", Width: 20},
		{Title: "Agent", Width: 12},
		{Title: "Action", Width: max(10, width-fixed)},
		{Title: "Result", Width: 9},
	}
}

func auditRows(entries []services.AuditLogEntry, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "failed"
		}
		if e.DurationMS != nil {
			result += " " + formatDuration(time.Duration(*e.DurationMS)*time.Millisecond)
		}
		rows = append(rows, table.Row{
			formatRelative(e.CreatedAt.Time, now),
			e.EventType,
			orDash(e.AgentType),
			safeString(e.Action),
			result,
		})
	}
	return rows
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("39")).
		Background(lipgloss.Color("236")).
		Bold(true)
	return s
}

// renderQueryStatus returns a placeholder while a query has nothing to show.
func renderQueryStatus[T any](q queryState[T], spin, what string) (string, bool) {
	switch {
	case q.err != nil:
		return styles.Error.Render(fmt.Sprintf("Failed to load %s: %s", what, api.Message(q.err))), true
	case !q.loaded:
		return spin + " " + styles.Muted.Render("Loading "+what+"..."), true
	}
	return "", false
}

func field(label, value string) string {
	return styles.Label.Render(fmt.Sprintf("%-14s", label)) + styles.Value.Render(value)
}

func (m model) renderDashboard(w, h int) string {
	if s, ok := renderQueryStatus(m.project, m.spinner.View(), "project"); ok {
		return s
	}
	p := m.project.value
	if p == nil {
		return styles.Muted.Render("Project not found.")
	}

	audits := "-"
	if m.audit.value != nil {
		audits = fmt.Sprintf("%d", m.audit.value.Total)
	}
	stats := []string{
		field("State", stateBadge(p.State)),
		field("Recent events", fmt.Sprintf("%d", len(p.RecentEvents))),
		field("Success rate", formatPercentage(p.SuccessRate())),
		field("Total audits", audits),
	}

	info := []string{
		styles.Heading.Render("Project information"),
		field("Name", safeString(p.Name)),
		field("Project ID", p.ID),
		field("Created", formatDateTime(p.CreatedAt.Time)),
		field("Last updated", formatDateTime(p.UpdatedAt.Time)),
	}

	events := []string{styles.Heading.Render("Recent events")}
	if len(p.RecentEvents) == 0 {
		events = append(events, styles.Muted.Render("No events yet."))
	}
	now := m.now()
	for i, e := range p.RecentEvents {
		if i >= recentEventsShown {
			break
		}
		mark := styles.Success.Render("+")
		if !e.Success {
			mark = styles.Error.Render("x")
		}
		line := fmt.Sprintf("%s %s %s", mark,
			styles.Value.Render(truncate(e.Action, max(10, w-40))),
			styles.Muted.Render(e.Type))
		events = append(events, line+"  "+styles.Muted.Render(formatRelative(e.CreatedAt.Time, now)))
	}

	sections := []string{
		strings.Join(stats, "\n"),
		strings.Join(info, "\n"),
		strings.Join(events, "\n"),
	}
	return clip(strings.Join(sections, "\n\n"), h)
}

func (m model) renderRequirements(w, h int) string {
	head := ""
	if m.project.value != nil {
		head = field("State", stateBadge(m.project.value.State)) + "\n"
	}
	if s, ok := renderQueryStatus(m.reqs, m.spinner.View(), "requirements"); ok {
		return head + s
	}
	if len(m.reqs.value) == 0 {
		return head + styles.Muted.Render("No requirements yet. Press n to add one.")
	}

	detail := ""
	if i := m.reqTable.Cursor(); i >= 0 && i < len(m.reqs.value) {
		r := m.reqs.value[i]
		lines := []string{
			styleForPriority(r.Priority).Render(fmt.Sprintf("%s  %s", r.Key, safeString(r.Title))),
		}
		if r.Description != "" {
			lines = append(lines, styles.Value.Render(truncate(r.Description, max(20, w*2))))
		}
		for _, c := range r.AcceptanceCriteria {
			lines = append(lines, styles.Muted.Render("  - "+truncate(c, max(10, w-4))))
		}
		if len(r.Dependencies) > 0 {
			lines = append(lines, styles.Label.Render("depends on: ")+strings.Join(r.Dependencies, ", "))
		}
		detail = strings.Join(lines, "\n")
	}

	body := head + m.reqTable.View()
	if detail != "" {
		body += "\n\n" + detail
	}
	if m.lastExport != "" {
		body += "\n\n" + styles.Muted.Render("exported to "+m.lastExport)
	}
	return clip(body, h)
}

func (m model) renderPlanning(w, h int) string {
	if s, ok := renderQueryStatus(m.plan, m.spinner.View(), "plan"); ok {
		return s
	}
	p := m.plan.value
	if p == nil {
		return styles.Muted.Render("No plan yet. Press g to generate one.")
	}

	lines := []string{
		styles.Heading.Render(fmt.Sprintf("Plan v%d", p.Version)) + "  " + styles.Muted.Render(p.Status),
		field("Duration", formatDays(p.TotalDurationDays)),
		field("Coverage", formatPercentage(p.CoveragePercentage)),
		field("Risk score", fmt.Sprintf("%.1f", p.RiskScore)),
		field("Source", string(p.Source)),
		field("Created", formatDateTime(p.CreatedAt.Time)),
		"",
		styles.Heading.Render(fmt.Sprintf("Phases (%d)", len(p.Phases))),
	}
	for _, ph := range p.Phases {
		title := fmt.Sprintf("%2d. %s", ph.Sequence, truncate(ph.Title, max(10, w-30)))
		meta := fmt.Sprintf("%s  risk %s", formatDays(ph.EstimatedDays), orDash(string(ph.RiskLevel)))
		lines = append(lines, styles.Value.Render(title)+"  "+styleForPriority(ph.RiskLevel).Render(meta))
		if ph.Objective != "" {
			lines = append(lines, styles.Muted.Render("    "+truncate(ph.Objective, max(10, w-6))))
		}
		if len(ph.Dependencies) > 0 {
			lines = append(lines, styles.Muted.Render("    after "+strings.Join(ph.Dependencies, ", ")))
		}
	}
	return clip(strings.Join(lines, "\n"), h)
}

func (m model) renderPrompts(w, h int) string {
	if s, ok := renderQueryStatus(m.prompts, m.spinner.View(), "prompts"); ok {
		return s
	}
	b := m.prompts.value
	codeFlag := "off"
	if m.includeCode {
		codeFlag = "on"
	}
	if b == nil {
		return styles.Muted.Render("No prompt bundle yet. Press g to generate one (include code: " + codeFlag + ").")
	}

	head := []string{
		styles.Heading.Render(fmt.Sprintf("Bundle v%d", b.Version)) + "  " +
			styles.Muted.Render(fmt.Sprintf("%d prompts, include code %s", b.TotalPrompts, codeFlag)),
	}

	listWidth := min(32, w/3)
	var list []string
	for i, p := range b.Prompts {
		line := truncate(fmt.Sprintf("%d. %s", p.Sequence, p.Title), listWidth-2)
		if i == m.promptIndex {
			list = append(list, styles.NavSelected.Render("> "+line))
		} else {
			list = append(list, styles.NavItem.Render("  "+line))
		}
	}
	left := lipgloss.NewStyle().Width(listWidth).Render(clip(strings.Join(list, "\n"), h-2))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", m.promptView.View())
	return strings.Join(head, "\n") + "\n\n" + body
}

func (m model) renderChecklist(int, int) string {
	return styles.Heading.Render("Code checklist") + "\n\n" +
		styles.Muted.Render("Checklist validation is not available yet.")
}

func (m model) renderAudit(w, h int) string {
	if s, ok := renderQueryStatus(m.audit, m.spinner.View(), "audit log"); ok {
		return s
	}
	page := m.audit.value
	if page == nil || len(page.Items) == 0 {
		return styles.Muted.Render("No audit entries.")
	}
	footer := styles.Muted.Render(fmt.Sprintf("page %d of %d (%d entries)  [ prev  ] next",
		page.Page, max(1, page.TotalPages), page.Total))
	return clip(m.auditTable.View()+"\n"+footer, h)
}

// clip keeps at most h lines of s.
func clip(s string, h int) string {
	if h <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= h {
		return s
	}
	return strings.Join(lines[:h], "\n")
}

// updatePromptView renders the selected prompt into the viewport.
func (m *model) updatePromptView() {
	b := m.prompts.value
	if b == nil || len(b.Prompts) == 0 {
		m.promptView.SetContent("")
		return
	}
	p := b.Prompts[m.promptIndex]
	m.promptView.SetContent(m.markdown.render(p.ContentMD, m.promptView.Width))
	m.promptView.GotoTop()
}

func (m *model) clampPromptIndex() {
	n := 0
	if m.prompts.value != nil {
		n = len(m.prompts.value.Prompts)
	}
	if m.promptIndex >= n {
		m.promptIndex = max(0, n-1)
	}
}
