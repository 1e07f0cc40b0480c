package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/services"
	"github.com/npratt/pipeboard/internal/stream"
)

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout
	Container lipgloss.Style
	Divider   lipgloss.Style
	Sidebar   lipgloss.Style
	Overlay   lipgloss.Style

	// Header and footer
	Title   lipgloss.Style
	Project lipgloss.Style
	Footer  lipgloss.Style

	// Navigation
	NavItem     lipgloss.Style
	NavSelected lipgloss.Style

	// Content
	Heading lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Badge   lipgloss.Style

	// Form
	FieldLabel   lipgloss.Style
	FieldFocused lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Sidebar: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingRight(1),

	Overlay: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Project: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	NavItem: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	NavSelected: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Background(lipgloss.Color("236")),

	Heading: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")),

	Label: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Value: lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")),

	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Badge: lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true),

	FieldLabel: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Width(22),

	FieldFocused: lipgloss.NewStyle().
		Foreground(lipgloss.Color("212")).
		Width(22),
}

// stateColors maps pipeline stages to badge colors.
var stateColors = map[services.ProjectState]lipgloss.Color{
	services.StateDraft:         "245",
	services.StateReqsRefining:  "214",
	services.StateReqsReady:     "82",
	services.StateCodeValidated: "43",
	services.StatePlanReady:     "39",
	services.StatePromptsReady:  "177",
	services.StateDone:          "82",
	services.StateBlocked:       "196",
}

// stateBadge renders a project state as a colored badge.
func stateBadge(state services.ProjectState) string {
	color, ok := stateColors[state]
	if !ok {
		color = "245"
	}
	label := string(state)
	if label == "" {
		label = "N/A"
	}
	return styles.Badge.
		Foreground(lipgloss.Color("0")).
		Background(color).
		Render(label)
}

// styleForNotification picks the toast style for a level.
func styleForNotification(level notify.Level) lipgloss.Style {
	switch level {
	case notify.LevelError:
		return styles.Error
	case notify.LevelSuccess:
		return styles.Success
	default:
		return styles.Value
	}
}

// styleForStream picks the header style for a connection state.
func styleForStream(s stream.State) lipgloss.Style {
	switch s {
	case stream.StateConnected:
		return styles.Success
	case stream.StateConnecting:
		return styles.Warning
	case stream.StateError:
		return styles.Error
	default:
		return styles.Muted
	}
}

// styleForPriority colors requirement priorities and plan risk levels.
func styleForPriority(p services.Priority) lipgloss.Style {
	switch p {
	case services.PriorityCritical:
		return styles.Error
	case services.PriorityHigh:
		return styles.Warning
	case services.PriorityMedium:
		return styles.Value
	default:
		return styles.Muted
	}
}
