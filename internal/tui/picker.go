package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/services"
)

// pickerAction is what the user chose in the project picker.
type pickerAction int

const (
	pickerNone pickerAction = iota
	pickerSelect
	pickerCreate
	pickerClose
)

// projectPicker lists projects and can create a new one.
type projectPicker struct {
	projects []services.Project
	cursor   int
	creating bool
	name     textinput.Model
}

func newProjectPicker(current string, projects []services.Project) *projectPicker {
	name := textinput.New()
	name.Placeholder = "project name"
	name.CharLimit = 200

	p := &projectPicker{name: name}
	p.setProjects(projects)
	for i, proj := range p.projects {
		if proj.ID == current {
			p.cursor = i
		}
	}
	return p
}

func (p *projectPicker) setProjects(projects []services.Project) {
	p.projects = projects
	if p.cursor >= len(projects) {
		p.cursor = max(0, len(projects)-1)
	}
}

// selected returns the project under the cursor.
func (p *projectPicker) selected() (services.Project, bool) {
	if p.cursor < 0 || p.cursor >= len(p.projects) {
		return services.Project{}, false
	}
	return p.projects[p.cursor], true
}

func (p *projectPicker) update(msg tea.Msg) (tea.Cmd, pickerAction) {
	key, isKey := msg.(tea.KeyMsg)

	if p.creating {
		if isKey {
			switch key.String() {
			case "esc":
				p.creating = false
				p.name.Blur()
				p.name.SetValue("")
				return nil, pickerNone
			case "enter":
				if strings.TrimSpace(p.name.Value()) == "" {
					return nil, pickerNone
				}
				return nil, pickerCreate
			}
		}
		var cmd tea.Cmd
		p.name, cmd = p.name.Update(msg)
		return cmd, pickerNone
	}

	if !isKey {
		return nil, pickerNone
	}
	switch key.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.projects)-1 {
			p.cursor++
		}
	case "home", "g":
		p.cursor = 0
	case "end", "G":
		p.cursor = max(0, len(p.projects)-1)
	case "n":
		p.creating = true
		return p.name.Focus(), pickerNone
	case "enter":
		if _, ok := p.selected(); ok {
			return nil, pickerSelect
		}
	case "esc", "P":
		return nil, pickerClose
	}
	return nil, pickerNone
}

func (p *projectPicker) view(width, height int, loading bool, err error) string {
	var b strings.Builder
	b.WriteString(styles.Heading.Render("Select project"))
	b.WriteString("\n\n")

	switch {
	case err != nil && len(p.projects) == 0:
		b.WriteString(styles.Error.Render("Failed to load projects: " + err.Error()))
		b.WriteString("\n")
	case loading && len(p.projects) == 0:
		b.WriteString(styles.Muted.Render("Loading projects..."))
		b.WriteString("\n")
	case len(p.projects) == 0:
		b.WriteString(styles.Muted.Render("No projects yet. Press n to create one."))
		b.WriteString("\n")
	}

	visible := max(1, height-8)
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := min(len(p.projects), start+visible)
	for i := start; i < end; i++ {
		proj := p.projects[i]
		line := fmt.Sprintf("%-*s %s", max(10, width-22), truncate(proj.Name, max(10, width-22)), proj.Status)
		if i == p.cursor {
			b.WriteString(styles.NavSelected.Render("> " + line))
		} else {
			b.WriteString(styles.NavItem.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if p.creating {
		b.WriteString(styles.FieldFocused.Render("Name"))
		b.WriteString(p.name.View())
		b.WriteString("\n")
		b.WriteString(styles.Footer.Render("enter: create  esc: cancel"))
	} else {
		b.WriteString(styles.Footer.Render("j/k: move  enter: open  n: new project  esc: close"))
	}
	return b.String()
}
