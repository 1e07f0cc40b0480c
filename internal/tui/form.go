package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/services"
)

// Form fields, in tab order.
const (
	fieldKey = iota
	fieldTitle
	fieldDescription
	fieldPriority
	fieldCriteria
	fieldDependencies
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldKey:          "Key",
	fieldTitle:        "Title",
	fieldDescription:  "Description",
	fieldPriority:     "Priority",
	fieldCriteria:     "Acceptance criteria",
	fieldDependencies: "Dependencies",
}

// requirementForm edits one requirement.
type requirementForm struct {
	inputs  [fieldCount]textinput.Model
	focus   int
	err     error
	editing bool
	id      string
}

func newRequirementForm() *requirementForm {
	f := &requirementForm{}
	placeholders := [fieldCount]string{
		fieldKey:          "REQ-001",
		fieldTitle:        "Short summary",
		fieldDescription:  "What and why",
		fieldPriority:     "low | medium | high | critical",
		fieldCriteria:     "criterion one; criterion two",
		fieldDependencies: "REQ-000, REQ-002",
	}
	for i := range f.inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 500
		in.Width = 50
		f.inputs[i] = in
	}
	f.inputs[fieldKey].CharLimit = 50
	f.inputs[fieldTitle].CharLimit = 200
	f.inputs[fieldPriority].SetValue(string(services.PriorityMedium))
	f.inputs[fieldKey].Focus()
	return f
}

// editRequirementForm opens the form pre-filled with an existing
// requirement. List fields are joined with their input separators.
func editRequirementForm(req services.Requirement) *requirementForm {
	f := newRequirementForm()
	f.editing = true
	f.id = req.ID
	f.inputs[fieldKey].SetValue(req.Key)
	f.inputs[fieldTitle].SetValue(req.Title)
	f.inputs[fieldDescription].SetValue(req.Description)
	if req.Priority != "" {
		f.inputs[fieldPriority].SetValue(string(req.Priority))
	}
	f.inputs[fieldCriteria].SetValue(strings.Join(req.AcceptanceCriteria, "; "))
	f.inputs[fieldDependencies].SetValue(strings.Join(req.Dependencies, ", "))
	f.setFocus(fieldTitle)
	return f
}

func (f *requirementForm) setFocus(i int) {
	f.inputs[f.focus].Blur()
	f.focus = (i + fieldCount) % fieldCount
	f.inputs[f.focus].Focus()
}

// update forwards a message to the focused input. submit reports that the
// user asked to save.
func (f *requirementForm) update(msg tea.Msg) (cmd tea.Cmd, submit bool) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.setFocus(f.focus + 1)
			return nil, false
		case "shift+tab", "up":
			f.setFocus(f.focus - 1)
			return nil, false
		case "ctrl+s":
			return nil, true
		case "enter":
			if f.focus == fieldCount-1 {
				return nil, true
			}
			f.setFocus(f.focus + 1)
			return nil, false
		}
	}
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd, false
}

// requirement validates the inputs and builds the requirement.
func (f *requirementForm) requirement() (services.Requirement, error) {
	req := services.Requirement{
		ID:                 f.id,
		Key:                f.inputs[fieldKey].Value(),
		Title:              f.inputs[fieldTitle].Value(),
		Description:        f.inputs[fieldDescription].Value(),
		Priority:           services.Priority(f.inputs[fieldPriority].Value()),
		AcceptanceCriteria: strings.Split(f.inputs[fieldCriteria].Value(), ";"),
		Dependencies:       strings.Split(f.inputs[fieldDependencies].Value(), ","),
	}
	err := req.Normalize()
	return req, err
}

func (f *requirementForm) view(width int) string {
	var b strings.Builder
	heading := "New requirement"
	if f.editing {
		heading = "Edit requirement"
	}
	b.WriteString(styles.Heading.Render(heading))
	b.WriteString("\n\n")
	for i := range f.inputs {
		label := styles.FieldLabel
		if i == f.focus {
			label = styles.FieldFocused
		}
		f.inputs[i].Width = max(10, width-26)
		b.WriteString(label.Render(fieldLabels[i]))
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	if f.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render(f.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.Footer.Render("tab: next field  ctrl+s: save  esc: cancel"))
	return b.String()
}
