package tui

import (
	"errors"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/pipeboard/internal/services"
)

func fillForm(f *requirementForm, values map[int]string) {
	for i, v := range values {
		f.inputs[i].SetValue(v)
	}
}

func TestRequirementFormValid(t *testing.T) {
	f := newRequirementForm()
	fillForm(f, map[int]string{
		fieldKey:          "REQ-001",
		fieldTitle:        "  Login  ",
		fieldPriority:     "HIGH",
		fieldCriteria:     "works; is fast ;",
		fieldDependencies: "REQ-000, ,REQ-002",
	})

	req, err := f.requirement()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Title != "Login" {
		t.Errorf("expected trimmed title, got %q", req.Title)
	}
	if req.Priority != services.PriorityHigh {
		t.Errorf("expected high priority, got %q", req.Priority)
	}
	if !slices.Equal(req.AcceptanceCriteria, []string{"works", "is fast"}) {
		t.Errorf("unexpected criteria %v", req.AcceptanceCriteria)
	}
	if !slices.Equal(req.Dependencies, []string{"REQ-000", "REQ-002"}) {
		t.Errorf("unexpected dependencies %v", req.Dependencies)
	}
}

func TestRequirementFormValidation(t *testing.T) {
	tests := []struct {
		name   string
		values map[int]string
		field  string
	}{
		{"missing key", map[int]string{fieldTitle: "T"}, "key"},
		{"lowercase key", map[int]string{fieldKey: "req-1", fieldTitle: "T"}, "key"},
		{"missing title", map[int]string{fieldKey: "REQ-1"}, "title"},
		{"bad priority", map[int]string{fieldKey: "REQ-1", fieldTitle: "T", fieldPriority: "urgent"}, "priority"},
		{"self dependency", map[int]string{fieldKey: "REQ-1", fieldTitle: "T", fieldDependencies: "REQ-1"}, "dependencies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRequirementForm()
			fillForm(f, tt.values)

			_, err := f.requirement()
			var ve *services.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *services.ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestRequirementFormEmptyPriorityDefaults(t *testing.T) {
	f := newRequirementForm()
	fillForm(f, map[int]string{fieldKey: "REQ-1", fieldTitle: "T", fieldPriority: ""})

	req, err := f.requirement()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Priority != services.PriorityMedium {
		t.Errorf("expected medium, got %q", req.Priority)
	}
	if req.AcceptanceCriteria == nil || req.Dependencies == nil {
		t.Error("expected empty lists, not nil")
	}
}

func TestRequirementFormNavigation(t *testing.T) {
	f := newRequirementForm()

	f.update(tea.KeyMsg{Type: tea.KeyTab})
	if f.focus != fieldTitle {
		t.Errorf("expected focus on title, got %d", f.focus)
	}
	f.update(tea.KeyMsg{Type: tea.KeyShiftTab})
	f.update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if f.focus != fieldDependencies {
		t.Errorf("expected focus to wrap to dependencies, got %d", f.focus)
	}

	if _, submit := f.update(tea.KeyMsg{Type: tea.KeyEnter}); !submit {
		t.Error("expected enter on last field to submit")
	}
	if _, submit := f.update(tea.KeyMsg{Type: tea.KeyCtrlS}); !submit {
		t.Error("expected ctrl+s to submit")
	}

	f.setFocus(fieldKey)
	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ABC")})
	if got := f.inputs[fieldKey].Value(); got != "ABC" {
		t.Errorf("expected typed value ABC, got %q", got)
	}
}

func TestEditRequirementForm(t *testing.T) {
	f := editRequirementForm(services.Requirement{
		ID:                 "r-7",
		Key:                "REQ-002",
		Title:              "Export",
		Priority:           services.PriorityLow,
		AcceptanceCriteria: []string{"csv", "json"},
		Dependencies:       []string{"REQ-001", "REQ-003"},
	})
	if got := f.inputs[fieldCriteria].Value(); got != "csv; json" {
		t.Errorf("expected joined criteria, got %q", got)
	}
	if got := f.inputs[fieldDependencies].Value(); got != "REQ-001, REQ-003" {
		t.Errorf("expected joined dependencies, got %q", got)
	}
	if f.focus != fieldTitle {
		t.Errorf("expected focus on title, got %d", f.focus)
	}
	if !strings.Contains(f.view(80), "Edit requirement") {
		t.Error("expected edit heading")
	}

	req, err := f.requirement()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID != "r-7" || req.Priority != services.PriorityLow {
		t.Errorf("expected id and priority kept, got %q %q", req.ID, req.Priority)
	}
	if len(req.AcceptanceCriteria) != 2 || req.AcceptanceCriteria[1] != "json" {
		t.Errorf("expected criteria round trip, got %v", req.AcceptanceCriteria)
	}
	if len(req.Dependencies) != 2 || req.Dependencies[1] != "REQ-003" {
		t.Errorf("expected dependencies round trip, got %v", req.Dependencies)
	}
}
