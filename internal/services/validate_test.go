package services

import (
	"errors"
	"slices"
	"testing"
)

func TestRequirementNormalize(t *testing.T) {
	t.Run("trims and defaults", func(t *testing.T) {
		r := Requirement{
			Key:                " REQ-1 ",
			Title:              "  Login ",
			AcceptanceCriteria: []string{" works ", ""},
		}
		if err := r.Normalize(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Key != "REQ-1" || r.Title != "Login" {
			t.Errorf("expected trimmed fields, got %q %q", r.Key, r.Title)
		}
		if r.Priority != PriorityMedium {
			t.Errorf("expected medium, got %q", r.Priority)
		}
		if !slices.Equal(r.AcceptanceCriteria, []string{"works"}) {
			t.Errorf("unexpected criteria %v", r.AcceptanceCriteria)
		}
		if r.Dependencies == nil {
			t.Error("expected empty dependencies, not nil")
		}
	})

	t.Run("priority is case-insensitive", func(t *testing.T) {
		r := Requirement{Key: "A", Title: "T", Priority: "Critical"}
		if err := r.Normalize(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Priority != PriorityCritical {
			t.Errorf("expected critical, got %q", r.Priority)
		}
	})

	tests := []struct {
		name  string
		req   Requirement
		field string
	}{
		{"missing key", Requirement{Title: "T"}, "key"},
		{"lowercase key", Requirement{Key: "req-1", Title: "T"}, "key"},
		{"missing title", Requirement{Key: "REQ-1"}, "title"},
		{"bad priority", Requirement{Key: "REQ-1", Title: "T", Priority: "urgent"}, "priority"},
		{"self dependency", Requirement{Key: "REQ-1", Title: "T", Dependencies: []string{"REQ-1"}}, "dependencies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Normalize()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}
