package services

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError reports a requirement field that failed local checks.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var requirementKeyPattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// Normalize trims r, fills defaults, and reports the first invalid field.
// An empty priority becomes medium; nil lists become empty ones.
func (r *Requirement) Normalize() error {
	r.Key = strings.TrimSpace(r.Key)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Priority = Priority(strings.ToLower(strings.TrimSpace(string(r.Priority))))
	r.AcceptanceCriteria = compact(r.AcceptanceCriteria)
	r.Dependencies = compact(r.Dependencies)

	switch {
	case r.Key == "":
		return &ValidationError{Field: "key", Message: "is required"}
	case !requirementKeyPattern.MatchString(r.Key):
		return &ValidationError{Field: "key", Message: "use uppercase letters, digits, '-' or '_'"}
	case r.Title == "":
		return &ValidationError{Field: "title", Message: "is required"}
	case r.Priority == "":
		r.Priority = PriorityMedium
	case !r.Priority.Valid():
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", r.Priority)}
	}
	for _, dep := range r.Dependencies {
		if dep == r.Key {
			return &ValidationError{Field: "dependencies", Message: "a requirement cannot depend on itself"}
		}
	}
	return nil
}

// compact trims items and drops blank ones. It never returns nil so the
// backend receives an empty list rather than null.
func compact(items []string) []string {
	out := []string{}
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
