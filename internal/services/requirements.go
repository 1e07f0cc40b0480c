package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/npratt/pipeboard/internal/api"
)

// Requirements covers requirement capture, refinement, and export.
type Requirements struct {
	t Transport
}

// Create stores a batch of requirements.
func (s *Requirements) Create(ctx context.Context, projectID string, reqs []Requirement) ([]Requirement, error) {
	body := struct {
		Requirements []Requirement `json:"requirements"`
	}{Requirements: reqs}

	var out []Requirement
	req := &api.Request{Method: http.MethodPost, Path: projectPath(projectID, "requirements"), Body: body}
	if err := s.t.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the project's requirements.
func (s *Requirements) List(ctx context.Context, projectID string) ([]Requirement, error) {
	var out []Requirement
	if err := s.t.Do(ctx, &api.Request{Method: http.MethodGet, Path: projectPath(projectID, "requirements")}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Refine queues a refinement pass with optional extra context.
func (s *Requirements) Refine(ctx context.Context, projectID, refineContext string) (*RefineResult, error) {
	body := map[string]any{}
	if refineContext != "" {
		body["context"] = refineContext
	}
	var out RefineResult
	req := &api.Request{Method: http.MethodPost, Path: projectPath(projectID, "requirements", "refine"), Body: body}
	if err := s.t.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Finalize freezes the requirements and advances the project.
func (s *Requirements) Finalize(ctx context.Context, projectID string, force bool) (*FinalizeResult, error) {
	var out FinalizeResult
	req := &api.Request{
		Method: http.MethodPost,
		Path:   projectPath(projectID, "requirements", "finalize"),
		Body:   map[string]bool{"force": force},
	}
	if err := s.t.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export returns the requirements document in the given format, unparsed.
func (s *Requirements) Export(ctx context.Context, projectID string, format ExportFormat) ([]byte, error) {
	if format != ExportJSON && format != ExportMarkdown {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	query := url.Values{}
	query.Set("format", string(format))

	header := http.Header{}
	header.Set("Accept", "*/*")
	resp, err := s.t.Send(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "requirements", "export"),
		Query:  query,
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
