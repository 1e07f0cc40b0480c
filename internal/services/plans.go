package services

import (
	"context"
	"net/http"

	"github.com/npratt/pipeboard/internal/api"
)

// Plans covers plan generation and retrieval.
type Plans struct {
	t Transport
}

// Generate asks the backend for a new plan. The result is either the new
// plan's summary or a queued task.
func (s *Plans) Generate(ctx context.Context, projectID string, in PlanGenerateRequest) (*GenerateResult, error) {
	if in.Source == "" {
		in.Source = PlanFromRequirements
	}
	var out GenerateResult
	req := &api.Request{Method: http.MethodPost, Path: projectPath(projectID, "plan"), Body: in}
	if err := s.t.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Latest returns the newest plan, or nil if none exists yet. A 404 or an
// empty body is the normal "no plan" answer and is not reported to the user.
func (s *Plans) Latest(ctx context.Context, projectID string) (*Plan, error) {
	var out *Plan
	err := s.t.Do(ctx, &api.Request{
		Method:        http.MethodGet,
		Path:          projectPath(projectID, "plan", "latest"),
		QuietStatuses: []int{http.StatusNotFound},
	}, &out)
	if api.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a specific plan.
func (s *Plans) Get(ctx context.Context, projectID, planID string) (*Plan, error) {
	var out Plan
	if err := s.t.Do(ctx, &api.Request{Method: http.MethodGet, Path: projectPath(projectID, "plan", planID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
