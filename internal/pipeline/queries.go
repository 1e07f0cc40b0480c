package pipeline

import (
	"context"

	"github.com/npratt/pipeboard/internal/cache"
	"github.com/npratt/pipeboard/internal/services"
)

// ProjectList returns all projects.
func (s *Session) ProjectList(ctx context.Context) ([]services.Project, error) {
	return cache.Fetch(ctx, s.Cache, ProjectsKey(), s.Services.Projects.List)
}

// Project returns the status of one project.
func (s *Session) Project(ctx context.Context, projectID string) (*services.ProjectStatus, error) {
	return cache.Fetch(ctx, s.Cache, ProjectKey(projectID), func(ctx context.Context) (*services.ProjectStatus, error) {
		return s.Services.Projects.Status(ctx, projectID)
	})
}

// AuditLogs returns one page of the project's audit trail.
func (s *Session) AuditLogs(ctx context.Context, projectID string, q services.AuditQuery) (*services.Page[services.AuditLogEntry], error) {
	return cache.Fetch(ctx, s.Cache, AuditKey(projectID, q), func(ctx context.Context) (*services.Page[services.AuditLogEntry], error) {
		return s.Services.Projects.AuditLogs(ctx, projectID, q)
	})
}

// Requirements returns the project's requirements.
func (s *Session) Requirements(ctx context.Context, projectID string) ([]services.Requirement, error) {
	return cache.Fetch(ctx, s.Cache, RequirementsKey(projectID), func(ctx context.Context) ([]services.Requirement, error) {
		return s.Services.Requirements.List(ctx, projectID)
	})
}

// LatestPlan returns the newest plan, or nil when none has been generated.
func (s *Session) LatestPlan(ctx context.Context, projectID string) (*services.Plan, error) {
	return cache.Fetch(ctx, s.Cache, LatestPlanKey(projectID), func(ctx context.Context) (*services.Plan, error) {
		return s.Services.Plans.Latest(ctx, projectID)
	})
}

// Plan returns a specific plan version.
func (s *Session) Plan(ctx context.Context, projectID, planID string) (*services.Plan, error) {
	return cache.Fetch(ctx, s.Cache, PlanByIDKey(projectID, planID), func(ctx context.Context) (*services.Plan, error) {
		return s.Services.Plans.Get(ctx, projectID, planID)
	})
}

// LatestPrompts returns the newest prompt bundle, or nil when none exists.
func (s *Session) LatestPrompts(ctx context.Context, projectID string) (*services.PromptBundle, error) {
	return cache.Fetch(ctx, s.Cache, LatestPromptsKey(projectID), func(ctx context.Context) (*services.PromptBundle, error) {
		return s.Services.Prompts.Latest(ctx, projectID)
	})
}
