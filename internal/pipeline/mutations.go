package pipeline

import (
	"context"

	"github.com/npratt/pipeboard/internal/cache"
	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/services"
)

// CreateProject creates a project and refreshes the project list.
func (s *Session) CreateProject(ctx context.Context, in services.ProjectCreate) (*services.Project, error) {
	p, err := cache.Mutate(ctx, s.Cache, func(ctx context.Context) (*services.Project, error) {
		return s.Services.Projects.Create(ctx, in)
	}, ProjectsKey())
	if err != nil {
		return nil, err
	}
	notify.Success(s.Notifier, "Project created")
	return p, nil
}

// SaveRequirements stores a batch of requirements.
func (s *Session) SaveRequirements(ctx context.Context, projectID string, reqs []services.Requirement) ([]services.Requirement, error) {
	out, err := cache.Mutate(ctx, s.Cache, func(ctx context.Context) ([]services.Requirement, error) {
		return s.Services.Requirements.Create(ctx, projectID, reqs)
	}, RequirementsKey(projectID))
	if err != nil {
		return nil, err
	}
	notify.Success(s.Notifier, "Requirements saved")
	return out, nil
}

// RefineRequirements queues a refinement run. Results arrive as live events.
func (s *Session) RefineRequirements(ctx context.Context, projectID, refineContext string) (*services.RefineResult, error) {
	out, err := cache.Mutate(ctx, s.Cache, func(ctx context.Context) (*services.RefineResult, error) {
		return s.Services.Requirements.Refine(ctx, projectID, refineContext)
	})
	if err != nil {
		return nil, err
	}
	notify.Success(s.Notifier, "Refinement started")
	return out, nil
}

// FinalizeRequirements locks the requirements and advances the project.
func (s *Session) FinalizeRequirements(ctx context.Context, projectID string, force bool) (*services.FinalizeResult, error) {
	out, err := cache.Mutate(ctx, s.Cache, func(ctx context.Context) (*services.FinalizeResult, error) {
		return s.Services.Requirements.Finalize(ctx, projectID, force)
	}, ProjectKey(projectID))
	if err != nil {
		return nil, err
	}
	notify.Success(s.Notifier, "Requirements finalized")
	return out, nil
}

// GeneratePlan starts plan generation.
func (s *Session) GeneratePlan(ctx context.Context, projectID string, in services.PlanGenerateRequest) (*services.GenerateResult, error) {
	out, err := cache.Mutate(ctx, s.Cache, func(ctx context.Context) (*services.GenerateResult, error) {
		return s.Services.Plans.Generate(ctx, projectID, in)
	}, PlanKey(projectID))
	if err != nil {
		return nil, err
	}
	if out.Queued() {
		notify.Success(s.Notifier, "Plan generation queued")
	} else {
		notify.Success(s.Notifier, "Plan generated")
	}
	return out, nil
}

// GeneratePrompts starts prompt bundle generation.
func (s *Session) GeneratePrompts(ctx context.Context, projectID string, in services.PromptGenerateRequest) (*services.GenerateResult, error) {
	out, err := cache.Mutate(ctx, s.Cache, func(ctx context.Context) (*services.GenerateResult, error) {
		return s.Services.Prompts.Generate(ctx, projectID, in)
	}, PromptsKey(projectID))
	if err != nil {
		return nil, err
	}
	if out.Queued() {
		notify.Success(s.Notifier, "Prompt generation queued")
	} else {
		notify.Success(s.Notifier, "Prompt bundle ready")
	}
	return out, nil
}

// RetryAgent re-runs one agent for the project.
func (s *Session) RetryAgent(ctx context.Context, projectID string, agent services.AgentType, force bool) (*services.RetryResult, error) {
	out, err := cache.Mutate(ctx, s.Cache, func(ctx context.Context) (*services.RetryResult, error) {
		return s.Services.Projects.RetryAgent(ctx, projectID, agent, force)
	}, ProjectKey(projectID))
	if err != nil {
		return nil, err
	}
	notify.Success(s.Notifier, "Agent retry queued")
	return out, nil
}

// ExportRequirements returns the requirements document in the given format.
// Nothing is cached.
func (s *Session) ExportRequirements(ctx context.Context, projectID string, format services.ExportFormat) ([]byte, error) {
	return s.Services.Requirements.Export(ctx, projectID, format)
}

// DownloadBundle returns the zip archive of a prompt bundle.
func (s *Session) DownloadBundle(ctx context.Context, projectID, bundleID string) ([]byte, error) {
	return s.Services.Prompts.Download(ctx, projectID, bundleID)
}
