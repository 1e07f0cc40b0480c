package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/npratt/pipeboard/internal/api"
)

// Audit page size bounds enforced by the backend.
const (
	MinAuditPageSize     = 10
	MaxAuditPageSize     = 100
	DefaultAuditPageSize = 50
)

// Projects covers project lifecycle, audit, and agent retry endpoints.
type Projects struct {
	t Transport
}

// List returns every project.
func (s *Projects) List(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := s.t.Do(ctx, &api.Request{Method: http.MethodGet, Path: "/projects/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create creates a project.
func (s *Projects) Create(ctx context.Context, in ProjectCreate) (*Project, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	var out Project
	if err := s.t.Do(ctx, &api.Request{Method: http.MethodPost, Path: "/projects/", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the current state of a project.
func (s *Projects) Status(ctx context.Context, projectID string) (*ProjectStatus, error) {
	var out ProjectStatus
	if err := s.t.Do(ctx, &api.Request{Method: http.MethodGet, Path: projectPath(projectID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditQuery selects a page of audit entries.
type AuditQuery struct {
	Page      int
	PageSize  int
	EventType string
}

func (q AuditQuery) normalized() AuditQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize == 0:
		q.PageSize = DefaultAuditPageSize
	case q.PageSize < MinAuditPageSize:
		q.PageSize = MinAuditPageSize
	case q.PageSize > MaxAuditPageSize:
		q.PageSize = MaxAuditPageSize
	}
	return q
}

// AuditLogs fetches one page of the project's audit trail. Out-of-range
// page sizes are clamped to what the backend accepts.
func (s *Projects) AuditLogs(ctx context.Context, projectID string, q AuditQuery) (*Page[AuditLogEntry], error) {
	q = q.normalized()
	query := url.Values{}
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("page_size", strconv.Itoa(q.PageSize))
	if q.EventType != "" {
		query.Set("event_type", q.EventType)
	}

	var out Page[AuditLogEntry]
	req := &api.Request{Method: http.MethodGet, Path: projectPath(projectID, "audit"), Query: query}
	if err := s.t.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryAgent queues a re-run of one agent.
func (s *Projects) RetryAgent(ctx context.Context, projectID string, agent AgentType, force bool) (*RetryResult, error) {
	body := RetryRequest{Agent: agent, Force: force, Metadata: map[string]any{}}
	var out RetryResult
	req := &api.Request{Method: http.MethodPost, Path: projectPath(projectID, "retry", string(agent)), Body: body}
	if err := s.t.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
