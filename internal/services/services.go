// Package services builds typed requests for each backend resource. The
// services are stateless; caching and invalidation happen one layer up.
package services

import (
	"context"
	"net/url"

	"github.com/npratt/pipeboard/internal/api"
)

// Transport is the subset of *api.Client the services need.
type Transport interface {
	Do(ctx context.Context, req *api.Request, out any) error
	Send(ctx context.Context, req *api.Request) (*api.Response, error)
}

// Services groups every resource service over one transport.
type Services struct {
	Projects     *Projects
	Requirements *Requirements
	Plans        *Plans
	Prompts      *Prompts
}

// New wires all resource services to t.
func New(t Transport) *Services {
	return &Services{
		Projects:     &Projects{t: t},
		Requirements: &Requirements{t: t},
		Plans:        &Plans{t: t},
		Prompts:      &Prompts{t: t},
	}
}

func projectPath(projectID string, parts ...string) string {
	p := "/projects/" + url.PathEscape(projectID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}
