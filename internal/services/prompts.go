package services

import (
	"context"
	"net/http"

	"github.com/npratt/pipeboard/internal/api"
)

// Prompts covers prompt bundle generation and download.
type Prompts struct {
	t Transport
}

// Generate asks the backend for a prompt bundle.
func (s *Prompts) Generate(ctx context.Context, projectID string, in PromptGenerateRequest) (*GenerateResult, error) {
	var out GenerateResult
	req := &api.Request{Method: http.MethodPost, Path: projectPath(projectID, "prompts", "generate"), Body: in}
	if err := s.t.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Latest returns the newest bundle, or nil if none exists yet.
func (s *Prompts) Latest(ctx context.Context, projectID string) (*PromptBundle, error) {
	var out *PromptBundle
	err := s.t.Do(ctx, &api.Request{
		Method:        http.MethodGet,
		Path:          projectPath(projectID, "prompts", "latest"),
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

// Download returns the zipped bundle.
func (s *Prompts) Download(ctx context.Context, projectID, bundleID string) ([]byte, error) {
	header := http.Header{}
	header.Set("Accept", "application/zip")
	resp, err := s.t.Send(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "prompts", "bundles", bundleID, "download"),
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
