package pipeline

import (
	"fmt"

	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/stream"
)

// applyLiveEvent runs on the stream reader goroutine. It must not take s.mu:
// Watch holds it while waiting for the previous reader to exit.
func (s *Session) applyLiveEvent(projectID string, ev stream.Event) {
	switch e := ev.(type) {
	case *stream.StateTransitionEvent:
		s.Cache.Invalidate(ProjectKey(projectID))
		notify.Success(s.Notifier, "State changed to "+e.ToState)
	case *stream.AgentCompletedEvent:
		s.Cache.Invalidate(ProjectKey(projectID))
		notify.Success(s.Notifier, fmt.Sprintf("%s completed", e.Agent))
	case *stream.AgentFailedEvent:
		notify.Error(s.Notifier, fmt.Sprintf("%s failed: %s", e.Agent, e.Error))
	default:
		s.logger.Debug("live event", "type", ev.Type(), "project_id", projectID)
	}
}
