// Package stream consumes the backend's live-event feed (server-sent events)
// for one project at a time and dispatches typed events to subscribers.
package stream

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a live event.
type EventType string

// Event types pushed by the backend.
const (
	EventStateTransition EventType = "STATE_TRANSITION"
	EventAgentStarted    EventType = "AGENT_STARTED"
	EventAgentCompleted  EventType = "AGENT_COMPLETED"
	EventAgentFailed     EventType = "AGENT_FAILED"
	EventRetryAttempted  EventType = "RETRY_ATTEMPTED"
	EventUserAction      EventType = "USER_ACTION"
	EventSystem          EventType = "SYSTEM_EVENT"

	// Wildcard subscribes to every event type.
	Wildcard EventType = "*"
)

// Event is implemented by every live event. The concrete types form a
// closed set: *StateTransitionEvent, *AgentCompletedEvent,
// *AgentFailedEvent and *UnknownEvent.
type Event interface {
	Type() EventType
	Project() string
	isEvent()
}

// BaseEvent holds the fields shared by every event.
type BaseEvent struct {
	EventType EventType `json:"type"`
	ProjectID string    `json:"project_id,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

func (e *BaseEvent) Type() EventType { return e.EventType }
func (e *BaseEvent) Project() string { return e.ProjectID }
func (e *BaseEvent) isEvent()        {}

// StateTransitionEvent reports that the project moved between pipeline stages.
type StateTransitionEvent struct {
	BaseEvent
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state"`
	Reason    string `json:"reason,omitempty"`
}

// AgentCompletedEvent reports a finished agent run.
type AgentCompletedEvent struct {
	BaseEvent
	Agent  string `json:"agent"`
	TaskID string `json:"task_id,omitempty"`
}

// AgentFailedEvent reports a failed agent run.
type AgentFailedEvent struct {
	BaseEvent
	Agent  string `json:"agent"`
	Error  string `json:"error"`
	TaskID string `json:"task_id,omitempty"`
}

// UnknownEvent carries any other event type with its raw payload.
type UnknownEvent struct {
	BaseEvent
	Raw json.RawMessage `json:"-"`
}

// ParseError is returned when a message payload is not a valid event.
type ParseError struct {
	Data string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse live event: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes one message payload. The payload must be a JSON object with
// a non-empty "type".
func Parse(data []byte) (Event, error) {
	var base BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, &ParseError{Data: string(data), Err: err}
	}
	if base.EventType == "" {
		return nil, &ParseError{Data: string(data), Err: fmt.Errorf("missing event type")}
	}

	var ev Event
	switch base.EventType {
	case EventStateTransition:
		ev = &StateTransitionEvent{}
	case EventAgentCompleted:
		ev = &AgentCompletedEvent{}
	case EventAgentFailed:
		ev = &AgentFailedEvent{}
	default:
		return &UnknownEvent{BaseEvent: base, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, &ParseError{Data: string(data), Err: err}
	}
	return ev, nil
}
