package services

import "strings"

// ProjectState is a stage of the backend pipeline.
type ProjectState string

const (
	StateDraft         ProjectState = "DRAFT"
	StateReqsRefining  ProjectState = "REQS_REFINING"
	StateReqsReady     ProjectState = "REQS_READY"
	StateCodeValidated ProjectState = "CODE_VALIDATED"
	StatePlanReady     ProjectState = "PLAN_READY"
	StatePromptsReady  ProjectState = "PROMPTS_READY"
	StateDone          ProjectState = "DONE"
	StateBlocked       ProjectState = "BLOCKED"
)

// AgentType names a backend agent that can be retried.
type AgentType string

const (
	AgentRequirements AgentType = "REQUIREMENTS"
	AgentRefine       AgentType = "REFINE"
	AgentPlan         AgentType = "PLAN"
	AgentPrompts      AgentType = "PROMPTS"
	AgentValidation   AgentType = "VALIDATION"
)

// AgentTypes lists every retryable agent.
var AgentTypes = []AgentType{AgentRequirements, AgentRefine, AgentPlan, AgentPrompts, AgentValidation}

// ParseAgentType accepts an agent name in any case.
func ParseAgentType(s string) (AgentType, bool) {
	for _, a := range AgentTypes {
		if strings.EqualFold(string(a), s) {
			return a, true
		}
	}
	return "", false
}

// Project is a row of the project list.
type Project struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Status      ProjectState `json:"status" yaml:"status"`
	Context     string       `json:"context,omitempty" yaml:"context,omitempty"`
	CreatedAt   Timestamp    `json:"created_at" yaml:"created_at"`
	UpdatedAt   Timestamp    `json:"updated_at" yaml:"updated_at"`
}

// ProjectCreate is the body of POST /projects/.
type ProjectCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context,omitempty"`
}

// ProjectEvent is a recent pipeline event summarized on the project.
type ProjectEvent struct {
	Type      string    `json:"type" yaml:"type"`
	Action    string    `json:"action" yaml:"action"`
	Success   bool      `json:"success" yaml:"success"`
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
}

// ProjectStatus is the current state of a project.
type ProjectStatus struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	State        ProjectState   `json:"state" yaml:"state"`
	CreatedAt    Timestamp      `json:"created_at" yaml:"created_at"`
	UpdatedAt    Timestamp      `json:"updated_at" yaml:"updated_at"`
	RecentEvents []ProjectEvent `json:"recent_events" yaml:"recent_events"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SuccessRate is the share of recent events that succeeded, in percent.
// It is 0 when there are no events.
func (p *ProjectStatus) SuccessRate() float64 {
	if len(p.RecentEvents) == 0 {
		return 0
	}
	ok := 0
	for _, e := range p.RecentEvents {
		if e.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(p.RecentEvents)) * 100
}

// AuditLogEntry is one entry of a project's audit trail.
type AuditLogEntry struct {
	ID            string         `json:"id" yaml:"id"`
	ProjectID     string         `json:"project_id" yaml:"project_id"`
	CorrelationID string         `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`
	EventType     string         `json:"event_type" yaml:"event_type"`
	AgentType     string         `json:"agent_type,omitempty" yaml:"agent_type,omitempty"`
	Action        string         `json:"action" yaml:"action"`
	Details       map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	UserID        string         `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	DurationMS    *int64         `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Success       bool           `json:"success" yaml:"success"`
	ErrorMessage  string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	CreatedAt     Timestamp      `json:"created_at" yaml:"created_at"`
}

// Page is a paginated list response.
type Page[T any] struct {
	Items      []T `json:"items" yaml:"items"`
	Total      int `json:"total" yaml:"total"`
	Page       int `json:"page" yaml:"page"`
	PageSize   int `json:"page_size" yaml:"page_size"`
	TotalPages int `json:"total_pages" yaml:"total_pages"`
}

// Priority of a requirement.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Requirement is a single captured requirement.
type Requirement struct {
	ID                 string         `json:"id,omitempty" yaml:"id,omitempty"`
	ProjectID          string         `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Key                string         `json:"key" yaml:"key"`
	Title              string         `json:"title" yaml:"title"`
	Description        string         `json:"description,omitempty" yaml:"description,omitempty"`
	Priority           Priority       `json:"priority" yaml:"priority"`
	AcceptanceCriteria []string       `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	Dependencies       []string       `json:"dependencies" yaml:"dependencies"`
	Metadata           map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	IsCoherent         *bool          `json:"is_coherent,omitempty" yaml:"is_coherent,omitempty"`
	CreatedAt          *Timestamp     `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt          *Timestamp     `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// RefineResult is returned when a refinement task is queued.
type RefineResult struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// FinalizeResult is returned by the finalize endpoint.
type FinalizeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExportFormat is a requirements export encoding understood by the backend.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportMarkdown ExportFormat = "md"
)

// PlanSource selects what the planner works from.
type PlanSource string

const (
	PlanFromRequirements PlanSource = "requirements"
	PlanFromChecklist    PlanSource = "checklist"
	PlanFromHybrid       PlanSource = "hybrid"
)

// PlanConstraints bound plan generation.
type PlanConstraints struct {
	DeadlineDays      int      `json:"deadline_days,omitempty"`
	TeamSize          int      `json:"team_size,omitempty"`
	MaxParallelPhases int      `json:"max_parallel_phases,omitempty"`
	NFRs              []string `json:"nfrs,omitempty"`
	Budget            float64  `json:"budget,omitempty"`
}

// PlanGenerateRequest is the body of POST /projects/{id}/plan.
type PlanGenerateRequest struct {
	Source           PlanSource       `json:"source"`
	UseCode          bool             `json:"use_code"`
	IncludeChecklist bool             `json:"include_checklist"`
	Constraints      *PlanConstraints `json:"constraints,omitempty"`
}

// GenerateResult is returned by the plan and prompt generators. A queued
// job carries TaskID; a synchronous one carries the new artifact's ID.
type GenerateResult struct {
	ID           string `json:"id,omitempty"`
	Version      int    `json:"version,omitempty"`
	TotalPhases  int    `json:"total_phases,omitempty"`
	TotalPrompts int    `json:"total_prompts,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Queued reports whether the backend accepted the job asynchronously.
func (r *GenerateResult) Queued() bool { return r.TaskID != "" }

// PlanPhase is one phase of a plan.
type PlanPhase struct {
	ID                  string         `json:"id" yaml:"id"`
	PhaseID             string         `json:"phase_id" yaml:"phase_id"`
	Sequence            int            `json:"sequence" yaml:"sequence"`
	Title               string         `json:"title" yaml:"title"`
	Objective           string         `json:"objective" yaml:"objective"`
	Deliverables        []string       `json:"deliverables" yaml:"deliverables"`
	Activities          []string       `json:"activities" yaml:"activities"`
	Dependencies        []string       `json:"dependencies" yaml:"dependencies"`
	EstimatedDays       float64        `json:"estimated_days" yaml:"estimated_days"`
	RiskLevel           Priority       `json:"risk_level" yaml:"risk_level"`
	Risks               []string       `json:"risks" yaml:"risks"`
	RequirementsCovered []string       `json:"requirements_covered" yaml:"requirements_covered"`
	DefinitionOfDone    []string       `json:"definition_of_done" yaml:"definition_of_done"`
	ResourcesRequired   map[string]int `json:"resources_required" yaml:"resources_required"`
	CreatedAt           Timestamp      `json:"created_at" yaml:"created_at"`
}

// Plan is a generated delivery plan.
type Plan struct {
	ID                 string         `json:"id" yaml:"id"`
	ProjectID          string         `json:"project_id" yaml:"project_id"`
	Version            int            `json:"version" yaml:"version"`
	Status             string         `json:"status" yaml:"status"`
	Source             PlanSource     `json:"source" yaml:"source"`
	UseCode            bool           `json:"use_code" yaml:"use_code"`
	IncludeChecklist   bool           `json:"include_checklist" yaml:"include_checklist"`
	Constraints        map[string]any `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	TotalDurationDays  float64        `json:"total_duration_days" yaml:"total_duration_days"`
	RiskScore          float64        `json:"risk_score" yaml:"risk_score"`
	CoveragePercentage float64        `json:"coverage_percentage" yaml:"coverage_percentage"`
	Phases             []PlanPhase    `json:"phases" yaml:"phases"`
	CreatedAt          Timestamp      `json:"created_at" yaml:"created_at"`
	UpdatedAt          Timestamp      `json:"updated_at" yaml:"updated_at"`
}

// PromptGenerateRequest is the body of POST .../prompts/generate.
type PromptGenerateRequest struct {
	IncludeCode bool   `json:"include_code"`
	PlanID      string `json:"plan_id,omitempty"`
}

// PromptItem is one prompt of a bundle.
type PromptItem struct {
	ID        string         `json:"id" yaml:"id"`
	PhaseID   string         `json:"phase_id" yaml:"phase_id"`
	Sequence  int            `json:"sequence" yaml:"sequence"`
	Title     string         `json:"title" yaml:"title"`
	ContentMD string         `json:"content_md" yaml:"content_md"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt Timestamp      `json:"created_at" yaml:"created_at"`
}

// PromptBundle is a set of prompts generated from a plan.
type PromptBundle struct {
	ID           string         `json:"id" yaml:"id"`
	ProjectID    string         `json:"project_id" yaml:"project_id"`
	PlanID       string         `json:"plan_id" yaml:"plan_id"`
	Version      int            `json:"version" yaml:"version"`
	IncludeCode  bool           `json:"include_code" yaml:"include_code"`
	ContextMD    string         `json:"context_md" yaml:"context_md"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	TotalPrompts int            `json:"total_prompts" yaml:"total_prompts"`
	Prompts      []PromptItem   `json:"prompts" yaml:"prompts"`
	CreatedAt    Timestamp      `json:"created_at" yaml:"created_at"`
	UpdatedAt    Timestamp      `json:"updated_at" yaml:"updated_at"`
}

// RetryRequest is the body of POST /projects/{id}/retry/{agent}.
type RetryRequest struct {
	Agent    AgentType      `json:"agent"`
	Force    bool           `json:"force"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RetryResult is returned when a retry is queued.
type RetryResult struct {
	TaskID  string `json:"task_id"`
	Agent   string `json:"agent"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
