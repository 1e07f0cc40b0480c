package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose   = "verbose"
	FlagConfig    = "config"
	FlagLogFile   = "log-file"
	FlagAPIURL    = "api-url"
	FlagStreamURL = "stream-url"
	FlagProject   = "project"
	FlagToken     = "token"

	// Output format flags
	FlagJSON   = "json"
	FlagOutput = "output"
	FlagFormat = "format"

	// Dashboard flags
	FlagDevtools  = "devtools"
	FlagExportDir = "export-dir"

	// Project flags
	FlagDescription = "description"
	FlagContext     = "context"

	// Audit flags
	FlagPage      = "page"
	FlagPageSize  = "page-size"
	FlagEventType = "event-type"

	// Requirement flags
	FlagKey      = "key"
	FlagTitle    = "title"
	FlagPriority = "priority"
	FlagCriteria = "criteria"
	FlagDepends  = "depends"
	FlagForce    = "force"

	// Plan flags
	FlagSource           = "source"
	FlagUseCode          = "use-code"
	FlagIncludeChecklist = "include-checklist"
	FlagDeadlineDays     = "deadline-days"
	FlagTeamSize         = "team-size"

	// Prompt flags
	FlagIncludeCode = "include-code"
	FlagPlanID      = "plan-id"
	FlagBundle      = "bundle"
	FlagFull        = "full"

	// Auth flags
	FlagWithToken = "with-token"
)
