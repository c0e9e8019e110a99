// Package project persists organizations, projects, and the lightweight
// workflow scaffolding around them: phases, issues, dependencies, and
// decisions.
package project

import (
	"time"
)

// Organization is the root of multi-tenant scoping.
type Organization struct {
	ID       string
	Name     string
	Slug     string
	Settings map[string]any
}

// Project belongs to one organization.
type Project struct {
	ID        string
	OrgID     string
	Name      string
	Path      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PhaseStatus is a phase's lifecycle status.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseSkipped    PhaseStatus = "skipped"
)

// Phase is one ordered step of a project's workflow.
type Phase struct {
	ID          string
	ProjectID   string
	Name        string
	Description *string
	Sequence    int64
	Status      PhaseStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// IssueStatus is an issue's lifecycle status.
type IssueStatus string

const (
	IssueOpen       IssueStatus = "open"
	IssueInProgress IssueStatus = "in_progress"
	IssueResolved   IssueStatus = "resolved"
	IssueClosed     IssueStatus = "closed"
)

// Issue is a tracked problem or work item.
type Issue struct {
	ID          string
	ProjectID   string
	Title       string
	Description *string
	Status      IssueStatus
	ClosedAt    *time.Time
	CreatedAt   time.Time
}

// Dependency links two issues: From is blocked by To.
type Dependency struct {
	ID          string
	ProjectID   string
	FromIssueID string
	ToIssueID   string
	CreatedAt   time.Time
}

// Decision records a project-level decision and its rationale.
type Decision struct {
	ID        string
	ProjectID string
	Title     string
	Rationale *string
	CreatedAt time.Time
}
