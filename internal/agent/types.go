// Package agent persists agent sessions and their child records:
// delegations, tool calls, and checkpoints.
package agent

import (
	"time"
)

// SessionStatus is the lifecycle status of an agent session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusAborted   SessionStatus = "aborted"
)

// Session is one agent run. Sessions are opened by CreateSession, mutated
// only through UpdateSession and EndSession, and queried thereafter.
type Session struct {
	ID               string
	ProjectID        *string
	WorktreeID       *string
	SessionSummaryID *string
	ParentSessionID  *string
	AgentType        string
	Model            string
	StartedAt        time.Time
	EndedAt          *time.Time
	DurationMS       *int64
	Status           SessionStatus
	PromptSummary    *string
	ResultSummary    *string
	TokenCount       int64
	ToolCallsCount   int64
	DelegationsCount int64
}

// Delegation is a sub-agent invocation recorded under a session.
type Delegation struct {
	ID        string
	SessionID string
	AgentType string
	Prompt    string
	Result    *string
	Status    string
	CreatedAt time.Time
}

// ToolCall is one tool invocation recorded under a session.
type ToolCall struct {
	ID         string
	SessionID  string
	ToolName   string
	Arguments  string
	Result     *string
	DurationMS *int64
	CreatedAt  time.Time
}

// Checkpoint is a restorable point-in-time snapshot of a session.
type Checkpoint struct {
	ID         string
	SessionID  string
	Name       string
	State      string
	CreatedAt  time.Time
	RestoredAt *time.Time
}

// SessionQuery filters session listings. Nil fields are ignored. Results
// are ordered by started_at descending.
type SessionQuery struct {
	SessionSummaryID *string
	ParentSessionID  *string
	AgentType        *string
	Status           *SessionStatus
	ProjectID        *string
	WorktreeID       *string
	Limit            int
}
