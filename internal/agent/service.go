package agent

import (
	"context"
	"strings"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
)

// SessionService is the agent-session facade: validation, id assignment,
// and defaulting in front of the repository.
type SessionService struct {
	repo *Repository
	now  func() time.Time
}

// NewSessionService creates the service.
func NewSessionService(repo *Repository) *SessionService {
	return &SessionService{repo: repo, now: time.Now}
}

// CreateSession validates and inserts a session, returning its id.
func (s *SessionService) CreateSession(ctx context.Context, session *Session) (string, error) {
	if strings.TrimSpace(session.Model) == "" {
		return "", errors.InvalidInput("session model must not be empty")
	}
	if strings.TrimSpace(session.AgentType) == "" {
		return "", errors.InvalidInput("session agent_type must not be empty")
	}

	if session.ID == "" {
		session.ID = ids.NewID()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = s.now()
	}
	if session.Status == "" {
		session.Status = StatusActive
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return "", err
	}
	return session.ID, nil
}

// GetSession loads one session.
func (s *SessionService) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.repo.GetSession(ctx, id)
}

// UpdateSession rewrites a session.
func (s *SessionService) UpdateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return errors.InvalidInput("session id must not be empty")
	}
	return s.repo.UpdateSession(ctx, session)
}

// EndSession closes a session, stamping ended_at and duration_ms.
func (s *SessionService) EndSession(ctx context.Context, id string, status SessionStatus, resultSummary *string) (*Session, error) {
	return s.repo.EndSession(ctx, id, status, resultSummary)
}

// ListSessions returns sessions matching the query.
func (s *SessionService) ListSessions(ctx context.Context, q SessionQuery) ([]Session, error) {
	return s.repo.ListSessions(ctx, q)
}

// ListSessionsByProject returns a project's sessions.
func (s *SessionService) ListSessionsByProject(ctx context.Context, projectID string, limit int) ([]Session, error) {
	return s.repo.ListSessions(ctx, SessionQuery{ProjectID: &projectID, Limit: limit})
}

// ListSessionsByWorktree returns a worktree's sessions.
func (s *SessionService) ListSessionsByWorktree(ctx context.Context, worktreeID string, limit int) ([]Session, error) {
	return s.repo.ListSessions(ctx, SessionQuery{WorktreeID: &worktreeID, Limit: limit})
}

// StoreDelegation validates and records a delegation.
func (s *SessionService) StoreDelegation(ctx context.Context, d *Delegation) error {
	if d.SessionID == "" {
		return errors.InvalidInput("delegation session_id must not be empty")
	}
	if d.ID == "" {
		d.ID = ids.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	return s.repo.StoreDelegation(ctx, d)
}

// StoreToolCall validates and records a tool call.
func (s *SessionService) StoreToolCall(ctx context.Context, tc *ToolCall) error {
	if tc.SessionID == "" {
		return errors.InvalidInput("tool call session_id must not be empty")
	}
	if tc.ID == "" {
		tc.ID = ids.NewID()
	}
	if tc.Arguments == "" {
		tc.Arguments = "{}"
	}
	if tc.CreatedAt.IsZero() {
		tc.CreatedAt = s.now()
	}
	return s.repo.StoreToolCall(ctx, tc)
}

// StoreCheckpoint validates and records a checkpoint.
func (s *SessionService) StoreCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if cp.SessionID == "" {
		return errors.InvalidInput("checkpoint session_id must not be empty")
	}
	if cp.ID == "" {
		cp.ID = ids.NewID()
	}
	if cp.State == "" {
		cp.State = "{}"
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	return s.repo.StoreCheckpoint(ctx, cp)
}

// GetCheckpoint loads one checkpoint.
func (s *SessionService) GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	return s.repo.GetCheckpoint(ctx, id)
}

// RestoreCheckpoint stamps restored_at on the checkpoint.
func (s *SessionService) RestoreCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	return s.repo.RestoreCheckpoint(ctx, id)
}
