package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/storage"
)

// Repository persists agent sessions and their child records.
type Repository struct {
	exec storage.Executor
	now  func() time.Time
}

// NewRepository creates a repository over the given executor.
func NewRepository(exec storage.Executor) *Repository {
	return &Repository{exec: exec, now: time.Now}
}

// CreateSession inserts a session row.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	return r.exec.Execute(ctx,
		`INSERT INTO agent_sessions
		 (id, project_id, worktree_id, session_summary_id, parent_session_id,
		  agent_type, model, started_at, ended_at, duration_ms, status,
		  prompt_summary, result_summary, token_count, tool_calls_count, delegations_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionParams(s))
}

// GetSession loads one session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT * FROM agent_sessions WHERE id = ?`,
		[]storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("agent_session", id)
	}
	return scanSession(row)
}

// UpdateSession rewrites a session row.
func (r *Repository) UpdateSession(ctx context.Context, s *Session) error {
	if _, err := r.GetSession(ctx, s.ID); err != nil {
		return err
	}

	params := append(sessionParams(s)[1:], storage.String(s.ID))

	return r.exec.Execute(ctx,
		`UPDATE agent_sessions SET
		 project_id = ?, worktree_id = ?, session_summary_id = ?, parent_session_id = ?,
		 agent_type = ?, model = ?, started_at = ?, ended_at = ?, duration_ms = ?, status = ?,
		 prompt_summary = ?, result_summary = ?, token_count = ?, tool_calls_count = ?, delegations_count = ?
		 WHERE id = ?`,
		params)
}

// EndSession atomically stamps ended_at, computes duration_ms from
// started_at, and updates status and the optional result summary.
func (r *Repository) EndSession(ctx context.Context, id string, status SessionStatus, resultSummary *string) (*Session, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	endedAt := r.now().Unix()
	durationMS := (endedAt - s.StartedAt.Unix()) * 1000

	err = r.exec.Execute(ctx,
		`UPDATE agent_sessions
		 SET ended_at = ?, duration_ms = ?, status = ?,
		     result_summary = COALESCE(?, result_summary)
		 WHERE id = ?`,
		[]storage.Param{
			storage.I64(endedAt),
			storage.I64(durationMS),
			storage.String(string(status)),
			storage.NullableString(resultSummary),
			storage.String(id),
		})
	if err != nil {
		return nil, err
	}
	return r.GetSession(ctx, id)
}

// ListSessions returns sessions matching the query, started_at descending.
func (r *Repository) ListSessions(ctx context.Context, q SessionQuery) ([]Session, error) {
	var (
		where  []string
		params []storage.Param
	)

	add := func(column string, value *string) {
		if value != nil {
			where = append(where, fmt.Sprintf("%s = ?", column))
			params = append(params, storage.String(*value))
		}
	}

	add("session_summary_id", q.SessionSummaryID)
	add("parent_session_id", q.ParentSessionID)
	add("agent_type", q.AgentType)
	add("project_id", q.ProjectID)
	add("worktree_id", q.WorktreeID)
	if q.Status != nil {
		where = append(where, "status = ?")
		params = append(params, storage.String(string(*q.Status)))
	}

	query := `SELECT * FROM agent_sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		params = append(params, storage.I64(int64(q.Limit)))
	}

	rows, err := r.exec.QueryAll(ctx, query, params)
	if err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(rows))
	for _, row := range rows {
		s, err := scanSession(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// StoreDelegation records a delegation and bumps the session counter.
func (r *Repository) StoreDelegation(ctx context.Context, d *Delegation) error {
	err := r.exec.Execute(ctx,
		`INSERT INTO delegations (id, session_id, agent_type, prompt, result, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(d.ID),
			storage.String(d.SessionID),
			storage.String(d.AgentType),
			storage.String(d.Prompt),
			storage.NullableString(d.Result),
			storage.String(d.Status),
			storage.I64(d.CreatedAt.Unix()),
		})
	if err != nil {
		return err
	}
	return r.exec.Execute(ctx,
		`UPDATE agent_sessions SET delegations_count = delegations_count + 1 WHERE id = ?`,
		[]storage.Param{storage.String(d.SessionID)})
}

// ListDelegations returns a session's delegations, oldest first.
func (r *Repository) ListDelegations(ctx context.Context, sessionID string) ([]Delegation, error) {
	rows, err := r.exec.QueryAll(ctx,
		`SELECT * FROM delegations WHERE session_id = ? ORDER BY created_at, id`,
		[]storage.Param{storage.String(sessionID)})
	if err != nil {
		return nil, err
	}

	out := make([]Delegation, 0, len(rows))
	for _, row := range rows {
		d := Delegation{}
		if d.ID, err = row.TryGetString("id"); err != nil {
			return nil, err
		}
		if d.SessionID, err = row.TryGetString("session_id"); err != nil {
			return nil, err
		}
		if d.AgentType, err = row.TryGetString("agent_type"); err != nil {
			return nil, err
		}
		if d.Prompt, err = row.TryGetString("prompt"); err != nil {
			return nil, err
		}
		if d.Result, err = row.TryGetNullString("result"); err != nil {
			return nil, err
		}
		if d.Status, err = row.TryGetString("status"); err != nil {
			return nil, err
		}
		created, err := row.TryGetInt64("created_at")
		if err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, d)
	}
	return out, nil
}

// StoreToolCall records a tool call and bumps the session counter.
func (r *Repository) StoreToolCall(ctx context.Context, tc *ToolCall) error {
	err := r.exec.Execute(ctx,
		`INSERT INTO tool_calls (id, session_id, tool_name, arguments, result, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(tc.ID),
			storage.String(tc.SessionID),
			storage.String(tc.ToolName),
			storage.String(tc.Arguments),
			storage.NullableString(tc.Result),
			storage.NullableI64(tc.DurationMS),
			storage.I64(tc.CreatedAt.Unix()),
		})
	if err != nil {
		return err
	}
	return r.exec.Execute(ctx,
		`UPDATE agent_sessions SET tool_calls_count = tool_calls_count + 1 WHERE id = ?`,
		[]storage.Param{storage.String(tc.SessionID)})
}

// StoreCheckpoint records a checkpoint.
func (r *Repository) StoreCheckpoint(ctx context.Context, cp *Checkpoint) error {
	return r.exec.Execute(ctx,
		`INSERT INTO checkpoints (id, session_id, name, state, created_at, restored_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(cp.ID),
			storage.String(cp.SessionID),
			storage.String(cp.Name),
			storage.String(cp.State),
			storage.I64(cp.CreatedAt.Unix()),
			storage.Null(),
		})
}

// GetCheckpoint loads one checkpoint by id.
func (r *Repository) GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT * FROM checkpoints WHERE id = ?`,
		[]storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("checkpoint", id)
	}

	cp := &Checkpoint{}
	if cp.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if cp.SessionID, err = row.TryGetString("session_id"); err != nil {
		return nil, err
	}
	if cp.Name, err = row.TryGetString("name"); err != nil {
		return nil, err
	}
	if cp.State, err = row.TryGetString("state"); err != nil {
		return nil, err
	}
	created, err := row.TryGetInt64("created_at")
	if err != nil {
		return nil, err
	}
	cp.CreatedAt = time.Unix(created, 0).UTC()

	restored, err := row.TryGetNullInt64("restored_at")
	if err != nil {
		return nil, err
	}
	if restored != nil {
		ts := time.Unix(*restored, 0).UTC()
		cp.RestoredAt = &ts
	}
	return cp, nil
}

// RestoreCheckpoint stamps restored_at and returns the checkpoint.
func (r *Repository) RestoreCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	if _, err := r.GetCheckpoint(ctx, id); err != nil {
		return nil, err
	}

	err := r.exec.Execute(ctx,
		`UPDATE checkpoints SET restored_at = ? WHERE id = ?`,
		[]storage.Param{storage.I64(r.now().Unix()), storage.String(id)})
	if err != nil {
		return nil, err
	}
	return r.GetCheckpoint(ctx, id)
}

func sessionParams(s *Session) []storage.Param {
	return []storage.Param{
		storage.String(s.ID),
		storage.NullableString(s.ProjectID),
		storage.NullableString(s.WorktreeID),
		storage.NullableString(s.SessionSummaryID),
		storage.NullableString(s.ParentSessionID),
		storage.String(s.AgentType),
		storage.String(s.Model),
		storage.I64(s.StartedAt.Unix()),
		nullableTime(s.EndedAt),
		storage.NullableI64(s.DurationMS),
		storage.String(string(s.Status)),
		storage.NullableString(s.PromptSummary),
		storage.NullableString(s.ResultSummary),
		storage.I64(s.TokenCount),
		storage.I64(s.ToolCallsCount),
		storage.I64(s.DelegationsCount),
	}
}

func nullableTime(t *time.Time) storage.Param {
	if t == nil {
		return storage.Null()
	}
	return storage.I64(t.Unix())
}

func scanSession(row storage.Row) (*Session, error) {
	s := &Session{}

	var err error
	if s.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if s.ProjectID, err = row.TryGetNullString("project_id"); err != nil {
		return nil, err
	}
	if s.WorktreeID, err = row.TryGetNullString("worktree_id"); err != nil {
		return nil, err
	}
	if s.SessionSummaryID, err = row.TryGetNullString("session_summary_id"); err != nil {
		return nil, err
	}
	if s.ParentSessionID, err = row.TryGetNullString("parent_session_id"); err != nil {
		return nil, err
	}
	if s.AgentType, err = row.TryGetString("agent_type"); err != nil {
		return nil, err
	}
	if s.Model, err = row.TryGetString("model"); err != nil {
		return nil, err
	}

	started, err := row.TryGetInt64("started_at")
	if err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(started, 0).UTC()

	ended, err := row.TryGetNullInt64("ended_at")
	if err != nil {
		return nil, err
	}
	if ended != nil {
		ts := time.Unix(*ended, 0).UTC()
		s.EndedAt = &ts
	}

	if s.DurationMS, err = row.TryGetNullInt64("duration_ms"); err != nil {
		return nil, err
	}

	status, err := row.TryGetString("status")
	if err != nil {
		return nil, err
	}
	s.Status = SessionStatus(status)

	if s.PromptSummary, err = row.TryGetNullString("prompt_summary"); err != nil {
		return nil, err
	}
	if s.ResultSummary, err = row.TryGetNullString("result_summary"); err != nil {
		return nil, err
	}
	if s.TokenCount, err = row.TryGetInt64("token_count"); err != nil {
		return nil, err
	}
	if s.ToolCallsCount, err = row.TryGetInt64("tool_calls_count"); err != nil {
		return nil, err
	}
	if s.DelegationsCount, err = row.TryGetInt64("delegations_count"); err != nil {
		return nil, err
	}

	return s, nil
}
