package workflow

import (
	"context"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/storage"
)

// Session is one workflow session. Version increases by exactly one per
// persisted transition.
type Session struct {
	ID           string
	ProjectID    string
	CurrentState State
	Version      uint32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transition is one entry of a session's append-only history.
type Transition struct {
	SessionID string
	Trigger   string
	FromState State
	ToState   State
	At        time.Time
}

// Repo is the persistence port the orchestrator drives.
type Repo interface {
	CreateSession(ctx context.Context, projectID string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	// UpdateState persists newState iff the stored version equals
	// expectedVersion; otherwise it fails with ConcurrencyConflict.
	UpdateState(ctx context.Context, id string, newState State, expectedVersion uint32) error
	AppendTransition(ctx context.Context, t Transition) error
	GetHistory(ctx context.Context, sessionID string) ([]Transition, error)
}

// SQLRepo implements Repo over the SQL executor.
type SQLRepo struct {
	exec storage.Executor
	now  func() time.Time
}

var _ Repo = (*SQLRepo)(nil)

// NewSQLRepo creates the repository.
func NewSQLRepo(exec storage.Executor) *SQLRepo {
	return &SQLRepo{exec: exec, now: time.Now}
}

// CreateSession inserts a session in the initial state at version 0.
func (r *SQLRepo) CreateSession(ctx context.Context, projectID string) (*Session, error) {
	now := r.now()
	s := &Session{
		ID:           ids.NewID(),
		ProjectID:    projectID,
		CurrentState: InitialState,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.exec.Execute(ctx,
		`INSERT INTO workflow_sessions (id, project_id, current_state, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(s.ID),
			storage.String(s.ProjectID),
			storage.String(string(s.CurrentState)),
			storage.I64(int64(s.Version)),
			storage.I64(s.CreatedAt.Unix()),
			storage.I64(s.UpdatedAt.Unix()),
		})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession loads one session by id.
func (r *SQLRepo) GetSession(ctx context.Context, id string) (*Session, error) {
	return getSession(ctx, r.exec, id)
}

// UpdateState persists the new state iff the stored version matches.
// The read-compare-write runs in one transaction, so concurrent writers
// serialize and the loser observes the bumped version.
func (r *SQLRepo) UpdateState(ctx context.Context, id string, newState State, expectedVersion uint32) error {
	tx, ok := r.exec.(storage.Transactor)
	if !ok {
		return errors.Internal("executor does not support transactions", nil)
	}

	return tx.Transact(ctx, func(exec storage.Executor) error {
		s, err := getSession(ctx, exec, id)
		if err != nil {
			return err
		}
		if s.Version != expectedVersion {
			return errors.ConcurrencyConflict("workflow_session", id, expectedVersion)
		}

		return exec.Execute(ctx,
			`UPDATE workflow_sessions
			 SET current_state = ?, version = version + 1, updated_at = ?
			 WHERE id = ?`,
			[]storage.Param{
				storage.String(string(newState)),
				storage.I64(r.now().Unix()),
				storage.String(id),
			})
	})
}

// AppendTransition appends one history record.
func (r *SQLRepo) AppendTransition(ctx context.Context, t Transition) error {
	return r.exec.Execute(ctx,
		`INSERT INTO workflow_transitions (session_id, trigger, from_state, to_state, at)
		 VALUES (?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(t.SessionID),
			storage.String(t.Trigger),
			storage.String(string(t.FromState)),
			storage.String(string(t.ToState)),
			storage.I64(t.At.Unix()),
		})
}

// GetHistory returns a session's transitions in append order.
func (r *SQLRepo) GetHistory(ctx context.Context, sessionID string) ([]Transition, error) {
	rows, err := r.exec.QueryAll(ctx,
		`SELECT session_id, trigger, from_state, to_state, at
		 FROM workflow_transitions WHERE session_id = ? ORDER BY id`,
		[]storage.Param{storage.String(sessionID)})
	if err != nil {
		return nil, err
	}

	out := make([]Transition, 0, len(rows))
	for _, row := range rows {
		t := Transition{}
		if t.SessionID, err = row.TryGetString("session_id"); err != nil {
			return nil, err
		}
		if t.Trigger, err = row.TryGetString("trigger"); err != nil {
			return nil, err
		}
		from, err := row.TryGetString("from_state")
		if err != nil {
			return nil, err
		}
		t.FromState = State(from)
		to, err := row.TryGetString("to_state")
		if err != nil {
			return nil, err
		}
		t.ToState = State(to)
		at, err := row.TryGetInt64("at")
		if err != nil {
			return nil, err
		}
		t.At = time.Unix(at, 0).UTC()
		out = append(out, t)
	}
	return out, nil
}

func getSession(ctx context.Context, exec storage.Executor, id string) (*Session, error) {
	row, err := exec.QueryOne(ctx,
		`SELECT * FROM workflow_sessions WHERE id = ?`,
		[]storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("workflow_session", id)
	}

	s := &Session{}
	if s.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if s.ProjectID, err = row.TryGetString("project_id"); err != nil {
		return nil, err
	}
	state, err := row.TryGetString("current_state")
	if err != nil {
		return nil, err
	}
	s.CurrentState = State(state)

	version, err := row.TryGetInt64("version")
	if err != nil {
		return nil, err
	}
	s.Version = uint32(version)

	created, err := row.TryGetInt64("created_at")
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(created, 0).UTC()

	updated, err := row.TryGetInt64("updated_at")
	if err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Unix(updated, 0).UTC()

	return s, nil
}
