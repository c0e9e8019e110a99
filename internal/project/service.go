package project

import (
	"context"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/storage"
)

// Service exposes CRUD over project phases, issues, dependencies, and
// decisions, enforcing the sequencing and timestamp policies.
type Service struct {
	exec storage.Executor
	now  func() time.Time
}

// NewService creates the project workflow service.
func NewService(exec storage.Executor) *Service {
	return &Service{exec: exec, now: time.Now}
}

// CreatePhase appends a phase; its sequence is the count of existing phases
// in the project plus one.
func (s *Service) CreatePhase(ctx context.Context, projectID, name string, description *string) (*Phase, error) {
	if name == "" {
		return nil, errors.InvalidInput("phase name must not be empty")
	}

	row, err := s.exec.QueryOne(ctx,
		`SELECT COUNT(*) AS n FROM project_phases WHERE project_id = ?`,
		[]storage.Param{storage.String(projectID)})
	if err != nil {
		return nil, err
	}
	count, err := row.TryGetInt64("n")
	if err != nil {
		return nil, err
	}

	phase := &Phase{
		ID:          ids.NewID(),
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		Sequence:    count + 1,
		Status:      PhasePending,
		CreatedAt:   s.now(),
	}

	err = s.exec.Execute(ctx,
		`INSERT INTO project_phases
		 (id, project_id, name, description, sequence, status, started_at, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?)`,
		[]storage.Param{
			storage.String(phase.ID),
			storage.String(phase.ProjectID),
			storage.String(phase.Name),
			storage.NullableString(phase.Description),
			storage.I64(phase.Sequence),
			storage.String(string(phase.Status)),
			storage.I64(phase.CreatedAt.Unix()),
		})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

// GetPhase loads one phase by id.
func (s *Service) GetPhase(ctx context.Context, id string) (*Phase, error) {
	row, err := s.exec.QueryOne(ctx,
		`SELECT * FROM project_phases WHERE id = ?`, []storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("project_phase", id)
	}
	return scanPhase(row)
}

// ListPhases returns a project's phases in sequence order.
func (s *Service) ListPhases(ctx context.Context, projectID string) ([]Phase, error) {
	rows, err := s.exec.QueryAll(ctx,
		`SELECT * FROM project_phases WHERE project_id = ? ORDER BY sequence`,
		[]storage.Param{storage.String(projectID)})
	if err != nil {
		return nil, err
	}

	out := make([]Phase, 0, len(rows))
	for _, row := range rows {
		p, err := scanPhase(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// UpdatePhaseStatus moves a phase to a new status. Entering in_progress
// stamps started_at and entering completed stamps completed_at; timestamps
// set earlier are preserved.
func (s *Service) UpdatePhaseStatus(ctx context.Context, id string, status PhaseStatus) (*Phase, error) {
	phase, err := s.GetPhase(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if status == PhaseInProgress && phase.StartedAt == nil {
		phase.StartedAt = &now
	}
	if status == PhaseCompleted && phase.CompletedAt == nil {
		phase.CompletedAt = &now
	}
	phase.Status = status

	err = s.exec.Execute(ctx,
		`UPDATE project_phases SET status = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		[]storage.Param{
			storage.String(string(phase.Status)),
			nullableTime(phase.StartedAt),
			nullableTime(phase.CompletedAt),
			storage.String(id),
		})
	if err != nil {
		return nil, err
	}
	return s.GetPhase(ctx, id)
}

// CreateIssue opens an issue.
func (s *Service) CreateIssue(ctx context.Context, projectID, title string, description *string) (*Issue, error) {
	if title == "" {
		return nil, errors.InvalidInput("issue title must not be empty")
	}

	issue := &Issue{
		ID:          ids.NewID(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      IssueOpen,
		CreatedAt:   s.now(),
	}

	err := s.exec.Execute(ctx,
		`INSERT INTO project_issues (id, project_id, title, description, status, closed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, NULL, ?)`,
		[]storage.Param{
			storage.String(issue.ID),
			storage.String(issue.ProjectID),
			storage.String(issue.Title),
			storage.NullableString(issue.Description),
			storage.String(string(issue.Status)),
			storage.I64(issue.CreatedAt.Unix()),
		})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// GetIssue loads one issue by id.
func (s *Service) GetIssue(ctx context.Context, id string) (*Issue, error) {
	row, err := s.exec.QueryOne(ctx,
		`SELECT * FROM project_issues WHERE id = ?`, []storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("project_issue", id)
	}
	return scanIssue(row)
}

// UpdateIssueStatus moves an issue to a new status. Transitions into
// resolved or closed stamp closed_at; transitions back out clear it.
func (s *Service) UpdateIssueStatus(ctx context.Context, id string, status IssueStatus) (*Issue, error) {
	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case IssueResolved, IssueClosed:
		if issue.ClosedAt == nil {
			now := s.now()
			issue.ClosedAt = &now
		}
	default:
		issue.ClosedAt = nil
	}
	issue.Status = status

	err = s.exec.Execute(ctx,
		`UPDATE project_issues SET status = ?, closed_at = ? WHERE id = ?`,
		[]storage.Param{
			storage.String(string(issue.Status)),
			nullableTime(issue.ClosedAt),
			storage.String(id),
		})
	if err != nil {
		return nil, err
	}
	return s.GetIssue(ctx, id)
}

// AddDependency links two issues. Both endpoints must exist.
func (s *Service) AddDependency(ctx context.Context, projectID, fromIssueID, toIssueID string) (*Dependency, error) {
	if _, err := s.GetIssue(ctx, fromIssueID); err != nil {
		return nil, err
	}
	if _, err := s.GetIssue(ctx, toIssueID); err != nil {
		return nil, err
	}

	dep := &Dependency{
		ID:          ids.NewID(),
		ProjectID:   projectID,
		FromIssueID: fromIssueID,
		ToIssueID:   toIssueID,
		CreatedAt:   s.now(),
	}

	err := s.exec.Execute(ctx,
		`INSERT INTO project_dependencies (id, project_id, from_issue_id, to_issue_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(dep.ID),
			storage.String(dep.ProjectID),
			storage.String(dep.FromIssueID),
			storage.String(dep.ToIssueID),
			storage.I64(dep.CreatedAt.Unix()),
		})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// ListDependencies returns a project's dependencies, oldest first.
func (s *Service) ListDependencies(ctx context.Context, projectID string) ([]Dependency, error) {
	rows, err := s.exec.QueryAll(ctx,
		`SELECT * FROM project_dependencies WHERE project_id = ? ORDER BY created_at, id`,
		[]storage.Param{storage.String(projectID)})
	if err != nil {
		return nil, err
	}

	out := make([]Dependency, 0, len(rows))
	for _, row := range rows {
		d := Dependency{}
		if d.ID, err = row.TryGetString("id"); err != nil {
			return nil, err
		}
		if d.ProjectID, err = row.TryGetString("project_id"); err != nil {
			return nil, err
		}
		if d.FromIssueID, err = row.TryGetString("from_issue_id"); err != nil {
			return nil, err
		}
		if d.ToIssueID, err = row.TryGetString("to_issue_id"); err != nil {
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

// RecordDecision records a project decision.
func (s *Service) RecordDecision(ctx context.Context, projectID, title string, rationale *string) (*Decision, error) {
	if title == "" {
		return nil, errors.InvalidInput("decision title must not be empty")
	}

	d := &Decision{
		ID:        ids.NewID(),
		ProjectID: projectID,
		Title:     title,
		Rationale: rationale,
		CreatedAt: s.now(),
	}

	err := s.exec.Execute(ctx,
		`INSERT INTO project_decisions (id, project_id, title, rationale, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(d.ID),
			storage.String(d.ProjectID),
			storage.String(d.Title),
			storage.NullableString(d.Rationale),
			storage.I64(d.CreatedAt.Unix()),
		})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDecisions returns a project's decisions, oldest first.
func (s *Service) ListDecisions(ctx context.Context, projectID string) ([]Decision, error) {
	rows, err := s.exec.QueryAll(ctx,
		`SELECT * FROM project_decisions WHERE project_id = ? ORDER BY created_at, id`,
		[]storage.Param{storage.String(projectID)})
	if err != nil {
		return nil, err
	}

	out := make([]Decision, 0, len(rows))
	for _, row := range rows {
		d := Decision{}
		if d.ID, err = row.TryGetString("id"); err != nil {
			return nil, err
		}
		if d.ProjectID, err = row.TryGetString("project_id"); err != nil {
			return nil, err
		}
		if d.Title, err = row.TryGetString("title"); err != nil {
			return nil, err
		}
		if d.Rationale, err = row.TryGetNullString("rationale"); err != nil {
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

func nullableTime(t *time.Time) storage.Param {
	if t == nil {
		return storage.Null()
	}
	return storage.I64(t.Unix())
}

func scanPhase(row storage.Row) (*Phase, error) {
	p := &Phase{}

	var err error
	if p.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if p.ProjectID, err = row.TryGetString("project_id"); err != nil {
		return nil, err
	}
	if p.Name, err = row.TryGetString("name"); err != nil {
		return nil, err
	}
	if p.Description, err = row.TryGetNullString("description"); err != nil {
		return nil, err
	}
	if p.Sequence, err = row.TryGetInt64("sequence"); err != nil {
		return nil, err
	}

	status, err := row.TryGetString("status")
	if err != nil {
		return nil, err
	}
	p.Status = PhaseStatus(status)

	if p.StartedAt, err = scanNullTime(row, "started_at"); err != nil {
		return nil, err
	}
	if p.CompletedAt, err = scanNullTime(row, "completed_at"); err != nil {
		return nil, err
	}

	created, err := row.TryGetInt64("created_at")
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(created, 0).UTC()

	return p, nil
}

func scanIssue(row storage.Row) (*Issue, error) {
	i := &Issue{}

	var err error
	if i.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if i.ProjectID, err = row.TryGetString("project_id"); err != nil {
		return nil, err
	}
	if i.Title, err = row.TryGetString("title"); err != nil {
		return nil, err
	}
	if i.Description, err = row.TryGetNullString("description"); err != nil {
		return nil, err
	}

	status, err := row.TryGetString("status")
	if err != nil {
		return nil, err
	}
	i.Status = IssueStatus(status)

	if i.ClosedAt, err = scanNullTime(row, "closed_at"); err != nil {
		return nil, err
	}

	created, err := row.TryGetInt64("created_at")
	if err != nil {
		return nil, err
	}
	i.CreatedAt = time.Unix(created, 0).UTC()

	return i, nil
}

func scanNullTime(row storage.Row, column string) (*time.Time, error) {
	v, err := row.TryGetNullInt64(column)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	ts := time.Unix(*v, 0).UTC()
	return &ts, nil
}
