// Package plan persists plans, their versioned content, and reviews.
package plan

import (
	"context"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/storage"
)

// Status is a plan's lifecycle status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// ValidStatus reports whether s is a known plan status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusExecuting, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Verdict is a review outcome.
type Verdict string

const (
	VerdictApproved      Verdict = "approved"
	VerdictRejected      Verdict = "rejected"
	VerdictNeedsRevision Verdict = "needs_revision"
)

// ValidVerdict reports whether v is a known verdict.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictApproved, VerdictRejected, VerdictNeedsRevision:
		return true
	}
	return false
}

// Plan is the root entity; content lives in versions.
type Plan struct {
	ID        string
	ProjectID string
	Title     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Version is one immutable snapshot of a plan's content.
type Version struct {
	ID            string
	PlanID        string
	VersionNumber int64
	ContentJSON   string
	CreatedAt     time.Time
}

// Review is a verdict on one plan version.
type Review struct {
	ID            string
	PlanVersionID string
	Reviewer      string
	Verdict       Verdict
	Comments      *string
	CreatedAt     time.Time
}

// Repository persists plans, versions, and reviews.
type Repository struct {
	exec storage.Executor
	now  func() time.Time
}

// NewRepository creates a repository over the given executor.
func NewRepository(exec storage.Executor) *Repository {
	return &Repository{exec: exec, now: time.Now}
}

// CreatePlan inserts a plan. An empty status defaults to draft.
func (r *Repository) CreatePlan(ctx context.Context, p *Plan) error {
	if p.Title == "" {
		return errors.InvalidInput("plan title must not be empty")
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if !ValidStatus(p.Status) {
		return errors.InvalidInput("unknown plan status: " + string(p.Status))
	}
	if p.ID == "" {
		p.ID = ids.NewID()
	}
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	return r.exec.Execute(ctx,
		`INSERT INTO plans (id, project_id, title, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(p.ID),
			storage.String(p.ProjectID),
			storage.String(p.Title),
			storage.String(string(p.Status)),
			storage.I64(p.CreatedAt.Unix()),
			storage.I64(p.UpdatedAt.Unix()),
		})
}

// GetPlan loads one plan by id.
func (r *Repository) GetPlan(ctx context.Context, id string) (*Plan, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT * FROM plans WHERE id = ?`, []storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("plan", id)
	}
	return scanPlan(row)
}

// UpdateStatus moves a plan to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !ValidStatus(status) {
		return errors.InvalidInput("unknown plan status: " + string(status))
	}
	if _, err := r.GetPlan(ctx, id); err != nil {
		return err
	}
	return r.exec.Execute(ctx,
		`UPDATE plans SET status = ?, updated_at = ? WHERE id = ?`,
		[]storage.Param{storage.String(string(status)), storage.I64(r.now().Unix()), storage.String(id)})
}

// DeletePlan removes a plan. Fails with InvalidState while any version
// references the plan.
func (r *Repository) DeletePlan(ctx context.Context, id string) error {
	if _, err := r.GetPlan(ctx, id); err != nil {
		return err
	}

	row, err := r.exec.QueryOne(ctx,
		`SELECT COUNT(*) AS n FROM plan_versions WHERE plan_id = ?`,
		[]storage.Param{storage.String(id)})
	if err != nil {
		return err
	}
	n, err := row.TryGetInt64("n")
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.Newf(errors.CodeInvalidState,
			"plan %s has %d versions and cannot be deleted", id, n)
	}

	return r.exec.Execute(ctx, `DELETE FROM plans WHERE id = ?`, []storage.Param{storage.String(id)})
}

// AddVersion appends a new version with the next monotonic version number.
func (r *Repository) AddVersion(ctx context.Context, planID, contentJSON string) (*Version, error) {
	if _, err := r.GetPlan(ctx, planID); err != nil {
		return nil, err
	}

	row, err := r.exec.QueryOne(ctx,
		`SELECT COALESCE(MAX(version_number), 0) AS v FROM plan_versions WHERE plan_id = ?`,
		[]storage.Param{storage.String(planID)})
	if err != nil {
		return nil, err
	}
	latest, err := row.TryGetInt64("v")
	if err != nil {
		return nil, err
	}

	v := &Version{
		ID:            ids.NewID(),
		PlanID:        planID,
		VersionNumber: latest + 1,
		ContentJSON:   contentJSON,
		CreatedAt:     r.now(),
	}
	err = r.exec.Execute(ctx,
		`INSERT INTO plan_versions (id, plan_id, version_number, content_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(v.ID),
			storage.String(v.PlanID),
			storage.I64(v.VersionNumber),
			storage.String(v.ContentJSON),
			storage.I64(v.CreatedAt.Unix()),
		})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions returns a plan's versions in ascending version order.
func (r *Repository) ListVersions(ctx context.Context, planID string) ([]Version, error) {
	rows, err := r.exec.QueryAll(ctx,
		`SELECT * FROM plan_versions WHERE plan_id = ? ORDER BY version_number`,
		[]storage.Param{storage.String(planID)})
	if err != nil {
		return nil, err
	}

	out := make([]Version, 0, len(rows))
	for _, row := range rows {
		v := Version{}
		if v.ID, err = row.TryGetString("id"); err != nil {
			return nil, err
		}
		if v.PlanID, err = row.TryGetString("plan_id"); err != nil {
			return nil, err
		}
		if v.VersionNumber, err = row.TryGetInt64("version_number"); err != nil {
			return nil, err
		}
		if v.ContentJSON, err = row.TryGetString("content_json"); err != nil {
			return nil, err
		}
		created, err := row.TryGetInt64("created_at")
		if err != nil {
			return nil, err
		}
		v.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, v)
	}
	return out, nil
}

// AddReview records a review verdict on a version.
func (r *Repository) AddReview(ctx context.Context, rev *Review) error {
	if !ValidVerdict(rev.Verdict) {
		return errors.InvalidInput("unknown review verdict: " + string(rev.Verdict))
	}

	row, err := r.exec.QueryOne(ctx,
		`SELECT id FROM plan_versions WHERE id = ?`,
		[]storage.Param{storage.String(rev.PlanVersionID)})
	if err != nil {
		return err
	}
	if row == nil {
		return errors.NotFound("plan_version", rev.PlanVersionID)
	}

	if rev.ID == "" {
		rev.ID = ids.NewID()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = r.now()
	}

	return r.exec.Execute(ctx,
		`INSERT INTO plan_reviews (id, plan_version_id, reviewer, verdict, comments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(rev.ID),
			storage.String(rev.PlanVersionID),
			storage.String(rev.Reviewer),
			storage.String(string(rev.Verdict)),
			storage.NullableString(rev.Comments),
			storage.I64(rev.CreatedAt.Unix()),
		})
}

// ListReviews returns a version's reviews, oldest first.
func (r *Repository) ListReviews(ctx context.Context, versionID string) ([]Review, error) {
	rows, err := r.exec.QueryAll(ctx,
		`SELECT * FROM plan_reviews WHERE plan_version_id = ? ORDER BY created_at, id`,
		[]storage.Param{storage.String(versionID)})
	if err != nil {
		return nil, err
	}

	out := make([]Review, 0, len(rows))
	for _, row := range rows {
		rev := Review{}
		if rev.ID, err = row.TryGetString("id"); err != nil {
			return nil, err
		}
		if rev.PlanVersionID, err = row.TryGetString("plan_version_id"); err != nil {
			return nil, err
		}
		if rev.Reviewer, err = row.TryGetString("reviewer"); err != nil {
			return nil, err
		}
		verdict, err := row.TryGetString("verdict")
		if err != nil {
			return nil, err
		}
		rev.Verdict = Verdict(verdict)
		if rev.Comments, err = row.TryGetNullString("comments"); err != nil {
			return nil, err
		}
		created, err := row.TryGetInt64("created_at")
		if err != nil {
			return nil, err
		}
		rev.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, rev)
	}
	return out, nil
}

func scanPlan(row storage.Row) (*Plan, error) {
	p := &Plan{}

	var err error
	if p.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if p.ProjectID, err = row.TryGetString("project_id"); err != nil {
		return nil, err
	}
	if p.Title, err = row.TryGetString("title"); err != nil {
		return nil, err
	}
	status, err := row.TryGetString("status")
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)

	created, err := row.TryGetInt64("created_at")
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(created, 0).UTC()

	updated, err := row.TryGetInt64("updated_at")
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Unix(updated, 0).UTC()

	return p, nil
}
