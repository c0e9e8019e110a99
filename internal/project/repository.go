package project

import (
	"context"
	"encoding/json"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/storage"
)

// Repository persists organizations and projects.
type Repository struct {
	exec storage.Executor
	now  func() time.Time
}

// NewRepository creates a repository over the given executor.
func NewRepository(exec storage.Executor) *Repository {
	return &Repository{exec: exec, now: time.Now}
}

// CreateOrganization inserts an organization.
func (r *Repository) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Name == "" || org.Slug == "" {
		return errors.InvalidInput("organization name and slug must not be empty")
	}

	settings, err := json.Marshal(orEmptyMap(org.Settings))
	if err != nil {
		return errors.Wrap(errors.CodeInvalidInput, err)
	}

	return r.exec.Execute(ctx,
		`INSERT INTO organizations (id, name, slug, settings) VALUES (?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(org.ID),
			storage.String(org.Name),
			storage.String(org.Slug),
			storage.String(string(settings)),
		})
}

// GetOrganization loads one organization by id.
func (r *Repository) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT * FROM organizations WHERE id = ?`, []storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("organization", id)
	}

	org := &Organization{}
	if org.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if org.Name, err = row.TryGetString("name"); err != nil {
		return nil, err
	}
	if org.Slug, err = row.TryGetString("slug"); err != nil {
		return nil, err
	}

	settings, err := row.TryGetString("settings")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &org.Settings); err != nil {
		return nil, errors.DataCorruption("organization.settings", err)
	}
	return org, nil
}

// CreateProject inserts a project under an organization.
func (r *Repository) CreateProject(ctx context.Context, p *Project) error {
	if p.OrgID == "" {
		return errors.InvalidInput("project org_id must not be empty")
	}
	if p.Name == "" {
		return errors.InvalidInput("project name must not be empty")
	}
	if _, err := r.GetOrganization(ctx, p.OrgID); err != nil {
		return err
	}

	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	return r.exec.Execute(ctx,
		`INSERT INTO projects (id, org_id, name, path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(p.ID),
			storage.String(p.OrgID),
			storage.String(p.Name),
			storage.String(p.Path),
			storage.I64(p.CreatedAt.Unix()),
			storage.I64(p.UpdatedAt.Unix()),
		})
}

// GetProject loads one project by id.
func (r *Repository) GetProject(ctx context.Context, id string) (*Project, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT * FROM projects WHERE id = ?`, []storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("project", id)
	}

	p := &Project{}
	if p.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if p.OrgID, err = row.TryGetString("org_id"); err != nil {
		return nil, err
	}
	if p.Name, err = row.TryGetString("name"); err != nil {
		return nil, err
	}
	if p.Path, err = row.TryGetString("path"); err != nil {
		return nil, err
	}

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

// ListProjects returns an organization's projects, oldest first.
func (r *Repository) ListProjects(ctx context.Context, orgID string) ([]Project, error) {
	rows, err := r.exec.QueryAll(ctx,
		`SELECT id FROM projects WHERE org_id = ? ORDER BY created_at, id`,
		[]storage.Param{storage.String(orgID)})
	if err != nil {
		return nil, err
	}

	out := make([]Project, 0, len(rows))
	for _, row := range rows {
		id, err := row.TryGetString("id")
		if err != nil {
			return nil, err
		}
		p, err := r.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
