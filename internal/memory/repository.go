package memory

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/storage"
)

// Repository persists observations and session summaries. The observation
// FTS mirror is maintained by database triggers, so every write path keeps
// the index consistent without repository involvement.
type Repository struct {
	exec storage.Executor
}

// NewRepository creates a repository over the given executor.
func NewRepository(exec storage.Executor) *Repository {
	return &Repository{exec: exec}
}

// StoreObservation persists an observation row; triggers mirror the content
// into the FTS index.
func (r *Repository) StoreObservation(ctx context.Context, obs *Observation) error {
	if obs.ID == "" {
		return errors.InvalidInput("observation id must not be empty")
	}
	if obs.ProjectID == "" {
		return errors.InvalidInput("observation project_id must not be empty")
	}
	if strings.TrimSpace(obs.Content) == "" {
		return errors.InvalidInput("observation content must not be empty")
	}
	if !ValidObservationType(obs.Type) {
		return errors.InvalidInput("unknown observation type: " + string(obs.Type))
	}

	tags, err := json.Marshal(orEmptySlice(obs.Tags))
	if err != nil {
		return errors.Wrap(errors.CodeInvalidInput, err)
	}
	metadata, err := json.Marshal(obs.Metadata)
	if err != nil {
		return errors.Wrap(errors.CodeInvalidInput, err)
	}

	return r.exec.Execute(ctx,
		`INSERT INTO observations
		 (id, project_id, content, content_hash, tags, observation_type, metadata, created_at, embedding_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(obs.ID),
			storage.String(obs.ProjectID),
			storage.String(obs.Content),
			storage.String(obs.ContentHash),
			storage.String(string(tags)),
			storage.String(string(obs.Type)),
			storage.String(string(metadata)),
			storage.I64(obs.CreatedAt.Unix()),
			storage.NullableString(obs.EmbeddingID),
		})
}

// GetObservation loads one observation by id.
func (r *Repository) GetObservation(ctx context.Context, id string) (*Observation, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT * FROM observations WHERE id = ?`,
		[]storage.Param{storage.String(id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("observation", id)
	}
	return scanObservation(row)
}

// DeleteObservation removes an observation; the trigger drops its FTS row.
func (r *Repository) DeleteObservation(ctx context.Context, id string) error {
	return r.exec.Execute(ctx,
		`DELETE FROM observations WHERE id = ?`,
		[]storage.Param{storage.String(id)})
}

// ListByProject returns a project's observations, newest first.
func (r *Repository) ListByProject(ctx context.Context, projectID string, limit int) ([]Observation, error) {
	query := `SELECT * FROM observations WHERE project_id = ? ORDER BY created_at DESC, id`
	params := []storage.Param{storage.String(projectID)}
	if limit > 0 {
		query += ` LIMIT ?`
		params = append(params, storage.I64(int64(limit)))
	}

	rows, err := r.exec.QueryAll(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return scanObservations(rows)
}

// FilterObservations returns observations matching the filter, newest first.
func (r *Repository) FilterObservations(ctx context.Context, projectID string, filter Filter, limit int) ([]Observation, error) {
	all, err := r.ListByProject(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]Observation, 0, len(all))
	for _, obs := range all {
		if !matchesFilter(obs, filter) {
			continue
		}
		out = append(out, obs)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SearchText runs a full-text query against the observation mirror, joins
// hits back to observation rows, applies the filter, and ranks by FTS score
// (higher is better).
func (r *Repository) SearchText(ctx context.Context, query string, filter Filter, k int) ([]ScoredObservation, error) {
	if k <= 0 {
		return []ScoredObservation{}, nil
	}

	match := buildMatchQuery(query)
	if match == "" {
		return []ScoredObservation{}, nil
	}

	// bm25() returns lower-is-better (negative) values; negating yields a
	// higher-is-better score. The filter is applied after the join, so
	// over-fetch to keep k results available.
	rows, err := r.exec.QueryAll(ctx,
		`SELECT o.*, -bm25(observation_fts) AS fts_score
		 FROM observation_fts
		 JOIN observations o ON o.id = observation_fts.obs_id
		 WHERE observation_fts MATCH ?
		 ORDER BY fts_score DESC, o.created_at DESC, o.id`,
		[]storage.Param{storage.String(match)})
	if err != nil {
		// FTS5 reports syntax errors for unparsable match expressions;
		// treat them as no results.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []ScoredObservation{}, nil
		}
		return nil, err
	}

	out := make([]ScoredObservation, 0, k)
	for _, row := range rows {
		obs, err := scanObservation(row)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(*obs, filter) {
			continue
		}
		score, err := row.TryGetFloat64("fts_score")
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredObservation{Observation: *obs, Score: score})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// StoreSessionSummary persists a session summary.
func (r *Repository) StoreSessionSummary(ctx context.Context, s *SessionSummary) error {
	if s.ID == "" || s.SessionID == "" {
		return errors.InvalidInput("session summary id and session_id must not be empty")
	}

	topics, _ := json.Marshal(orEmptySlice(s.Topics))
	decisions, _ := json.Marshal(orEmptySlice(s.Decisions))
	nextSteps, _ := json.Marshal(orEmptySlice(s.NextSteps))
	keyFiles, _ := json.Marshal(orEmptySlice(s.KeyFiles))
	origin, err := json.Marshal(orEmptyMap(s.OriginContext))
	if err != nil {
		return errors.Wrap(errors.CodeInvalidInput, err)
	}

	return r.exec.Execute(ctx,
		`INSERT INTO session_summaries
		 (id, project_id, session_id, topics, decisions, next_steps, key_files, origin_context, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		[]storage.Param{
			storage.String(s.ID),
			storage.String(s.ProjectID),
			storage.String(s.SessionID),
			storage.String(string(topics)),
			storage.String(string(decisions)),
			storage.String(string(nextSteps)),
			storage.String(string(keyFiles)),
			storage.String(string(origin)),
			storage.I64(s.CreatedAt.Unix()),
		})
}

// GetSessionSummary loads the latest summary for a session.
func (r *Repository) GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT * FROM session_summaries WHERE session_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		[]storage.Param{storage.String(sessionID)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound("session_summary", sessionID)
	}
	return scanSessionSummary(row)
}

var matchTokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// buildMatchQuery turns free text into an FTS5 match expression. Tokens are
// AND-combined, matching the indexing tokenizer's behavior.
func buildMatchQuery(query string) string {
	tokens := matchTokenRegex.FindAllString(query, -1)
	for i, t := range tokens {
		tokens[i] = `"` + strings.ToLower(t) + `"`
	}
	return strings.Join(tokens, " ")
}

func matchesFilter(obs Observation, filter Filter) bool {
	if filter.SessionID != "" && obs.Metadata.SessionID != filter.SessionID {
		return false
	}
	if filter.Branch != "" && obs.Metadata.Branch != filter.Branch {
		return false
	}
	if filter.Commit != "" && obs.Metadata.Commit != filter.Commit {
		return false
	}
	if filter.Type != "" && obs.Type != filter.Type {
		return false
	}
	for _, want := range filter.Tags {
		found := false
		for _, tag := range obs.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func scanObservations(rows []storage.Row) ([]Observation, error) {
	out := make([]Observation, 0, len(rows))
	for _, row := range rows {
		obs, err := scanObservation(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *obs)
	}
	return out, nil
}

func scanObservation(row storage.Row) (*Observation, error) {
	obs := &Observation{}

	var err error
	if obs.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if obs.ProjectID, err = row.TryGetString("project_id"); err != nil {
		return nil, err
	}
	if obs.Content, err = row.TryGetString("content"); err != nil {
		return nil, err
	}
	if obs.ContentHash, err = row.TryGetString("content_hash"); err != nil {
		return nil, err
	}

	typeStr, err := row.TryGetString("observation_type")
	if err != nil {
		return nil, err
	}
	obs.Type = ObservationType(typeStr)

	tagsJSON, err := row.TryGetString("tags")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &obs.Tags); err != nil {
		return nil, errors.DataCorruption("observation.tags", err)
	}

	metaJSON, err := row.TryGetString("metadata")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &obs.Metadata); err != nil {
		return nil, errors.DataCorruption("observation.metadata", err)
	}

	createdAt, err := row.TryGetInt64("created_at")
	if err != nil {
		return nil, err
	}
	obs.CreatedAt = time.Unix(createdAt, 0).UTC()

	if obs.EmbeddingID, err = row.TryGetNullString("embedding_id"); err != nil {
		return nil, err
	}

	return obs, nil
}

func scanSessionSummary(row storage.Row) (*SessionSummary, error) {
	s := &SessionSummary{}

	var err error
	if s.ID, err = row.TryGetString("id"); err != nil {
		return nil, err
	}
	if s.ProjectID, err = row.TryGetString("project_id"); err != nil {
		return nil, err
	}
	if s.SessionID, err = row.TryGetString("session_id"); err != nil {
		return nil, err
	}

	for _, field := range []struct {
		column string
		target *[]string
	}{
		{"topics", &s.Topics},
		{"decisions", &s.Decisions},
		{"next_steps", &s.NextSteps},
		{"key_files", &s.KeyFiles},
	} {
		raw, err := row.TryGetString(field.column)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), field.target); err != nil {
			return nil, errors.DataCorruption("session_summary."+field.column, err)
		}
	}

	originJSON, err := row.TryGetString("origin_context")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(originJSON), &s.OriginContext); err != nil {
		return nil, errors.DataCorruption("session_summary.origin_context", err)
	}

	createdAt, err := row.TryGetInt64("created_at")
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()

	return s, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
