package storage

import (
	"context"
)

// DDLGenerator emits the statements that create the logical schema for a
// specific SQL dialect. The generated DDL must keep the observation FTS
// mirror in lockstep via triggers and carry the uniqueness constraints the
// repositories rely on.
type DDLGenerator interface {
	// Statements returns the ordered CREATE statements.
	Statements() []string
}

// ApplySchema runs a generator's statements against an executor.
func ApplySchema(ctx context.Context, exec Executor, gen DDLGenerator) error {
	for _, stmt := range gen.Statements() {
		if err := exec.Execute(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// SQLiteDDL generates the schema for SQLite with an FTS5 observation mirror.
type SQLiteDDL struct{}

var _ DDLGenerator = SQLiteDDL{}

// Statements returns the ordered CREATE statements for SQLite.
func (SQLiteDDL) Statements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			settings TEXT NOT NULL DEFAULT '{}'
		)`,

		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_org ON projects(org_id)`,

		`CREATE TABLE IF NOT EXISTS observations (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			content TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			observation_type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			embedding_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_project ON observations(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_type ON observations(observation_type)`,

		// Virtual FTS index over observation content, id-joined back to the
		// base table via obs_id. The FTS table stores its own copy of the
		// content.
		`CREATE VIRTUAL TABLE IF NOT EXISTS observation_fts USING fts5(
			content,
			obs_id UNINDEXED
		)`,

		// Triggers keep the FTS mirror in lockstep with the base table.
		`CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
			INSERT INTO observation_fts(content, obs_id) VALUES (new.content, new.id);
		END`,
		`CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
			DELETE FROM observation_fts WHERE obs_id = old.id;
		END`,
		`CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
			DELETE FROM observation_fts WHERE obs_id = old.id;
			INSERT INTO observation_fts(content, obs_id) VALUES (new.content, new.id);
		END`,

		`CREATE TABLE IF NOT EXISTS session_summaries (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			topics TEXT NOT NULL DEFAULT '[]',
			decisions TEXT NOT NULL DEFAULT '[]',
			next_steps TEXT NOT NULL DEFAULT '[]',
			key_files TEXT NOT NULL DEFAULT '[]',
			origin_context TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_summaries_session ON session_summaries(session_id)`,

		`CREATE TABLE IF NOT EXISTS file_hashes (
			org_id TEXT NOT NULL,
			collection TEXT NOT NULL,
			file_path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			indexed_at INTEGER NOT NULL,
			deleted_at INTEGER,
			PRIMARY KEY (org_id, collection, file_path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_hashes_deleted ON file_hashes(deleted_at)`,

		`CREATE TABLE IF NOT EXISTS agent_sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT,
			worktree_id TEXT,
			session_summary_id TEXT,
			parent_session_id TEXT,
			agent_type TEXT NOT NULL,
			model TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			duration_ms INTEGER,
			status TEXT NOT NULL,
			prompt_summary TEXT,
			result_summary TEXT,
			token_count INTEGER NOT NULL DEFAULT 0,
			tool_calls_count INTEGER NOT NULL DEFAULT 0,
			delegations_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_sessions_project ON agent_sessions(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_sessions_started ON agent_sessions(started_at)`,

		`CREATE TABLE IF NOT EXISTS delegations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES agent_sessions(id),
			agent_type TEXT NOT NULL,
			prompt TEXT NOT NULL,
			result TEXT,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delegations_session ON delegations(session_id)`,

		`CREATE TABLE IF NOT EXISTS tool_calls (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES agent_sessions(id),
			tool_name TEXT NOT NULL,
			arguments TEXT NOT NULL DEFAULT '{}',
			result TEXT,
			duration_ms INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id)`,

		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES agent_sessions(id),
			name TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			restored_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id)`,

		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_project ON plans(project_id)`,

		`CREATE TABLE IF NOT EXISTS plan_versions (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL REFERENCES plans(id),
			version_number INTEGER NOT NULL,
			content_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE (plan_id, version_number)
		)`,

		`CREATE TABLE IF NOT EXISTS plan_reviews (
			id TEXT PRIMARY KEY,
			plan_version_id TEXT NOT NULL REFERENCES plan_versions(id),
			reviewer TEXT NOT NULL,
			verdict TEXT NOT NULL,
			comments TEXT,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS project_phases (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			sequence INTEGER NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER,
			completed_at INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_project_phases_project ON project_phases(project_id)`,

		`CREATE TABLE IF NOT EXISTS project_issues (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			closed_at INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_project_issues_project ON project_issues(project_id)`,

		`CREATE TABLE IF NOT EXISTS project_dependencies (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			from_issue_id TEXT NOT NULL REFERENCES project_issues(id),
			to_issue_id TEXT NOT NULL REFERENCES project_issues(id),
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS project_decisions (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			rationale TEXT,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS workflow_sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			current_state TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS workflow_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES workflow_sessions(id),
			trigger TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_transitions_session ON workflow_transitions(session_id)`,
	}
}
