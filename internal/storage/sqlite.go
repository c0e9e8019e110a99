package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/marlonsc/mcb/internal/errors"
)

// SQLiteOptions configures the SQLite executor.
type SQLiteOptions struct {
	// Path is the database file. Empty means a private in-memory database.
	Path string
	// CacheMB is the page cache size in MB (default: 64).
	CacheMB int
	// BusyTimeoutMS is the lock-contention timeout (default: 5000).
	BusyTimeoutMS int
}

// SQLiteExecutor implements Executor over modernc.org/sqlite.
// The connection pool is capped at one writer; WAL mode allows concurrent
// readers from other processes.
type SQLiteExecutor struct {
	db *sql.DB
}

var (
	_ Executor   = (*SQLiteExecutor)(nil)
	_ Transactor = (*SQLiteExecutor)(nil)
)

// NewSQLiteExecutor opens (or creates) a SQLite database with the pragmas
// the service depends on.
func NewSQLiteExecutor(opts SQLiteOptions) (*SQLiteExecutor, error) {
	if opts.CacheMB == 0 {
		opts.CacheMB = 64
	}
	if opts.BusyTimeoutMS == 0 {
		opts.BusyTimeoutMS = 5000
	}

	dsn := ":memory:"
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, errors.Wrap(errors.CodeFilePermission, err)
		}
		dsn = opts.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Backend(errors.CodeSQLBackend, "open database", err)
	}

	// Single writer to prevent lock contention; for in-memory databases a
	// second connection would see a different database entirely.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params are
	// ignored by the driver.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheMB*1024),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Backend(errors.CodeSQLBackend, "set pragma", err)
		}
	}

	return &SQLiteExecutor{db: db}, nil
}

// Execute runs a statement that returns no rows.
func (e *SQLiteExecutor) Execute(ctx context.Context, query string, params []Param) error {
	if _, err := e.db.ExecContext(ctx, query, driverValues(params)...); err != nil {
		return errors.Backend(errors.CodeSQLBackend, "execute", err)
	}
	return nil
}

// QueryOne runs a query expected to return at most one row.
func (e *SQLiteExecutor) QueryOne(ctx context.Context, query string, params []Param) (Row, error) {
	rows, err := e.QueryAll(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// QueryAll runs a query and returns all matching rows.
func (e *SQLiteExecutor) QueryAll(ctx context.Context, query string, params []Param) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, query, driverValues(params)...)
	if err != nil {
		return nil, errors.Backend(errors.CodeSQLBackend, "query", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Transact runs fn inside a transaction.
func (e *SQLiteExecutor) Transact(ctx context.Context, fn func(Executor) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Backend(errors.CodeSQLBackend, "begin transaction", err)
	}

	if err := fn(&txExecutor{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Backend(errors.CodeSQLBackend, "commit transaction", err)
	}
	return nil
}

// Close releases the connection pool.
func (e *SQLiteExecutor) Close() error {
	return e.db.Close()
}

// txExecutor adapts a *sql.Tx to the Executor port.
type txExecutor struct {
	tx *sql.Tx
}

var _ Executor = (*txExecutor)(nil)

func (e *txExecutor) Execute(ctx context.Context, query string, params []Param) error {
	if _, err := e.tx.ExecContext(ctx, query, driverValues(params)...); err != nil {
		return errors.Backend(errors.CodeSQLBackend, "execute", err)
	}
	return nil
}

func (e *txExecutor) QueryOne(ctx context.Context, query string, params []Param) (Row, error) {
	rows, err := e.QueryAll(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (e *txExecutor) QueryAll(ctx context.Context, query string, params []Param) ([]Row, error) {
	rows, err := e.tx.QueryContext(ctx, query, driverValues(params)...)
	if err != nil {
		return nil, errors.Backend(errors.CodeSQLBackend, "query", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows materializes sql.Rows into column maps.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Backend(errors.CodeSQLBackend, "read columns", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Backend(errors.CodeSQLBackend, "scan row", err)
		}

		m := make(mapRow, len(cols))
		for i, c := range cols {
			m[c] = values[i]
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Backend(errors.CodeSQLBackend, "iterate rows", err)
	}
	return out, nil
}
