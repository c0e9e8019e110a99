// Package filehash tracks content hashes of indexed files so incremental
// indexing can skip unchanged files. Deletes are soft: rows are tombstoned
// and physically removed only after a TTL. Re-indexing a file, including
// one re-created after delete, assigns new vector-store ids.
package filehash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/storage"
)

// DefaultTombstoneTTL is how long tombstoned rows are retained.
const DefaultTombstoneTTL = 30 * 24 * time.Hour

// Entry is one tracked file.
type Entry struct {
	OrgID       string
	Collection  string
	FilePath    string
	ContentHash string
	IndexedAt   time.Time
	DeletedAt   *time.Time
}

// Registry stores (org, collection, file path) -> content hash.
type Registry struct {
	exec  storage.Executor
	orgID string
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a registry scoped to one organization.
func NewRegistry(exec storage.Executor, orgID string) *Registry {
	return &Registry{
		exec:  exec,
		orgID: orgID,
		ttl:   DefaultTombstoneTTL,
		now:   time.Now,
	}
}

// WithTTL overrides the default tombstone TTL.
func (r *Registry) WithTTL(ttl time.Duration) *Registry {
	r.ttl = ttl
	return r
}

// GetHash returns the stored hash for a file, empty when untracked or
// tombstoned.
func (r *Registry) GetHash(ctx context.Context, collection, filePath string) (string, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT content_hash FROM file_hashes
		 WHERE org_id = ? AND collection = ? AND file_path = ? AND deleted_at IS NULL`,
		[]storage.Param{storage.String(r.orgID), storage.String(collection), storage.String(filePath)})
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	return row.TryGetString("content_hash")
}

// HasChanged reports whether a file needs re-indexing: true when the file
// is untracked, tombstoned, or stored with a different hash.
func (r *Registry) HasChanged(ctx context.Context, collection, filePath, currentHash string) (bool, error) {
	stored, err := r.GetHash(ctx, collection, filePath)
	if err != nil {
		return false, err
	}
	return stored == "" || stored != currentHash, nil
}

// UpsertHash records a file's hash, clearing any tombstone.
func (r *Registry) UpsertHash(ctx context.Context, collection, filePath, contentHash string) error {
	return r.exec.Execute(ctx,
		`INSERT INTO file_hashes (org_id, collection, file_path, content_hash, indexed_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, NULL)
		 ON CONFLICT (org_id, collection, file_path)
		 DO UPDATE SET content_hash = excluded.content_hash,
		               indexed_at = excluded.indexed_at,
		               deleted_at = NULL`,
		[]storage.Param{
			storage.String(r.orgID), storage.String(collection), storage.String(filePath),
			storage.String(contentHash), storage.I64(r.now().Unix()),
		})
}

// MarkDeleted tombstones a file.
func (r *Registry) MarkDeleted(ctx context.Context, collection, filePath string) error {
	return r.exec.Execute(ctx,
		`UPDATE file_hashes SET deleted_at = ?
		 WHERE org_id = ? AND collection = ? AND file_path = ?`,
		[]storage.Param{
			storage.I64(r.now().Unix()),
			storage.String(r.orgID), storage.String(collection), storage.String(filePath),
		})
}

// GetIndexedFiles returns the live (non-tombstoned) file paths in a
// collection.
func (r *Registry) GetIndexedFiles(ctx context.Context, collection string) ([]string, error) {
	rows, err := r.exec.QueryAll(ctx,
		`SELECT file_path FROM file_hashes
		 WHERE org_id = ? AND collection = ? AND deleted_at IS NULL
		 ORDER BY file_path`,
		[]storage.Param{storage.String(r.orgID), storage.String(collection)})
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		p, err := row.TryGetString("file_path")
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// CleanupTombstones physically deletes tombstones older than the registry
// TTL.
func (r *Registry) CleanupTombstones(ctx context.Context) (int64, error) {
	return r.CleanupTombstonesWithTTL(ctx, r.ttl)
}

// CleanupTombstonesWithTTL physically deletes tombstones whose deleted_at
// is at or before now - ttl.
func (r *Registry) CleanupTombstonesWithTTL(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := r.now().Add(-ttl).Unix()

	rows, err := r.exec.QueryAll(ctx,
		`SELECT COUNT(*) AS n FROM file_hashes
		 WHERE org_id = ? AND deleted_at IS NOT NULL AND deleted_at <= ?`,
		[]storage.Param{storage.String(r.orgID), storage.I64(cutoff)})
	if err != nil {
		return 0, err
	}
	var count int64
	if len(rows) == 1 {
		count, err = rows[0].TryGetInt64("n")
		if err != nil {
			return 0, err
		}
	}

	err = r.exec.Execute(ctx,
		`DELETE FROM file_hashes
		 WHERE org_id = ? AND deleted_at IS NOT NULL AND deleted_at <= ?`,
		[]storage.Param{storage.String(r.orgID), storage.I64(cutoff)})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TombstoneCount returns the number of tombstoned rows in a collection.
func (r *Registry) TombstoneCount(ctx context.Context, collection string) (int64, error) {
	row, err := r.exec.QueryOne(ctx,
		`SELECT COUNT(*) AS n FROM file_hashes
		 WHERE org_id = ? AND collection = ? AND deleted_at IS NOT NULL`,
		[]storage.Param{storage.String(r.orgID), storage.String(collection)})
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	return row.TryGetInt64("n")
}

// ClearCollection removes every row for a collection, live and tombstoned.
func (r *Registry) ClearCollection(ctx context.Context, collection string) error {
	return r.exec.Execute(ctx,
		`DELETE FROM file_hashes WHERE org_id = ? AND collection = ?`,
		[]storage.Param{storage.String(r.orgID), storage.String(collection)})
}

// ComputeHash streams the file through SHA-256.
func ComputeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(errors.CodeFileRead, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(errors.CodeFileRead, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes hashes in-memory content with the same algorithm as ComputeHash.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
