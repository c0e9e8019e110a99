// Package vector provides vector storage for embeddings. The default
// implementation is an in-memory HNSW index owned by a single-writer actor:
// all mutations and queries are messages on a bounded channel, which gives a
// total order of operations per collection without cross-thread locking.
package vector

import (
	"context"

	"github.com/marlonsc/mcb/internal/ids"
)

// Metadata is stored alongside each vector and surfaced in search results.
type Metadata struct {
	Content   string
	FilePath  string
	StartLine int
	Language  string
	// RefID, when set, is surfaced as the search-result id in place of the
	// backend-assigned vector id. Callers use it to key results by their
	// own entity ids (e.g. observation ids).
	RefID string
	// Extra carries caller-defined fields usable in filters.
	Extra map[string]string
}

// Filter is the in-memory backend's filter expression: every key must match
// the vector's metadata (file path, language, or an Extra field) exactly.
// Other backends interpret their own expressions.
type Filter map[string]string

// Reserved filter keys understood by the in-memory backend.
const (
	FilterFilePath = "file_path"
	FilterLanguage = "language"
)

// StoredVector is a vector with its metadata, as returned by browse reads.
type StoredVector struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// CollectionStats describes one collection.
type CollectionStats struct {
	Name        string
	VectorCount int
	Dimensions  int
}

// Stats aggregates store-wide statistics.
type Stats struct {
	Collections []CollectionStats
}

// Provider is the core vector store capability: collection CRUD plus
// insert, search, and browse over vectors.
type Provider interface {
	// CreateCollection creates a collection with fixed dimensions.
	// Idempotent: creating an existing collection with the same dimensions
	// is a no-op; differing dimensions is an error.
	CreateCollection(ctx context.Context, name ids.CollectionID, dimensions int) error

	// InsertVectors stores vectors with their metadata and returns one id
	// per vector. len(vectors) must equal len(metadata).
	InsertVectors(ctx context.Context, name ids.CollectionID, vectors [][]float32, metadata []Metadata) ([]string, error)

	// SearchSimilar returns the top-k results by cosine similarity.
	// k=0 returns an empty list; k larger than the collection returns all.
	SearchSimilar(ctx context.Context, name ids.CollectionID, query []float32, k int, filter Filter) ([]ids.SearchResult, error)

	// DeleteVectors removes vectors by id. Unknown ids are ignored.
	DeleteVectors(ctx context.Context, name ids.CollectionID, vectorIDs []string) error

	// GetVectorsByIDs returns stored vectors for the given ids, skipping
	// unknown ones.
	GetVectorsByIDs(ctx context.Context, name ids.CollectionID, vectorIDs []string) ([]StoredVector, error)

	// ListVectors returns up to limit stored vectors in insertion order.
	ListVectors(ctx context.Context, name ids.CollectionID, limit int) ([]StoredVector, error)
}

// Admin is the administrative capability.
type Admin interface {
	CollectionExists(ctx context.Context, name ids.CollectionID) (bool, error)
	GetStats(ctx context.Context) (Stats, error)
	Flush(ctx context.Context) error
}

// Browser is the read-only browsing capability.
type Browser interface {
	ListCollections(ctx context.Context) ([]string, error)
	ListFilePaths(ctx context.Context, name ids.CollectionID, limit int) ([]string, error)
	GetChunksByFile(ctx context.Context, name ids.CollectionID, path string) ([]ids.SearchResult, error)
}

// Store combines all capabilities.
type Store interface {
	Provider
	Admin
	Browser
}
