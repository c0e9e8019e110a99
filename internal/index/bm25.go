// Package index implements the indexing pipeline: walk, hash-diff, chunk,
// embed, and upsert into the vector store and the lexical index.
package index

import (
	"context"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/marlonsc/mcb/internal/errors"
)

// BM25Document is one lexical document: a code chunk's content.
type BM25Document struct {
	ID      string
	Content string
}

// BM25Hit is one lexical search result.
type BM25Hit struct {
	ID    string
	Score float64
}

// BM25Index provides keyword search over code chunks using bleve.
type BM25Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

type bleveDocument struct {
	Content string `json:"content"`
}

// NewBM25Index opens (or creates) a bleve index at path. An empty path
// creates an in-memory index.
func NewBM25Index(path string) (*BM25Index, error) {
	mapping := bleve.NewIndexMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, errors.Backend(errors.CodeVectorBackend, "open bm25 index", err)
	}

	return &BM25Index{index: idx}, nil
}

// Index adds documents, replacing any existing entry with the same id.
func (b *BM25Index) Index(ctx context.Context, docs []BM25Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			return errors.Backend(errors.CodeVectorBackend, "batch bm25 document", err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.Backend(errors.CodeVectorBackend, "index bm25 batch", err)
	}
	return nil
}

// Search returns documents matching the query, best first.
func (b *BM25Index) Search(ctx context.Context, query string, limit int) ([]BM25Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 {
		return []BM25Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Backend(errors.CodeVectorBackend, "bm25 search", err)
	}

	hits := make([]BM25Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, BM25Hit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Delete removes documents by id. Unknown ids are ignored.
func (b *BM25Index) Delete(ctx context.Context, docIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.Backend(errors.CodeVectorBackend, "delete bm25 batch", err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (b *BM25Index) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close releases the index.
func (b *BM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
