package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/marlonsc/mcb/internal/chunk"
	"github.com/marlonsc/mcb/internal/embed"
	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/events"
	"github.com/marlonsc/mcb/internal/filehash"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/scanner"
	"github.com/marlonsc/mcb/internal/vector"
)

// Pipeline walks a root, chunks changed files, embeds the chunks, and
// upserts them into the vector store, the lexical index, and the file-hash
// registry. A single file's failure is recorded and skipped; vector-store
// or SQL failures abort the run.
type Pipeline struct {
	chunker   *chunk.Chunker
	provider  embed.Provider
	store     vector.Provider
	hashes    *filehash.Registry
	bm25      *BM25Index
	publisher events.Publisher
	batchSize int
}

// Options configures one pipeline run.
type Options struct {
	RootDir     string
	Collection  ids.CollectionID
	Exclude     []string
	MaxFileSize int64
	// LockDir holds the cross-process indexing lock; empty means RootDir.
	LockDir string
}

// Summary reports what a run did.
type Summary struct {
	FilesScanned int
	FilesIndexed int
	FilesSkipped int
	FilesRemoved int
	Chunks       int
	Warnings     []string
	Duration     time.Duration
}

// NewPipeline creates a pipeline.
func NewPipeline(chunker *chunk.Chunker, provider embed.Provider, store vector.Provider, hashes *filehash.Registry, bm25 *BM25Index, publisher events.Publisher) *Pipeline {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Pipeline{
		chunker:   chunker,
		provider:  provider,
		store:     store,
		hashes:    hashes,
		bm25:      bm25,
		publisher: publisher,
		batchSize: embed.DefaultBatchSize,
	}
}

// Run indexes the root into the collection.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()

	lockDir := opts.LockDir
	if lockDir == "" {
		lockDir = opts.RootDir
	}
	lock := flock.New(filepath.Join(lockDir, ".index.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(errors.CodeFilePermission, err)
	}
	if !locked {
		return nil, errors.Newf(errors.CodeInvalidState, "another indexer holds the lock for %s", opts.RootDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("index_lock_release_failed", slog.String("error", err.Error()))
		}
	}()

	if err := p.store.CreateCollection(ctx, opts.Collection, p.provider.Dimensions()); err != nil {
		return nil, err
	}

	files, err := scanner.Scan(ctx, scanner.Options{
		RootDir:     opts.RootDir,
		MaxFileSize: opts.MaxFileSize,
		Exclude:     opts.Exclude,
	})
	if err != nil {
		return nil, err
	}

	collection := opts.Collection.Name()
	summary := &Summary{FilesScanned: len(files)}

	p.publish(ctx, events.Event{
		Kind:            events.KindIndexingStarted,
		IndexingStarted: &events.IndexingStarted{Collection: collection, TotalFiles: len(files)},
	})

	seen := make(map[string]struct{}, len(files))
	for i, file := range files {
		seen[file.Path] = struct{}{}

		indexed, chunks, err := p.indexFile(ctx, opts.Collection, file)
		if err != nil {
			if isAbortError(err) {
				return nil, err
			}
			summary.Warnings = append(summary.Warnings, file.Path+": "+err.Error())
			slog.Warn("index_file_skipped",
				slog.String("path", file.Path),
				slog.String("error", err.Error()))
			continue
		}
		if indexed {
			summary.FilesIndexed++
			summary.Chunks += chunks
		} else {
			summary.FilesSkipped++
		}

		p.publish(ctx, events.Event{
			Kind: events.KindIndexingProgress,
			IndexingProgress: &events.IndexingProgress{
				Collection:  collection,
				Processed:   i + 1,
				Total:       len(files),
				CurrentFile: file.Path,
			},
		})
	}

	removed, err := p.removeMissing(ctx, opts.Collection, seen)
	if err != nil {
		return nil, err
	}
	summary.FilesRemoved = removed
	summary.Duration = time.Since(start)

	p.publish(ctx, events.Event{
		Kind: events.KindIndexingCompleted,
		IndexingCompleted: &events.IndexingCompleted{
			Collection: collection,
			Chunks:     summary.Chunks,
			DurationMS: summary.Duration.Milliseconds(),
			Warnings:   summary.Warnings,
		},
	})

	return summary, nil
}

// indexFile hash-diffs one file and reindexes it when changed. Returns
// whether the file was (re)indexed and how many chunks were produced.
func (p *Pipeline) indexFile(ctx context.Context, collectionID ids.CollectionID, file scanner.FileInfo) (bool, int, error) {
	collection := collectionID.Name()

	hash, err := filehash.ComputeHash(file.AbsPath)
	if err != nil {
		return false, 0, err
	}

	changed, err := p.hashes.HasChanged(ctx, collection, file.Path, hash)
	if err != nil {
		return false, 0, err
	}
	if !changed {
		return false, 0, nil
	}

	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return false, 0, errors.Wrap(errors.CodeFileRead, err)
	}

	chunks := p.chunkFile(ctx, string(content), file.Path)
	if len(chunks) == 0 {
		// Nothing indexable; record the hash so the file is skipped next
		// run.
		if err := p.hashes.UpsertHash(ctx, collection, file.Path, hash); err != nil {
			return false, 0, err
		}
		return true, 0, nil
	}

	// Replace any chunks from a previous version of the file.
	if err := p.deleteFileChunks(ctx, collectionID, file.Path); err != nil {
		return false, 0, err
	}

	language := p.chunker.Registry().LanguageForExtension(filepath.Ext(file.Path))

	var vectorIDs []string
	for batchStart := 0; batchStart < len(chunks); batchStart += p.batchSize {
		end := batchStart + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[batchStart:end]

		texts := make([]string, len(batch))
		metadata := make([]vector.Metadata, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
			metadata[i] = vector.Metadata{
				Content:   c.Content,
				FilePath:  file.Path,
				StartLine: c.StartLine,
				Language:  language,
			}
		}

		embedded, err := p.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return false, 0, err
		}

		vectors := make([][]float32, len(embedded))
		for i, e := range embedded {
			vectors[i] = e.Vector
		}

		insertedIDs, err := p.store.InsertVectors(ctx, collectionID, vectors, metadata)
		if err != nil {
			return false, 0, err
		}
		vectorIDs = append(vectorIDs, insertedIDs...)

		docs := make([]BM25Document, len(batch))
		for i, c := range batch {
			docs[i] = BM25Document{ID: insertedIDs[i], Content: c.Content}
		}
		if err := p.bm25.Index(ctx, docs); err != nil {
			return false, 0, err
		}
	}

	if err := p.hashes.UpsertHash(ctx, collection, file.Path, hash); err != nil {
		return false, 0, err
	}
	return true, len(vectorIDs), nil
}

// chunkFile tries semantic chunking and falls back to line-based windows.
func (p *Pipeline) chunkFile(ctx context.Context, content, path string) []chunk.ParsedChunk {
	language := p.chunker.Registry().LanguageForExtension(filepath.Ext(path))
	if language != "" {
		chunks, err := p.chunker.Chunk(ctx, content, language, path)
		if err == nil {
			return chunks
		}
	}
	return p.chunker.ChunkLines(content, path)
}

// removeMissing tombstones files that were indexed before but are gone from
// disk, and deletes their vectors and lexical documents.
func (p *Pipeline) removeMissing(ctx context.Context, collectionID ids.CollectionID, seen map[string]struct{}) (int, error) {
	collection := collectionID.Name()

	indexed, err := p.hashes.GetIndexedFiles(ctx, collection)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range indexed {
		if _, exists := seen[path]; exists {
			continue
		}
		if err := p.deleteFileChunks(ctx, collectionID, path); err != nil {
			return removed, err
		}
		if err := p.hashes.MarkDeleted(ctx, collection, path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// deleteFileChunks removes a file's vectors and lexical documents.
func (p *Pipeline) deleteFileChunks(ctx context.Context, collectionID ids.CollectionID, path string) error {
	browser, ok := p.store.(vector.Browser)
	if !ok {
		return nil
	}

	existing, err := browser.GetChunksByFile(ctx, collectionID, path)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	stale := make([]string, len(existing))
	for i, c := range existing {
		stale[i] = c.ID
	}
	if err := p.store.DeleteVectors(ctx, collectionID, stale); err != nil {
		return err
	}
	return p.bm25.Delete(ctx, stale)
}

// isAbortError separates per-file failures (parse, read, embed: skip and
// continue) from vector-store and SQL failures that abort the batch.
func isAbortError(err error) bool {
	switch errors.CodeOf(err) {
	case errors.CodeSQLBackend, errors.CodeVectorBackend:
		return true
	}
	return false
}

func (p *Pipeline) publish(ctx context.Context, event events.Event) {
	if err := p.publisher.Publish(ctx, event); err != nil {
		slog.Warn("index_event_publish_failed", slog.String("error", err.Error()))
	}
}
