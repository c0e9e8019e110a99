// Package registry assembles the service graph from configuration.
// Resolution happens once at startup; nothing here is consulted afterward.
package registry

import (
	"context"

	"github.com/marlonsc/mcb/internal/agent"
	"github.com/marlonsc/mcb/internal/chunk"
	"github.com/marlonsc/mcb/internal/config"
	"github.com/marlonsc/mcb/internal/embed"
	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/events"
	"github.com/marlonsc/mcb/internal/filehash"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/index"
	"github.com/marlonsc/mcb/internal/memory"
	"github.com/marlonsc/mcb/internal/plan"
	"github.com/marlonsc/mcb/internal/project"
	"github.com/marlonsc/mcb/internal/search"
	"github.com/marlonsc/mcb/internal/service"
	"github.com/marlonsc/mcb/internal/storage"
	"github.com/marlonsc/mcb/internal/vector"
	"github.com/marlonsc/mcb/internal/workflow"
)

// DefaultOrgID scopes single-tenant deployments.
const DefaultOrgID = "default"

// ObservationCollection names the observation vector collection.
const ObservationCollection = "observations"

// Container holds the constructed service graph.
type Container struct {
	Config *config.Config

	Executor    *storage.SQLiteExecutor
	VectorStore *vector.HNSWStore
	Bus         *events.Bus

	EmbedProvider embed.Provider
	Chunker       *chunk.Chunker
	FileHashes    *filehash.Registry
	BM25          *index.BM25Index

	MemoryRepo   *memory.Repository
	Memory       *service.MemoryService
	Agent        *agent.SessionService
	Plans        *plan.Repository
	Projects     *project.Service
	ProjectRepo  *project.Repository
	Workflow     *workflow.Orchestrator
	Pipeline     *index.Pipeline
}

// Build constructs every provider and service from the configuration.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exec, err := storage.NewSQLiteExecutor(storage.SQLiteOptions{
		Path:          cfg.Storage.Path,
		CacheMB:       cfg.Storage.CacheMB,
		BusyTimeoutMS: cfg.Storage.BusyTimeoutMS,
	})
	if err != nil {
		return nil, err
	}
	if err := storage.ApplySchema(ctx, exec, storage.SQLiteDDL{}); err != nil {
		_ = exec.Close()
		return nil, err
	}

	provider, err := buildEmbedProvider(cfg)
	if err != nil {
		_ = exec.Close()
		return nil, err
	}

	store := vector.NewHNSWStore()
	bus := events.NewBus()

	bm25, err := index.NewBM25Index(cfg.Indexing.BM25Path)
	if err != nil {
		store.Close()
		_ = exec.Close()
		return nil, err
	}

	chunker := chunk.NewChunkerWithOptions(chunk.Options{
		MaxLines:     cfg.Chunking.MaxLines,
		MinLines:     cfg.Chunking.MinLines,
		TargetLines:  cfg.Chunking.TargetLines,
		ContextLines: cfg.Chunking.ContextLines,
	})

	hashes := filehash.NewRegistry(exec, DefaultOrgID).WithTTL(cfg.Storage.TombstoneTTL)

	memoryRepo := memory.NewRepository(exec)
	memorySvc, err := service.NewMemoryService(ctx, memoryRepo, provider, store,
		ids.MustFromName(ObservationCollection),
		search.Options{Alpha: cfg.Search.Alpha, Publisher: bus})
	if err != nil {
		_ = bm25.Close()
		store.Close()
		_ = exec.Close()
		return nil, err
	}

	return &Container{
		Config:        cfg,
		Executor:      exec,
		VectorStore:   store,
		Bus:           bus,
		EmbedProvider: provider,
		Chunker:       chunker,
		FileHashes:    hashes,
		BM25:          bm25,
		MemoryRepo:    memoryRepo,
		Memory:        memorySvc,
		Agent:         agent.NewSessionService(agent.NewRepository(exec)),
		Plans:         plan.NewRepository(exec),
		Projects:      project.NewService(exec),
		ProjectRepo:   project.NewRepository(exec),
		Workflow:      workflow.NewOrchestrator(workflow.NewSQLRepo(exec), bus),
		Pipeline:      index.NewPipeline(chunker, provider, store, hashes, bm25, bus),
	}, nil
}

// buildEmbedProvider resolves the embedding provider from configuration.
func buildEmbedProvider(cfg *config.Config) (embed.Provider, error) {
	var inner embed.Provider
	switch cfg.Embedding.Provider {
	case "static":
		inner = embed.NewStaticProvider()
	case "ollama":
		inner = embed.NewOllamaProvider(embed.OllamaOptions{
			Host:       cfg.Embedding.OllamaHost,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, errors.InvalidInput("unknown embedding provider: " + cfg.Embedding.Provider)
	}

	if cfg.Embedding.CacheSize > 0 {
		inner = embed.NewCachedProvider(inner, cfg.Embedding.CacheSize)
	}
	return inner, nil
}

// Close releases every held resource.
func (c *Container) Close() {
	if c.Chunker != nil {
		c.Chunker.Close()
	}
	if c.BM25 != nil {
		_ = c.BM25.Close()
	}
	if c.Bus != nil {
		c.Bus.Close()
	}
	if c.VectorStore != nil {
		c.VectorStore.Close()
	}
	if c.Executor != nil {
		_ = c.Executor.Close()
	}
}
