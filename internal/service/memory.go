// Package service wires repositories and providers into the operations the
// protocol layer calls. Services enforce invariants; all state arrives via
// construction.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/marlonsc/mcb/internal/embed"
	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/filehash"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/memory"
	"github.com/marlonsc/mcb/internal/search"
	"github.com/marlonsc/mcb/internal/vector"
)

// MemoryService stores observations and serves hybrid queries over them.
// Each stored observation lands in the SQL store (with its FTS mirror) and
// as a vector in the observation collection.
type MemoryService struct {
	repo       *memory.Repository
	provider   embed.Provider
	store      vector.Provider
	engine     *search.Engine
	collection ids.CollectionID
	now        func() time.Time
}

// NewMemoryService creates the service and its observation collection.
func NewMemoryService(ctx context.Context, repo *memory.Repository, provider embed.Provider, store vector.Provider, collection ids.CollectionID, opts search.Options) (*MemoryService, error) {
	if err := store.CreateCollection(ctx, collection, provider.Dimensions()); err != nil {
		return nil, err
	}

	return &MemoryService{
		repo:       repo,
		provider:   provider,
		store:      store,
		engine:     search.NewEngine(provider, store, repo, collection, opts),
		collection: collection,
		now:        time.Now,
	}, nil
}

// StoreObservation validates, persists, embeds, and indexes an observation,
// returning its id.
func (s *MemoryService) StoreObservation(ctx context.Context, obs *memory.Observation) (string, error) {
	if strings.TrimSpace(obs.Content) == "" {
		return "", errors.InvalidInput("observation content must not be empty")
	}

	if obs.ID == "" {
		obs.ID = ids.NewID()
	}
	if obs.ContentHash == "" {
		obs.ContentHash = filehash.HashBytes([]byte(obs.Content))
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = s.now()
	}

	embedded, err := s.provider.EmbedBatch(ctx, []string{obs.Content})
	if err != nil {
		return "", err
	}

	vectorIDs, err := s.store.InsertVectors(ctx, s.collection,
		[][]float32{embedded[0].Vector},
		[]vector.Metadata{{
			Content: obs.Content,
			RefID:   obs.ID,
			Extra: map[string]string{
				"session_id": obs.Metadata.SessionID,
				"branch":     obs.Metadata.Branch,
			},
		}})
	if err != nil {
		return "", err
	}
	obs.EmbeddingID = &vectorIDs[0]

	if err := s.repo.StoreObservation(ctx, obs); err != nil {
		return "", err
	}
	return obs.ID, nil
}

// GetObservation loads one observation.
func (s *MemoryService) GetObservation(ctx context.Context, id string) (*memory.Observation, error) {
	return s.repo.GetObservation(ctx, id)
}

// Search runs a hybrid query over the stored observations.
func (s *MemoryService) Search(ctx context.Context, query string, filter memory.Filter, k int) ([]search.Result, error) {
	return s.engine.Search(ctx, query, filter, k)
}

// StoreSessionSummary persists a session summary, assigning ids and
// timestamps when unset.
func (s *MemoryService) StoreSessionSummary(ctx context.Context, summary *memory.SessionSummary) (string, error) {
	if summary.ID == "" {
		summary.ID = ids.NewID()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now()
	}
	if err := s.repo.StoreSessionSummary(ctx, summary); err != nil {
		return "", err
	}
	return summary.ID, nil
}

// GetSessionSummary loads the latest summary for a session.
func (s *MemoryService) GetSessionSummary(ctx context.Context, sessionID string) (*memory.SessionSummary, error) {
	return s.repo.GetSessionSummary(ctx, sessionID)
}
