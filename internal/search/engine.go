// Package search combines full-text and vector retrieval over observations
// into one ranked result list.
package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marlonsc/mcb/internal/embed"
	"github.com/marlonsc/mcb/internal/events"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/memory"
	"github.com/marlonsc/mcb/internal/vector"
)

// DefaultAlpha weights the vector leg in score fusion.
const DefaultAlpha = 0.5

// Result is one hybrid search hit.
type Result struct {
	Observation memory.Observation
	// Score is the combined score: alpha*vector + (1-alpha)*fts, both legs
	// normalized to [0,1].
	Score float64
	// VectorScore and FTSScore are the normalized per-leg scores; zero when
	// the leg did not return the observation.
	VectorScore float64
	FTSScore    float64
}

// ObservationReader is the slice of the memory repository the engine needs.
type ObservationReader interface {
	SearchText(ctx context.Context, query string, filter memory.Filter, k int) ([]memory.ScoredObservation, error)
	GetObservation(ctx context.Context, id string) (*memory.Observation, error)
}

// Engine implements hybrid search over one observation collection.
type Engine struct {
	provider   embed.Provider
	store      vector.Provider
	memory     ObservationReader
	publisher  events.Publisher
	collection ids.CollectionID
	alpha      float64
}

// Options configures the engine.
type Options struct {
	// Alpha weights the vector leg; zero means DefaultAlpha.
	Alpha float64
	// Publisher receives SearchExecuted events; nil disables publishing.
	Publisher events.Publisher
}

// NewEngine creates a hybrid engine over one observation collection.
func NewEngine(provider embed.Provider, store vector.Provider, mem ObservationReader, collection ids.CollectionID, opts Options) *Engine {
	alpha := opts.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		provider:   provider,
		store:      store,
		memory:     mem,
		publisher:  publisher,
		collection: collection,
		alpha:      alpha,
	}
}

// Search runs both legs, unions the result sets by observation id,
// normalizes per-leg scores, combines, filters, and returns the top k
// sorted by combined score descending with deterministic tie-breaking.
func (e *Engine) Search(ctx context.Context, query string, filter memory.Filter, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}
	start := time.Now()

	var (
		vecResults []ids.SearchResult
		ftsResults []memory.ScoredObservation
	)

	// The legs are independent; run them concurrently. The vector leg
	// embeds the query first.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		embedded, err := e.provider.EmbedBatch(gctx, []string{query})
		if err != nil {
			return err
		}
		vecResults, err = e.store.SearchSimilar(gctx, e.collection, embedded[0].Vector, k, nil)
		return err
	})
	g.Go(func() error {
		var err error
		ftsResults, err = e.memory.SearchText(gctx, query, filter, k)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := e.merge(ctx, vecResults, ftsResults, filter)

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Observation.CreatedAt.Equal(b.Observation.CreatedAt) {
			return a.Observation.CreatedAt.After(b.Observation.CreatedAt)
		}
		return a.Observation.ID < b.Observation.ID
	})

	if len(merged) > k {
		merged = merged[:k]
	}

	e.publishExecuted(ctx, query, len(merged), time.Since(start))
	return merged, nil
}

// merge unions the legs keyed by observation id, normalizes each leg to
// [0,1], and combines the scores. Filters that were not pushed down to the
// FTS leg are applied to vector-only hits here.
func (e *Engine) merge(ctx context.Context, vecResults []ids.SearchResult, ftsResults []memory.ScoredObservation, filter memory.Filter) []Result {
	vecScores := normalizeVec(vecResults)
	ftsScores := normalizeFTS(ftsResults)

	byID := make(map[string]*Result, len(vecResults)+len(ftsResults))

	for _, scored := range ftsResults {
		obs := scored.Observation
		byID[obs.ID] = &Result{
			Observation: obs,
			FTSScore:    ftsScores[obs.ID],
		}
	}

	for _, hit := range vecResults {
		if existing, ok := byID[hit.ID]; ok {
			existing.VectorScore = vecScores[hit.ID]
			continue
		}

		// Vector-only hit: load the observation and apply the residual
		// filter. A stale vector for a deleted observation is skipped.
		obs, err := e.memory.GetObservation(ctx, hit.ID)
		if err != nil {
			continue
		}
		if !observationMatches(*obs, filter) {
			continue
		}
		byID[hit.ID] = &Result{
			Observation: *obs,
			VectorScore: vecScores[hit.ID],
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		r.Score = e.alpha*r.VectorScore + (1-e.alpha)*r.FTSScore
		out = append(out, *r)
	}
	return out
}

// normalizeVec min-max scales the vector leg to [0,1] keyed by result id.
// A degenerate leg (all scores equal) normalizes to 1.
func normalizeVec(results []ids.SearchResult) map[string]float64 {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out
	}

	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	for _, r := range results {
		out[r.ID] = normalize(r.Score, lo, hi)
	}
	return out
}

// normalizeFTS min-max scales the FTS leg to [0,1] keyed by observation id.
func normalizeFTS(results []memory.ScoredObservation) map[string]float64 {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out
	}

	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	for _, r := range results {
		out[r.Observation.ID] = normalize(r.Score, lo, hi)
	}
	return out
}

func normalize(score, lo, hi float64) float64 {
	if hi == lo {
		return 1.0
	}
	return (score - lo) / (hi - lo)
}

func observationMatches(obs memory.Observation, filter memory.Filter) bool {
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

func (e *Engine) publishExecuted(ctx context.Context, query string, results int, elapsed time.Duration) {
	err := e.publisher.Publish(ctx, events.Event{
		Kind: events.KindSearchExecuted,
		SearchExecuted: &events.SearchExecuted{
			Query:      query,
			Collection: e.collection.Name(),
			Results:    results,
			DurationMS: elapsed.Milliseconds(),
		},
	})
	if err != nil {
		slog.Warn("search_event_publish_failed", slog.String("error", err.Error()))
	}
}
