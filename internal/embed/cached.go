package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/marlonsc/mcb/internal/ids"
)

// DefaultCacheSize is the default number of embeddings to cache.
const DefaultCacheSize = 1000

// CachedProvider wraps a Provider with LRU caching to avoid redundant
// embedding computations for repeated texts (queries especially).
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, ids.Embedding]
}

// NewCachedProvider creates a cached provider wrapping inner.
func NewCachedProvider(inner Provider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, ids.Embedding](cacheSize)
	return &CachedProvider{
		inner: inner,
		cache: cache,
	}
}

// cacheKey hashes the text together with the provider name so switching
// providers never serves stale vectors.
func (c *CachedProvider) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ProviderName()
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// EmbedBatch serves cached embeddings and forwards only the misses,
// preserving input order.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([]ids.Embedding, error) {
	out := make([]ids.Embedding, len(texts))
	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) > 0 {
		computed, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range computed {
			idx := missIndexes[j]
			out[idx] = vec
			c.cache.Add(c.cacheKey(texts[idx]), vec)
		}
	}

	return out, nil
}

// Dimensions returns the inner provider's dimension.
func (c *CachedProvider) Dimensions() int {
	return c.inner.Dimensions()
}

// ProviderName returns the inner provider's identifier.
func (c *CachedProvider) ProviderName() string {
	return c.inner.ProviderName()
}
