package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/marlonsc/mcb/internal/ids"
)

// StaticProvider generates embeddings using a hash-based approach.
// Works without external dependencies (no network, no model download).
// Deterministic and fast, with reduced semantic quality.
type StaticProvider struct{}

// StaticModelName identifies the static provider's "model".
const StaticModelName = "static-256"

// programmingStopWords contains common programming keywords to filter out.
var programmingStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

// Weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var staticTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticProvider creates a new static embedding provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// EmbedBatch generates embeddings for multiple texts, preserving order.
func (p *StaticProvider) EmbedBatch(ctx context.Context, texts []string) ([]ids.Embedding, error) {
	out := make([]ids.Embedding, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = ids.Embedding{
			Vector:     p.embed(text),
			Model:      StaticModelName,
			Dimensions: StaticDimensions,
		}
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (p *StaticProvider) Dimensions() int {
	return StaticDimensions
}

// ProviderName returns the provider identifier.
func (p *StaticProvider) ProviderName() string {
	return "static"
}

func (p *StaticProvider) embed(text string) []float32 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions)
	}

	vector := make([]float32, StaticDimensions)

	tokens := tokenize(trimmed)
	for _, token := range tokens {
		if programmingStopWords[token] {
			continue
		}
		vector[hashToIndex(token)] += tokenWeight
	}

	normalized := strings.ToLower(trimmed)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram)] += ngramWeight
	}

	return normalizeVector(vector)
}

func tokenize(text string) []string {
	words := staticTokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

func extractNgrams(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i <= len(runes)-n; i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(StaticDimensions))
}
