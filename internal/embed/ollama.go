package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
)

// Ollama defaults.
const (
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultOllamaModel   = "nomic-embed-text"
	defaultOllamaTimeout = 60 * time.Second
)

// OllamaProvider generates embeddings via a local Ollama server's
// /api/embed endpoint.
type OllamaProvider struct {
	host       string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOptions configures the Ollama provider.
type OllamaOptions struct {
	Host       string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// NewOllamaProvider creates an Ollama-backed embedding provider.
func NewOllamaProvider(opts OllamaOptions) *OllamaProvider {
	if opts.Host == "" {
		opts.Host = DefaultOllamaHost
	}
	if opts.Model == "" {
		opts.Model = DefaultOllamaModel
	}
	if opts.Dimensions == 0 {
		opts.Dimensions = 768
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultOllamaTimeout
	}

	return &OllamaProvider{
		host:       opts.Host,
		model:      opts.Model,
		dimensions: opts.Dimensions,
		client:     &http.Client{Timeout: opts.Timeout},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch generates embeddings for multiple texts, preserving order.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]ids.Embedding, error) {
	if len(texts) == 0 {
		return []ids.Embedding{}, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, errors.Wrap(errors.CodeEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.CodeEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Backend(errors.CodeEmbeddingFailed, "ollama embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf(errors.CodeEmbeddingFailed, "ollama embed: status %d: %s", resp.StatusCode, data)
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Backend(errors.CodeEmbeddingFailed, "ollama embed decode", err)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, errors.Newf(errors.CodeEmbeddingFailed,
			"ollama embed: got %d embeddings for %d texts", len(parsed.Embeddings), len(texts))
	}

	out := make([]ids.Embedding, len(parsed.Embeddings))
	for i, vec := range parsed.Embeddings {
		if len(vec) != p.dimensions {
			return nil, errors.Newf(errors.CodeEmbeddingFailed,
				"ollama embed: dimension mismatch: got %d, want %d", len(vec), p.dimensions)
		}
		out[i] = ids.Embedding{
			Vector:     normalizeVector(vec),
			Model:      p.model,
			Dimensions: p.dimensions,
		}
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// ProviderName returns the provider identifier.
func (p *OllamaProvider) ProviderName() string {
	return fmt.Sprintf("ollama/%s", p.model)
}
