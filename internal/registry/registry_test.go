package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonsc/mcb/internal/config"
	"github.com/marlonsc/mcb/internal/memory"
)

func TestBuildFromDefaults(t *testing.T) {
	cfg := config.Default()

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Memory)
	assert.NotNil(t, c.Agent)
	assert.NotNil(t, c.Plans)
	assert.NotNil(t, c.Projects)
	assert.NotNil(t, c.Workflow)
	assert.NotNil(t, c.Pipeline)
	assert.Equal(t, "static", c.EmbedProvider.ProviderName())
}

func TestBuildWiresWorkingServices(t *testing.T) {
	c, err := Build(context.Background(), config.Default())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	// Memory round-trips through the built graph.
	id, err := c.Memory.StoreObservation(ctx, &memory.Observation{
		ProjectID: "p-1",
		Content:   "registry wiring works end to end",
		Type:      memory.ObservationContext,
	})
	require.NoError(t, err)

	results, err := c.Memory.Search(ctx, "wiring", memory.Filter{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].Observation.ID)

	// The workflow orchestrator is live.
	s, err := c.Workflow.CreateSession(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), s.Version)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Search.Alpha = 2.0

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildOllamaProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Model = "nomic-embed-text"
	cfg.Embedding.CacheSize = 0

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.Contains(t, c.EmbedProvider.ProviderName(), "ollama")
}
