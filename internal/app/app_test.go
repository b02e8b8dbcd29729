package app

import (
	"context"
	"testing"

	"github.com/raphaelgruber/healthrag/internal/config"
	"github.com/raphaelgruber/healthrag/internal/parser"
	"github.com/raphaelgruber/healthrag/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestOptions(t *testing.T) {
	a := &App{Config: config.Config{
		ChunkSize:         800,
		ChunkOverlap:      80,
		BatchSize:         32,
		IngestConcurrency: 2,
	}}

	opts := a.IngestOptions()
	assert.Equal(t, 800, opts.Chunk.Size)
	assert.Equal(t, 80, opts.Chunk.Overlap)
	assert.Equal(t, parser.DefaultChunkConfig().MinSectionSize, opts.Chunk.MinSectionSize)
	assert.Equal(t, 32, opts.BatchSize)
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, service.DefaultMinTextLength, opts.MinTextLength)
	assert.False(t, opts.DryRun)
}

func TestLoadModels_UnsupportedProvider(t *testing.T) {
	a := &App{Config: config.Config{EmbedProvider: "carrier-pigeon"}}

	err := a.LoadModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init embedder")
	assert.Nil(t, a.Ask)
}

func TestClose_NoDatabase(t *testing.T) {
	assert.NoError(t, (&App{}).Close(context.Background()))
}
