package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantLen int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\n\t  ", 0},
		{"short", "Metformin lowers glucose.", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := ChunkText(tt.text, DefaultChunkConfig())
			require.NoError(t, err)
			assert.Len(t, chunks, tt.wantLen)
		})
	}
}

func TestChunkText_RespectsSize(t *testing.T) {
	para := strings.Repeat("Metformin reduces hepatic glucose output. ", 20)
	text := strings.Join([]string{para, para, para}, "\n\n")
	cfg := ChunkConfig{Size: 300, Overlap: 50}

	chunks, err := ChunkText(text, cfg)

	require.NoError(t, err)
	assert.Greater(t, len(chunks), 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), cfg.Size, "chunk %d", i)
		assert.NotEmpty(t, strings.TrimSpace(c), "chunk %d", i)
	}
}

func TestChunkText_InvalidOverlapIgnored(t *testing.T) {
	chunks, err := ChunkText(strings.Repeat("word ", 100), ChunkConfig{Size: 50, Overlap: 80})

	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestChunkPaper_BySections(t *testing.T) {
	doc, err := ParsePaper(`---
pmid: "123"
---
# Metformin and B12

## Abstract

` + strings.Repeat("Long-term metformin use is associated with vitamin B12 deficiency. ", 5) + `

## Funding

None.

## Methods

` + strings.Repeat("We followed a cohort of patients with type 2 diabetes. ", 5))
	require.NoError(t, err)

	chunks, err := ChunkPaper(doc, DefaultChunkConfig())

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "# Metformin and B12 > ## Abstract", chunks[0].HeadingPath)
	assert.Contains(t, chunks[0].Content, "None.", "tiny section merges into previous")
	assert.Equal(t, "# Metformin and B12 > ## Methods", chunks[1].HeadingPath)
	assert.Equal(t, 1, chunks[1].Position)
}

func TestChunkPaper_NoHeadings(t *testing.T) {
	doc, err := ParsePaper("Plain abstract text without headings.")
	require.NoError(t, err)

	chunks, err := ChunkPaper(doc, DefaultChunkConfig())

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Plain abstract text without headings.", chunks[0].Content)
	assert.Empty(t, chunks[0].HeadingPath)
}

func TestChunkBySections_SkipsEmptySections(t *testing.T) {
	sections := []Section{
		{Path: "Empty", Content: ""},
		{Path: "Whitespace", Content: "   \n\t  "},
		{Path: "Real", Content: "Actual content."},
	}

	chunks, err := chunkBySections(sections, DefaultChunkConfig())

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Real", chunks[0].HeadingPath)
}

func TestChunkBySections_AllEmpty(t *testing.T) {
	chunks, err := chunkBySections([]Section{{Path: "Empty"}}, DefaultChunkConfig())

	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}
