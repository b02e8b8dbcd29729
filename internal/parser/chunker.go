package parser

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkResult represents a chunk of content.
type ChunkResult struct {
	Content     string
	Position    int
	HeadingPath string // Section context
}

// ChunkConfig defines chunking parameters. Sizes are in characters.
type ChunkConfig struct {
	// Size is the maximum chunk size.
	Size int
	// Overlap is the character overlap between adjacent chunks.
	Overlap int
	// MinSectionSize: smaller sections merge with their predecessor.
	MinSectionSize int
}

// DefaultChunkConfig returns the ingestion defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:           1000,
		Overlap:        100,
		MinSectionSize: 200,
	}
}

// separators are tried in order: paragraphs, lines, sentences, words.
var separators = []string{"\n\n", "\n", ".", " ", ""}

func (c ChunkConfig) splitter() textsplitter.RecursiveCharacter {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkConfig().Size
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separators),
	)
}

// ChunkText splits plain text into overlapping chunks. Blank input yields no
// chunks.
func ChunkText(text string, config ChunkConfig) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	parts, err := config.splitter().SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// ChunkPaper splits a paper into chunks. Documents with headings are chunked
// section by section so each chunk keeps its heading path; otherwise the
// whole body is split.
func ChunkPaper(doc *PaperDoc, config ChunkConfig) ([]ChunkResult, error) {
	if len(doc.Sections) == 0 {
		texts, err := ChunkText(doc.PlainText(), config)
		if err != nil {
			return nil, err
		}
		chunks := make([]ChunkResult, len(texts))
		for i, t := range texts {
			chunks[i] = ChunkResult{Content: t, Position: i}
		}
		return chunks, nil
	}
	return chunkBySections(doc.Sections, config)
}

// chunkBySections creates chunks from document sections.
func chunkBySections(sections []Section, config ChunkConfig) ([]ChunkResult, error) {
	var chunks []ChunkResult
	position := 0

	for _, section := range sections {
		content := strings.TrimSpace(section.Content)
		if content == "" {
			continue
		}

		// Merge tiny section with previous
		if len(content) < config.MinSectionSize && len(chunks) > 0 {
			last := &chunks[len(chunks)-1]
			if len(last.Content)+len(content)+2 <= config.Size {
				last.Content += "\n\n" + content
				continue
			}
		}

		texts, err := ChunkText(content, config)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", section.Heading, err)
		}
		for _, t := range texts {
			chunks = append(chunks, ChunkResult{
				Content:     t,
				Position:    position,
				HeadingPath: section.Path,
			})
			position++
		}
	}

	if chunks == nil {
		chunks = []ChunkResult{}
	}
	return chunks, nil
}
