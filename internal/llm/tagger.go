package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
)

const taggerSystem = `You are a biomedical named-entity tagger. Extract entities from the given text.

Labels: drug, medical condition, biomarker, symptom

Output format (one per line):
ENTITY|name|label

Guidelines:
- Use the surface form from the text in lowercase
- Only use the labels listed above
- Output nothing else`

// EntityTagger tags paper text with drugs, conditions, biomarkers and symptoms.
type EntityTagger struct {
	gen Generator
}

// NewEntityTagger creates a tagger on top of gen.
func NewEntityTagger(gen Generator) *EntityTagger {
	return &EntityTagger{gen: gen}
}

// Tag extracts entities from text. Any failure yields an empty block.
func (t *EntityTagger) Tag(ctx context.Context, text string) models.EntityBlock {
	if strings.TrimSpace(text) == "" {
		return models.EmptyEntityBlock()
	}
	out, _, err := t.gen.Generate(ctx, taggerSystem, fmt.Sprintf("Text:\n%s\n\nEntities:", text))
	if err != nil {
		return models.EmptyEntityBlock()
	}
	return ParseEntities(out)
}

// ParseEntities reads ENTITY|name|label lines. Unknown labels and duplicates
// are dropped; names are lowercased.
func ParseEntities(output string) models.EntityBlock {
	block := models.EmptyEntityBlock()
	seen := map[string]bool{}

	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(strings.TrimSpace(line), "|")
		if len(parts) != 3 || strings.TrimSpace(parts[0]) != "ENTITY" {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[1]))
		label := strings.ToLower(strings.TrimSpace(parts[2]))
		if name == "" || seen[label+"|"+name] {
			continue
		}

		switch label {
		case "drug":
			block.Drugs = append(block.Drugs, name)
		case "medical condition", "condition":
			label = "medical condition"
			block.Conditions = append(block.Conditions, name)
		case "biomarker":
			block.Biomarkers = append(block.Biomarkers, name)
		case "symptom":
			block.Symptoms = append(block.Symptoms, name)
		default:
			continue
		}
		seen[label+"|"+name] = true
	}
	return block
}
