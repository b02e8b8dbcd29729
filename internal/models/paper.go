package models

import "time"

// PaperSchemaVersion is stamped on every stored paper chunk.
const PaperSchemaVersion = "1.0"

// EntityBlock groups tagged entities by label.
type EntityBlock struct {
	Drugs      []string `json:"drugs"`
	Conditions []string `json:"conditions"`
	Biomarkers []string `json:"biomarkers"`
	Symptoms   []string `json:"symptoms"`
}

// EmptyEntityBlock returns a block with all lists allocated.
func EmptyEntityBlock() EntityBlock {
	return EntityBlock{
		Drugs:      []string{},
		Conditions: []string{},
		Biomarkers: []string{},
		Symptoms:   []string{},
	}
}

// Paper is a literature search hit.
type Paper struct {
	Score       float64     `json:"score"`
	PMID        string      `json:"pmid"`
	Title       string      `json:"title"`
	Journal     string      `json:"journal"`
	Year        int         `json:"year"`
	Section     string      `json:"section,omitempty"`
	TextPreview string      `json:"text_preview"`
	Entities    EntityBlock `json:"entities"`
}

// PaperChunk is a stored, embedded piece of a paper.
type PaperChunk struct {
	ChunkID       string      `json:"chunk_id"`
	SchemaVersion string      `json:"schema_version"`
	Source        string      `json:"source"`
	RetrievedAt   time.Time   `json:"retrieved_at"`
	PMID          string      `json:"pmid"`
	Title         string      `json:"title"`
	Journal       string      `json:"journal"`
	Year          int         `json:"year"`
	Authors       []string    `json:"authors"`
	Section       string      `json:"section"`
	ChunkIndex    int         `json:"chunk_index"`
	APIQuery      string      `json:"api_query"`
	Text          string      `json:"text"`
	Entities      EntityBlock `json:"entities"`
	Embedding     []float32   `json:"embedding"`
}
