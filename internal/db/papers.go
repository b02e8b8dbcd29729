package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// PreviewLength bounds Paper.TextPreview.
const PreviewLength = 500

// QueryEmbedder turns a search query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type paperRow struct {
	Score    float64            `json:"score"`
	PMID     string             `json:"pmid"`
	Title    string             `json:"title"`
	Journal  *string            `json:"journal"`
	Year     *int               `json:"year"`
	Section  *string            `json:"section"`
	Text     string             `json:"text"`
	Entities models.EntityBlock `json:"entities"`
}

// PaperIndex searches paper chunks by embedding similarity.
type PaperIndex struct {
	client   *Client
	embedder QueryEmbedder
}

// NewPaperIndex binds the store to the embedder used at ingestion time.
func NewPaperIndex(client *Client, embedder QueryEmbedder) *PaperIndex {
	return &PaperIndex{client: client, embedder: embedder}
}

// SearchPapers embeds query and returns the topK nearest chunks, most
// relevant first. Without an embedder it falls back to full-text search.
func (p *PaperIndex) SearchPapers(ctx context.Context, query string, topK int) ([]models.Paper, error) {
	if topK <= 0 {
		topK = 5
	}
	if p.embedder == nil {
		return p.client.SearchPapersByText(ctx, query, topK)
	}
	emb, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return p.client.SearchPapersByVector(ctx, emb, topK)
}

// SearchPapersByVector runs an HNSW KNN search. The KNN depth must be a
// literal, so it is formatted into the query.
func (c *Client) SearchPapersByVector(ctx context.Context, embedding []float32, topK int) ([]models.Paper, error) {
	sql := fmt.Sprintf(`
		SELECT pmid, title, journal, year, section, text, entities,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM paper_chunk
		WHERE embedding <|%d,40|> $emb
		ORDER BY score DESC
		LIMIT $limit
	`, topK)

	rows, err := queryRows[paperRow](ctx, c, sql, map[string]any{"emb": embedding, "limit": topK})
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}

	papers := make([]models.Paper, 0, len(rows))
	for _, r := range rows {
		papers = append(papers, r.toPaper())
	}
	return papers, nil
}

// SearchPapersByText runs a BM25 full-text search over chunk text.
func (c *Client) SearchPapersByText(ctx context.Context, query string, topK int) ([]models.Paper, error) {
	rows, err := queryRows[paperRow](ctx, c, `
		SELECT pmid, title, journal, year, section, text, entities,
			search::score(0) AS score
		FROM paper_chunk
		WHERE text @0@ $q
		ORDER BY score DESC
		LIMIT $limit
	`, map[string]any{"q": query, "limit": topK})
	if err != nil {
		return nil, fmt.Errorf("search papers by text: %w", err)
	}

	papers := make([]models.Paper, 0, len(rows))
	for _, r := range rows {
		papers = append(papers, r.toPaper())
	}
	return papers, nil
}

func (r paperRow) toPaper() models.Paper {
	p := models.Paper{
		Score:       r.Score,
		PMID:        r.PMID,
		Title:       r.Title,
		Journal:     deref(r.Journal),
		Section:     deref(r.Section),
		TextPreview: preview(r.Text, PreviewLength),
		Entities:    r.Entities,
	}
	if r.Year != nil {
		p.Year = *r.Year
	}
	return p
}

// UpsertPaperChunks writes chunks keyed by ChunkID, batchSize records per
// query. Re-ingesting a paper overwrites its chunks.
func (c *Client) UpsertPaperChunks(ctx context.Context, chunks []models.PaperChunk, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 64
	}

	written := 0
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		records := make([]map[string]any, 0, end-start)
		for _, ch := range chunks[start:end] {
			retrieved := ch.RetrievedAt
			if retrieved.IsZero() {
				retrieved = time.Now().UTC()
			}
			version := ch.SchemaVersion
			if version == "" {
				version = models.PaperSchemaVersion
			}
			authors := ch.Authors
			if authors == nil {
				authors = []string{}
			}
			rec := map[string]any{
				"key":            ch.ChunkID,
				"schema_version": version,
				"source":         ch.Source,
				"retrieved_at":   retrieved,
				"pmid":           ch.PMID,
				"title":          ch.Title,
				"journal":        optional(ch.Journal),
				"authors":        authors,
				"section":        optional(ch.Section),
				"chunk_index":    ch.ChunkIndex,
				"api_query":      optional(ch.APIQuery),
				"text":           ch.Text,
				"entities":       ch.Entities,
				"embedding":      ch.Embedding,
			}
			if ch.Year > 0 {
				rec["year"] = ch.Year
			}
			records = append(records, rec)
		}

		_, err := surrealdb.Query[any](ctx, c.db, `
			FOR $r IN $records {
				UPSERT type::record("paper_chunk", $r.key) CONTENT {
					schema_version: $r.schema_version,
					source: $r.source,
					retrieved_at: $r.retrieved_at,
					pmid: $r.pmid,
					title: $r.title,
					journal: $r.journal,
					year: $r.year,
					authors: $r.authors,
					section: $r.section,
					chunk_index: $r.chunk_index,
					api_query: $r.api_query,
					text: $r.text,
					entities: $r.entities,
					embedding: $r.embedding
				};
			};
		`, map[string]any{"records": records})
		if err != nil {
			return written, fmt.Errorf("upsert paper chunks %d-%d: %w", start, end, wrapQueryError(err))
		}
		written += end - start
	}
	return written, nil
}

// Stats counts stored records by kind.
type Stats struct {
	Patients    int `json:"patients"`
	PaperChunks int `json:"paper_chunks"`
	Papers      int `json:"papers"`
}

// CountStats returns store-wide record counts.
func (c *Client) CountStats(ctx context.Context) (*Stats, error) {
	type countRow struct {
		Count int `json:"count"`
	}
	count := func(sql string) (int, error) {
		rows, err := queryRows[countRow](ctx, c, sql, nil)
		if err != nil || len(rows) == 0 {
			return 0, err
		}
		return rows[0].Count, nil
	}

	var s Stats
	var err error
	if s.Patients, err = count(`SELECT count() AS count FROM patient GROUP ALL`); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if s.PaperChunks, err = count(`SELECT count() AS count FROM paper_chunk GROUP ALL`); err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if s.Papers, err = count(`SELECT count() AS count FROM (SELECT pmid FROM paper_chunk GROUP BY pmid) GROUP ALL`); err != nil {
		return nil, fmt.Errorf("count papers: %w", err)
	}
	return &s, nil
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
