package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/parser"
)

// DefaultMinTextLength is the shortest paper body worth indexing.
const DefaultMinTextLength = 200

// Fallback citation fields for papers missing frontmatter.
const (
	defaultSource  = "pubmed"
	defaultJournal = "Unknown"
	defaultSection = "Full Text"
	defaultTitle   = "No Title"
)

// ChunkStore persists embedded paper chunks.
type ChunkStore interface {
	UpsertPaperChunks(ctx context.Context, chunks []models.PaperChunk, batchSize int) (int, error)
}

// DocumentEmbedder embeds a batch of texts.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityTagger tags chunk text with biomedical entities.
type EntityTagger interface {
	Tag(ctx context.Context, text string) models.EntityBlock
}

// IngestService indexes paper documents for literature search.
type IngestService struct {
	store    ChunkStore
	embedder DocumentEmbedder
	tagger   EntityTagger
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewIngestService creates a new ingest service. tagger may be nil.
func NewIngestService(store ChunkStore, embedder DocumentEmbedder, tagger EntityTagger, collector *metrics.Collector, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{store: store, embedder: embedder, tagger: tagger, metrics: collector, logger: logger}
}

// IngestOptions configures paper ingestion.
type IngestOptions struct {
	Chunk parser.ChunkConfig
	// BatchSize bounds texts per embedding call and records per upsert.
	BatchSize int
	// TagEntities runs the LLM entity tagger on every chunk.
	TagEntities bool
	// Recursive processes subdirectories
	Recursive bool
	// Concurrency sets number of parallel workers (default 4)
	Concurrency int
	// DryRun parses and chunks without embedding or writing.
	DryRun bool
	// MinTextLength skips shorter documents (default 200).
	MinTextLength int
	// Progress is called after each file. Calls are serialized.
	Progress func(IngestProgress)
}

// IngestProgress reports one finished file.
type IngestProgress struct {
	File    string
	Done    int
	Total   int
	Chunks  int
	Skipped bool
	Err     error
}

// IngestResult summarizes an ingestion operation.
type IngestResult struct {
	FilesProcessed int      `json:"files_processed"`
	FilesSkipped   int      `json:"files_skipped"`
	ChunksCreated  int      `json:"chunks_created"`
	Errors         []string `json:"errors,omitempty"`
}

// CollectFiles expands paths into Markdown files. Directories are walked,
// files are taken as given.
func (s *IngestService) CollectFiles(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}

		walkFn := func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && !recursive && path != root {
				return filepath.SkipDir
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !d.IsDir() && (ext == ".md" || ext == ".markdown") {
				files = append(files, path)
			}
			return nil
		}
		if err := filepath.WalkDir(root, walkFn); err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
	}
	return files, nil
}

// IngestPaths ingests every paper under paths. Per-file errors are collected
// in the result; only a cancelled ctx or an unreadable path aborts.
func (s *IngestService) IngestPaths(ctx context.Context, paths []string, opts IngestOptions) (*IngestResult, error) {
	files, err := s.CollectFiles(paths, opts.Recursive)
	if err != nil {
		return nil, err
	}
	return s.processFiles(ctx, files, opts)
}

func (s *IngestService) processFiles(ctx context.Context, files []string, opts IngestOptions) (*IngestResult, error) {
	if len(files) == 0 {
		return &IngestResult{}, nil
	}
	defer s.metrics.Time(metrics.OpIngest)()

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	s.logger.Info("starting paper ingestion", "files", len(files), "concurrency", concurrency, "dry_run", opts.DryRun)

	var (
		filesDone      atomic.Int32
		filesProcessed atomic.Int32
		filesSkipped   atomic.Int32
		chunksCreated  atomic.Int32
		mu             sync.Mutex
		errs           []string
	)

	workChan := make(chan string, len(files))
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for file := range workChan {
				if ctx.Err() != nil {
					return
				}

				n, skipped, err := s.IngestFile(ctx, file, opts)
				done := filesDone.Add(1)
				switch {
				case err != nil:
					s.metrics.RecordError(metrics.OpIngest)
					s.logger.Warn("paper ingestion failed", "worker", workerID, "file", filepath.Base(file), "error", err)
				case skipped:
					filesSkipped.Add(1)
				default:
					filesProcessed.Add(1)
					chunksCreated.Add(int32(n))
					s.logger.Info("paper ingested", "worker", workerID, "file", filepath.Base(file), "chunks", n, "progress", fmt.Sprintf("%d/%d", done, len(files)))
				}

				mu.Lock()
				if err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", file, err))
				}
				if opts.Progress != nil {
					opts.Progress(IngestProgress{File: file, Done: int(done), Total: len(files), Chunks: n, Skipped: skipped, Err: err})
				}
				mu.Unlock()
			}
		}(i)
	}

	for _, f := range files {
		workChan <- f
	}
	close(workChan)
	wg.Wait()

	result := &IngestResult{
		FilesProcessed: int(filesProcessed.Load()),
		FilesSkipped:   int(filesSkipped.Load()),
		ChunksCreated:  int(chunksCreated.Load()),
		Errors:         errs,
	}
	s.logger.Info("paper ingestion complete", "processed", result.FilesProcessed, "skipped", result.FilesSkipped, "chunks", result.ChunksCreated, "errors", len(errs))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("ingest: %w", err)
	}
	return result, nil
}

// IngestFile ingests one paper file. It reports skipped=true for documents
// shorter than the minimum length.
func (s *IngestService) IngestFile(ctx context.Context, path string, opts IngestOptions) (int, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("read file: %w", err)
	}

	chunks, err := s.BuildChunks(ctx, path, string(content), opts)
	if err != nil {
		return 0, false, err
	}
	if chunks == nil {
		return 0, true, nil
	}
	if opts.DryRun {
		return len(chunks), false, nil
	}

	n, err := s.store.UpsertPaperChunks(ctx, chunks, opts.BatchSize)
	if err != nil {
		return n, false, fmt.Errorf("store chunks: %w", err)
	}
	return n, false, nil
}

// BuildChunks parses, chunks, tags and embeds one paper. A nil slice means the
// document was too short to index. Embeddings are skipped in dry-run mode.
func (s *IngestService) BuildChunks(ctx context.Context, path, content string, opts IngestOptions) ([]models.PaperChunk, error) {
	doc, err := parser.ParsePaper(content)
	if err != nil {
		return nil, err
	}

	minLen := opts.MinTextLength
	if minLen <= 0 {
		minLen = DefaultMinTextLength
	}
	if len([]rune(doc.PlainText())) < minLen {
		s.logger.Debug("skipping short paper", "file", filepath.Base(path))
		return nil, nil
	}

	cfg := opts.Chunk
	if cfg.Size <= 0 {
		cfg = parser.DefaultChunkConfig()
	}
	pieces, err := parser.ChunkPaper(doc, cfg)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	if len(pieces) == 0 {
		return nil, nil
	}

	meta := paperMeta(path, doc)
	retrieved := time.Now().UTC()
	chunks := make([]models.PaperChunk, len(pieces))
	for i, p := range pieces {
		section := meta.Section
		if section == "" {
			section = lastHeading(p.HeadingPath)
		}
		if section == "" {
			section = defaultSection
		}
		chunks[i] = models.PaperChunk{
			ChunkID:       fmt.Sprintf("%s_%d", meta.PMID, i),
			SchemaVersion: models.PaperSchemaVersion,
			Source:        meta.Source,
			RetrievedAt:   retrieved,
			PMID:          meta.PMID,
			Title:         meta.Title,
			Journal:       meta.Journal,
			Year:          meta.Year,
			Authors:       meta.Authors,
			Section:       section,
			ChunkIndex:    i,
			APIQuery:      meta.Query,
			Text:          p.Content,
			Entities:      models.EmptyEntityBlock(),
		}
		if opts.TagEntities && s.tagger != nil {
			chunks[i].Entities = s.tagger.Tag(ctx, p.Content)
		}
	}

	if opts.DryRun {
		return chunks, nil
	}
	if err := s.embedChunks(ctx, chunks, opts.BatchSize); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *IngestService) embedChunks(ctx context.Context, chunks []models.PaperChunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 64
	}
	defer s.metrics.Time(metrics.OpEmbedding)()

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(texts))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// paperMeta fills citation defaults. A missing PMID falls back to the file name.
func paperMeta(path string, doc *parser.PaperDoc) parser.PaperMeta {
	m := doc.Meta
	if m.PMID == "" {
		m.PMID = models.Slugify(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	m.Title = doc.Title
	if m.Title == "" {
		m.Title = defaultTitle
	}
	if m.Journal == "" {
		m.Journal = defaultJournal
	}
	if m.Source == "" {
		m.Source = defaultSource
	}
	if m.Authors == nil {
		m.Authors = []string{}
	}
	return m
}

// lastHeading returns the innermost heading text of a "## A > ### B" path.
func lastHeading(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(path, " > ")
	return strings.TrimSpace(strings.TrimLeft(parts[len(parts)-1], "#"))
}
