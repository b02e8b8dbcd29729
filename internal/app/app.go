// Package app is the dependency root shared by the CLI and the server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/healthrag/internal/config"
	"github.com/raphaelgruber/healthrag/internal/db"
	"github.com/raphaelgruber/healthrag/internal/drugs"
	"github.com/raphaelgruber/healthrag/internal/evidence"
	"github.com/raphaelgruber/healthrag/internal/llm"
	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/raphaelgruber/healthrag/internal/parser"
	"github.com/raphaelgruber/healthrag/internal/service"
)

// App holds the store connection and, once LoadModels has run, every service.
type App struct {
	Config  config.Config
	DB      *db.Client
	Metrics *metrics.Collector

	Embedder *llm.Embedder
	Ask      *service.AskService
	Intent   *service.IntentService
	Ingest   *service.IngestService
	Jobs     *service.JobManager

	logger *slog.Logger
}

// Open connects to the database and initializes the schema. Model-backed
// services are created by LoadModels so that store-only commands need no LLM.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := dbClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
		_ = dbClient.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &App{
		Config:  cfg,
		DB:      dbClient,
		Metrics: metrics.NewCollector(),
		logger:  logger,
	}, nil
}

// Start opens the store and loads the models. If loading fails the store
// connection is closed before the error is returned.
func Start(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.LoadModels(ctx); err != nil {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.logger.Warn("close database after failed start", "error", cerr)
		}
		return nil, fmt.Errorf("load models: %w", err)
	}
	return a, nil
}

// LoadModels creates the embedder, the generator and the services built on
// them. Calling it again is a no-op.
func (a *App) LoadModels(ctx context.Context) error {
	if a.Ask != nil {
		return nil
	}
	cfg := a.Config

	embedder, err := llm.NewEmbedder(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	gen, err := llm.NewGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}

	rules, err := drugs.LoadRules(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("load drug rules: %w", err)
	}

	index := db.NewPaperIndex(a.DB, embedder)
	gatherer := evidence.NewGatherer(a.DB, a.DB, index, a.logger)
	engine := drugs.NewEngine(rules, a.DB, a.logger)
	answerer := llm.NewAnswerer(gen, cfg.LLMTimeout, cfg.LLMMaxPromptChars, a.logger)

	a.Embedder = embedder
	a.Ask = service.NewAskService(service.AskDeps{
		Writer:   a.DB,
		Gatherer: gatherer,
		Drugs:    engine,
		Answerer: answerer,
	}, cfg.TopK, cfg.MaxPromptChars, a.Metrics, a.logger)
	a.Intent = service.NewIntentService(gen, a.DB, a.logger)
	a.Ingest = service.NewIngestService(a.DB, embedder, llm.NewEntityTagger(gen), a.Metrics, a.logger)
	a.Jobs = service.NewJobManager(a.Ingest, cfg.IngestConcurrency, a.logger)

	a.logger.Info("models loaded",
		"llm_provider", cfg.LLMProvider, "llm_model", cfg.LLMModel,
		"embed_provider", cfg.EmbedProvider, "embed_model", embedder.Model())
	return nil
}

// IngestOptions returns ingestion defaults from configuration.
func (a *App) IngestOptions() service.IngestOptions {
	return service.IngestOptions{
		Chunk: parser.ChunkConfig{
			Size:           a.Config.ChunkSize,
			Overlap:        a.Config.ChunkOverlap,
			MinSectionSize: parser.DefaultChunkConfig().MinSectionSize,
		},
		BatchSize:     a.Config.BatchSize,
		Concurrency:   a.Config.IngestConcurrency,
		MinTextLength: service.DefaultMinTextLength,
	}
}

// Close closes all connections.
func (a *App) Close(ctx context.Context) error {
	if a.DB != nil {
		return a.DB.Close(ctx)
	}
	return nil
}
