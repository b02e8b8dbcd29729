package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/wearables"
	"golang.org/x/sync/errgroup"
)

// ProfileReader loads a patient profile. Unknown patients yield the empty
// profile, not an error.
type ProfileReader interface {
	PatientProfile(ctx context.Context, patientID string) (*models.PatientProfile, error)
}

// WearableReader loads raw wearable readings for a patient.
type WearableReader interface {
	WearableMetrics(ctx context.Context, patientID string) ([]models.WearableMetric, error)
}

// LiteratureSearcher returns papers ordered by descending relevance.
type LiteratureSearcher interface {
	SearchPapers(ctx context.Context, query string, topK int) ([]models.Paper, error)
}

// Gathered is the result of the parallel fetch.
type Gathered struct {
	Profile   *models.PatientProfile
	Wearables models.WearableSummary
	Papers    []models.Paper
	// Warnings lists collaborators that failed and were replaced by empty blocks.
	Warnings []string
}

// Gatherer fetches the independent evidence sources concurrently.
type Gatherer struct {
	profiles   ProfileReader
	wearables  WearableReader
	literature LiteratureSearcher
	logger     *slog.Logger
}

// NewGatherer creates a gatherer. Any collaborator may be nil; its block is
// then left empty.
func NewGatherer(profiles ProfileReader, wear WearableReader, lit LiteratureSearcher, logger *slog.Logger) *Gatherer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatherer{profiles: profiles, wearables: wear, literature: lit, logger: logger}
}

// Gather runs profile read, wearable read and literature search in parallel.
// Collaborator errors degrade to empty blocks; only cancellation of ctx is
// returned as an error.
func (g *Gatherer) Gather(ctx context.Context, patientID, question string, topK int) (*Gathered, error) {
	out := &Gathered{
		Profile:   models.EmptyProfile(patientID),
		Wearables: models.WearableSummary{Metrics: []models.MetricSummary{}},
		Papers:    []models.Paper{},
	}

	var mu sync.Mutex
	warn := func(source string, err error) {
		g.logger.Warn("evidence source failed", "source", source, "patient_id", patientID, "error", err)
		mu.Lock()
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s unavailable: %v", source, err))
		mu.Unlock()
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if g.profiles != nil {
		eg.Go(func() error {
			p, err := g.profiles.PatientProfile(egCtx, patientID)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				warn("patient profile", err)
				return nil
			}
			if p != nil {
				out.Profile = p
			}
			return nil
		})
	}

	if g.wearables != nil {
		eg.Go(func() error {
			metrics, err := g.wearables.WearableMetrics(egCtx, patientID)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				warn("wearables", err)
				return nil
			}
			out.Wearables = wearables.SummarizeAll(metrics)
			return nil
		})
	}

	if g.literature != nil && question != "" {
		eg.Go(func() error {
			papers, err := g.literature.SearchPapers(egCtx, question, topK)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				warn("literature search", err)
				return nil
			}
			if papers != nil {
				out.Papers = papers
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("gather evidence: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gather evidence: %w", err)
	}

	g.logger.Debug("evidence gathered",
		"patient_id", patientID,
		"metrics", len(out.Wearables.Metrics),
		"papers", len(out.Papers),
		"warnings", len(out.Warnings))
	return out, nil
}
