// Package service wires the answer pipeline, literature ingestion and the
// health-intent flow on top of the store and model collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/healthrag/internal/claims"
	"github.com/raphaelgruber/healthrag/internal/evidence"
	"github.com/raphaelgruber/healthrag/internal/llm"
	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/prompt"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid request")

// Stage names a pipeline step reported to observers.
type Stage string

const (
	StageGather    Stage = "gather"
	StageDrugCheck Stage = "drug_check"
	StageCompile   Stage = "compile"
	StageGenerate  Stage = "generate"
	StageExtract   Stage = "extract_claims"
	StageVerify    Stage = "verify_claims"
	StageDone      Stage = "done"
)

// StageEvent is emitted when a stage starts, and once more with StageDone.
type StageEvent struct {
	RequestID string `json:"request_id"`
	Stage     Stage  `json:"stage"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Observer receives stage events. It is called synchronously from the
// pipeline goroutine and must not block.
type Observer func(StageEvent)

// PatientWriter records that a patient asked a question.
type PatientWriter interface {
	UpsertPatientFromQuestion(ctx context.Context, patientID, question string) error
}

// EvidenceGatherer fetches profile, wearables and papers.
type EvidenceGatherer interface {
	Gather(ctx context.Context, patientID, question string, topK int) (*evidence.Gathered, error)
}

// DrugChecker derives drug facts for a medication list.
type DrugChecker interface {
	Check(ctx context.Context, meds []models.Medication) models.DrugFacts
}

// Answerer turns a prompt into response text without failing.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, llm.Usage)
}

// AskRequest is one question from one patient.
type AskRequest struct {
	PatientID string `json:"patient_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k,omitempty"`
}

// ContextSummary counts what evidence went into an answer.
type ContextSummary struct {
	ConditionsCount    int  `json:"conditions_count"`
	MedsCount          int  `json:"meds_count"`
	LabsCount          int  `json:"labs_count"`
	WearablesAvailable bool `json:"wearables_available"`
	WearablesCount     int  `json:"wearables_count"`
	PapersFound        int  `json:"papers_found"`
	DrugWarningsCount  int  `json:"drug_warnings_count"`
	HasDrugWarnings    bool `json:"has_drug_warnings"`
}

// AskResult is the pipeline output.
type AskResult struct {
	RequestID       string                 `json:"request_id"`
	Response        string                 `json:"response"`
	Claims          []models.VerifiedClaim `json:"claims"`
	Context         ContextSummary         `json:"context"`
	Warnings        []string               `json:"warnings,omitempty"`
	PromptTruncated bool                   `json:"prompt_truncated"`
	Usage           llm.Usage              `json:"usage"`
}

// AskDeps are the collaborators of AskService. Writer may be nil.
type AskDeps struct {
	Writer   PatientWriter
	Gatherer EvidenceGatherer
	Drugs    DrugChecker
	Answerer Answerer
}

// AskService runs the answer pipeline.
type AskService struct {
	deps           AskDeps
	topK           int
	maxPromptChars int
	metrics        *metrics.Collector
	logger         *slog.Logger
}

// NewAskService creates the pipeline. topK is the default literature depth and
// maxPromptChars the prompt budget; non-positive disables truncation.
func NewAskService(deps AskDeps, topK, maxPromptChars int, collector *metrics.Collector, logger *slog.Logger) *AskService {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AskService{
		deps:           deps,
		topK:           topK,
		maxPromptChars: maxPromptChars,
		metrics:        collector,
		logger:         logger,
	}
}

// Ask answers a question. Collaborator failures degrade the evidence; only an
// invalid request or cancellation of ctx returns an error.
func (s *AskService) Ask(ctx context.Context, req AskRequest, observe Observer) (*AskResult, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.Question = strings.TrimSpace(req.Question)
	if req.PatientID == "" {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	}
	if req.Question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	result := &AskResult{RequestID: uuid.NewString()}
	log := s.logger.With("request_id", result.RequestID, "patient_id", req.PatientID)
	start := time.Now()
	emit := func(stage Stage) {
		if observe != nil {
			observe(StageEvent{RequestID: result.RequestID, Stage: stage, ElapsedMs: time.Since(start).Milliseconds()})
		}
	}
	defer s.metrics.Time(metrics.OpAsk)()

	if s.deps.Writer != nil {
		if err := s.deps.Writer.UpsertPatientFromQuestion(ctx, req.PatientID, req.Question); err != nil {
			log.Warn("patient upsert failed", "error", err)
			s.metrics.RecordError("patient_upsert")
		}
	}

	emit(StageGather)
	done := s.metrics.Time(metrics.OpGather)
	gathered, err := s.deps.Gatherer.Gather(ctx, req.PatientID, req.Question, topK)
	done()
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	for _, w := range gathered.Warnings {
		s.metrics.RecordError(metrics.OpGather)
		log.Warn("evidence degraded", "warning", w)
	}
	result.Warnings = gathered.Warnings

	emit(StageDrugCheck)
	done = s.metrics.Time(metrics.OpDrugCheck)
	var meds []models.Medication
	if gathered.Profile != nil {
		meds = gathered.Profile.Medications
	}
	facts := s.deps.Drugs.Check(ctx, meds)
	done()

	ectx := evidence.Aggregate(gathered.Profile, gathered.Wearables, facts, gathered.Papers)

	emit(StageCompile)
	done = s.metrics.Time(metrics.OpCompile)
	text := prompt.Build(req.Question, ectx)
	if s.maxPromptChars > 0 && len([]rune(text)) > s.maxPromptChars {
		text = prompt.Truncate(text, s.maxPromptChars)
		result.PromptTruncated = true
		log.Info("prompt truncated", "budget", s.maxPromptChars)
	}
	done()

	emit(StageGenerate)
	genStart := time.Now()
	response, usage := s.deps.Answerer.Answer(ctx, text)
	s.metrics.RecordLLMUsage(metrics.OpLLMGenerate, time.Since(genStart), int64(usage.PromptTokens), int64(usage.CompletionTokens))
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	result.Response = response
	result.Usage = usage

	emit(StageExtract)
	done = s.metrics.Time(metrics.OpExtract)
	extracted := claims.Extract(response)
	done()

	emit(StageVerify)
	done = s.metrics.Time(metrics.OpVerify)
	result.Claims = claims.Verify(extracted, ectx)
	done()

	result.Context = Summarize(ectx)
	emit(StageDone)

	log.Info("question answered",
		"duration_ms", time.Since(start).Milliseconds(),
		"claims", len(result.Claims),
		"papers", result.Context.PapersFound,
		"drug_warnings", result.Context.DrugWarningsCount)
	return result, nil
}

// Summarize counts the evidence in ctx.
func Summarize(ctx models.EvidenceContext) ContextSummary {
	var s ContextSummary
	if ctx.Patient != nil {
		s.ConditionsCount = len(ctx.Patient.Conditions)
		s.MedsCount = len(ctx.Patient.Medications)
		s.LabsCount = len(ctx.Patient.LabResults)
	}
	s.WearablesAvailable = ctx.Wearables.Available
	s.WearablesCount = len(ctx.Wearables.Metrics)
	s.PapersFound = len(ctx.Papers)
	if ctx.DrugFacts != nil {
		s.DrugWarningsCount = ctx.DrugFacts.WarningCount()
	}
	s.HasDrugWarnings = s.DrugWarningsCount > 0
	return s
}
