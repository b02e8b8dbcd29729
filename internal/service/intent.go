package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/llm"
	"github.com/raphaelgruber/healthrag/internal/models"
)

// ErrInvalidCategory is returned when confirming a fact of an unknown category.
var ErrInvalidCategory = errors.New("invalid fact category")

// FactWriter links a confirmed fact to a patient.
type FactWriter interface {
	AddPatientFact(ctx context.Context, patientID string, category models.FactCategory, name string) error
}

// IntentService proposes new patient facts from free text and writes them
// once the user confirms.
type IntentService struct {
	gen    llm.Generator
	writer FactWriter
	logger *slog.Logger
}

// NewIntentService creates the service.
func NewIntentService(gen llm.Generator, writer FactWriter, logger *slog.Logger) *IntentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentService{gen: gen, writer: writer, logger: logger}
}

// Analyze asks the model for new facts in text. Any failure yields an empty
// list.
func (s *IntentService) Analyze(ctx context.Context, text string) []models.HealthFact {
	if strings.TrimSpace(text) == "" || s.gen == nil {
		return []models.HealthFact{}
	}

	out, _, err := s.gen.Generate(ctx, llm.SystemPrompt, llm.HealthIntentPrompt(text))
	if err != nil {
		s.logger.Error("intent analysis failed", "error", err)
		return []models.HealthFact{}
	}

	facts, err := ParseHealthFacts(out)
	if err != nil {
		s.logger.Error("intent analysis returned invalid JSON", "error", err)
		return []models.HealthFact{}
	}
	return facts
}

// ParseHealthFacts decodes the model output. Code fences are stripped, a
// single object is treated as a one-element list and entries without a
// category or normalized term are dropped.
func ParseHealthFacts(output string) ([]models.HealthFact, error) {
	clean := strings.ReplaceAll(output, "```json", "")
	clean = strings.TrimSpace(strings.ReplaceAll(clean, "```", ""))
	if strings.HasPrefix(clean, "{") {
		clean = "[" + clean + "]"
	}

	var raw []models.HealthFact
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}

	facts := make([]models.HealthFact, 0, len(raw))
	for _, f := range raw {
		if f.Category == "" || strings.TrimSpace(f.NormalizedTerm) == "" {
			continue
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// Confirm writes a fact the user accepted.
func (s *IntentService) Confirm(ctx context.Context, patientID string, category models.FactCategory, name string) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if strings.TrimSpace(patientID) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: patient_id and name are required", ErrInvalidRequest)
	}
	if err := s.writer.AddPatientFact(ctx, patientID, category, strings.TrimSpace(name)); err != nil {
		return fmt.Errorf("confirm %s: %w", category, err)
	}
	s.logger.Info("patient fact added", "patient_id", patientID, "category", category, "name", name)
	return nil
}
