// Package drugs evaluates declarative drug-drug, drug-effect and
// drug-condition rules against a patient's medication list.
package drugs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
)

// NoMedicationsNote is the note attached when there is nothing to check.
const NoMedicationsNote = "No medications provided"

const graphEvidence = "Contraindication recorded in patient knowledge graph"

// ConditionQuerier looks up contraindications between drugs and diseases.
type ConditionQuerier interface {
	DrugConditions(ctx context.Context, drugs []string) ([]models.DrugConditionRow, error)
}

// Engine is a pure evaluator over a RuleSet plus one graph lookup.
type Engine struct {
	rules   *RuleSet
	querier ConditionQuerier
	logger  *slog.Logger
}

// NewEngine creates an engine. querier may be nil, in which case the
// drug-condition step reports itself unavailable.
func NewEngine(rules *RuleSet, querier ConditionQuerier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rules, querier: querier, logger: logger}
}

// Check evaluates all rule families for the given medications. It never
// returns an error: graph failures become a single error fact.
func (e *Engine) Check(ctx context.Context, meds []models.Medication) models.DrugFacts {
	drugs := NormalizeDrugs(meds)
	if len(drugs) == 0 {
		return NoMedications(NoMedicationsNote)
	}

	facts := models.DrugFacts{
		CheckedDrugs:              drugs,
		DrugDrugInteractions:      e.DrugDrugFacts(drugs),
		DrugEffectFacts:           e.DrugEffectFacts(drugs),
		DrugConditionInteractions: e.drugConditionFacts(ctx, drugs),
	}

	e.logger.Debug("drug check complete",
		"drugs", len(drugs),
		"drug_drug", len(facts.DrugDrugInteractions),
		"drug_condition", len(facts.DrugConditionInteractions),
		"effects", len(facts.DrugEffectFacts))
	return facts
}

// DrugDrugFacts returns every interaction whose drug set is contained in drugs.
// drugs must already be normalized.
func (e *Engine) DrugDrugFacts(drugs []string) []models.DrugFact {
	have := toSet(drugs)
	out := []models.DrugFact{}
	for _, r := range e.rules.Interactions {
		if !containsAll(have, r.Drugs) {
			continue
		}
		involved := append([]string(nil), r.Drugs...)
		sort.Strings(involved)
		out = append(out, models.DrugFact{
			Type:          models.FactDrugDrug,
			DrugsInvolved: involved,
			Severity:      r.Severity,
			Interaction:   r.Interaction,
			Mechanism:     r.Mechanism,
			Evidence:      r.Evidence,
		})
	}
	return out
}

// DrugEffectFacts looks up each drug, then each documented combination whose
// members are all present. Unknown drugs contribute nothing.
func (e *Engine) DrugEffectFacts(drugs []string) []models.DrugFact {
	out := []models.DrugFact{}
	for _, d := range drugs {
		if r, ok := e.rules.single[d]; ok {
			out = append(out, effectFact(r))
		}
	}
	have := toSet(drugs)
	for _, r := range e.rules.combos {
		if containsAll(have, r.members) {
			out = append(out, effectFact(r))
		}
	}
	return out
}

func (e *Engine) drugConditionFacts(ctx context.Context, drugs []string) []models.DrugFact {
	if e.querier == nil {
		return []models.DrugFact{errorFact("no knowledge graph configured")}
	}

	rows, err := e.querier.DrugConditions(ctx, drugs)
	if err != nil {
		e.logger.Warn("drug-condition lookup failed", "error", err)
		return []models.DrugFact{errorFact(err.Error())}
	}

	out := make([]models.DrugFact, 0, len(rows))
	for _, row := range rows {
		severity := models.Severity(strings.ToLower(strings.TrimSpace(row.Severity)))
		if !severity.Valid() {
			severity = models.SeverityModerate
		}
		out = append(out, models.DrugFact{
			Type:      models.FactDrugCondition,
			Drug:      row.Drug,
			Condition: row.Condition,
			Severity:  severity,
			Evidence:  graphEvidence,
		})
	}
	return out
}

// NoMedications is the response shape for an empty medication list.
func NoMedications(note string) models.DrugFacts {
	return models.DrugFacts{
		CheckedDrugs:              []string{},
		DrugDrugInteractions:      []models.DrugFact{},
		DrugConditionInteractions: []models.DrugFact{},
		DrugEffectFacts:           []models.DrugFact{},
		Note:                      note,
	}
}

// NormalizeDrugs lowercases, trims, drops empty names, deduplicates and sorts.
func NormalizeDrugs(meds []models.Medication) []string {
	names := make([]string, 0, len(meds))
	for _, m := range meds {
		names = append(names, m.Name)
	}
	return normalizeNames(names)
}

func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func effectFact(r EffectRule) models.DrugFact {
	return models.DrugFact{
		Type:              models.FactDrugEffect,
		Drug:              r.Key,
		Effect:            r.Effect,
		Mechanism:         r.Mechanism,
		ClinicalRelevance: r.ClinicalRelevance,
		Evidence:          r.Evidence,
	}
}

func errorFact(reason string) models.DrugFact {
	return models.DrugFact{
		Type:    models.FactError,
		Message: fmt.Sprintf("Drug-condition check unavailable: %s", reason),
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

func containsAll(set map[string]struct{}, items []string) bool {
	for _, s := range items {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
