package models

// DrugFactType tags the variant of a DrugFact.
type DrugFactType string

const (
	FactDrugDrug      DrugFactType = "drug-drug-interaction"
	FactDrugCondition DrugFactType = "drug-condition-interaction"
	FactDrugEffect    DrugFactType = "drug-effect"
	// FactError marks advisory information loss, e.g. the graph was unreachable.
	FactError DrugFactType = "error"
)

// Severity grades an interaction.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityModerate, SeverityHigh:
		return true
	}
	return false
}

// DrugFact is a tagged union over the drug fact variants. Only the fields of
// the variant named by Type are set.
type DrugFact struct {
	Type DrugFactType `json:"type"`

	// drug-drug-interaction
	DrugsInvolved []string `json:"drugs_involved,omitempty"`
	Interaction   string   `json:"interaction,omitempty"`

	// drug-condition-interaction and drug-effect
	Drug      string `json:"drug,omitempty"`
	Condition string `json:"condition,omitempty"`

	// drug-effect
	Effect            string `json:"effect,omitempty"`
	ClinicalRelevance string `json:"clinical_relevance,omitempty"`

	Severity  Severity `json:"severity,omitempty"`
	Mechanism string   `json:"mechanism,omitempty"`
	Evidence  string   `json:"evidence,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// DrugFacts is the output of the drug rule engine.
type DrugFacts struct {
	CheckedDrugs              []string   `json:"checked_drugs"`
	DrugDrugInteractions      []DrugFact `json:"drug_drug_interactions"`
	DrugConditionInteractions []DrugFact `json:"drug_condition_interactions"`
	DrugEffectFacts           []DrugFact `json:"drug_effect_facts"`
	Note                      string     `json:"note,omitempty"`
}

// WarningCount counts drug-drug and drug-condition interactions, ignoring
// error facts.
func (f *DrugFacts) WarningCount() int {
	if f == nil {
		return 0
	}
	n := len(f.DrugDrugInteractions)
	for _, c := range f.DrugConditionInteractions {
		if c.Type != FactError {
			n++
		}
	}
	return n
}

// DrugConditionRow is one contraindication returned by the graph query.
type DrugConditionRow struct {
	Drug      string `json:"drug"`
	Condition string `json:"condition"`
	Severity  string `json:"severity"`
}
