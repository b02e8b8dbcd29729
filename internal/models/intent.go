package models

// FactCategory is the kind of patient fact the intent analyzer can propose.
type FactCategory string

const (
	CategoryCondition  FactCategory = "Condition"
	CategoryMedication FactCategory = "Medication"
	CategoryAllergy    FactCategory = "Allergy"
)

// Valid reports whether c can be written to the patient graph.
func (c FactCategory) Valid() bool {
	switch c {
	case CategoryCondition, CategoryMedication, CategoryAllergy:
		return true
	}
	return false
}

// HealthFact is a new medical fact proposed from free user text. It is only
// written to the patient graph after explicit confirmation.
type HealthFact struct {
	Category       FactCategory `json:"category"`
	OriginalTerm   string       `json:"original_term"`
	NormalizedTerm string       `json:"normalized_term"`
}
