package models

// EvidenceContext is the merged evidence passed to prompt construction.
// A nil Patient or DrugFacts means the source produced nothing at all.
type EvidenceContext struct {
	Patient   *PatientProfile `json:"patient"`
	Wearables WearableSummary `json:"wearables"`
	DrugFacts *DrugFacts      `json:"drug_facts"`
	Papers    []Paper         `json:"papers"`
}

// MedicationNames returns the lowercased, non-empty medication names.
func (c EvidenceContext) MedicationNames() []string {
	if c.Patient == nil {
		return nil
	}
	names := make([]string, 0, len(c.Patient.Medications))
	for _, m := range c.Patient.Medications {
		if m.Name != "" {
			names = append(names, lower(m.Name))
		}
	}
	return names
}

// ConditionNames returns the lowercased, non-empty condition names.
func (c EvidenceContext) ConditionNames() []string {
	if c.Patient == nil {
		return nil
	}
	names := make([]string, 0, len(c.Patient.Conditions))
	for _, cond := range c.Patient.Conditions {
		if cond.Name != "" {
			names = append(names, lower(cond.Name))
		}
	}
	return names
}
