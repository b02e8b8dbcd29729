package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// PatientProfile is the patient block of an evidence context.
// Name is nil for the empty-profile sentinel returned for unknown patients.
type PatientProfile struct {
	PatientID    string        `json:"patient_id"`
	Name         *string       `json:"name"`
	Demographics *Demographics `json:"demographics,omitempty"`
	Conditions   []Condition   `json:"conditions"`
	Medications  []Medication  `json:"medications"`
	LabResults   []LabResult   `json:"lab_results"`
	Allergies    []string      `json:"allergies,omitempty"`

	// Wearables is filled by readers that embed the wearable summary in the
	// profile. The evidence aggregator moves it to the top level.
	Wearables *WearableSummary `json:"wearables,omitempty"`
}

// EmptyProfile returns the sentinel profile for a patient with no stored record.
func EmptyProfile(patientID string) *PatientProfile {
	return &PatientProfile{PatientID: patientID}
}

// IsEmpty reports whether the profile carries no clinical data.
func (p *PatientProfile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Name == nil && p.Demographics == nil &&
		len(p.Conditions) == 0 && len(p.Medications) == 0 && len(p.LabResults) == 0
}

// Demographics holds basic patient attributes.
type Demographics struct {
	Age       *int   `json:"age,omitempty" yaml:"age"`
	Gender    string `json:"gender,omitempty" yaml:"gender"`
	BloodType string `json:"blood_type,omitempty" yaml:"blood_type"`
}

// Condition is a diagnosed disease linked to a patient.
type Condition struct {
	Name          string `json:"name" yaml:"name"`
	Severity      string `json:"severity,omitempty" yaml:"severity"`
	Status        string `json:"status,omitempty" yaml:"status"`
	DiagnosedDate string `json:"diagnosed,omitempty" yaml:"diagnosed"`
}

// Medication is a prescribed drug linked to a patient.
type Medication struct {
	Name      string `json:"name" yaml:"name"`
	Dosage    string `json:"dosage,omitempty" yaml:"dosage"`
	Frequency string `json:"frequency,omitempty" yaml:"frequency"`
	Purpose   string `json:"purpose,omitempty" yaml:"purpose"`
	Treats    string `json:"treats,omitempty" yaml:"treats"`
}

// LabResult is a single laboratory measurement. Result is a number or a
// compound string such as "142/88".
type LabResult struct {
	Name        string `json:"name" yaml:"name"`
	Result      any    `json:"result" yaml:"result"`
	Unit        string `json:"unit,omitempty" yaml:"unit"`
	NormalRange string `json:"normal_range,omitempty" yaml:"normal_range"`
	Status      string `json:"status,omitempty" yaml:"status"`
	Date        string `json:"date,omitempty" yaml:"date"`
}

// PatientRecord is the stored patient row.
type PatientRecord struct {
	ID           surrealmodels.RecordID `json:"id"`
	Name         *string                `json:"name,omitempty"`
	Age          *int                   `json:"age,omitempty"`
	Gender       *string                `json:"gender,omitempty"`
	BloodType    *string                `json:"blood_type,omitempty"`
	LastQuestion *string                `json:"last_question,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// PatientFixture describes a full patient graph for seeding the store.
type PatientFixture struct {
	ID                string             `yaml:"id"`
	Name              string             `yaml:"name"`
	Age               *int               `yaml:"age"`
	Gender            string             `yaml:"gender"`
	BloodType         string             `yaml:"blood_type"`
	Conditions        []Condition        `yaml:"conditions"`
	Medications       []Medication       `yaml:"medications"`
	LabResults        []LabResult        `yaml:"lab_results"`
	Allergies         []string           `yaml:"allergies"`
	Wearables         []WearableMetric   `yaml:"wearables"`
	Contraindications []Contraindication `yaml:"contraindications"`
}

// Contraindication links a medication to a condition it should not be used with.
type Contraindication struct {
	Drug      string `yaml:"drug" json:"drug"`
	Condition string `yaml:"condition" json:"condition"`
	Severity  string `yaml:"severity" json:"severity,omitempty"`
}
