package models

// ClaimType classifies an extracted statement.
type ClaimType string

const (
	ClaimRisk           ClaimType = "risk"
	ClaimMonitoring     ClaimType = "monitoring"
	ClaimWarning        ClaimType = "warning"
	ClaimRecommendation ClaimType = "recommendation"
	ClaimGeneral        ClaimType = "general"
)

// Claim is a single typed statement taken from a model answer.
type Claim struct {
	Type      ClaimType `json:"type"`
	Statement string    `json:"statement"`
}

// SourceType is the provenance kind of a verification source.
type SourceType string

const (
	SourceKG    SourceType = "kg"
	SourcePaper SourceType = "paper"
)

// Source records why a claim was verified.
type Source struct {
	Type        SourceType `json:"type"`
	Detail      string     `json:"detail,omitempty"`
	Medications []string   `json:"medications,omitempty"`
	Conditions  []string   `json:"conditions,omitempty"`
	PMID        string     `json:"pmid,omitempty"`
	Title       string     `json:"title,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
}

// VerifiedClaim is a claim with its verification result.
type VerifiedClaim struct {
	Claim
	Verified bool     `json:"verified"`
	Sources  []Source `json:"sources"`
}
