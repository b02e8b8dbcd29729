package claims

import (
	"regexp"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
)

const (
	DetailMedicationMatch = "patient_medication_match"
	DetailConditionMatch  = "patient_condition_match"

	previewRunes     = 1000
	snippetRunes     = 300
	fallbackKeywords = 5
)

var wordToken = regexp.MustCompile(`\w+`)

// Verify checks each claim against the evidence. The result has one entry per
// input claim, in order.
func Verify(claims []models.Claim, ctx models.EvidenceContext) []models.VerifiedClaim {
	meds := ctx.MedicationNames()
	conds := ctx.ConditionNames()

	out := make([]models.VerifiedClaim, 0, len(claims))
	for _, c := range claims {
		out = append(out, verifyOne(c, ctx.Papers, meds, conds))
	}
	return out
}

// VerifyText extracts claims from a raw answer and verifies them.
func VerifyText(text string, ctx models.EvidenceContext) []models.VerifiedClaim {
	return Verify(Extract(text), ctx)
}

func verifyOne(c models.Claim, papers []models.Paper, meds, conds []string) (v models.VerifiedClaim) {
	if c.Type == "" {
		c.Type = models.ClaimGeneral
	}
	v = models.VerifiedClaim{Claim: c, Sources: []models.Source{}}

	defer func() {
		if r := recover(); r != nil {
			v = models.VerifiedClaim{Claim: c, Sources: []models.Source{}}
		}
	}()

	if strings.TrimSpace(c.Statement) == "" {
		return v
	}
	statement := strings.ToLower(c.Statement)

	if matchAny(meds, statement) {
		v.Sources = append(v.Sources, models.Source{
			Type:        models.SourceKG,
			Detail:      DetailMedicationMatch,
			Medications: meds,
		})
	}
	if matchAny(conds, statement) {
		v.Sources = append(v.Sources, models.Source{
			Type:       models.SourceKG,
			Detail:     DetailConditionMatch,
			Conditions: conds,
		})
	}
	v.Sources = append(v.Sources, paperSources(papers, statement)...)

	v.Verified = len(v.Sources) > 0
	return v
}

func matchAny(names []string, statement string) bool {
	for _, n := range names {
		if n != "" && strings.Contains(statement, n) {
			return true
		}
	}
	return false
}

// paperSources matches the whole statement, or any of its first few words,
// against each paper's title and preview. statement must be lowercased.
func paperSources(papers []models.Paper, statement string) []models.Source {
	words := wordToken.FindAllString(statement, fallbackKeywords)

	var hits []models.Source
	for _, p := range papers {
		preview := truncateRunes(p.TextPreview, previewRunes)
		combined := strings.ToLower(p.Title + "\n" + preview)
		if !strings.Contains(combined, statement) && !containsAnyWord(combined, words) {
			continue
		}
		snippet := ""
		if preview != "" {
			snippet = truncateRunes(preview, snippetRunes) + "..."
		}
		hits = append(hits, models.Source{
			Type:    models.SourcePaper,
			PMID:    p.PMID,
			Title:   p.Title,
			Snippet: snippet,
		})
	}
	return hits
}

func containsAnyWord(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
