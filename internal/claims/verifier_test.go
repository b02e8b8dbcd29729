package claims

import (
	"strings"
	"testing"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evidence() models.EvidenceContext {
	return models.EvidenceContext{
		Patient: &models.PatientProfile{
			PatientID:   "p1",
			Medications: []models.Medication{{Name: "Metformin"}, {Name: ""}},
			Conditions:  []models.Condition{{Name: "Type 2 Diabetes"}},
		},
		Papers: []models.Paper{{
			PMID:        "123",
			Title:       "Vitamin B12 deficiency in long-term users",
			TextPreview: strings.Repeat("absorption ", 40),
		}},
	}
}

func TestVerify_MedicationMatch(t *testing.T) {
	got := Verify([]models.Claim{{Type: models.ClaimRisk, Statement: "metformin may reduce B12 absorption"}}, evidence())

	require.Len(t, got, 1)
	assert.True(t, got[0].Verified)

	var kg []models.Source
	for _, s := range got[0].Sources {
		if s.Type == models.SourceKG {
			kg = append(kg, s)
		}
	}
	require.NotEmpty(t, kg)
	assert.Equal(t, DetailMedicationMatch, kg[0].Detail)
	assert.Equal(t, []string{"metformin"}, kg[0].Medications)
}

func TestVerify_ConditionAndPaper(t *testing.T) {
	got := Verify([]models.Claim{{Type: models.ClaimGeneral, Statement: "Type 2 diabetes needs follow-up"}}, evidence())

	require.Len(t, got, 1)
	require.True(t, got[0].Verified)
	assert.Equal(t, DetailConditionMatch, got[0].Sources[0].Detail)
}

func TestVerify_PaperSnippet(t *testing.T) {
	ctx := models.EvidenceContext{Papers: evidence().Papers}

	got := Verify([]models.Claim{{Type: models.ClaimGeneral, Statement: "Deficiency is common"}}, ctx)

	require.Len(t, got[0].Sources, 1)
	src := got[0].Sources[0]
	assert.Equal(t, models.SourcePaper, src.Type)
	assert.Equal(t, "123", src.PMID)
	assert.True(t, strings.HasSuffix(src.Snippet, "..."))
	assert.Len(t, src.Snippet, snippetRunes+3)
}

func TestVerify_NoEvidence(t *testing.T) {
	got := Verify([]models.Claim{{Type: models.ClaimGeneral, Statement: "zzz qqq"}}, models.EvidenceContext{})

	require.Len(t, got, 1)
	assert.False(t, got[0].Verified)
	assert.NotNil(t, got[0].Sources)
	assert.Empty(t, got[0].Sources)
}

func TestVerify_MalformedClaims(t *testing.T) {
	got := Verify([]models.Claim{{}, {Type: models.ClaimRisk, Statement: "  "}}, evidence())

	require.Len(t, got, 2)
	for _, v := range got {
		assert.False(t, v.Verified)
		assert.Empty(t, v.Sources)
	}
	assert.Equal(t, models.ClaimGeneral, got[0].Type)
}

func TestVerifyText_RoundTripLength(t *testing.T) {
	inputs := []string{
		"- RISK: Metformin can cause lactic acidosis.\n- MONITORING: Check kidney function.",
		"## Safety Notes\n- Keep taking metformin with food",
		"Just a sentence that is long enough to count.",
		"",
	}
	for _, in := range inputs {
		assert.Len(t, VerifyText(in, evidence()), len(Extract(in)), in)
	}
}
