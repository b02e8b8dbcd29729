package claims

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimTypes(cs []models.Claim) []models.ClaimType {
	out := make([]models.ClaimType, len(cs))
	for i, c := range cs {
		out[i] = c.Type
	}
	return out
}

func TestExtract_DashTypedLines(t *testing.T) {
	text := "- RISK: Metformin can cause lactic acidosis.\n- MONITORING: Check kidney function."

	got := Extract(text)

	want := []models.Claim{
		{Type: models.ClaimRisk, Statement: "Metformin can cause lactic acidosis."},
		{Type: models.ClaimMonitoring, Statement: "Check kidney function."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_DashTypedUnknownNameIsGeneral(t *testing.T) {
	text := "- warning: Go to the ER if chest pain starts.\n- Background: This is context."

	got := Extract(text)

	assert.Equal(t, []models.ClaimType{models.ClaimWarning, models.ClaimGeneral}, claimTypes(got))
}

func TestExtract_PlainLabelBulletsSkipDashStrategy(t *testing.T) {
	text := "## What to Monitor\n- Glucose: check fasting levels each morning\n- Weight: once a week"

	got := Extract(text)

	require.Len(t, got, 2)
	assert.Equal(t, models.ClaimMonitoring, got[0].Type)
	assert.Equal(t, "Glucose: check fasting levels each morning", got[0].Statement)
}

func TestExtract_InlineLabels(t *testing.T) {
	text := "**Key Considerations:** Your blood pressure has been rising this week. " +
		"Ok. " +
		"**What to Monitor:** Measure your blood pressure every morning before breakfast. " +
		"**When to Seek Medical Help:** Go to the emergency room if you get chest pain."

	got := Extract(text)

	want := []models.Claim{
		{Type: models.ClaimRecommendation, Statement: "Your blood pressure has been rising this week."},
		{Type: models.ClaimMonitoring, Statement: "Measure your blood pressure every morning before breakfast."},
		{Type: models.ClaimWarning, Statement: "Go to the emergency room if you get chest pain."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_HeaderSections(t *testing.T) {
	text := `## Direct Answer
Yes, you can generally take both medications together as prescribed.

## Your Data This Week
| Metric | Value |
|---|---|
| Heart rate | 72 bpm |

## Key Concerns
- Lisinopril may raise potassium levels
* Dizziness when standing up

## What to Monitor
1. Blood pressure twice daily
2) Ankle swelling

## When to Seek Medical Help
- Swelling of the face or throat

## Safety Notes
- **Do not** stop medications without advice`

	got := Extract(text)

	assert.Equal(t, []models.ClaimType{
		models.ClaimGeneral,
		models.ClaimRisk, models.ClaimRisk,
		models.ClaimMonitoring, models.ClaimMonitoring,
		models.ClaimWarning,
		models.ClaimRecommendation,
	}, claimTypes(got))
	assert.Equal(t, "Yes, you can generally take both medications together as prescribed.", got[0].Statement)
	assert.Equal(t, "Blood pressure twice daily", got[3].Statement)
	assert.Equal(t, "Do not stop medications without advice", got[6].Statement)
}

func TestExtract_SmartSentences(t *testing.T) {
	text := "You should avoid alcohol while on this medication. " +
		"Check your glucose every morning. " +
		"Call your doctor immediately if you feel faint. " +
		"It is important to maintain a regular sleep schedule. " +
		"The weather is nice today overall. " +
		"Short one."

	got := Extract(text)

	assert.Equal(t, []models.ClaimType{
		models.ClaimRisk,
		models.ClaimMonitoring,
		models.ClaimWarning,
		models.ClaimRecommendation,
		models.ClaimGeneral,
	}, claimTypes(got))
}

func TestExtract_SmartSentencesCap(t *testing.T) {
	text := strings.Repeat("Please measure your heart rate daily. ", 40)

	got := Extract(text)

	assert.Len(t, got, maxSentenceClaims)
}

func TestExtract_Fallback(t *testing.T) {
	long := strings.Repeat("x", 600)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"short text", "Fine.", "Fine."},
		{"long unbroken text", long, long[:fallbackRunes]},
		{"markdown only", "**", "**"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			require.Len(t, got, 1)
			assert.Equal(t, models.ClaimGeneral, got[0].Type)
			assert.Equal(t, tt.want, got[0].Statement)
		})
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	got := Extract("")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtract_WhitespaceOnly(t *testing.T) {
	for _, in := range []string{"   ", "\n\t", " \n \n "} {
		got := Extract(in)
		require.Len(t, got, 1, "input %q", in)
		assert.Equal(t, models.ClaimGeneral, got[0].Type)
		assert.Equal(t, in, got[0].Statement)
	}
}

func TestExtract_NeverEmptyForNonEmptyInput(t *testing.T) {
	inputs := []string{
		"a", "#", "## \n", "- :", "|||", "...", "```", "- RISK:", "ü",
		"## Header only", "Key considerations:", strings.Repeat("é", 700),
	}
	for _, in := range inputs {
		got := Extract(in)
		assert.NotEmpty(t, got, "input %q", in)
		for _, c := range got {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Statement), maxSentence)
		}
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**bold** text", "bold text"},
		{"__bold__ text", "bold text"},
		{"an *italic* word", "an italic word"},
		{"an _italic_ word", "an italic word"},
		{"use `code` here", "use code here"},
		{"keep snake_case_names", "keep snake_case_names"},
		{"```json\n[]\n```", "\n[]\n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripMarkdown(tt.in), tt.in)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rules []Rule
		text  string
		want  models.ClaimType
	}{
		{SentenceRules, "This may cause dizziness", models.ClaimRisk},
		{SentenceRules, "Avoid grapefruit and check levels", models.ClaimRisk},
		{SentenceRules, "Seek care if symptoms worsen and track them", models.ClaimWarning},
		{SentenceRules, "Tests are due next week", models.ClaimMonitoring},
		{SentenceRules, "The latest results look normal", models.ClaimGeneral},
		{SentenceRules, "Staying hydrated may help", models.ClaimRecommendation},
		{SectionRules, "Key Concerns", models.ClaimRisk},
		{SectionRules, "What to Monitor", models.ClaimMonitoring},
		{SectionRules, "When to Seek Medical Help", models.ClaimWarning},
		{SectionRules, "Key Considerations", models.ClaimRecommendation},
		{SectionRules, "Safety Notes", models.ClaimRecommendation},
		{SectionRules, "Direct Answer", models.ClaimGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.rules, tt.text), tt.text)
	}
}

func TestKeywords_Empty(t *testing.T) {
	assert.False(t, Keywords()("anything"))
	assert.False(t, Keywords(" ")("anything"))
}
