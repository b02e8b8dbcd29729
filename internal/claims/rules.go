package claims

import (
	"regexp"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
)

// Rule tags text with a claim type when Match reports true.
type Rule struct {
	Tag   models.ClaimType
	Match func(string) bool
}

// Keyword sets used for sentence classification.
var (
	RiskKeywords = []string{
		"risk", "danger", "avoid", "contraindicated", "caution",
		"can cause", "may cause", "leads to", "side effect", "harmful",
	}
	MonitoringKeywords = []string{
		"monitor", "track", "watch", "check", "measure", "test", "observe",
		"keep an eye",
	}
	WarningKeywords = []string{
		"urgent", "immediately", "emergency", "seek", "call", "hospital",
		"contact doctor", "contact your doctor", "911",
	}
	RecommendationKeywords = []string{
		"recommend", "suggest", "consider", "should", "important", "maintain",
		"may help", "stay", "try to",
	}
)

// SentenceRules classify free sentences. The first matching rule wins, so
// a sentence mentioning both a risk and a check is a risk.
var SentenceRules = []Rule{
	{Tag: models.ClaimRisk, Match: Keywords(RiskKeywords...)},
	{Tag: models.ClaimWarning, Match: Keywords(WarningKeywords...)},
	{Tag: models.ClaimMonitoring, Match: Keywords(MonitoringKeywords...)},
	{Tag: models.ClaimRecommendation, Match: Keywords(RecommendationKeywords...)},
}

// SectionRules classify a section title such as "What to Monitor".
var SectionRules = []Rule{
	{Tag: models.ClaimRisk, Match: Keywords("risk", "concern", "danger")},
	{Tag: models.ClaimMonitoring, Match: Keywords("monitor", "watch", "track")},
	{Tag: models.ClaimWarning, Match: Keywords("help", "urgent", "emergency", "seek")},
	{Tag: models.ClaimRecommendation, Match: Keywords("recommend", "consider", "suggest", "safety", "note")},
}

// Classify returns the tag of the first matching rule, or general.
func Classify(rules []Rule, text string) models.ClaimType {
	for _, r := range rules {
		if r.Match(text) {
			return r.Tag
		}
	}
	return models.ClaimGeneral
}

// Keywords builds a case-insensitive matcher that fires when any keyword
// starts at a word boundary, so "test" matches "tests" but not "latest".
func Keywords(words ...string) func(string) bool {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return func(string) bool { return false }
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)`)
	return re.MatchString
}

// typeNames maps the TYPENAME of a "- TYPENAME: statement" line.
var typeNames = map[string]models.ClaimType{
	"risk":           models.ClaimRisk,
	"monitoring":     models.ClaimMonitoring,
	"warning":        models.ClaimWarning,
	"recommendation": models.ClaimRecommendation,
}

func claimTypeFromName(name string) (models.ClaimType, bool) {
	t, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return models.ClaimGeneral, false
	}
	return t, true
}
