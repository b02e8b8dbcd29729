package drugs

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// ComboSeparator joins drug names in a combination effect key.
const ComboSeparator = " + "

// InteractionRule fires when every drug in Drugs is taken by the patient.
type InteractionRule struct {
	Drugs       []string        `yaml:"drugs"`
	Severity    models.Severity `yaml:"severity"`
	Interaction string          `yaml:"interaction"`
	Mechanism   string          `yaml:"mechanism"`
	Evidence    string          `yaml:"evidence"`
}

// EffectRule documents the effect of one drug or a fixed combination.
type EffectRule struct {
	Key               string `yaml:"key"`
	Effect            string `yaml:"effect"`
	Mechanism         string `yaml:"mechanism"`
	ClinicalRelevance string `yaml:"clinical_relevance"`
	Evidence          string `yaml:"evidence"`

	members []string
}

// IsCombination reports whether the rule applies to several drugs at once.
func (r EffectRule) IsCombination() bool {
	return len(r.members) > 1
}

// RuleSet holds the declarative drug safety tables.
type RuleSet struct {
	Interactions []InteractionRule `yaml:"interactions"`
	Effects      []EffectRule      `yaml:"effects"`

	single map[string]EffectRule
	combos []EffectRule
}

// DefaultRules returns the embedded rule set.
func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads a rule set from a YAML file. An empty path loads the
// embedded defaults.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes and validates a YAML rule set. Drug names are normalized
// the same way patient medications are.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := rs.index(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) index() error {
	var errs []error

	for i := range rs.Interactions {
		r := &rs.Interactions[i]
		r.Drugs = normalizeNames(r.Drugs)
		if len(r.Drugs) < 2 {
			errs = append(errs, fmt.Errorf("interaction %d: needs at least two distinct drugs", i))
		}
		if !r.Severity.Valid() {
			errs = append(errs, fmt.Errorf("interaction %d: invalid severity %q", i, r.Severity))
		}
		if strings.TrimSpace(r.Interaction) == "" {
			errs = append(errs, fmt.Errorf("interaction %d: missing interaction text", i))
		}
	}

	rs.single = make(map[string]EffectRule)
	rs.combos = nil
	for i := range rs.Effects {
		r := &rs.Effects[i]
		r.members = normalizeNames(strings.Split(r.Key, strings.TrimSpace(ComboSeparator)))
		if len(r.members) == 0 {
			errs = append(errs, fmt.Errorf("effect %d: missing key", i))
			continue
		}
		if strings.TrimSpace(r.Effect) == "" {
			errs = append(errs, fmt.Errorf("effect %d (%s): missing effect text", i, r.Key))
		}
		r.Key = normalizeKey(r.Key)
		if r.IsCombination() {
			rs.combos = append(rs.combos, *r)
			continue
		}
		if _, dup := rs.single[r.Key]; dup {
			errs = append(errs, fmt.Errorf("effect %d: duplicate key %q", i, r.Key))
			continue
		}
		rs.single[r.Key] = *r
	}

	return errors.Join(errs...)
}

// normalizeKey lowercases each member of a key while keeping the member order
// the table author wrote, e.g. "Lisinopril + Amlodipine" -> "lisinopril + amlodipine".
func normalizeKey(key string) string {
	parts := strings.Split(key, strings.TrimSpace(ComboSeparator))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ComboSeparator)
}
