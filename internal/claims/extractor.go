// Package claims turns free-text model answers into typed claims and checks
// them against the evidence the answer was built from.
package claims

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raphaelgruber/healthrag/internal/models"
)

const (
	minLabeledSentence = 20
	minSentence        = 15
	maxSentence        = 500
	maxSentenceClaims  = 15
	fallbackRunes      = 200
)

var (
	dashTypedLine = regexp.MustCompile(`^\s*-\s*([A-Za-z]+)\s*:\s*(\S.*)$`)
	headerLine    = regexp.MustCompile(`^\s*#{1,6}\s+(.+?)\s*#*\s*$`)
	listItem      = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+(.+)$`)

	inlineLabel = regexp.MustCompile(`(?i)(direct answer|key considerations|key concerns|what to monitor|when to seek medical help|safety notes|recommendations)\s*:`)

	boldMarker      = regexp.MustCompile(`\*\*|__`)
	italicStar      = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnderline = regexp.MustCompile(`(^|[\s(])_([^_\n]+)_`)
	codeFence       = regexp.MustCompile("```[a-zA-Z]*")
	inlineCode      = regexp.MustCompile("`([^`\n]*)`")
)

type strategy func(string) []models.Claim

// Extract parses an answer into claims. The empty string yields an empty
// slice; any other input, whitespace included, yields at least one claim.
func Extract(text string) (claims []models.Claim) {
	if text == "" {
		return []models.Claim{}
	}

	defer func() {
		if r := recover(); r != nil {
			claims = fallback(text)
		}
	}()

	for _, s := range []strategy{dashTyped, inlineLabeled, headerSections, smartSentences} {
		if out := s(text); len(out) > 0 {
			return out
		}
	}
	return fallback(text)
}

// StripMarkdown removes emphasis and code markers, keeping the wrapped text.
func StripMarkdown(text string) string {
	text = codeFence.ReplaceAllString(text, "")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = boldMarker.ReplaceAllString(text, "")
	text = italicStar.ReplaceAllString(text, "$1")
	text = italicUnderline.ReplaceAllString(text, "${1}${2}")
	return text
}

// dashTyped handles "- RISK: statement" lines. It only applies when at least
// one line names a known type, so ordinary "- Label: text" bullets fall
// through to the section strategies.
func dashTyped(text string) []models.Claim {
	var out []models.Claim
	known := false
	for _, line := range strings.Split(StripMarkdown(text), "\n") {
		m := dashTypedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t, ok := claimTypeFromName(m[1])
		known = known || ok
		out = append(out, models.Claim{Type: t, Statement: strings.TrimSpace(m[2])})
	}
	if !known {
		return nil
	}
	return out
}

func inlineLabeled(text string) []models.Claim {
	plain := StripMarkdown(text)
	locs := inlineLabel.FindAllStringSubmatchIndex(plain, -1)
	if len(locs) == 0 {
		return nil
	}

	var out []models.Claim
	for i, loc := range locs {
		end := len(plain)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		label := plain[loc[2]:loc[3]]
		tag := Classify(SectionRules, label)
		for _, s := range splitSentences(plain[loc[1]:end]) {
			if utf8.RuneCountInString(s) < minLabeledSentence {
				continue
			}
			out = append(out, models.Claim{Type: tag, Statement: s})
		}
	}
	return out
}

type section struct {
	title string
	lines []string
}

func headerSections(text string) []models.Claim {
	var sections []section
	current := section{}
	sawHeader := false
	for _, line := range strings.Split(text, "\n") {
		if m := headerLine.FindStringSubmatch(line); m != nil {
			sections = append(sections, current)
			current = section{title: StripMarkdown(m[1])}
			sawHeader = true
			continue
		}
		current.lines = append(current.lines, line)
	}
	if !sawHeader {
		return nil
	}
	sections = append(sections, current)

	var out []models.Claim
	for _, sec := range sections {
		tag := Classify(SectionRules, sec.title)
		for _, item := range sectionItems(sec.lines) {
			out = append(out, models.Claim{Type: tag, Statement: item})
		}
	}
	return out
}

// sectionItems returns list items, or long prose lines when the section has
// no list.
func sectionItems(lines []string) []string {
	var items, prose []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "|") {
			continue
		}
		if m := listItem.FindStringSubmatch(trimmed); m != nil {
			if s := strings.TrimSpace(StripMarkdown(m[1])); s != "" {
				items = append(items, s)
			}
			continue
		}
		if len(strings.Fields(trimmed)) > 5 {
			prose = append(prose, strings.TrimSpace(StripMarkdown(trimmed)))
		}
	}
	if len(items) > 0 {
		return items
	}
	return prose
}

func smartSentences(text string) []models.Claim {
	var out []models.Claim
	for _, s := range splitSentences(StripMarkdown(text)) {
		n := utf8.RuneCountInString(s)
		if n <= minSentence || n >= maxSentence {
			continue
		}
		out = append(out, models.Claim{Type: Classify(SentenceRules, s), Statement: s})
		if len(out) == maxSentenceClaims {
			break
		}
	}
	return out
}

func fallback(text string) []models.Claim {
	statement := strings.TrimSpace(StripMarkdown(text))
	if statement == "" {
		statement = strings.TrimSpace(text)
	}
	if statement == "" {
		statement = text
	}
	return []models.Claim{{Type: models.ClaimGeneral, Statement: truncateRunes(statement, fallbackRunes)}}
}

// splitSentences splits on line breaks and on sentence punctuation followed
// by whitespace. List markers and header hashes are dropped.
func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if m := listItem.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		if line == "" || strings.HasPrefix(line, "|") {
			continue
		}

		runes := []rune(line)
		start := 0
		for i, r := range runes {
			if r != '.' && r != '!' && r != '?' {
				continue
			}
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
