package prompt

import (
	"strings"
	"unicode/utf8"
)

// Truncate shrinks prompt to fit budget characters by replacing the
// literature body with a placeholder. Patient facts and the question are
// kept verbatim, so the result may still exceed budget when they alone do.
// A prompt without both section markers is cut to the first budget runes.
func Truncate(prompt string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(prompt) <= budget {
		return prompt
	}

	litIdx := strings.Index(prompt, SectionHeader(LiteratureMarker))
	if litIdx >= 0 {
		rest := prompt[litIdx:]
		if qIdx := strings.Index(rest, SectionHeader(QuestionMarker)); qIdx >= 0 {
			return prompt[:litIdx] +
				SectionHeader(LiteratureMarker) +
				truncatedLiterature + "\n\n" +
				rest[qIdx:]
		}
	}

	return string([]rune(prompt)[:budget])
}
