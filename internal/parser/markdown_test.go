package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaper_Frontmatter(t *testing.T) {
	content := `---
pmid: 27086880
title: Long-term metformin use and vitamin B12 deficiency
journal: J Clin Endocrinol Metab
year: "2016"
authors:
  - Aroda VR
  - Edelstein SL
section: abstract
query: metformin b12
---
Body text.`

	doc, err := ParsePaper(content)

	require.NoError(t, err)
	assert.Equal(t, PaperMeta{
		PMID:    "27086880",
		Title:   "Long-term metformin use and vitamin B12 deficiency",
		Journal: "J Clin Endocrinol Metab",
		Year:    2016,
		Authors: []string{"Aroda VR", "Edelstein SL"},
		Section: "abstract",
		Query:   "metformin b12",
	}, doc.Meta)
	assert.Equal(t, doc.Meta.Title, doc.Title)
	assert.Equal(t, "Body text.", doc.Content)
}

func TestParsePaper_TitleFromHeading(t *testing.T) {
	doc, err := ParsePaper("# Aspirin and bleeding\n\nText.")

	require.NoError(t, err)
	assert.Equal(t, "Aspirin and bleeding", doc.Title)
	assert.Empty(t, doc.Meta.PMID)
}

func TestParsePaper_CRLF(t *testing.T) {
	doc, err := ParsePaper("---\r\npmid: \"42\"\r\n---\r\nText.")

	require.NoError(t, err)
	assert.Equal(t, "42", doc.Meta.PMID)
	assert.Equal(t, "Text.", doc.Content)
}

func TestParsePaper_BadFrontmatter(t *testing.T) {
	_, err := ParsePaper("---\npmid: [unclosed\n---\nText.")

	assert.ErrorContains(t, err, "parse frontmatter")
}

func TestParseSections_Paths(t *testing.T) {
	sections := parseSections("# Title\n\nIntro\n\n## Methods\n\nM\n\n### Cohort\n\nC\n\n## Results\n\nR")

	require.Len(t, sections, 4)
	assert.Equal(t, "# Title", sections[0].Path)
	assert.Equal(t, "# Title > ## Methods > ### Cohort", sections[2].Path)
	assert.Equal(t, "# Title > ## Results", sections[3].Path)
	assert.Equal(t, "R", sections[3].Content)
}

func TestPlainText(t *testing.T) {
	doc, err := ParsePaper("# Title\n\n## Abstract\nText here.")

	require.NoError(t, err)
	assert.Equal(t, "Title\n\nAbstract\nText here.", doc.PlainText())
}
