// Package parser reads literature documents (Markdown with YAML frontmatter)
// and splits them into chunks for embedding.
package parser

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PaperMeta is the frontmatter of a paper document.
type PaperMeta struct {
	PMID    string   `yaml:"pmid"`
	Title   string   `yaml:"title"`
	Journal string   `yaml:"journal"`
	Year    int      `yaml:"year"`
	Authors []string `yaml:"authors"`
	Section string   `yaml:"section"`
	Query   string   `yaml:"query"`
	Source  string   `yaml:"source"`
}

// PaperDoc is a parsed paper document.
type PaperDoc struct {
	Meta PaperMeta

	// Title from frontmatter, else the first h1.
	Title string

	// Body after the frontmatter.
	Content string

	Sections []Section
}

// Section represents a heading and its content.
type Section struct {
	Level   int    // 1-6 for h1-h6
	Heading string // The heading text
	Path    string // Full path like "## Methods > ### Cohort"
	Content string // Content under this heading
	Start   int    // Line number where section starts
	End     int    // Line number where section ends
}

var (
	h1Regex      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// ParsePaper parses a paper document. Malformed frontmatter is an error since
// it carries the citation fields.
func ParsePaper(content string) (*PaperDoc, error) {
	doc := &PaperDoc{}
	content = strings.ReplaceAll(content, "\r\n", "\n")

	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx >= 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			var raw rawMeta
			if err := yaml.Unmarshal([]byte(frontmatterYAML), &raw); err != nil {
				return nil, fmt.Errorf("parse frontmatter: %w", err)
			}
			doc.Meta = raw.meta()
		}
	}

	doc.Content = strings.TrimSpace(remaining)
	doc.Title = extractTitle(doc.Meta, remaining)
	doc.Sections = parseSections(remaining)

	return doc, nil
}

// rawMeta accepts pmid and year as either numbers or strings.
type rawMeta struct {
	PMID    yaml.Node `yaml:"pmid"`
	Title   string    `yaml:"title"`
	Journal string    `yaml:"journal"`
	Year    yaml.Node `yaml:"year"`
	Authors []string  `yaml:"authors"`
	Section string    `yaml:"section"`
	Query   string    `yaml:"query"`
	Source  string    `yaml:"source"`
}

func (r rawMeta) meta() PaperMeta {
	year, _ := strconv.Atoi(strings.TrimSpace(r.Year.Value))
	return PaperMeta{
		PMID:    strings.TrimSpace(r.PMID.Value),
		Title:   strings.TrimSpace(r.Title),
		Journal: strings.TrimSpace(r.Journal),
		Year:    year,
		Authors: r.Authors,
		Section: strings.TrimSpace(r.Section),
		Query:   strings.TrimSpace(r.Query),
		Source:  strings.TrimSpace(r.Source),
	}
}

// extractTitle gets title from frontmatter or first h1.
func extractTitle(meta PaperMeta, content string) string {
	if meta.Title != "" {
		return meta.Title
	}
	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// parseSections extracts sections from Markdown content.
func parseSections(content string) []Section {
	var sections []Section

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	var currentPath []string
	var currentLevels []int

	var currentSection *Section
	var contentBuilder strings.Builder

	flushSection := func(endLine int) {
		if currentSection != nil {
			currentSection.Content = strings.TrimSpace(contentBuilder.String())
			currentSection.End = endLine
			sections = append(sections, *currentSection)
			contentBuilder.Reset()
		}
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if match := headingRegex.FindStringSubmatch(line); len(match) > 0 {
			flushSection(lineNum - 1)

			level := len(match[1])
			heading := strings.TrimSpace(match[2])

			for len(currentLevels) > 0 && currentLevels[len(currentLevels)-1] >= level {
				currentPath = currentPath[:len(currentPath)-1]
				currentLevels = currentLevels[:len(currentLevels)-1]
			}
			currentPath = append(currentPath, match[1]+" "+heading)
			currentLevels = append(currentLevels, level)

			currentSection = &Section{
				Level:   level,
				Heading: heading,
				Path:    strings.Join(currentPath, " > "),
				Start:   lineNum,
			}
		} else if currentSection != nil {
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
		}
	}

	flushSection(lineNum)

	return sections
}

// PlainText returns the body with heading markers removed, the form that is
// chunked and embedded.
func (d *PaperDoc) PlainText() string {
	lines := strings.Split(d.Content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if match := headingRegex.FindStringSubmatch(line); len(match) > 0 {
			out = append(out, strings.TrimSpace(match[2]))
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
