// Package prompt renders an evidence context into the bounded instruction
// string sent to the language model.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/wearables"
)

const (
	maxPapers    = 3
	previewRunes = 300
	missing      = "not recorded"
)

// Build renders the full prompt. It only formats what ctx holds; the
// question is embedded verbatim and the prompt ends with Disclaimer.
func Build(question string, ctx models.EvidenceContext) string {
	var b strings.Builder

	b.WriteString(preamble)
	b.WriteString("\n\n")

	writeSection(&b, PatientMarker, formatPatient(ctx.Patient))
	writeSection(&b, WearableMarker, formatWearables(ctx.Wearables))
	writeSection(&b, MedicationMarker, formatDrugFacts(ctx.DrugFacts))
	writeSection(&b, LiteratureMarker, literatureRules+"\n"+Banner+"\n"+formatPapers(ctx.Papers))
	writeSection(&b, QuestionMarker, question)
	writeSection(&b, FormatMarker, "\n"+responseFormat)
	writeSection(&b, RulesMarker, outputRules)

	b.WriteString(Banner)
	b.WriteString("\n")
	b.WriteString(Disclaimer)
	return b.String()
}

// SectionHeader is the three-line heading of a named section.
func SectionHeader(name string) string {
	return Banner + "\n" + name + "\n" + Banner + "\n"
}

func writeSection(b *strings.Builder, name, body string) {
	b.WriteString(SectionHeader(name))
	b.WriteString(body)
	b.WriteString("\n\n")
}

func formatPatient(p *models.PatientProfile) string {
	if p == nil {
		return NoPatientData
	}

	id := p.PatientID
	if id == "" {
		id = "Unknown"
	}
	lines := []string{"Patient ID: " + id}
	if p.Name != nil && *p.Name != "" {
		lines = append(lines, "Name: "+*p.Name)
	}

	if d := p.Demographics; d != nil {
		age := missing
		if d.Age != nil {
			age = strconv.Itoa(*d.Age)
		}
		lines = append(lines, fmt.Sprintf("Demographics: Age %s, Gender %s, Blood Type %s",
			age, orMissing(d.Gender), orMissing(d.BloodType)))
	}

	if len(p.Conditions) > 0 {
		lines = append(lines, "\nConditions:")
		for _, c := range p.Conditions {
			diagnosed := ""
			if c.DiagnosedDate != "" {
				diagnosed = ", Diagnosed: " + c.DiagnosedDate
			}
			lines = append(lines, fmt.Sprintf("  - %s (Severity: %s, Status: %s%s)",
				c.Name, orMissing(c.Severity), orMissing(c.Status), diagnosed))
		}
	}

	if len(p.Medications) > 0 {
		lines = append(lines, "\nMedications:")
		for _, m := range p.Medications {
			line := fmt.Sprintf("  - %s (%s, %s)", m.Name, orMissing(m.Dosage), orMissing(m.Frequency))
			if m.Purpose != "" {
				line += " — Purpose: " + m.Purpose
			}
			if m.Treats != "" {
				line += " | Treats: " + m.Treats
			}
			lines = append(lines, line)
		}
	}

	if len(p.LabResults) > 0 {
		lines = append(lines, "\nRecent Lab Results:")
		for _, l := range p.LabResults {
			result := strings.TrimSpace(fmt.Sprintf("%s %s", labValue(l.Result), l.Unit))
			lines = append(lines, fmt.Sprintf("  - %s: %s (Normal: %s, Status: %s, Date: %s)",
				l.Name, result, orDefault(l.NormalRange, "N/A"), orMissing(l.Status), orMissing(l.Date)))
		}
	}

	if len(p.Allergies) > 0 {
		lines = append(lines, "\nAllergies: "+strings.Join(p.Allergies, ", "))
	}

	return strings.Join(lines, "\n")
}

func formatWearables(w models.WearableSummary) string {
	if !w.Available {
		return NoWearableData
	}

	var lines []string
	for _, m := range w.Metrics {
		lines = append(lines, fmt.Sprintf("  - %s: Latest %s, Previous %s, Avg %s, Normal Range: %s, Trend: %s",
			orDefault(m.Metric, "Unknown Metric"),
			orMissing(m.LatestValue),
			orMissing(m.PreviousValue),
			orMissing(m.AverageValue),
			orDefault(m.NormalRange, "N/A"),
			wearables.SanitizeTrend(m.Trend)))
		for _, r := range m.DatedReadings {
			lines = append(lines, fmt.Sprintf("      [%s] → %s",
				orDefault(r.Date, "unknown date"), orDefault(r.Value, "unknown value")))
		}
	}
	if len(lines) == 0 {
		return NoWearableMetrics
	}
	return strings.Join(lines, "\n")
}

func formatDrugFacts(f *models.DrugFacts) string {
	if f == nil {
		return NoMedicationData
	}

	var lines []string
	for _, d := range f.DrugDrugInteractions {
		lines = append(lines, fmt.Sprintf("  - Drug–Drug (%s): %s → %s",
			severity(d.Severity), strings.Join(d.DrugsInvolved, ", "), d.Interaction))
	}
	for _, d := range f.DrugConditionInteractions {
		if d.Type == models.FactError {
			lines = append(lines, "  - Note: "+d.Message)
			continue
		}
		lines = append(lines, fmt.Sprintf("  - Drug–Condition (%s): %s contraindicated in %s",
			severity(d.Severity), d.Drug, d.Condition))
	}
	for _, d := range f.DrugEffectFacts {
		lines = append(lines, fmt.Sprintf("  - Drug Effect: %s → %s (Mechanism: %s)",
			d.Drug, d.Effect, orDefault(d.Mechanism, "not documented")))
	}
	if len(lines) == 0 {
		return NoMedicationRisks
	}
	return strings.Join(lines, "\n")
}

func formatPapers(papers []models.Paper) string {
	if len(papers) == 0 {
		return NoLiterature
	}

	var lines []string
	for i, p := range papers {
		if i == maxPapers {
			break
		}
		year := "N/A"
		if p.Year > 0 {
			year = strconv.Itoa(p.Year)
		}
		lines = append(lines, fmt.Sprintf("[%d] %s (%s, %s)",
			i+1, orDefault(p.Title, "Untitled"), orDefault(p.Journal, "Unknown Journal"), year))
		if preview := truncateRunes(p.TextPreview, previewRunes); preview != "" {
			lines = append(lines, "     Summary: "+preview)
		}
	}
	return strings.Join(lines, "\n")
}

func labValue(v any) string {
	switch x := v.(type) {
	case nil:
		return missing
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case string:
		return orMissing(x)
	default:
		return fmt.Sprint(x)
	}
}

func severity(s models.Severity) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

func orMissing(s string) string {
	return orDefault(s, missing)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
