package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/service"
	"golang.org/x/term"
)

const defaultWidth = 100

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(defaultTheme.Status)
	verifiedStyle = lipgloss.NewStyle().Foreground(defaultTheme.Success)
	unverified    = lipgloss.NewStyle().Foreground(defaultTheme.Error)
	dimStyle      = lipgloss.NewStyle().Foreground(defaultTheme.Hint)
)

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// outputWidth is the terminal width, or defaultWidth when not a terminal.
func outputWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w
	}
	return defaultWidth
}

// renderAnswer writes the response, the verified claims and the evidence
// summary of an ask result.
func renderAnswer(out io.Writer, res *service.AskResult, width int) {
	body := lipgloss.NewStyle().Width(width)

	fmt.Fprintln(out, headingStyle.Render("Answer"))
	fmt.Fprintln(out, body.Render(strings.TrimSpace(res.Response)))
	fmt.Fprintln(out)

	if len(res.Claims) > 0 {
		verified := 0
		for _, c := range res.Claims {
			if c.Verified {
				verified++
			}
		}
		fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("Claims (%d/%d verified)", verified, len(res.Claims))))
		for _, c := range res.Claims {
			fmt.Fprintln(out, body.Render(formatClaim(c)))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, headingStyle.Render("Evidence"))
	fmt.Fprintln(out, formatContext(res.Context))
	for _, w := range res.Warnings {
		fmt.Fprintln(out, unverified.Render("! "+w))
	}
	if res.PromptTruncated {
		fmt.Fprintln(out, dimStyle.Render("(evidence was shortened to fit the model context)"))
	}
	if res.Usage.Total() > 0 {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("tokens: %d in, %d out", res.Usage.PromptTokens, res.Usage.CompletionTokens)))
	}
}

func formatClaim(c models.VerifiedClaim) string {
	mark := unverified.Render("✗")
	if c.Verified {
		mark = verifiedStyle.Render("✓")
	}
	line := fmt.Sprintf("%s [%s] %s", mark, c.Type, c.Statement)
	for _, src := range c.Sources {
		line += "\n    " + dimStyle.Render(formatSource(src))
	}
	return line
}

func formatSource(s models.Source) string {
	switch s.Type {
	case models.SourcePaper:
		if s.Title != "" {
			return fmt.Sprintf("PMID %s: %s", s.PMID, s.Title)
		}
		return "PMID " + s.PMID
	default:
		parts := append(append([]string{}, s.Medications...), s.Conditions...)
		if len(parts) == 0 {
			return "patient record"
		}
		return "patient record: " + strings.Join(parts, ", ")
	}
}

func formatContext(c service.ContextSummary) string {
	wear := "none"
	if c.WearablesAvailable {
		wear = fmt.Sprintf("%d metrics", c.WearablesCount)
	}
	return fmt.Sprintf("  conditions %d · medications %d · labs %d · wearables %s · papers %d · drug warnings %d",
		c.ConditionsCount, c.MedsCount, c.LabsCount, wear, c.PapersFound, c.DrugWarningsCount)
}

// renderStats prints runtime statistics, one block per operation.
func renderStats(out io.Writer, snap metrics.Snapshot) {
	fmt.Fprintln(out, headingStyle.Render("Runtime statistics (in-memory, since start)"))
	fmt.Fprintf(out, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	names := snap.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No operations recorded yet."))
	}
	for _, name := range names {
		op := snap.Operations[name]
		fmt.Fprintf(out, "\n%s:\n", name)
		printOpStats(out, op)
		printTokenStats(out, op)
	}

	if len(snap.Errors) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		for name, n := range snap.Errors {
			fmt.Fprintf(out, "  %-15s %d\n", name, n)
		}
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(out io.Writer, op metrics.OperationSnapshot) {
	fmt.Fprintf(out, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(out, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(out io.Writer, op metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(out, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(out, ", avg %.0f", *op.AvgInputTokens)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(out, ", avg %.0f", *op.AvgOutputTokens)
	}
	fmt.Fprintln(out)
}
