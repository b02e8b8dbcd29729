package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/spf13/cobra"
)

var intentYes bool

var intentCmd = &cobra.Command{
	Use:   "intent <patient-id> <text>",
	Short: "Propose new patient facts from free text and confirm them",
	Long: `Ask the language model which new conditions, medications or allergies
the text mentions. Each proposed fact is only written to the patient record
after you confirm it.

On a terminal you are asked per fact. Use --yes to confirm everything, or
pipe the output to only list the proposals.

Examples:
  healthrag intent patient-1 "I was just put on metformn for my sugar"
  healthrag intent patient-1 "allergic to penicilin" --yes`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIntent,
}

func init() {
	intentCmd.Flags().BoolVarP(&intentYes, "yes", "y", false, "confirm all proposed facts")
}

// intentBackend routes analysis and confirmation to the local service or the server.
type intentBackend struct {
	analyze func(ctx context.Context, text string) ([]models.HealthFact, error)
	confirm func(ctx context.Context, patientID string, category models.FactCategory, name string) error
}

func runIntent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	patientID := args[0]
	text := strings.Join(args[1:], " ")

	backend, err := newIntentBackend(ctx)
	if err != nil {
		return err
	}

	facts, err := backend.analyze(ctx, text)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(facts) == 0 {
		fmt.Fprintln(out, "No new health facts found.")
		return nil
	}

	interactive := !intentYes && isTerminal(os.Stdin)
	confirmed, err := confirmFacts(ctx, out, bufio.NewReader(cmd.InOrStdin()), facts, intentYes, interactive,
		func(f models.HealthFact) error {
			return backend.confirm(ctx, patientID, f.Category, f.NormalizedTerm)
		})
	if err != nil {
		return err
	}
	if intentYes || interactive {
		fmt.Fprintln(out, verifiedStyle.Render(fmt.Sprintf("✓ %d of %d facts added to %s", confirmed, len(facts), patientID)))
	}
	return nil
}

func newIntentBackend(ctx context.Context) (intentBackend, error) {
	if c := remoteClient(); c != nil {
		return intentBackend{analyze: c.AnalyzeIntent, confirm: c.ConfirmFact}, nil
	}
	a, err := getApp(ctx, true)
	if err != nil {
		return intentBackend{}, err
	}
	return intentBackend{
		analyze: func(ctx context.Context, text string) ([]models.HealthFact, error) {
			return a.Intent.Analyze(ctx, text), nil
		},
		confirm: a.Intent.Confirm,
	}, nil
}

// confirmFacts lists each fact and writes the ones the user accepts. With
// all=true every fact is written; without interaction none are.
func confirmFacts(ctx context.Context, out io.Writer, in *bufio.Reader, facts []models.HealthFact, all, interactive bool, write func(models.HealthFact) error) (int, error) {
	confirmed := 0
	for _, f := range facts {
		label := fmt.Sprintf("%s: %s", f.Category, f.NormalizedTerm)
		if !strings.EqualFold(f.OriginalTerm, f.NormalizedTerm) && f.OriginalTerm != "" {
			label += dimStyle.Render(fmt.Sprintf(" (from %q)", f.OriginalTerm))
		}

		accept := all
		if !all && interactive {
			fmt.Fprintf(out, "Add %s? [y/N] ", label)
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				return confirmed, nil
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			accept = answer == "y" || answer == "yes"
		} else if !all {
			fmt.Fprintf(out, "- %s\n", label)
		}

		if !accept {
			continue
		}
		if err := ctx.Err(); err != nil {
			return confirmed, err
		}
		if err := write(f); err != nil {
			return confirmed, fmt.Errorf("confirm %s: %w", f.NormalizedTerm, err)
		}
		confirmed++
	}
	return confirmed, nil
}
