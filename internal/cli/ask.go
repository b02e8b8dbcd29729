package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/service"
	"github.com/spf13/cobra"
)

var (
	askTopK   int
	askJSON   bool
	askStages bool
)

var askCmd = &cobra.Command{
	Use:   "ask <patient-id> <question>",
	Short: "Answer a patient's health question from their evidence",
	Long: `Answer a health question for one patient.

The answer is generated from the patient's profile, wearable trends, drug
rules and the most relevant indexed papers. Every statement in the answer is
then checked against that evidence and reported as verified or not.

Examples:
  healthrag ask patient-1 "Is my blood pressure getting better?"
  healthrag ask patient-1 "Can I take ibuprofen with my medication?" --top-k 8
  healthrag ask patient-1 "How is my glucose?" --server http://localhost:8484 --stages`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "papers to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the raw result as JSON")
	askCmd.Flags().BoolVar(&askStages, "stages", false, "print pipeline stages as they run")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req := service.AskRequest{
		PatientID: args[0],
		Question:  strings.Join(args[1:], " "),
		TopK:      askTopK,
	}

	printStage := func(ev service.StageEvent) {
		if askStages {
			fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf("→ %s (%dms)", ev.Stage, ev.ElapsedMs)))
		}
	}

	var res *service.AskResult
	if c := remoteClient(); c != nil {
		var err error
		res, err = c.AskStream(ctx, req, func(ev service.StageEvent) error {
			printStage(ev)
			return nil
		})
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
	} else {
		a, err := getApp(ctx, true)
		if err != nil {
			return err
		}
		res, err = a.Ask.Ask(ctx, req, printStage)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
	}

	if askJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	renderAnswer(cmd.OutOrStdout(), res, outputWidth())
	return nil
}
