package cli

import (
	"fmt"
	"strconv"

	"github.com/raphaelgruber/healthrag/internal/db"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/server"
	"github.com/spf13/cobra"
)

var (
	patientName      string
	patientAge       int
	patientGender    string
	patientBloodType string
)

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "List or register patients",
	Args:  cobra.NoArgs,
	RunE:  runListPatients,
}

var patientsAddCmd = &cobra.Command{
	Use:   "add <patient-id>",
	Short: "Register a new patient",
	Long: `Register a new patient with optional demographics. Fails if the ID is
already taken.

Examples:
  healthrag patients add patient-7 --name "John Roe" --age 64 --gender male`,
	Args: cobra.ExactArgs(1),
	RunE: runAddPatient,
}

func init() {
	patientsAddCmd.Flags().StringVar(&patientName, "name", "", "display name")
	patientsAddCmd.Flags().IntVar(&patientAge, "age", 0, "age in years")
	patientsAddCmd.Flags().StringVar(&patientGender, "gender", "", "gender")
	patientsAddCmd.Flags().StringVar(&patientBloodType, "blood-type", "", "blood type")
	patientsCmd.AddCommand(patientsAddCmd)
}

func runListPatients(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var patients []db.PatientSummary
	var err error
	if c := remoteClient(); c != nil {
		patients, err = c.ListPatients(ctx)
	} else {
		a, openErr := getApp(ctx, false)
		if openErr != nil {
			return openErr
		}
		patients, err = a.DB.ListPatients(ctx)
	}
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(patients) == 0 {
		fmt.Fprintln(out, "No patients found")
		return nil
	}
	fmt.Fprintf(out, "%-20s %-24s %-5s %s\n", "ID", "NAME", "AGE", "GENDER")
	for _, p := range patients {
		age := "-"
		if p.Age != nil {
			age = strconv.Itoa(*p.Age)
		}
		fmt.Fprintf(out, "%-20s %-24s %-5s %s\n", p.PatientID, orDash(p.Name), age, orDash(p.Gender))
	}
	return nil
}

func runAddPatient(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req := server.CreatePatientRequest{
		PatientID: args[0],
		Gender:    patientGender,
		BloodType: patientBloodType,
	}
	if patientName != "" {
		req.Name = &patientName
	}
	if patientAge > 0 {
		req.Age = &patientAge
	}

	var err error
	if c := remoteClient(); c != nil {
		err = c.CreatePatient(ctx, req)
	} else {
		a, openErr := getApp(ctx, false)
		if openErr != nil {
			return openErr
		}
		err = a.DB.CreatePatient(ctx, req.PatientID, req.Name, &models.Demographics{
			Age: req.Age, Gender: req.Gender, BloodType: req.BloodType,
		})
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), verifiedStyle.Render("✓ Created "+req.PatientID))
	return nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
