package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var seedWipe bool

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>...",
	Short: "Load patient fixtures into the store",
	Long: `Load patient graphs from YAML fixtures: demographics, conditions,
medications, lab results, allergies, wearable metrics with readings and
drug-condition contraindications.

A fixture holds either one patient at the top level or a list under
"patients". Contraindications may also be listed at the top level.

Example fixture:

  patients:
    - id: patient-1
      name: Jane Doe
      age: 58
      conditions:
        - {name: Type 2 Diabetes, severity: moderate, status: active}
      medications:
        - {name: Metformin, dosage: 500mg, frequency: twice daily}
      wearables:
        - metric: heart_rate
          unit: bpm
          normal_range: 60-100
          readings:
            - {value: 72, timestamp: "2024-05-01T08:00:00Z"}
  contraindications:
    - {drug: Ibuprofen, condition: Chronic Kidney Disease, severity: high}

Examples:
  healthrag seed fixtures/patients.yaml
  healthrag seed fixtures/*.yaml --wipe`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedWipe, "wipe", false, "delete all data before seeding (testing only)")
}

// SeedFile is the YAML fixture layout.
type SeedFile struct {
	Patients          []models.PatientFixture   `yaml:"patients"`
	Contraindications []models.Contraindication `yaml:"contraindications"`
}

// ParseSeedFile decodes a fixture. A document without a patients list is
// read as a single patient.
func ParseSeedFile(data []byte) (*SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Patients) == 0 {
		var single models.PatientFixture
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parse fixture: %w", err)
		}
		if single.ID != "" {
			f.Patients = []models.PatientFixture{single}
		}
	}
	if len(f.Patients) == 0 && len(f.Contraindications) == 0 {
		return nil, errors.New("fixture contains no patients or contraindications")
	}
	for i, p := range f.Patients {
		if p.ID == "" {
			return nil, fmt.Errorf("patient %d: missing id", i+1)
		}
	}
	return &f, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	files := make([]*SeedFile, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read fixture: %w", err)
		}
		f, err := ParseSeedFile(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		files = append(files, f)
	}

	a, err := getApp(ctx, false)
	if err != nil {
		return err
	}

	if seedWipe {
		if err := a.DB.WipeData(ctx); err != nil {
			return fmt.Errorf("wipe data: %w", err)
		}
		fmt.Fprintln(out, "Wiped existing data.")
	}

	var patients, contraindications int
	for _, f := range files {
		for _, p := range f.Patients {
			if err := a.DB.SeedPatient(ctx, p); err != nil {
				return err
			}
			printSeeded(out, p)
			patients++
		}
		for _, ci := range f.Contraindications {
			if err := a.DB.AddContraindication(ctx, ci); err != nil {
				return err
			}
			contraindications++
		}
	}

	fmt.Fprintln(out, verifiedStyle.Render(fmt.Sprintf("✓ Seeded %d patients, %d contraindications", patients, contraindications)))
	return nil
}

func printSeeded(out io.Writer, p models.PatientFixture) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "  %s", p.ID)
	if p.Name != "" {
		fmt.Fprintf(&b, " (%s)", p.Name)
	}
	fmt.Fprintf(&b, ": %d conditions, %d medications, %d labs, %d metrics",
		len(p.Conditions), len(p.Medications), len(p.LabResults), len(p.Wearables))
	fmt.Fprintln(out, b.String())
}
