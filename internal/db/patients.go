package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

type patientRow struct {
	PatientID string  `json:"patient_id"`
	Name      *string `json:"name"`
	Age       *int    `json:"age"`
	Gender    *string `json:"gender"`
	BloodType *string `json:"blood_type"`
}

// PatientProfile reads the patient with conditions, medications, labs and
// allergies. An unknown patient yields the empty profile, not an error.
func (c *Client) PatientProfile(ctx context.Context, patientID string) (*models.PatientProfile, error) {
	vars := map[string]any{"id": patientID}

	rows, err := queryRows[patientRow](ctx, c, `
		SELECT meta::id(id) AS patient_id, name, age, gender, blood_type
		FROM type::record("patient", $id)
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	if len(rows) == 0 {
		return models.EmptyProfile(patientID), nil
	}
	row := rows[0]

	profile := &models.PatientProfile{
		PatientID:   patientID,
		Name:        row.Name,
		Conditions:  []models.Condition{},
		Medications: []models.Medication{},
		LabResults:  []models.LabResult{},
	}
	if row.Age != nil || row.Gender != nil || row.BloodType != nil {
		profile.Demographics = &models.Demographics{
			Age:       row.Age,
			Gender:    deref(row.Gender),
			BloodType: deref(row.BloodType),
		}
	}

	if profile.Conditions, err = queryRows[models.Condition](ctx, c, `
		SELECT out.name AS name, severity, status, diagnosed
		FROM has_condition WHERE in = type::record("patient", $id)
		ORDER BY name
	`, vars); err != nil {
		return nil, fmt.Errorf("get conditions: %w", err)
	}

	if profile.Medications, err = queryRows[models.Medication](ctx, c, `
		SELECT out.name AS name, dosage, frequency, purpose, treats
		FROM prescribed WHERE in = type::record("patient", $id)
		ORDER BY name
	`, vars); err != nil {
		return nil, fmt.Errorf("get medications: %w", err)
	}

	if profile.LabResults, err = queryRows[models.LabResult](ctx, c, `
		SELECT out.name AS name, out.result AS result, out.unit AS unit,
			out.normal_range AS normal_range, out.status AS status, out.date AS date
		FROM has_lab WHERE in = type::record("patient", $id)
		ORDER BY date DESC, name
	`, vars); err != nil {
		return nil, fmt.Errorf("get lab results: %w", err)
	}

	allergies, err := queryRows[struct {
		Name string `json:"name"`
	}](ctx, c, `
		SELECT out.name AS name FROM has_allergy WHERE in = type::record("patient", $id) ORDER BY name
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("get allergies: %w", err)
	}
	for _, a := range allergies {
		profile.Allergies = append(profile.Allergies, a.Name)
	}

	return profile, nil
}

// UpsertPatientFromQuestion creates the patient if needed and records the
// latest question. created_at is set only on creation.
func (c *Client) UpsertPatientFromQuestion(ctx context.Context, patientID, question string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("patient", $id) SET
			last_question = $question,
			updated_at = time::now(),
			created_at = IF created_at THEN created_at ELSE time::now() END
	`, map[string]any{"id": patientID, "question": question})
	if err != nil {
		return fmt.Errorf("upsert patient: %w", wrapQueryError(err))
	}
	return nil
}

// CreatePatient creates a new patient. An existing ID yields ErrAlreadyExists.
func (c *Client) CreatePatient(ctx context.Context, patientID string, name *string, demo *models.Demographics) error {
	vars := map[string]any{"id": patientID, "name": name, "age": nil, "gender": nil, "blood_type": nil}
	if demo != nil {
		vars["age"] = demo.Age
		vars["gender"] = optional(demo.Gender)
		vars["blood_type"] = optional(demo.BloodType)
	}
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("patient", $id) SET
			name = $name,
			age = $age,
			gender = $gender,
			blood_type = $blood_type
	`, vars)
	if err != nil {
		return fmt.Errorf("create patient: %w", wrapQueryError(err))
	}
	return nil
}

// PatientSummary is one row of the patient listing.
type PatientSummary struct {
	PatientID string  `json:"patient_id"`
	Name      *string `json:"name"`
	Age       *int    `json:"age,omitempty"`
	Gender    *string `json:"gender,omitempty"`
}

// ListPatients returns all patients ordered by ID.
func (c *Client) ListPatients(ctx context.Context) ([]PatientSummary, error) {
	rows, err := queryRows[PatientSummary](ctx, c, `
		SELECT meta::id(id) AS patient_id, name, age, gender FROM patient ORDER BY patient_id
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return rows, nil
}

type metricRow struct {
	MetricID    string  `json:"metric_id"`
	Name        string  `json:"name"`
	Unit        *string `json:"unit"`
	NormalRange *string `json:"normal_range"`
}

type readingRow struct {
	MetricID  string `json:"metric_id"`
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// WearableMetrics returns the patient's metrics with their raw readings.
func (c *Client) WearableMetrics(ctx context.Context, patientID string) ([]models.WearableMetric, error) {
	metrics, err := queryRows[metricRow](ctx, c, `
		SELECT meta::id(out) AS metric_id, out.name AS name, out.unit AS unit, out.normal_range AS normal_range
		FROM has_metric WHERE in = type::record("patient", $id)
		ORDER BY name
	`, map[string]any{"id": patientID})
	if err != nil {
		return nil, fmt.Errorf("get wearable metrics: %w", err)
	}
	if len(metrics) == 0 {
		return []models.WearableMetric{}, nil
	}

	ids := make([]string, len(metrics))
	for i, m := range metrics {
		ids[i] = m.MetricID
	}
	readings, err := queryRows[readingRow](ctx, c, `
		SELECT meta::id(in) AS metric_id, out.value AS value, out.timestamp AS timestamp
		FROM recorded_as WHERE meta::id(in) IN $ids
		ORDER BY timestamp
	`, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("get readings: %w", err)
	}

	byMetric := make(map[string][]models.MetricReading, len(metrics))
	for _, r := range readings {
		byMetric[r.MetricID] = append(byMetric[r.MetricID], models.MetricReading{Value: r.Value, Timestamp: r.Timestamp})
	}

	out := make([]models.WearableMetric, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, models.WearableMetric{
			Name:        m.Name,
			Unit:        deref(m.Unit),
			NormalRange: deref(m.NormalRange),
			Readings:    byMetric[m.MetricID],
		})
	}
	return out, nil
}

// DrugConditions returns recorded contraindications for the given lowercase
// drug names.
func (c *Client) DrugConditions(ctx context.Context, drugs []string) ([]models.DrugConditionRow, error) {
	if len(drugs) == 0 {
		return []models.DrugConditionRow{}, nil
	}
	rows, err := queryRows[struct {
		Drug      string  `json:"drug"`
		Condition string  `json:"condition"`
		Severity  *string `json:"severity"`
	}](ctx, c, `
		SELECT in.name AS drug, out.name AS condition, severity
		FROM contraindicated_in WHERE string::lowercase(in.name) IN $drugs
		ORDER BY drug, condition
	`, map[string]any{"drugs": drugs})
	if err != nil {
		return nil, fmt.Errorf("drug conditions: %w", err)
	}

	out := make([]models.DrugConditionRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.DrugConditionRow{Drug: r.Drug, Condition: r.Condition, Severity: deref(r.Severity)})
	}
	return out, nil
}

// AddPatientFact links a confirmed condition, medication or allergy to an
// existing patient. Unknown patients yield ErrNotFound.
func (c *Client) AddPatientFact(ctx context.Context, patientID string, category models.FactCategory, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("add patient fact: empty name")
	}

	var table, edge string
	switch category {
	case models.CategoryCondition:
		table, edge = "condition", "has_condition"
	case models.CategoryMedication:
		table, edge = "medication", "prescribed"
	case models.CategoryAllergy:
		table, edge = "allergy", "has_allergy"
	default:
		return fmt.Errorf("add patient fact: unsupported category %q", category)
	}

	sql := fmt.Sprintf(`
		IF !record::exists(type::record("patient", $id)) {
			THROW "Patient not found"
		};
		UPSERT type::record("%[1]s", $key) SET name = $name;
		LET $existing = (SELECT VALUE id FROM %[2]s WHERE in = type::record("patient", $id) AND out = type::record("%[1]s", $key));
		IF array::len($existing) = 0 {
			RELATE type::record("patient", $id)->%[2]s->type::record("%[1]s", $key);
		};
	`, table, edge)

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":   patientID,
		"key":  models.Slugify(name),
		"name": name,
	})
	if err != nil {
		return fmt.Errorf("add patient fact: %w", wrapQueryError(err))
	}
	return nil
}

// SeedPatient writes a full patient graph. Existing nodes are updated;
// wearable readings are replaced.
func (c *Client) SeedPatient(ctx context.Context, f models.PatientFixture) error {
	if f.ID == "" {
		return fmt.Errorf("seed patient: missing id")
	}
	pid := f.ID

	if _, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("patient", $id) SET
			name = $name, age = $age, gender = $gender, blood_type = $blood_type,
			updated_at = time::now(),
			created_at = IF created_at THEN created_at ELSE time::now() END
	`, map[string]any{
		"id": pid, "name": optional(f.Name), "age": f.Age,
		"gender": optional(f.Gender), "blood_type": optional(f.BloodType),
	}); err != nil {
		return fmt.Errorf("seed patient %s: %w", pid, wrapQueryError(err))
	}

	for _, cond := range f.Conditions {
		if err := c.exec(ctx, `
			UPSERT type::record("condition", $key) SET name = $name;
			DELETE has_condition WHERE in = type::record("patient", $id) AND out = type::record("condition", $key);
			RELATE type::record("patient", $id)->has_condition->type::record("condition", $key)
				SET severity = $severity, status = $status, diagnosed = $diagnosed;
		`, map[string]any{
			"id": pid, "key": models.Slugify(cond.Name), "name": cond.Name,
			"severity": optional(cond.Severity), "status": optional(cond.Status), "diagnosed": optional(cond.DiagnosedDate),
		}); err != nil {
			return fmt.Errorf("seed condition %q: %w", cond.Name, err)
		}
	}

	for _, med := range f.Medications {
		if err := c.exec(ctx, `
			UPSERT type::record("medication", $key) SET name = $name;
			DELETE prescribed WHERE in = type::record("patient", $id) AND out = type::record("medication", $key);
			RELATE type::record("patient", $id)->prescribed->type::record("medication", $key)
				SET dosage = $dosage, frequency = $frequency, purpose = $purpose, treats = $treats;
		`, map[string]any{
			"id": pid, "key": models.Slugify(med.Name), "name": med.Name,
			"dosage": optional(med.Dosage), "frequency": optional(med.Frequency),
			"purpose": optional(med.Purpose), "treats": optional(med.Treats),
		}); err != nil {
			return fmt.Errorf("seed medication %q: %w", med.Name, err)
		}
	}

	for _, lab := range f.LabResults {
		if err := c.exec(ctx, `
			UPSERT type::record("lab_result", $key) SET
				name = $name, result = $result, unit = $unit,
				normal_range = $normal_range, status = $status, date = $date;
			DELETE has_lab WHERE in = type::record("patient", $id) AND out = type::record("lab_result", $key);
			RELATE type::record("patient", $id)->has_lab->type::record("lab_result", $key);
		`, map[string]any{
			"id": pid, "key": patientScopedKey(pid, lab.Name+"-"+lab.Date), "name": lab.Name,
			"result": lab.Result, "unit": optional(lab.Unit), "normal_range": optional(lab.NormalRange),
			"status": optional(lab.Status), "date": optional(lab.Date),
		}); err != nil {
			return fmt.Errorf("seed lab %q: %w", lab.Name, err)
		}
	}

	for _, allergy := range f.Allergies {
		if err := c.AddPatientFact(ctx, pid, models.CategoryAllergy, allergy); err != nil {
			return fmt.Errorf("seed allergy %q: %w", allergy, err)
		}
	}

	for _, m := range f.Wearables {
		if err := c.seedMetric(ctx, pid, m); err != nil {
			return fmt.Errorf("seed metric %q: %w", m.Name, err)
		}
	}

	for _, ci := range f.Contraindications {
		if err := c.AddContraindication(ctx, ci); err != nil {
			return err
		}
	}

	c.logger.Info("seeded patient", "patient_id", pid,
		"conditions", len(f.Conditions), "medications", len(f.Medications), "metrics", len(f.Wearables))
	return nil
}

func (c *Client) seedMetric(ctx context.Context, pid string, m models.WearableMetric) error {
	key := patientScopedKey(pid, m.Name)
	if err := c.exec(ctx, `
		UPSERT type::record("wearable_metric", $key) SET name = $name, unit = $unit, normal_range = $normal_range;
		DELETE has_metric WHERE in = type::record("patient", $id) AND out = type::record("wearable_metric", $key);
		RELATE type::record("patient", $id)->has_metric->type::record("wearable_metric", $key);
		DELETE reading WHERE id IN (SELECT VALUE out FROM recorded_as WHERE in = type::record("wearable_metric", $key));
		DELETE recorded_as WHERE in = type::record("wearable_metric", $key);
	`, map[string]any{
		"id": pid, "key": key, "name": m.Name,
		"unit": optional(m.Unit), "normal_range": optional(m.NormalRange),
	}); err != nil {
		return err
	}

	readings := append([]models.MetricReading(nil), m.Readings...)
	sort.SliceStable(readings, func(i, j int) bool { return readings[i].Timestamp < readings[j].Timestamp })
	for i, r := range readings {
		if err := c.exec(ctx, `
			UPSERT type::record("reading", $rid) SET value = $value, timestamp = $ts;
			RELATE type::record("wearable_metric", $key)->recorded_as->type::record("reading", $rid);
		`, map[string]any{
			"key": key, "rid": fmt.Sprintf("%s-%03d", key, i),
			"value": r.Value, "ts": r.Timestamp,
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddContraindication records that a medication should not be used with a
// condition.
func (c *Client) AddContraindication(ctx context.Context, ci models.Contraindication) error {
	if err := c.exec(ctx, `
		UPSERT type::record("medication", $drug_key) SET name = $drug;
		UPSERT type::record("condition", $cond_key) SET name = $condition;
		DELETE contraindicated_in WHERE in = type::record("medication", $drug_key) AND out = type::record("condition", $cond_key);
		RELATE type::record("medication", $drug_key)->contraindicated_in->type::record("condition", $cond_key)
			SET severity = $severity;
	`, map[string]any{
		"drug_key": models.Slugify(ci.Drug), "drug": ci.Drug,
		"cond_key": models.Slugify(ci.Condition), "condition": ci.Condition,
		"severity": optional(strings.ToLower(ci.Severity)),
	}); err != nil {
		return fmt.Errorf("add contraindication %s/%s: %w", ci.Drug, ci.Condition, err)
	}
	return nil
}

func (c *Client) exec(ctx context.Context, sql string, vars map[string]any) error {
	if _, err := surrealdb.Query[any](ctx, c.db, sql, vars); err != nil {
		return wrapQueryError(err)
	}
	return nil
}

func patientScopedKey(patientID, name string) string {
	return models.Slugify(patientID) + "_" + models.Slugify(name)
}

// optional maps "" to NONE so option<string> fields stay unset.
func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
