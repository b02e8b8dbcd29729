// Package evidence gathers patient, wearable and literature data and merges
// it with drug facts into the context a prompt is built from.
package evidence

import (
	"github.com/raphaelgruber/healthrag/internal/models"
)

// Aggregate merges the four evidence blocks. A wearables block nested in the
// profile is moved to the top level when wear itself is empty. The inputs are
// not modified.
func Aggregate(profile *models.PatientProfile, wear models.WearableSummary, facts models.DrugFacts, papers []models.Paper) models.EvidenceContext {
	ctx := models.EvidenceContext{
		Wearables: wear,
		DrugFacts: &facts,
		Papers:    papers,
	}

	if profile != nil {
		p := *profile
		if p.Wearables != nil {
			if !wear.Available {
				ctx.Wearables = *p.Wearables
			}
			p.Wearables = nil
		}
		ctx.Patient = &p
	}

	if ctx.Wearables.Metrics == nil {
		ctx.Wearables.Metrics = []models.MetricSummary{}
	}
	if ctx.Papers == nil {
		ctx.Papers = []models.Paper{}
	}
	return ctx
}
