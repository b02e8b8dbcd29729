package evidence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProfiles struct {
	profile *models.PatientProfile
	err     error
}

func (f fakeProfiles) PatientProfile(_ context.Context, id string) (*models.PatientProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil {
		return models.EmptyProfile(id), nil
	}
	return f.profile, nil
}

type fakeWearables struct {
	metrics []models.WearableMetric
	err     error
}

func (f fakeWearables) WearableMetrics(context.Context, string) ([]models.WearableMetric, error) {
	return f.metrics, f.err
}

type fakeLiterature struct {
	papers []models.Paper
	err    error
	gotK   *int
}

func (f fakeLiterature) SearchPapers(_ context.Context, _ string, topK int) ([]models.Paper, error) {
	if f.gotK != nil {
		*f.gotK = topK
	}
	return f.papers, f.err
}

// blockingLiterature waits for cancellation.
type blockingLiterature struct{}

func (blockingLiterature) SearchPapers(ctx context.Context, _ string, _ int) ([]models.Paper, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAggregate_RelocatesNestedWearables(t *testing.T) {
	nested := &models.WearableSummary{Available: true, Metrics: []models.MetricSummary{{Metric: "heart_rate"}}}
	profile := &models.PatientProfile{PatientID: "p1", Wearables: nested}

	ctx := Aggregate(profile, models.WearableSummary{}, models.DrugFacts{}, nil)

	require.NotNil(t, ctx.Patient)
	assert.Nil(t, ctx.Patient.Wearables)
	assert.True(t, ctx.Wearables.Available)
	assert.Equal(t, "heart_rate", ctx.Wearables.Metrics[0].Metric)
	assert.NotNil(t, profile.Wearables, "input profile is not modified")
}

func TestAggregate_TopLevelWearablesWin(t *testing.T) {
	nested := &models.WearableSummary{Available: true, Metrics: []models.MetricSummary{{Metric: "nested"}}}
	top := models.WearableSummary{Available: true, Metrics: []models.MetricSummary{{Metric: "top"}}}

	ctx := Aggregate(&models.PatientProfile{Wearables: nested}, top, models.DrugFacts{}, nil)

	assert.Equal(t, "top", ctx.Wearables.Metrics[0].Metric)
	assert.Nil(t, ctx.Patient.Wearables)
}

func TestAggregate_NilInputs(t *testing.T) {
	ctx := Aggregate(nil, models.WearableSummary{}, models.DrugFacts{}, nil)

	assert.Nil(t, ctx.Patient)
	assert.NotNil(t, ctx.DrugFacts)
	assert.NotNil(t, ctx.Papers)
	assert.NotNil(t, ctx.Wearables.Metrics)
	assert.Empty(t, ctx.MedicationNames())
}

func TestGather_AllSources(t *testing.T) {
	var gotK int
	g := NewGatherer(
		fakeProfiles{profile: &models.PatientProfile{PatientID: "p1", Medications: []models.Medication{{Name: "Aspirin"}}}},
		fakeWearables{metrics: []models.WearableMetric{{
			Name: "heart_rate", Unit: "bpm",
			Readings: []models.MetricReading{{Value: 70, Timestamp: "2026-02-01"}, {Value: 72, Timestamp: "2026-02-02"}},
		}}},
		fakeLiterature{papers: []models.Paper{{PMID: "9"}}, gotK: &gotK},
		nil,
	)

	out, err := g.Gather(context.Background(), "p1", "aspirin and heart rate", 5)

	require.NoError(t, err)
	assert.Equal(t, "p1", out.Profile.PatientID)
	assert.True(t, out.Wearables.Available)
	assert.Equal(t, "72 bpm", out.Wearables.Metrics[0].LatestValue)
	assert.Len(t, out.Papers, 1)
	assert.Equal(t, 5, gotK)
	assert.Empty(t, out.Warnings)
}

func TestGather_FailuresDegrade(t *testing.T) {
	g := NewGatherer(
		fakeProfiles{err: errors.New("db down")},
		fakeWearables{err: errors.New("db down")},
		fakeLiterature{err: errors.New("index missing")},
		nil,
	)

	out, err := g.Gather(context.Background(), "p2", "question", 3)

	require.NoError(t, err)
	assert.Equal(t, "p2", out.Profile.PatientID)
	assert.Nil(t, out.Profile.Name)
	assert.False(t, out.Wearables.Available)
	assert.Empty(t, out.Papers)
	assert.Len(t, out.Warnings, 3)
}

func TestGather_NilCollaborators(t *testing.T) {
	out, err := NewGatherer(nil, nil, nil, nil).Gather(context.Background(), "p3", "q", 5)

	require.NoError(t, err)
	assert.True(t, out.Profile.IsEmpty())
	assert.NotNil(t, out.Papers)
}

func TestGather_Cancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewGatherer(fakeProfiles{}, nil, blockingLiterature{}, nil).Gather(ctx, "p4", "q", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
