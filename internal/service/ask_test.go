package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/raphaelgruber/healthrag/internal/config"
	"github.com/raphaelgruber/healthrag/internal/drugs"
	"github.com/raphaelgruber/healthrag/internal/evidence"
	"github.com/raphaelgruber/healthrag/internal/llm"
	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu        sync.Mutex
	questions []string
	err       error
}

func (f *fakeWriter) UpsertPatientFromQuestion(_ context.Context, _, question string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	return f.err
}

type fakeGatherer struct {
	out   *evidence.Gathered
	err   error
	calls int
	topK  int
}

func (f *fakeGatherer) Gather(_ context.Context, _, _ string, topK int) (*evidence.Gathered, error) {
	f.calls++
	f.topK = topK
	return f.out, f.err
}

type fakeAnswerer struct {
	text   string
	usage  llm.Usage
	prompt string
}

func (f *fakeAnswerer) Answer(_ context.Context, p string) (string, llm.Usage) {
	f.prompt = p
	return f.text, f.usage
}

type noConditions struct{}

func (noConditions) DrugConditions(context.Context, []string) ([]models.DrugConditionRow, error) {
	return nil, nil
}

func strPtr(s string) *string { return &s }

func newEngine(t *testing.T) *drugs.Engine {
	t.Helper()
	rules, err := drugs.DefaultRules()
	require.NoError(t, err)
	return drugs.NewEngine(rules, noConditions{}, nil)
}

func gathered() *evidence.Gathered {
	return &evidence.Gathered{
		Profile: &models.PatientProfile{
			PatientID:   "p1",
			Name:        strPtr("Ada"),
			Conditions:  []models.Condition{{Name: "Type 2 Diabetes"}},
			Medications: []models.Medication{{Name: "Metformin"}, {Name: "Contrast Dye"}},
			LabResults:  []models.LabResult{{Name: "HbA1c", Result: 7.2}},
		},
		Wearables: models.WearableSummary{Available: true, Metrics: []models.MetricSummary{{Metric: "heart_rate"}}},
		Papers: []models.Paper{{
			PMID: "27086880", Title: "Metformin and vitamin B12",
			TextPreview: "Long-term metformin use lowers vitamin B12 levels.",
		}},
	}
}

const answer = `- Risk: Metformin with contrast dye can cause lactic acidosis.
- Monitoring: Track vitamin B12 levels every year.`

func TestAsk_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  AskRequest
	}{
		{"missing patient", AskRequest{Question: "Is this safe?"}},
		{"blank patient", AskRequest{PatientID: "  ", Question: "Is this safe?"}},
		{"missing question", AskRequest{PatientID: "p1"}},
		{"blank question", AskRequest{PatientID: "p1", Question: "\n\t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGatherer{out: gathered()}
			svc := NewAskService(AskDeps{Gatherer: g, Drugs: newEngine(t), Answerer: &fakeAnswerer{}}, 5, 0, nil, nil)

			_, err := svc.Ask(context.Background(), tt.req, nil)

			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Zero(t, g.calls)
		})
	}
}

func TestAsk_FullPipeline(t *testing.T) {
	writer := &fakeWriter{}
	g := &fakeGatherer{out: gathered()}
	ans := &fakeAnswerer{text: answer, usage: llm.Usage{PromptTokens: 800, CompletionTokens: 60}}
	collector := metrics.NewCollector()
	svc := NewAskService(AskDeps{Writer: writer, Gatherer: g, Drugs: newEngine(t), Answerer: ans}, 3, 0, collector, nil)

	var stages []Stage
	res, err := svc.Ask(context.Background(), AskRequest{PatientID: "p1", Question: " Can I get a CT scan? "}, func(e StageEvent) {
		stages = append(stages, e.Stage)
	})

	require.NoError(t, err)
	_, err = uuid.Parse(res.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Can I get a CT scan?"}, writer.questions)
	assert.Equal(t, 3, g.topK, "service default top-k")
	assert.Equal(t, answer, res.Response)
	assert.Contains(t, ans.prompt, "Can I get a CT scan?")
	assert.Contains(t, ans.prompt, "lactic acidosis")

	require.Len(t, res.Claims, 2)
	assert.Equal(t, models.ClaimRisk, res.Claims[0].Type)
	assert.True(t, res.Claims[0].Verified)
	assert.Equal(t, models.ClaimMonitoring, res.Claims[1].Type)

	assert.Equal(t, ContextSummary{
		ConditionsCount:    1,
		MedsCount:          2,
		LabsCount:          1,
		WearablesAvailable: true,
		WearablesCount:     1,
		PapersFound:        1,
		DrugWarningsCount:  1,
		HasDrugWarnings:    true,
	}, res.Context)
	assert.Equal(t, 860, res.Usage.Total())
	assert.False(t, res.PromptTruncated)

	assert.Equal(t, []Stage{StageGather, StageDrugCheck, StageCompile, StageGenerate, StageExtract, StageVerify, StageDone}, stages)

	snap := collector.Snapshot()
	assert.Contains(t, snap.Operations, metrics.OpAsk)
	require.Contains(t, snap.Operations, metrics.OpLLMGenerate)
	assert.Equal(t, int64(800), *snap.Operations[metrics.OpLLMGenerate].TotalInputTokens)
}

func TestAsk_RequestTopKWins(t *testing.T) {
	g := &fakeGatherer{out: gathered()}
	svc := NewAskService(AskDeps{Gatherer: g, Drugs: newEngine(t), Answerer: &fakeAnswerer{text: "ok"}}, 5, 0, nil, nil)

	_, err := svc.Ask(context.Background(), AskRequest{PatientID: "p1", Question: "q", TopK: 9}, nil)

	require.NoError(t, err)
	assert.Equal(t, 9, g.topK)
}

func TestAsk_DegradedEvidence(t *testing.T) {
	writer := &fakeWriter{err: errors.New("store down")}
	g := &fakeGatherer{out: &evidence.Gathered{
		Profile:  models.EmptyProfile("p1"),
		Warnings: []string{"literature unavailable: timeout"},
	}}
	collector := metrics.NewCollector()
	svc := NewAskService(AskDeps{Writer: writer, Gatherer: g, Drugs: newEngine(t), Answerer: &fakeAnswerer{text: llm.MsgUnavailable}}, 5, 0, collector, nil)

	res, err := svc.Ask(context.Background(), AskRequest{PatientID: "p1", Question: "How am I?"}, nil)

	require.NoError(t, err)
	assert.Equal(t, llm.MsgUnavailable, res.Response)
	assert.Equal(t, []string{"literature unavailable: timeout"}, res.Warnings)
	assert.NotEmpty(t, res.Claims, "fallback claim for unstructured text")
	assert.Zero(t, res.Context.MedsCount)
	assert.False(t, res.Context.HasDrugWarnings)
	assert.Equal(t, int64(1), collector.Snapshot().Errors["patient_upsert"])
}

func TestAsk_PromptTruncated(t *testing.T) {
	out := gathered()
	for i := 0; i < 3; i++ {
		out.Papers = append(out.Papers, models.Paper{PMID: "x", Title: "Long paper", TextPreview: strings.Repeat("insulin dosing ", 30)})
	}
	ans := &fakeAnswerer{text: "ok"}
	svc := NewAskService(AskDeps{Gatherer: &fakeGatherer{out: out}, Drugs: newEngine(t), Answerer: ans}, 5, 1000, nil, nil)

	res, err := svc.Ask(context.Background(), AskRequest{PatientID: "p1", Question: "Is metformin safe?"}, nil)

	require.NoError(t, err)
	assert.True(t, res.PromptTruncated)
	assert.Contains(t, ans.prompt, "Is metformin safe?")
	assert.NotContains(t, ans.prompt, "insulin dosing")
}

type recordingGenerator struct {
	prompt string
}

func (g *recordingGenerator) Generate(_ context.Context, _, p string) (string, llm.Usage, error) {
	g.prompt = p
	return "ok", llm.Usage{}, nil
}

func TestAsk_DefaultBudgetsKeepClosingSections(t *testing.T) {
	t.Setenv("HEALTHRAG_MAX_PROMPT_CHARS", "")
	t.Setenv("HEALTHRAG_LLM_MAX_PROMPT_CHARS", "")
	cfg := config.Load()

	tests := []struct {
		name string
		out  *evidence.Gathered
	}{
		{"empty context", &evidence.Gathered{}},
		{"two drugs two conditions", func() *evidence.Gathered {
			g := gathered()
			g.Profile.Conditions = append(g.Profile.Conditions, models.Condition{Name: "Hypertension"})
			return g
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &recordingGenerator{}
			svc := NewAskService(AskDeps{
				Gatherer: &fakeGatherer{out: tt.out},
				Drugs:    newEngine(t),
				Answerer: llm.NewAnswerer(gen, cfg.LLMTimeout, cfg.LLMMaxPromptChars, nil),
			}, cfg.TopK, cfg.MaxPromptChars, nil, nil)

			res, err := svc.Ask(context.Background(), AskRequest{PatientID: "p1", Question: "Can I keep taking metformin?"}, nil)

			require.NoError(t, err)
			assert.False(t, res.PromptTruncated)
			assert.Contains(t, gen.prompt, prompt.QuestionMarker)
			assert.Contains(t, gen.prompt, "Can I keep taking metformin?")
			assert.Contains(t, gen.prompt, prompt.RulesMarker)
			assert.True(t, strings.HasSuffix(gen.prompt, prompt.Disclaimer))
		})
	}
}

func TestAsk_GatherCancelled(t *testing.T) {
	g := &fakeGatherer{err: context.Canceled}
	svc := NewAskService(AskDeps{Gatherer: g, Drugs: newEngine(t), Answerer: &fakeAnswerer{}}, 5, 0, nil, nil)

	_, err := svc.Ask(context.Background(), AskRequest{PatientID: "p1", Question: "q"}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, ContextSummary{}, Summarize(models.EvidenceContext{}))
}
