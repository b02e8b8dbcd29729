package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/healthrag/internal/db"
	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/server"
	"github.com/raphaelgruber/healthrag/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAsk struct {
	err error
}

func (f *fakeAsk) Ask(_ context.Context, req service.AskRequest, observe service.Observer) (*service.AskResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", service.ErrInvalidRequest)
	}
	for _, st := range []service.Stage{service.StageGather, service.StageGenerate, service.StageDone} {
		if observe != nil {
			observe(service.StageEvent{RequestID: "req-1", Stage: st})
		}
	}
	return &service.AskResult{
		RequestID: "req-1",
		Response:  "Answer for " + req.PatientID,
		Claims:    []models.VerifiedClaim{},
	}, nil
}

type fakeIntent struct {
	confirmed []string
}

func (f *fakeIntent) Analyze(_ context.Context, text string) []models.HealthFact {
	if text == "" {
		return nil
	}
	return []models.HealthFact{{Category: models.CategoryMedication, OriginalTerm: "metformn", NormalizedTerm: "Metformin"}}
}

func (f *fakeIntent) Confirm(_ context.Context, patientID string, category models.FactCategory, name string) error {
	if !category.Valid() {
		return service.ErrInvalidCategory
	}
	if patientID == "ghost" {
		return fmt.Errorf("confirm: %w", db.ErrNotFound)
	}
	f.confirmed = append(f.confirmed, patientID+":"+name)
	return nil
}

type fakeStore struct {
	patients map[string]bool
}

func (f *fakeStore) CountStats(context.Context) (*db.Stats, error) {
	return &db.Stats{Patients: len(f.patients), PaperChunks: 12, Papers: 3}, nil
}

func (f *fakeStore) ListPatients(context.Context) ([]db.PatientSummary, error) {
	var out []db.PatientSummary
	for id := range f.patients {
		out = append(out, db.PatientSummary{PatientID: id})
	}
	return out, nil
}

func (f *fakeStore) CreatePatient(_ context.Context, id string, _ *string, _ *models.Demographics) error {
	if f.patients[id] {
		return fmt.Errorf("create patient: %w", db.ErrAlreadyExists)
	}
	f.patients[id] = true
	return nil
}

type fakeJobs struct {
	jobs map[string]*service.Job
	opts service.IngestOptions
}

func (f *fakeJobs) StartIngest(_ context.Context, paths []string, opts service.IngestOptions) (*service.Job, error) {
	f.opts = opts
	job := &service.Job{ID: "job1", Status: service.JobStatusPending, Paths: paths, StartedAt: time.Now()}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) GetJob(id string) *service.Job { return f.jobs[id] }

func (f *fakeJobs) ListJobs() []*service.Job {
	out := make([]*service.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

type fixture struct {
	srv    *httptest.Server
	intent *fakeIntent
	store  *fakeStore
	jobs   *fakeJobs
}

func newFixture(t *testing.T, ask server.AskRunner) *fixture {
	t.Helper()
	f := &fixture{
		intent: &fakeIntent{},
		store:  &fakeStore{patients: map[string]bool{"p1": true}},
		jobs:   &fakeJobs{jobs: map[string]*service.Job{}},
	}
	collector := metrics.NewCollector()
	collector.RecordTiming(metrics.OpAsk, 20*time.Millisecond)

	h := server.New(server.Deps{
		Ask:     ask,
		Intent:  f.intent,
		Store:   f.store,
		Jobs:    f.jobs,
		Metrics: collector,
		Ingest:  service.IngestOptions{BatchSize: 16},
		Version: "test",
	}, testLogger())
	f.srv = httptest.NewServer(h)
	t.Cleanup(f.srv.Close)
	return f
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &fakeAsk{})

	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestAsk(t *testing.T) {
	tests := []struct {
		name       string
		ask        *fakeAsk
		body       any
		wantStatus int
	}{
		{"ok", &fakeAsk{}, service.AskRequest{PatientID: "p1", Question: "Is my sugar ok?"}, http.StatusOK},
		{"missing question", &fakeAsk{}, service.AskRequest{PatientID: "p1"}, http.StatusBadRequest},
		{"malformed body", &fakeAsk{}, "not-an-object", http.StatusBadRequest},
		{"pipeline failure", &fakeAsk{err: context.Canceled}, service.AskRequest{PatientID: "p1", Question: "q"}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.ask)
			resp := postJSON(t, f.srv.URL+"/api/ask", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				result := decodeBody[service.AskResult](t, resp)
				assert.Equal(t, "Answer for p1", result.Response)
				assert.Equal(t, "req-1", result.RequestID)
			} else {
				errBody := decodeBody[server.ErrorResponse](t, resp)
				assert.NotEmpty(t, errBody.Error)
			}
		})
	}
}

func TestAskStream(t *testing.T) {
	f := newFixture(t, &fakeAsk{})
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ask/stream"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(service.AskRequest{PatientID: "p1", Question: "How is my heart rate?"}))

	var stages []service.Stage
	var final server.StreamMessage
	for {
		var msg server.StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != "stage" {
			final = msg
			break
		}
		require.NotNil(t, msg.Event)
		stages = append(stages, msg.Event.Stage)
	}

	assert.Equal(t, []service.Stage{service.StageGather, service.StageGenerate, service.StageDone}, stages)
	assert.Equal(t, "result", final.Type)
	require.NotNil(t, final.Result)
	assert.Equal(t, "Answer for p1", final.Result.Response)
}

func TestAskStream_InvalidRequest(t *testing.T) {
	f := newFixture(t, &fakeAsk{})
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ask/stream"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(service.AskRequest{PatientID: "p1"}))

	var msg server.StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "question is required")
}

func TestIntent(t *testing.T) {
	f := newFixture(t, &fakeAsk{})

	resp := postJSON(t, f.srv.URL+"/api/intent", server.IntentRequest{Text: "I take metformn"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[server.IntentResponse](t, resp)
	require.Len(t, body.Facts, 1)
	assert.Equal(t, "Metformin", body.Facts[0].NormalizedTerm)

	resp = postJSON(t, f.srv.URL+"/api/intent", server.IntentRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decodeBody[server.IntentResponse](t, resp)
	assert.NotNil(t, empty.Facts)
	assert.Empty(t, empty.Facts)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name       string
		req        server.ConfirmRequest
		wantStatus int
	}{
		{"ok", server.ConfirmRequest{PatientID: "p1", Category: models.CategoryMedication, Name: "Metformin"}, http.StatusOK},
		{"bad category", server.ConfirmRequest{PatientID: "p1", Category: "Hobby", Name: "golf"}, http.StatusBadRequest},
		{"unknown patient", server.ConfirmRequest{PatientID: "ghost", Category: models.CategoryAllergy, Name: "Penicillin"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeAsk{})
			resp := postJSON(t, f.srv.URL+"/api/intent/confirm", tt.req)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, &fakeAsk{})

	resp, err := http.Get(f.srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeBody[server.StatsResponse](t, resp)
	require.NotNil(t, stats.Store)
	assert.Equal(t, 3, stats.Store.Papers)
	assert.Contains(t, stats.Metrics.Operations, metrics.OpAsk)
}

func TestPatients(t *testing.T) {
	f := newFixture(t, &fakeAsk{})

	resp := postJSON(t, f.srv.URL+"/api/patients", server.CreatePatientRequest{PatientID: "p2"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, f.srv.URL+"/api/patients", server.CreatePatientRequest{PatientID: "p2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, f.srv.URL+"/api/patients", server.CreatePatientRequest{PatientID: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	list, err := http.Get(f.srv.URL + "/api/patients")
	require.NoError(t, err)
	defer list.Body.Close()
	patients := decodeBody[[]db.PatientSummary](t, list)
	assert.Len(t, patients, 2)
}

func TestIngestAndJobs(t *testing.T) {
	f := newFixture(t, &fakeAsk{})

	resp := postJSON(t, f.srv.URL+"/api/ingest", server.IngestRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, f.srv.URL+"/api/ingest", server.IngestRequest{Paths: []string{"/papers"}, Recursive: true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := decodeBody[*service.Job](t, resp)
	assert.Equal(t, "job1", job.ID)
	assert.True(t, f.jobs.opts.Recursive)
	assert.Equal(t, 16, f.jobs.opts.BatchSize, "server defaults apply")

	got, err := http.Get(f.srv.URL + "/api/jobs/job1")
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)

	missing, err := http.Get(f.srv.URL + "/api/jobs/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	list, err := http.Get(f.srv.URL + "/api/jobs")
	require.NoError(t, err)
	defer list.Body.Close()
	jobs := decodeBody[[]*service.Job](t, list)
	assert.Len(t, jobs, 1)
}

func TestUnconfiguredService(t *testing.T) {
	h := server.New(server.Deps{}, testLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/ask", service.AskRequest{PatientID: "p1", Question: "q"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	stats, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer stats.Body.Close()
	assert.Equal(t, http.StatusOK, stats.StatusCode)
}
