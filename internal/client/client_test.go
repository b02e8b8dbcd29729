package client_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raphaelgruber/healthrag/internal/client"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/server"
	"github.com/raphaelgruber/healthrag/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAsk struct{}

func (stubAsk) Ask(_ context.Context, req service.AskRequest, observe service.Observer) (*service.AskResult, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("%w: question is required", service.ErrInvalidRequest)
	}
	if observe != nil {
		observe(service.StageEvent{RequestID: "r1", Stage: service.StageGather})
		observe(service.StageEvent{RequestID: "r1", Stage: service.StageDone})
	}
	return &service.AskResult{RequestID: "r1", Response: strings.ToUpper(req.Question)}, nil
}

type stubIntent struct{}

func (stubIntent) Analyze(context.Context, string) []models.HealthFact {
	return []models.HealthFact{{Category: models.CategoryCondition, OriginalTerm: "sugar", NormalizedTerm: "Diabetes"}}
}

func (stubIntent) Confirm(_ context.Context, _ string, c models.FactCategory, _ string) error {
	if !c.Valid() {
		return service.ErrInvalidCategory
	}
	return nil
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	h := server.New(server.Deps{Ask: stubAsk{}, Intent: stubIntent{}, Version: "v-test"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return client.New(srv.URL + "/")
}

func TestClient_HealthAndAsk(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	version, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v-test", version)

	res, err := c.Ask(ctx, service.AskRequest{PatientID: "p1", Question: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", res.Response)

	_, err = c.Ask(ctx, service.AskRequest{PatientID: "p1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrServer))
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "question is required")
}

func TestClient_AskStream(t *testing.T) {
	c := newClient(t)

	var stages []service.Stage
	res, err := c.AskStream(context.Background(), service.AskRequest{PatientID: "p1", Question: "hi"},
		func(ev service.StageEvent) error {
			stages = append(stages, ev.Stage)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "HI", res.Response)
	assert.Equal(t, []service.Stage{service.StageGather, service.StageDone}, stages)
}

func TestClient_AskStream_AbortFromCallback(t *testing.T) {
	c := newClient(t)
	stop := errors.New("stop")

	_, err := c.AskStream(context.Background(), service.AskRequest{PatientID: "p1", Question: "hi"},
		func(service.StageEvent) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestClient_Intent(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	facts, err := c.AnalyzeIntent(ctx, "my sugar is high")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Diabetes", facts[0].NormalizedTerm)

	require.NoError(t, c.ConfirmFact(ctx, "p1", models.CategoryCondition, "Diabetes"))
	err = c.ConfirmFact(ctx, "p1", "Hobby", "golf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestClient_UnconfiguredStore(t *testing.T) {
	c := newClient(t)

	_, err := c.ListPatients(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats.Store)
}
