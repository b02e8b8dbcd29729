// Package client provides an HTTP client for the healthrag server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/healthrag/internal/db"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/server"
	"github.com/raphaelgruber/healthrag/internal/service"
)

// ErrServer wraps every non-2xx response. The server message is kept.
var ErrServer = errors.New("server error")

// Client talks to a healthrag server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses HEALTHRAG_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via HEALTHRAG_CLIENT_TIMEOUT env var (default 5m for slow models).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("HEALTHRAG_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("HEALTHRAG_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends a JSON request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody server.ErrorResponse
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			return fmt.Errorf("%w: %s: %s", ErrServer, resp.Status, errBody.Error)
		}
		return fmt.Errorf("%w: %s: %s", ErrServer, resp.Status, strings.TrimSpace(string(data)))
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Health checks that the server is up and returns its version.
func (c *Client) Health(ctx context.Context) (string, error) {
	var body map[string]string
	if err := c.do(ctx, http.MethodGet, "/health", nil, &body); err != nil {
		return "", err
	}
	return body["version"], nil
}

// Ask runs the answer pipeline on the server.
func (c *Client) Ask(ctx context.Context, req service.AskRequest) (*service.AskResult, error) {
	var result service.AskResult
	if err := c.do(ctx, http.MethodPost, "/api/ask", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeIntent proposes patient facts found in free text.
func (c *Client) AnalyzeIntent(ctx context.Context, text string) ([]models.HealthFact, error) {
	var resp server.IntentResponse
	if err := c.do(ctx, http.MethodPost, "/api/intent", server.IntentRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Facts, nil
}

// ConfirmFact writes a confirmed fact to the patient graph.
func (c *Client) ConfirmFact(ctx context.Context, patientID string, category models.FactCategory, name string) error {
	return c.do(ctx, http.MethodPost, "/api/intent/confirm", server.ConfirmRequest{
		PatientID: patientID,
		Category:  category,
		Name:      name,
	}, nil)
}

// Stats returns store counts and operation metrics.
func (c *Client) Stats(ctx context.Context) (*server.StatsResponse, error) {
	var resp server.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPatients returns all known patients.
func (c *Client) ListPatients(ctx context.Context) ([]db.PatientSummary, error) {
	var out []db.PatientSummary
	if err := c.do(ctx, http.MethodGet, "/api/patients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePatient registers a new patient.
func (c *Client) CreatePatient(ctx context.Context, req server.CreatePatientRequest) error {
	return c.do(ctx, http.MethodPost, "/api/patients", req, nil)
}

// StartIngest starts a background ingestion of server-side paths.
func (c *Client) StartIngest(ctx context.Context, req server.IngestRequest) (*service.Job, error) {
	var job service.Job
	if err := c.do(ctx, http.MethodPost, "/api/ingest", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*service.Job, error) {
	var job service.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]*service.Job, error) {
	var jobs []*service.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// AskStream runs the answer pipeline over a websocket. onStage is invoked for
// each pipeline stage before the final result is returned. Return an error
// from onStage to abort.
func (c *Client) AskStream(ctx context.Context, req service.AskRequest, onStage func(service.StageEvent) error) (*service.AskResult, error) {
	wsEndpoint := c.baseURL + "/api/ask/stream"
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg server.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read message: %w", err)
		}

		switch msg.Type {
		case "stage":
			if msg.Event != nil && onStage != nil {
				if err := onStage(*msg.Event); err != nil {
					return nil, err
				}
			}
		case "result":
			if msg.Result == nil {
				return nil, fmt.Errorf("%w: empty result frame", ErrServer)
			}
			return msg.Result, nil
		case "error":
			return nil, fmt.Errorf("%w: %s", ErrServer, msg.Error)
		default:
			// Ignore unknown message types
			continue
		}
	}
}
