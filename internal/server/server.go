// Package server exposes the answer pipeline, intent flow and ingestion jobs
// over HTTP, with websocket streaming of pipeline stages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/healthrag/internal/db"
	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/raphaelgruber/healthrag/internal/models"
	"github.com/raphaelgruber/healthrag/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// AskRunner runs the answer pipeline.
type AskRunner interface {
	Ask(ctx context.Context, req service.AskRequest, observe service.Observer) (*service.AskResult, error)
}

// IntentHandler proposes and confirms patient facts.
type IntentHandler interface {
	Analyze(ctx context.Context, text string) []models.HealthFact
	Confirm(ctx context.Context, patientID string, category models.FactCategory, name string) error
}

// Store is the subset of the database used by the admin routes.
type Store interface {
	CountStats(ctx context.Context) (*db.Stats, error)
	ListPatients(ctx context.Context) ([]db.PatientSummary, error)
	CreatePatient(ctx context.Context, patientID string, name *string, demo *models.Demographics) error
}

// JobRunner starts and tracks background ingestion.
type JobRunner interface {
	StartIngest(ctx context.Context, paths []string, opts service.IngestOptions) (*service.Job, error)
	GetJob(id string) *service.Job
	ListJobs() []*service.Job
}

// Deps are the collaborators behind the routes. Any of them may be nil, in
// which case the matching routes answer 503.
type Deps struct {
	Ask     AskRunner
	Intent  IntentHandler
	Store   Store
	Jobs    JobRunner
	Metrics *metrics.Collector
	// Ingest holds defaults applied to every ingestion request.
	Ingest  service.IngestOptions
	Version string
}

// Server routes HTTP requests to the services.
type Server struct {
	router   chi.Router
	deps     Deps
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New builds the router.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/ask/stream", s.handleAskStream)
		r.Post("/intent", s.handleIntent)
		r.Post("/intent/confirm", s.handleConfirm)
		r.Get("/stats", s.handleStats)
		r.Get("/patients", s.handleListPatients)
		r.Post("/patients", s.handleCreatePatient)
		r.Post("/ingest", s.handleIngest)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StreamMessage is one websocket frame of /api/ask/stream. Type is "stage",
// "result" or "error".
type StreamMessage struct {
	Type   string              `json:"type"`
	Event  *service.StageEvent `json:"event,omitempty"`
	Result *service.AskResult  `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// IntentRequest is the body of /api/intent.
type IntentRequest struct {
	Text string `json:"text"`
}

// IntentResponse lists proposed facts awaiting confirmation.
type IntentResponse struct {
	Facts []models.HealthFact `json:"facts"`
}

// ConfirmRequest is the body of /api/intent/confirm.
type ConfirmRequest struct {
	PatientID string              `json:"patient_id"`
	Category  models.FactCategory `json:"category"`
	Name      string              `json:"name"`
}

// CreatePatientRequest is the body of POST /api/patients.
type CreatePatientRequest struct {
	PatientID string  `json:"patient_id"`
	Name      *string `json:"name,omitempty"`
	Age       *int    `json:"age,omitempty"`
	Gender    string  `json:"gender,omitempty"`
	BloodType string  `json:"blood_type,omitempty"`
}

// IngestRequest is the body of /api/ingest. Paths are resolved on the server.
type IngestRequest struct {
	Paths       []string `json:"paths"`
	Recursive   bool     `json:"recursive"`
	TagEntities bool     `json:"tag_entities"`
	DryRun      bool     `json:"dry_run"`
}

// StatsResponse combines store counts and operation metrics.
type StatsResponse struct {
	Store   *db.Stats        `json:"store,omitempty"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

var errUnavailable = errors.New("service not configured")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.deps.Version})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ask == nil {
		s.writeError(w, errUnavailable)
		return
	}
	var req service.AskRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.deps.Ask.Ask(r.Context(), req, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAskStream upgrades to a websocket, reads one AskRequest and streams
// a stage frame per pipeline step followed by a result or error frame.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ask == nil {
		s.writeError(w, errUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req service.AskRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(StreamMessage{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The observer runs on this goroutine, so frames are written in order.
	observe := func(ev service.StageEvent) {
		if err := conn.WriteJSON(StreamMessage{Type: "stage", Event: &ev}); err != nil {
			s.logger.Debug("stream write failed", "error", err)
			cancel()
		}
	}

	result, err := s.deps.Ask.Ask(ctx, req, observe)
	if err != nil {
		_ = conn.WriteJSON(StreamMessage{Type: "error", Error: err.Error()})
		return
	}
	_ = conn.WriteJSON(StreamMessage{Type: "result", Result: result})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Intent == nil {
		s.writeError(w, errUnavailable)
		return
	}
	var req IntentRequest
	if !s.decode(w, r, &req) {
		return
	}
	facts := s.deps.Intent.Analyze(r.Context(), req.Text)
	if facts == nil {
		facts = []models.HealthFact{}
	}
	writeJSON(w, http.StatusOK, IntentResponse{Facts: facts})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if s.deps.Intent == nil {
		s.writeError(w, errUnavailable)
		return
	}
	var req ConfirmRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.deps.Intent.Confirm(r.Context(), req.PatientID, req.Category, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Metrics: s.deps.Metrics.Snapshot()}
	if s.deps.Store != nil {
		stats, err := s.deps.Store.CountStats(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Store = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, errUnavailable)
		return
	}
	patients, err := s.deps.Store.ListPatients(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if patients == nil {
		patients = []db.PatientSummary{}
	}
	writeJSON(w, http.StatusOK, patients)
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, errUnavailable)
		return
	}
	var req CreatePatientRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		s.writeError(w, service.ErrInvalidRequest)
		return
	}
	demo := &models.Demographics{Age: req.Age, Gender: req.Gender, BloodType: req.BloodType}
	if err := s.deps.Store.CreatePatient(r.Context(), req.PatientID, req.Name, demo); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"patient_id": req.PatientID})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, errUnavailable)
		return
	}
	var req IngestRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		s.writeError(w, service.ErrInvalidRequest)
		return
	}
	opts := s.deps.Ingest
	opts.Recursive = req.Recursive
	opts.TagEntities = req.TagEntities
	opts.DryRun = req.DryRun
	opts.Progress = nil

	job, err := s.deps.Jobs.StartIngest(r.Context(), req.Paths, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, errUnavailable)
		return
	}
	jobs := s.deps.Jobs.ListJobs()
	out := make([]*service.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, errUnavailable)
		return
	}
	job := s.deps.Jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, db.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps service and store errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("handler error", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, db.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
