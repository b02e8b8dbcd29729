package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a background ingestion run.
type Job struct {
	ID          string        `json:"id"`
	Status      JobStatus     `json:"status"`
	Paths       []string      `json:"paths"`
	Progress    int           `json:"progress"`
	Total       int           `json:"total"`
	Result      *IngestResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// JobManager tracks background ingestion jobs in memory.
type JobManager struct {
	jobs        map[string]*Job
	mu          sync.RWMutex
	concurrency int
	ingest      *IngestService
	logger      *slog.Logger
}

// NewJobManager creates a new job manager.
func NewJobManager(ingest *IngestService, concurrency int, logger *slog.Logger) *JobManager {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:        make(map[string]*Job),
		concurrency: concurrency,
		ingest:      ingest,
		logger:      logger,
	}
}

// StartIngest resolves paths and runs the ingestion in the background. The
// job outlives the request that started it, so it does not inherit ctx
// cancellation.
func (m *JobManager) StartIngest(ctx context.Context, paths []string, opts IngestOptions) (*Job, error) {
	files, err := m.ingest.CollectFiles(paths, opts.Recursive)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Status:    JobStatusPending,
		Paths:     paths,
		Total:     len(files),
		StartedAt: time.Now(),
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", job.ID, "files", len(files))

	if opts.Concurrency <= 0 {
		opts.Concurrency = m.concurrency
	}
	userProgress := opts.Progress
	opts.Progress = func(p IngestProgress) {
		m.UpdateProgress(job, p.Done, p.Total)
		if userProgress != nil {
			userProgress(p)
		}
	}

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		m.SetRunning(job)
		result, err := m.ingest.processFiles(bgCtx, files, opts)
		if err != nil {
			m.Fail(job, err)
			return
		}
		m.Complete(job, result)
	}()

	return job, nil
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}

	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return jobs
}

// UpdateProgress records file progress.
func (m *JobManager) UpdateProgress(job *Job, current, total int) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.Progress = current
	job.Total = total
	if job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// SetRunning marks job as running.
func (m *JobManager) SetRunning(job *Job) {
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// Complete marks job as completed with result.
func (m *JobManager) Complete(job *Job, result *IngestResult) {
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Result = result
	job.Progress = job.Total
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Info("job completed", "job_id", job.ID, "chunks", result.ChunksCreated, "errors", len(result.Errors))
}

// Fail marks job as failed with error.
func (m *JobManager) Fail(job *Job, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Error("job failed", "job_id", job.ID, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Paths:       j.Paths,
		Progress:    j.Progress,
		Total:       j.Total,
		Result:      j.Result,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
