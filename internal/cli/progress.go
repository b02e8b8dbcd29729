package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/healthrag/internal/service"
)

const pollInterval = 500 * time.Millisecond

// jobSource fetches the current state of an ingestion job. The server client
// and the in-process job manager both satisfy it.
type jobSource interface {
	GetJob(ctx context.Context, id string) (*service.Job, error)
}

// localJobs adapts the in-process job manager to jobSource.
type localJobs struct {
	manager *service.JobManager
}

func (l localJobs) GetJob(_ context.Context, id string) (*service.Job, error) {
	job := l.manager.GetJob(id)
	if job == nil {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job.Snapshot(), nil
}

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job data
type jobUpdateMsg struct {
	job *service.Job
	err error
}

// progressModel is the bubbletea model for job progress.
type progressModel struct {
	source     jobSource
	jobID      string
	job        *service.Job
	progress   progress.Model
	theme      Theme
	background bool
	done       bool
	quitting   bool
	err        error
}

// newProgressModel creates a new progress model.
// background reports whether the job survives the CLI exiting (server jobs).
func newProgressModel(source jobSource, job *service.Job, background bool) progressModel {
	// Create progress bar with color blend
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		source:     source,
		jobID:      job.ID,
		job:        job,
		progress:   prog,
		theme:      defaultTheme,
		background: background,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		// Fetch job status
		return m, m.fetchJob()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.job = msg.job

		// Check for terminal states
		switch m.job.Status {
		case service.JobStatusCompleted:
			m.done = true
			return m, tea.Quit
		case service.JobStatusFailed:
			m.done = true
			if m.job.Error != "" {
				m.err = fmt.Errorf("%s", m.job.Error)
			} else {
				m.err = fmt.Errorf("job failed with unknown error")
			}
			return m, tea.Quit
		}

		// Continue polling for running jobs
		return m, tickCmd()

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.job == nil {
		return "Loading job status...\n"
	}

	// Calculate progress percentage
	var pct float64
	if m.job.Total > 0 {
		pct = float64(m.job.Progress) / float64(m.job.Total)
	}

	// Status line with color
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))

	// Progress bar with counts
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d files", m.job.Progress, m.job.Total)

	hintText := "Press Ctrl+C to stop"
	if m.background {
		hintText = "Press Ctrl+C to continue in background"
	}
	hint := m.theme.hintStyle().Render(hintText)

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		if !m.background {
			return m.theme.hintStyle().Render("\nIngestion interrupted.\n")
		}
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'healthrag jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}

	// Success with results
	if m.job != nil && m.job.Result != nil {
		return m.theme.completedStyle().Render("✓ Completed") + "\n\n" + formatIngestResult(m.job.Result, m.theme)
	}

	return m.theme.completedStyle().Render("✓ Completed\n")
}

// fetchJob fetches the current job status from the server.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := m.source.GetJob(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatIngestResult renders the counters of a finished ingestion.
func formatIngestResult(r *service.IngestResult, theme Theme) string {
	var output string
	output += fmt.Sprintf("  Files processed: %d\n", r.FilesProcessed)
	output += fmt.Sprintf("  Files skipped:   %d\n", r.FilesSkipped)
	output += fmt.Sprintf("  Chunks created:  %d\n", r.ChunksCreated)
	if len(r.Errors) > 0 {
		output += theme.errorStyle().Render(fmt.Sprintf("\nWarnings (%d):", len(r.Errors))) + "\n"
		for _, e := range r.Errors {
			output += fmt.Sprintf("  • %s\n", e)
		}
	}
	return output
}

// RunJobProgress runs the interactive progress UI for a job.
// Returns nil on success or Ctrl+C, error on job failure.
func RunJobProgress(source jobSource, job *service.Job, background bool) error {
	model := newProgressModel(source, job, background)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	// Check final state
	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}

// waitForJob polls a job until it finishes, without a terminal UI.
func waitForJob(ctx context.Context, source jobSource, id string) (*service.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		job, err := source.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case service.JobStatusCompleted:
			return job, nil
		case service.JobStatusFailed:
			return job, fmt.Errorf("job %s failed: %s", id, job.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
