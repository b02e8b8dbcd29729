package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"syscall"
	"time"
)

// SystemPrompt is sent with every answer request.
const SystemPrompt = "You are a medical AI assistant. Answer clearly, concisely, and safely. " +
	"If evidence is insufficient, say so."

// User-facing messages for failed generations.
const (
	MsgTimeout     = "Error: the language model did not respond in time. Please try again later."
	MsgUnavailable = "Error: the language model service is not running."
	msgCallPrefix  = "Error calling the language model: "
)

// DefaultTimeout bounds a single answer request.
const DefaultTimeout = 180 * time.Second

// Answerer turns a compiled prompt into response text. It never fails: any
// provider error becomes a message that is safe to show the patient.
type Answerer struct {
	gen            Generator
	timeout        time.Duration
	maxPromptChars int
	logger         *slog.Logger
}

// NewAnswerer wraps gen. A non-positive timeout uses DefaultTimeout and a
// non-positive maxPromptChars disables the hard prompt cap.
func NewAnswerer(gen Generator, timeout time.Duration, maxPromptChars int, logger *slog.Logger) *Answerer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{gen: gen, timeout: timeout, maxPromptChars: maxPromptChars, logger: logger}
}

// Answer generates a response for prompt. The returned text is either the
// model output or one of the user-facing error messages.
func (a *Answerer) Answer(ctx context.Context, prompt string) (string, Usage) {
	if a.maxPromptChars > 0 {
		if r := []rune(prompt); len(r) > a.maxPromptChars {
			a.logger.Warn("prompt over hard cap, cutting", "chars", len(r), "cap", a.maxPromptChars)
			prompt = string(r[:a.maxPromptChars])
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	text, usage, err := a.gen.Generate(ctx, SystemPrompt, prompt)
	duration := time.Since(start)
	if err != nil {
		a.logger.Warn("generation failed",
			"duration_ms", duration.Milliseconds(),
			"fatal", errors.Is(err, ErrFatalAPI),
			"error", err)
		return userMessage(ctx, err), Usage{}
	}

	a.logger.Debug("generation complete",
		"duration_ms", duration.Milliseconds(),
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens)
	return text, usage
}

func userMessage(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return MsgTimeout
	case errors.Is(err, syscall.ECONNREFUSED), strings.Contains(err.Error(), "connection refused"):
		return MsgUnavailable
	default:
		return msgCallPrefix + err.Error()
	}
}
