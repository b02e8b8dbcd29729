package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HEALTHRAG_LLM_MODEL", "HEALTHRAG_LLM_TIMEOUT", "HEALTHRAG_TOP_K", "SURREALDB_NAMESPACE",
		"HEALTHRAG_MAX_PROMPT_CHARS", "HEALTHRAG_LLM_MAX_PROMPT_CHARS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "phi3:mini", cfg.LLMModel)
	assert.Equal(t, 180*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, "health", cfg.SurrealDBNamespace)
	assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, DefaultMaxPromptChars, cfg.MaxPromptChars)
	assert.Zero(t, cfg.LLMMaxPromptChars)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HEALTHRAG_LLM_PROVIDER", "anthropic")
	t.Setenv("HEALTHRAG_LLM_TIMEOUT", "45")
	t.Setenv("HEALTHRAG_TOP_K", "8")
	t.Setenv("HEALTHRAG_EMBED_DIMENSION", "768")
	t.Setenv("HEALTHRAG_LOG_LEVEL", "debug")
	t.Setenv("HEALTHRAG_MAX_PROMPT_CHARS", "6000")
	t.Setenv("HEALTHRAG_LLM_MAX_PROMPT_CHARS", "12000")

	cfg := Load()

	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, 768, cfg.EmbedDimension)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 6000, cfg.MaxPromptChars)
	assert.Equal(t, 12000, cfg.LLMMaxPromptChars)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("HEALTHRAG_LLM_TIMEOUT", "soon")
	t.Setenv("HEALTHRAG_TOP_K", "-3")
	t.Setenv("HEALTHRAG_LLM_TEMPERATURE", "hot")

	cfg := Load()

	assert.Equal(t, 180*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 5, cfg.TopK)
	assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"30", 30 * time.Second},
		{"0", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.raw)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("ask complete", "patient_id", "p1")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "msg=\"ask complete\"")
	assert.Contains(t, file.String(), `"patient_id":"p1"`)
	assert.NotContains(t, stderr.String(), "hidden")
}

func TestSetupLoggerWithWriters_RedactsFileOutput(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("ask received", "question", "Is my glucose ok?", "patient_id", "p1")

	assert.Contains(t, file.String(), `"question":"[redacted 17 chars]"`)
	assert.Contains(t, file.String(), `"patient_id":"p1"`)
	assert.Contains(t, stderr.String(), "Is my glucose ok?")
}
