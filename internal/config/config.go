package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxPromptChars is the truncator budget. It leaves room for the
// fixed prompt sections plus a full patient record.
const DefaultMaxPromptChars = 8000

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Answer generation
	LLMProvider    string
	LLMModel       string
	LLMTemperature float64
	LLMTimeout     time.Duration
	LLMBaseURL     string
	OllamaHost     string
	OpenAIAPIKey   string
	AnthropicKey   string
	AWSRegion      string

	// Prompt budgets: the section-aware truncator budget, and the hard cap
	// applied right before generation (0 disables the cap).
	MaxPromptChars    int
	LLMMaxPromptChars int

	// Embeddings
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// Retrieval and rules
	TopK      int
	RulesFile string

	// Ingestion
	ChunkSize         int
	ChunkOverlap      int
	BatchSize         int
	IngestConcurrency int

	// Server
	ServerPort int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "health"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "graph"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:    getEnv("HEALTHRAG_LLM_PROVIDER", "ollama"),
		LLMModel:       getEnv("HEALTHRAG_LLM_MODEL", "phi3:mini"),
		LLMTemperature: getEnvFloat("HEALTHRAG_LLM_TEMPERATURE", 0.7),
		LLMTimeout:     getEnvDuration("HEALTHRAG_LLM_TIMEOUT", 180*time.Second),
		LLMBaseURL:     getEnv("HEALTHRAG_LLM_BASE_URL", ""),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),

		MaxPromptChars:    getEnvInt("HEALTHRAG_MAX_PROMPT_CHARS", DefaultMaxPromptChars),
		LLMMaxPromptChars: getEnvInt("HEALTHRAG_LLM_MAX_PROMPT_CHARS", 0),

		EmbedProvider:  getEnv("HEALTHRAG_EMBED_PROVIDER", "ollama"),
		EmbedModel:     getEnv("HEALTHRAG_EMBED_MODEL", "mxbai-embed-large"),
		EmbedDimension: getEnvInt("HEALTHRAG_EMBED_DIMENSION", 1024),

		TopK:      getEnvInt("HEALTHRAG_TOP_K", 5),
		RulesFile: getEnv("HEALTHRAG_RULES_FILE", ""),

		ChunkSize:         getEnvInt("HEALTHRAG_CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvInt("HEALTHRAG_CHUNK_OVERLAP", 100),
		BatchSize:         getEnvInt("HEALTHRAG_BATCH_SIZE", 64),
		IngestConcurrency: getEnvInt("HEALTHRAG_INGEST_CONCURRENCY", 4),

		ServerPort: getEnvInt("HEALTHRAG_SERVER_PORT", 8484),

		LogFile:  getEnv("HEALTHRAG_LOG_FILE", "/tmp/healthrag.log"),
		LogLevel: parseLogLevel(getEnv("HEALTHRAG_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f < 0 {
		return defaultVal
	}
	return f
}

// getEnvDuration accepts Go durations ("90s") or a plain number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
