package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/healthrag/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatible talks to any server exposing the OpenAI chat completion
// API at a custom base URL (vLLM, LM Studio, llama.cpp server).
type OpenAICompatible struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAICompatible builds a client for cfg.LLMBaseURL. The API key is
// optional since most local servers ignore it.
func NewOpenAICompatible(cfg config.Config) (*OpenAICompatible, error) {
	if cfg.LLMBaseURL == "" {
		return nil, errors.New("HEALTHRAG_LLM_BASE_URL required for openai-compatible provider")
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	clientCfg.BaseURL = cfg.LLMBaseURL

	return &OpenAICompatible{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.LLMModel,
		temperature: float32(cfg.LLMTemperature),
	}, nil
}

// Generate sends a system and a user message to the chat completion endpoint.
func (c *OpenAICompatible) Generate(ctx context.Context, system, prompt string) (string, Usage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("chat completion: %w", wrapFatalError(err))
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, errors.New("no response choices")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), usage, nil
}
