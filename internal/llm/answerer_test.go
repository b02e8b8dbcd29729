package llm

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	text   string
	usage  Usage
	err    error
	delay  time.Duration
	system string
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, Usage, error) {
	f.system, f.prompt = system, prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", Usage{}, fmt.Errorf("generate: %w", ctx.Err())
		}
	}
	return f.text, f.usage, f.err
}

func TestAnswer_Success(t *testing.T) {
	gen := &fakeGenerator{text: "Summary: fine.", usage: Usage{PromptTokens: 9, CompletionTokens: 3}}
	a := NewAnswerer(gen, time.Second, 0, nil)

	text, usage := a.Answer(context.Background(), "prompt body")

	assert.Equal(t, "Summary: fine.", text)
	assert.Equal(t, 12, usage.Total())
	assert.Equal(t, SystemPrompt, gen.system)
	assert.Equal(t, "prompt body", gen.prompt)
}

func TestAnswer_HardCap(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	a := NewAnswerer(gen, time.Second, 5, nil)

	a.Answer(context.Background(), "ééééééééé")

	assert.Equal(t, "ééééé", gen.prompt)
}

func TestAnswer_ErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want string
	}{
		{"timeout", &fakeGenerator{delay: time.Second}, MsgTimeout},
		{"refused errno", &fakeGenerator{err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED)}, MsgUnavailable},
		{"refused text", &fakeGenerator{err: errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")}, MsgUnavailable},
		{"other", &fakeGenerator{err: errors.New("model not found")}, "Error calling the language model: model not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnswerer(tt.gen, 20*time.Millisecond, 0, nil)
			text, usage := a.Answer(context.Background(), "q")
			assert.Equal(t, tt.want, text)
			assert.Zero(t, usage)
		})
	}
}

func TestNewAnswerer_Defaults(t *testing.T) {
	a := NewAnswerer(&fakeGenerator{}, 0, 0, nil)
	require.NotNil(t, a.logger)
	assert.Equal(t, DefaultTimeout, a.timeout)
}
