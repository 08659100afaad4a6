// Package llm wraps the model providers behind one small interface. The core
// only reaches it through the opt-in classification assistant.
package llm

import (
	"context"
)

// Options tune a single request.
type Options struct {
	Model       string
	JSON        bool
	Temperature float32
}

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, opts Options) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// StaticProvider answers every prompt with a fixed reply. It backs offline
// runs and tests.
type StaticProvider struct {
	Reply   string
	Err     error
	Prompts []string // prompts received, in order
}

var _ Provider = (*StaticProvider)(nil)

func (p *StaticProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, opts Options) (string, error) {
	p.Prompts = append(p.Prompts, prompt)
	if p.Err != nil {
		return "", p.Err
	}
	return p.Reply, nil
}

func (p *StaticProvider) AdaptInstructions(raw string) string {
	return raw
}
