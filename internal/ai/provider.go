// Package ai orchestrates calls to external completion models: an ordered model chain,
// retries on rate limits, and strict one-at-a-time execution.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Invocation is a single call to a completion model.
type Invocation struct {
	Model           string
	System          string
	User            string
	Temperature     float32
	MaxOutputTokens int32
}

// Provider is the external "complete a prompt" capability.
type Provider interface {
	Invoke(ctx context.Context, inv Invocation) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, inv Invocation) (string, error)

func (f ProviderFunc) Invoke(ctx context.Context, inv Invocation) (string, error) { return f(ctx, inv) }

// RateLimitError signals upstream throttling. RetryAfter is zero when the upstream hint was
// missing or could not be parsed.
type RateLimitError struct {
	RetryAfter time.Duration
	Hint       string
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := "rate limited"
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Purpose selects the output budget for a call.
type Purpose int

const (
	// PurposeScoring expects short structured output.
	PurposeScoring Purpose = iota
	// PurposeGeneration expects longer free text.
	PurposeGeneration
)

func (p Purpose) String() string {
	if p == PurposeGeneration {
		return "generation"
	}
	return "scoring"
}

// ModelRef names one entry of the fallback chain.
type ModelRef struct {
	Provider string
	ID       string
}

func (m ModelRef) String() string { return m.Provider + "/" + m.ID }

// ParseModelRef accepts "provider/model" or a bare model id, which defaults to Gemini.
func ParseModelRef(s string) (ModelRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModelRef{}, fmt.Errorf("model reference must not be empty")
	}

	if prefix, id, ok := strings.Cut(s, "/"); ok {
		switch p := strings.ToLower(prefix); p {
		case ProviderGemini, ProviderOpenAI:
			if strings.TrimSpace(id) == "" {
				return ModelRef{}, fmt.Errorf("model id is missing in %q", s)
			}
			return ModelRef{Provider: p, ID: strings.TrimSpace(id)}, nil
		}
	}

	return ModelRef{Provider: ProviderGemini, ID: s}, nil
}

// ParseModelChain parses an ordered list of model references.
func ParseModelChain(values []string) ([]ModelRef, error) {
	chain := make([]ModelRef, 0, len(values))
	for _, v := range values {
		ref, err := ParseModelRef(v)
		if err != nil {
			return nil, err
		}
		chain = append(chain, ref)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("model chain must contain at least one model")
	}
	return chain, nil
}
