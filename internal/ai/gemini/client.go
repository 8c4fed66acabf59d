// Package gemini adapts the Google GenAI SDK to the ai.Provider contract.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/cv-ranker/internal/ai"
)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider sends prompts to the Gemini API.
type Provider struct {
	models modelsAPI
}

// New creates a Provider configured for the Gemini API backend.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Provider{models: client.Models}, nil
}

// Invoke sends one system/user prompt pair and returns the concatenated text parts.
func (p *Provider) Invoke(ctx context.Context, inv ai.Invocation) (string, error) {
	if p == nil || p.models == nil {
		return "", errors.New("gemini provider is not initialized")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(inv.Temperature),
		MaxOutputTokens: inv.MaxOutputTokens,
	}
	if system := strings.TrimSpace(inv.System); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := p.models.GenerateContent(ctx, inv.Model, genai.Text(inv.User), config)
	if err != nil {
		return "", classifyError(err)
	}

	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// classifyError turns quota errors into *ai.RateLimitError. The retry hint comes from the
// RetryInfo detail when present, otherwise from the message text.
func classifyError(err error) error {
	apiErr, ok := asAPIError(err)
	if !ok {
		return fmt.Errorf("generate content: %w", err)
	}

	if apiErr.Code != http.StatusTooManyRequests && !strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("generate content: %w", err)
	}

	hint := apiErr.Message
	for _, detail := range apiErr.Details {
		if delay, ok := detail["retryDelay"]; ok {
			hint = fmt.Sprintf(`"retryDelay": %q`, fmt.Sprint(delay))
			break
		}
	}
	if hint == "" {
		if raw, mErr := json.Marshal(apiErr.Details); mErr == nil {
			hint = string(raw)
		}
	}

	wait, _ := ai.ParseRetryAfter(hint)
	return &ai.RateLimitError{RetryAfter: wait, Hint: hint, Err: err}
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}
