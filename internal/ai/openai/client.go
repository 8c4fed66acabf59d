// Package openai adapts OpenAI-compatible chat completion endpoints to ai.Provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spigell/cv-ranker/internal/ai"
)

type chatAPI interface {
	New(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Provider talks to the chat completions API.
type Provider struct {
	chat chatAPI
}

// New builds a Provider. baseURL is optional and points the client at a compatible endpoint.
// SDK retries are disabled; the model chain owns retry decisions.
func New(apiKey, baseURL string) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := sdk.NewClient(opts...)
	return &Provider{chat: client.Chat.Completions}, nil
}

// Invoke sends one system/user prompt pair and returns the first choice's text.
func (p *Provider) Invoke(ctx context.Context, inv ai.Invocation) (string, error) {
	if p == nil || p.chat == nil {
		return "", errors.New("openai provider is not initialized")
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(inv.System); system != "" {
		messages = append(messages, sdk.SystemMessage(system))
	}
	messages = append(messages, sdk.UserMessage(inv.User))

	params := sdk.ChatCompletionNewParams{
		Messages:    sdk.F(messages),
		Model:       sdk.F(sdk.ChatModel(inv.Model)),
		Temperature: sdk.F(float64(inv.Temperature)),
	}
	if inv.MaxOutputTokens > 0 {
		params.MaxTokens = sdk.F(int64(inv.MaxOutputTokens))
	}

	resp, err := p.chat.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("chat completion: %w", err)
	}

	var hint string
	var wait time.Duration
	if apiErr.Response != nil {
		if ms := apiErr.Response.Header.Get("retry-after-ms"); ms != "" {
			hint = ms + "ms"
			if v, pErr := strconv.ParseFloat(ms, 64); pErr == nil && v > 0 {
				wait = time.Duration(v * float64(time.Millisecond))
			}
		}
		if wait == 0 {
			hint = apiErr.Response.Header.Get("Retry-After")
			wait, _ = ai.ParseRetryAfter(hint)
		}
	}

	return &ai.RateLimitError{RetryAfter: wait, Hint: hint, Err: err}
}
