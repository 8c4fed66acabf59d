package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/queue"
	"github.com/spigell/cv-ranker/internal/utils"
)

const (
	defaultAttemptsPerModel    = 3
	defaultTemperature         = 0.2
	defaultMinContentLength    = 10
	defaultRetryWait           = 5 * time.Second
	defaultRetryMargin         = time.Second
	defaultMaxRetryWait        = time.Minute
	defaultScoringMaxTokens    = 1024
	defaultGenerationMaxTokens = 4096
	defaultMaxLogLength        = 200
)

// errChainExhausted is what the serialized task reports when no model produced usable content.
var errChainExhausted = errors.New("every model in the chain failed")

// Outcome classifies one model attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeTooShort    Outcome = "too_short"
	OutcomeOtherError  Outcome = "error"
)

// Attempt describes one call to one model.
type Attempt struct {
	Provider   string
	Model      string
	Number     int
	Outcome    Outcome
	RetryAfter time.Duration
	Err        error
}

// Completion is usable model output and the model that produced it.
type Completion struct {
	Content  string
	Provider string
	Model    string
}

// Config tunes the retry/fallback chain.
type Config struct {
	Models []ModelRef
	// Temperature nil means the default; zero is a valid setting.
	Temperature         *float32
	AttemptsPerModel    int
	MinContentLength    int
	DefaultRetryWait    time.Duration
	RetryMargin         time.Duration
	MaxRetryWait        time.Duration
	ScoringMaxTokens    int32
	GenerationMaxTokens int32
	// MinInterval paces consecutive serialized calls. Zero disables pacing.
	MinInterval  time.Duration
	MaxLogLength int
}

func (c *Config) withDefaults() {
	if c.Temperature == nil || *c.Temperature < 0 {
		t := float32(defaultTemperature)
		c.Temperature = &t
	}
	if c.AttemptsPerModel <= 0 {
		c.AttemptsPerModel = defaultAttemptsPerModel
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = defaultMinContentLength
	}
	if c.DefaultRetryWait <= 0 {
		c.DefaultRetryWait = defaultRetryWait
	}
	if c.RetryMargin < 0 {
		c.RetryMargin = 0
	} else if c.RetryMargin == 0 {
		c.RetryMargin = defaultRetryMargin
	}
	if c.MaxRetryWait <= 0 {
		c.MaxRetryWait = defaultMaxRetryWait
	}
	if c.ScoringMaxTokens <= 0 {
		c.ScoringMaxTokens = defaultScoringMaxTokens
	}
	if c.GenerationMaxTokens <= 0 {
		c.GenerationMaxTokens = defaultGenerationMaxTokens
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = defaultMaxLogLength
	}
}

// Client tries an ordered chain of models, retrying each on rate limits. Every call is
// executed through a single process-wide serializer owned by the client.
type Client struct {
	cfg       Config
	providers map[string]Provider
	queue     *queue.Serializer
	logger    *zap.Logger

	sleep     func(ctx context.Context, d time.Duration) error
	onAttempt func(Attempt)
}

// Option customizes a Client.
type Option func(*Client)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithAttemptObserver registers a hook called after every model attempt.
func WithAttemptObserver(fn func(Attempt)) Option {
	return func(c *Client) { c.onAttempt = fn }
}

// NewClient validates the chain against the available providers and starts the serializer.
func NewClient(cfg Config, providers map[string]Provider, log *zap.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.withDefaults()

	if len(cfg.Models) == 0 {
		return nil, errors.New("at least one model is required")
	}
	for _, ref := range cfg.Models {
		if _, ok := providers[ref.Provider]; !ok {
			return nil, fmt.Errorf("model %s: provider %q is not configured", ref, ref.Provider)
		}
	}

	c := &Client{
		cfg:       cfg,
		providers: providers,
		logger:    log,
		sleep:     utils.WaitFor,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.queue = queue.New(c.runChain, queue.Options{
		MinInterval: cfg.MinInterval,
		Logger:      log.Named("queue"),
	})

	return c, nil
}

// Complete runs the model chain for one prompt pair. ok is false when no model produced
// qualifying content; callers treat that as a signal to use their fallback.
func (c *Client) Complete(ctx context.Context, system, user string, purpose Purpose) (Completion, bool) {
	// A task nobody waits for must not reach the providers.
	if err := ctx.Err(); err != nil {
		c.logger.Debug("caller gone before submit, skipping the model chain",
			zap.String("purpose", purpose.String()),
			zap.Error(err),
		)
		return Completion{}, false
	}

	res, err := c.queue.Submit(ctx, system, user, c.maxTokens(purpose)).Wait(ctx)
	if err != nil {
		c.logger.Warn("no completion produced",
			zap.String("purpose", purpose.String()),
			zap.Error(err),
		)
		return Completion{}, false
	}

	return Completion{Content: res.Content, Provider: res.Provider, Model: res.Model}, true
}

// QueueStats exposes the serializer counters.
func (c *Client) QueueStats() queue.Stats { return c.queue.Stats() }

// Models returns the configured chain.
func (c *Client) Models() []ModelRef {
	return append([]ModelRef(nil), c.cfg.Models...)
}

// Close drains the serializer.
func (c *Client) Close(ctx context.Context) error { return c.queue.Close(ctx) }

func (c *Client) maxTokens(p Purpose) int32 {
	if p == PurposeGeneration {
		return c.cfg.GenerationMaxTokens
	}
	return c.cfg.ScoringMaxTokens
}

// runChain is the serializer handler. It walks the chain model by model.
func (c *Client) runChain(ctx context.Context, task *queue.Task) (queue.Result, error) {
	for _, ref := range c.cfg.Models {
		log := logger.WithCommonFields(c.logger, ref.Provider, ref.ID).With(zap.String("task_id", task.ID))

		content, ok, err := c.tryModel(ctx, ref, task, log)
		if err != nil {
			return queue.Result{}, err
		}
		if ok {
			return queue.Result{Content: content, Provider: ref.Provider, Model: ref.ID}, nil
		}
	}

	return queue.Result{}, errChainExhausted
}

// tryModel returns ok when the model produced qualifying content. A non-nil error aborts the
// whole chain and is only returned when the backoff wait was interrupted.
func (c *Client) tryModel(ctx context.Context, ref ModelRef, task *queue.Task, log *zap.Logger) (string, bool, error) {
	provider := c.providers[ref.Provider]
	inv := Invocation{
		Model:           ref.ID,
		System:          task.System,
		User:            task.User,
		Temperature:     *c.cfg.Temperature,
		MaxOutputTokens: task.MaxOutputTokens,
	}

	for attempt := 1; attempt <= c.cfg.AttemptsPerModel; attempt++ {
		log.Debug("model request",
			zap.Int("attempt", attempt),
			zap.String("prompt_preview", utils.TruncateForLog(task.User, c.cfg.MaxLogLength)),
		)

		text, err := provider.Invoke(ctx, inv)
		if err == nil {
			text = strings.TrimSpace(text)
			if utf8.RuneCountInString(text) > c.cfg.MinContentLength {
				c.observe(Attempt{Provider: ref.Provider, Model: ref.ID, Number: attempt, Outcome: OutcomeSuccess})
				log.Debug("model response",
					zap.Int("attempt", attempt),
					zap.Int("response_length", utf8.RuneCountInString(text)),
					zap.String("response_preview", utils.TruncateForLog(text, c.cfg.MaxLogLength)),
				)
				return text, true, nil
			}

			c.observe(Attempt{Provider: ref.Provider, Model: ref.ID, Number: attempt, Outcome: OutcomeTooShort})
			log.Warn("model returned empty or too short content; switching model",
				zap.Int("attempt", attempt),
				zap.Int("response_length", utf8.RuneCountInString(text)),
			)
			return "", false, nil
		}

		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			c.observe(Attempt{Provider: ref.Provider, Model: ref.ID, Number: attempt, Outcome: OutcomeOtherError, Err: err})
			log.Warn("model request failed; switching model", zap.Int("attempt", attempt), zap.Error(err))
			return "", false, nil
		}

		wait := c.retryWait(rateErr, log)
		c.observe(Attempt{Provider: ref.Provider, Model: ref.ID, Number: attempt, Outcome: OutcomeRateLimited, RetryAfter: wait, Err: err})

		if attempt == c.cfg.AttemptsPerModel {
			log.Warn("model is still rate limited; switching model", zap.Int("attempts", attempt))
			return "", false, nil
		}

		log.Info("model rate limited; backing off",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return "", false, fmt.Errorf("backoff interrupted: %w", err)
		}
	}

	return "", false, nil
}

// retryWait applies the explicit fallback rule: a missing or unparsable hint means the
// default backoff. The result is capped and padded with the safety margin.
func (c *Client) retryWait(rateErr *RateLimitError, log *zap.Logger) time.Duration {
	wait := rateErr.RetryAfter
	if wait <= 0 {
		log.Debug("retry hint missing or unparsable; using default backoff",
			zap.String("hint", utils.TruncateForLog(rateErr.Hint, c.cfg.MaxLogLength)),
			zap.Duration("default", c.cfg.DefaultRetryWait),
		)
		wait = c.cfg.DefaultRetryWait
	}
	if wait > c.cfg.MaxRetryWait {
		wait = c.cfg.MaxRetryWait
	}
	return wait + c.cfg.RetryMargin
}

func (c *Client) observe(a Attempt) {
	if c.onAttempt != nil {
		c.onAttempt(a)
	}
}
