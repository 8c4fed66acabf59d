package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/ai/gemini"
	"github.com/spigell/cv-ranker/internal/ai/openai"
	"github.com/spigell/cv-ranker/internal/candidates"
	"github.com/spigell/cv-ranker/internal/jobtype"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/ranking"
	"github.com/spigell/cv-ranker/internal/scoring"
	"github.com/spigell/cv-ranker/internal/secrets"
)

// clientCloseTimeout bounds how long shutdown waits for queued model calls.
const clientCloseTimeout = 10 * time.Second

// application holds everything the subcommands share.
type application struct {
	config  *Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	client  *ai.Client
	scorer  *scoring.Scorer
	matcher *ranking.Matcher
	filters []ranking.Filter

	closers []func()
}

func newApplication(ctx context.Context, config *Config, logger *zap.Logger) (*application, error) {
	tables, err := jobtype.LoadTables(config.KeywordsFile)
	if err != nil {
		return nil, err
	}

	a := &application{
		config:  config,
		logger:  logger,
		metrics: metrics.New(),
		filters: ranking.DefaultFilters(config.ExcludeFile),
	}

	var assessor scoring.Assessor
	if config.AI.Enabled {
		client, err := a.newModelClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("configuring the model client: %w", err)
		}
		if client != nil {
			a.client = client
			a.closers = append(a.closers, closeWithin(logger, client, clientCloseTimeout))
			assessor = scoring.NewAIScorer(client, logger.Named("ai"), config.AI.MaxLogLength, config.AI.MaxPromptRunes)
		}
	}
	if assessor == nil {
		logger.Info("AI scoring is disabled, using the lexical fallback only")
	}

	a.scorer = scoring.NewScorer(jobtype.New(tables), assessor, logger.Named("scoring"),
		scoring.NewIndustryCeiling(tables.Industries))
	a.matcher = ranking.NewMatcher(a.scorer, logger.Named("ranking"))

	return a, nil
}

// newModelClient builds the providers that have credentials and keeps the models they can
// serve. It returns nil when no model is left.
func (a *application) newModelClient(ctx context.Context) (*ai.Client, error) {
	cfg := a.config.AI

	refs, err := ai.ParseModelChain(cfg.Models)
	if err != nil {
		return nil, err
	}

	providers := make(map[string]ai.Provider)

	geminiKey, err := secrets.Optional(secrets.Source{
		Name:  "gemini api key",
		Value: nestedValue(cfg.Gemini, func(g *GeminiConfig) string { return g.APIKey }),
		File:  nestedValue(cfg.Gemini, func(g *GeminiConfig) string { return g.APIKeyFile }),
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}
	if geminiKey != "" {
		p, err := gemini.New(ctx, geminiKey)
		if err != nil {
			return nil, fmt.Errorf("creating gemini provider: %w", err)
		}
		providers[ai.ProviderGemini] = p
	}

	openaiKey, err := secrets.Optional(secrets.Source{
		Name:  "openai api key",
		Value: nestedValue(cfg.OpenAI, func(o *OpenAIConfig) string { return o.APIKey }),
		File:  nestedValue(cfg.OpenAI, func(o *OpenAIConfig) string { return o.APIKeyFile }),
		Env:   "OPENAI_API_KEY",
	})
	if err != nil {
		return nil, err
	}
	if openaiKey != "" {
		p, err := openai.New(openaiKey, nestedValue(cfg.OpenAI, func(o *OpenAIConfig) string { return o.BaseURL }))
		if err != nil {
			return nil, fmt.Errorf("creating openai provider: %w", err)
		}
		providers[ai.ProviderOpenAI] = p
	}

	usable := refs[:0]
	for _, ref := range refs {
		if _, ok := providers[ref.Provider]; !ok {
			a.logger.Warn("skipping model without provider credentials", zap.String("model", ref.String()))
			continue
		}
		usable = append(usable, ref)
	}
	if len(usable) == 0 {
		return nil, nil
	}

	return ai.NewClient(ai.Config{
		Models:           usable,
		Temperature:      cfg.Temperature,
		AttemptsPerModel: cfg.AttemptsPerModel,
		MinContentLength: cfg.MinContentLength,
		DefaultRetryWait: cfg.DefaultRetryWait,
		RetryMargin:      cfg.RetryMargin,
		MaxRetryWait:     cfg.MaxRetryWait,
		MinInterval:      cfg.MinInterval,
		MaxLogLength:     cfg.MaxLogLength,
	}, providers, a.logger.Named("ai"), ai.WithAttemptObserver(a.metrics.ObserveAttempt))
}

// candidateSource opens the configured store. A directory wins over a database.
func (a *application) candidateSource(ctx context.Context) (candidates.Source, error) {
	cfg := a.config.Candidates

	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		return candidates.DirSource{Dir: dir}, nil
	}

	url, err := secrets.Optional(secrets.Source{
		Name:  "database url",
		Value: cfg.DatabaseURL,
		File:  cfg.DatabaseURLFile,
	})
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, nil
	}

	source, err := candidates.ConnectPostgres(ctx, url, cfg.Table)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, source.Close)
	return source, nil
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func nestedValue[T any](section *T, get func(*T) string) string {
	if section == nil {
		return ""
	}
	return get(section)
}

type drainer interface {
	Close(ctx context.Context) error
}

// closeWithin returns a closer that gives d at most timeout to drain. Calls still queued after
// that are abandoned.
func closeWithin(logger *zap.Logger, d drainer, timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := d.Close(ctx); err != nil {
			logger.Warn("closing the model client, queued calls abandoned", zap.Error(err))
		}
	}
}
