package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scoring and ranking HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("candidates-dir", "", "directory with one resume file per candidate")
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bindCommandFlags(cmd, map[string]string{
		"server.addr":    "addr",
		"candidates.dir": "candidates-dir",
	})
	config, logger := setup()
	logger.Info("starting the cv-ranker server", zap.String("version", version))

	deps, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the application", zap.Error(err))
	}
	defer deps.Close()

	source, err := deps.candidateSource(ctx)
	if err != nil {
		logger.Fatal("opening the candidate source", zap.Error(err))
	}
	if source == nil {
		logger.Warn("no candidate source configured, ranking endpoint is disabled",
			zap.String("hint", "set candidates.dir or candidates.database-url"),
		)
	}

	if deps.client != nil {
		deps.metrics.RegisterQueue(deps.client.QueueStats)
	}

	srv := server.New(server.Deps{
		Scorer:  deps.scorer,
		Matcher: deps.matcher,
		Source:  source,
		Filters: deps.filters,
		Metrics: deps.metrics,
		Logger:  logger.Named("http"),
	})

	if err := srv.Run(ctx, config.Server.Addr); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

// setup decodes the config and builds the logger every command starts with.
func setup() (*Config, *zap.Logger) {
	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	logger, err := newLogger(config)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug("starting with config", zap.ByteString("config", pretty))

	return config, logger
}

// redacted copies the config with inline secrets masked.
func redacted(config *Config) Config {
	out := *config
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	if config.AI != nil {
		aiCopy := *config.AI
		if aiCopy.Gemini != nil {
			g := *aiCopy.Gemini
			g.APIKey = mask(g.APIKey)
			aiCopy.Gemini = &g
		}
		if aiCopy.OpenAI != nil {
			o := *aiCopy.OpenAI
			o.APIKey = mask(o.APIKey)
			aiCopy.OpenAI = &o
		}
		out.AI = &aiCopy
	}
	if config.Candidates != nil {
		c := *config.Candidates
		c.DatabaseURL = mask(c.DatabaseURL)
		out.Candidates = &c
	}
	return out
}

// bindCommandFlags binds flags of the running command only; serve and rank share config keys.
func bindCommandFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			log.Fatalf("binding %s flag: %v", flag, err)
		}
	}
}
