package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/logger"
)

const (
	app       = "cv-ranker"
	envPrefix = "CV_RANKER"
)

type Config struct {
	Log          logger.Config     `mapstructure:"log"`
	KeywordsFile string            `mapstructure:"keywords-file"`
	ExcludeFile  string            `mapstructure:"exclude-file"`
	Server       *ServerConfig     `mapstructure:"server"`
	Candidates   *CandidatesConfig `mapstructure:"candidates"`
	AI           *AIConfig         `mapstructure:"ai"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type CandidatesConfig struct {
	Dir             string `mapstructure:"dir"`
	DatabaseURL     string `mapstructure:"database-url"`
	DatabaseURLFile string `mapstructure:"database-url-file"`
	Table           string `mapstructure:"table"`
}

type AIConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Models           []string      `mapstructure:"models"`
	Temperature      *float32      `mapstructure:"temperature"`
	AttemptsPerModel int           `mapstructure:"attempts-per-model"`
	MinContentLength int           `mapstructure:"min-content-length"`
	DefaultRetryWait time.Duration `mapstructure:"default-retry-wait"`
	RetryMargin      time.Duration `mapstructure:"retry-margin"`
	MaxRetryWait     time.Duration `mapstructure:"max-retry-wait"`
	MinInterval      time.Duration `mapstructure:"min-interval"`
	MaxLogLength     int           `mapstructure:"max-log-length"`
	MaxPromptRunes   int           `mapstructure:"max-prompt-runes"`
	Gemini           *GeminiConfig `mapstructure:"gemini"`
	OpenAI           *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker scores resumes against a job description and ranks candidates",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd == versionCmd {
				return nil
			}
			return initConfig()
		},
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Unmarshal only sees env values for keys viper already knows about.
	for key, envs := range map[string][]string{
		"ai.enabled":              {envPrefix + "_AI_ENABLED"},
		"ai.gemini.api-key":       {envPrefix + "_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"ai.openai.api-key":       {envPrefix + "_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"ai.openai.base-url":      {envPrefix + "_OPENAI_BASE_URL"},
		"candidates.dir":          {envPrefix + "_CANDIDATES_DIR"},
		"candidates.database-url": {envPrefix + "_DATABASE_URL", "DATABASE_URL"},
		"candidates.table":        {envPrefix + "_CANDIDATES_TABLE"},
		"server.addr":             {envPrefix + "_SERVER_ADDR"},
		"log.level":               {envPrefix + "_LOG_LEVEL"},
	} {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			log.Fatalf("binding %s environment variables: %v", key, err)
		}
	}

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.models", []string{"gemini/gemini-2.5-flash", "gemini/gemini-2.0-flash"})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("keywords-file", "", "yaml file overriding the built-in keyword tables")
	rootCmd.PersistentFlags().String("exclude-file", "", "file with candidate ids or emails to skip, one per line")
	rootCmd.PersistentFlags().Bool("no-ai", false, "score with the lexical fallback only")

	for _, name := range []string{"debug", "json", "keywords-file", "exclude-file"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			log.Fatalf("binding %s flag: %v", name, err)
		}
	}
	if err := viper.BindPFlag("ai.disabled", rootCmd.PersistentFlags().Lookup("no-ai")); err != nil {
		log.Fatalf("binding no-ai flag: %v", err)
	}
}

// initConfig reads the config file. A missing default file is fine; an explicit --config
// or a broken file is not.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config == nil {
		config = &Config{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if viper.GetBool("ai.disabled") {
		config.AI.Enabled = false
	}
	if config.Candidates == nil {
		config.Candidates = &CandidatesConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	return config, nil
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	lc := cfg.Log
	if viper.GetBool("json") {
		lc.Format = "json"
	}
	if viper.GetBool("debug") {
		lc.Level = "debug"
	}
	return logger.New(lc)
}
