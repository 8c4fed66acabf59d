package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoder, the minimum level and the sink.
type Config struct {
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
	// Level is any zap level name; "debug" enables model request previews.
	Level string `mapstructure:"level"`
	// Output defaults to stderr so stdout stays clean for command output.
	Output string `mapstructure:"output"`
}

func New(cfg Config) (*zap.Logger, error) {
	encoding := strings.ToLower(strings.TrimSpace(cfg.Format))
	switch encoding {
	case "":
		encoding = "console"
	case "console", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	output := strings.TrimSpace(cfg.Output)
	if output == "" {
		output = "stderr"
	}

	zcfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			NameKey: "component",

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}

	return zcfg.Build()
}
