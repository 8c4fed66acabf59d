package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/scoring"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score one resume against one job description",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

type matchOutput struct {
	Result        scoring.Result `json:"result"`
	FallbackScore int            `json:"fallback_score"`
	IsTechnical   bool           `json:"is_technical"`
	Warning       string         `json:"warning,omitempty"`
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("job-file", "", "file with the job description text")
	matchCmd.Flags().String("resume-file", "", "file with the resume text")
	matchCmd.Flags().String("job-type", "", "technical or non-technical; detected when unset")

	_ = matchCmd.MarkFlagRequired("job-file")
	_ = matchCmd.MarkFlagRequired("resume-file")
}

func match(cmd *cobra.Command) {
	ctx := context.Background()
	config, logger := setup()

	jobText, err := readTextFile(cmd.Flag("job-file").Value.String())
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}
	resumeText, err := readTextFile(cmd.Flag("resume-file").Value.String())
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err))
	}

	deps, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the application", zap.Error(err))
	}
	defer deps.Close()

	eval, err := deps.scorer.ScorePair(ctx, scoring.PairRequest{
		JobText:       jobText,
		CandidateText: resumeText,
		JobType:       cmd.Flag("job-type").Value.String(),
	})
	if err != nil {
		logger.Error("scoring the pair", zap.Error(err))
		return
	}

	printJSON(matchOutput{
		Result:        eval.Result,
		FallbackScore: eval.FallbackScore,
		IsTechnical:   eval.IsTechnical,
		Warning:       eval.Result.Warning,
	})
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	return string(data), nil
}

func printJSON(v any) {
	// the output types are plain structs, encoding cannot fail
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}
