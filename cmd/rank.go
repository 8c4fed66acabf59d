package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/candidates"
	"github.com/spigell/cv-ranker/internal/ranking"
	"github.com/spigell/cv-ranker/internal/scoring"
)

const (
	PromptShowList         = "Show ranked list"
	PromptBrowse           = "Browse candidates"
	PromptResultsToFile    = "Dump results to file"
	PromptAppendToExclude  = "Append candidate to exclude file"
	PromptExit             = "Exit"
	PromptBack             = "back"
	defaultBrowserPageSize = 10
)

var errExit = errors.New("exit requested")

var rankPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowList, PromptBrowse, PromptResultsToFile, PromptExit},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank every candidate from the configured source against one job description",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

type rankOutput struct {
	TotalCandidates  int              `json:"total_candidates"`
	RankedCandidates []ranking.Ranked `json:"ranked_candidates"`
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("job-file", "", "file with the job description text")
	rankCmd.Flags().String("job-type", "", "technical or non-technical; detected when unset")
	rankCmd.Flags().String("candidates-dir", "", "directory with one resume file per candidate")
	rankCmd.Flags().IntP("top", "n", 0, "print only the first N candidates")
	rankCmd.Flags().BoolP("interactive", "i", false, "browse the results interactively")

	_ = rankCmd.MarkFlagRequired("job-file")
}

func rank(cmd *cobra.Command) {
	ctx := context.Background()
	bindCommandFlags(cmd, map[string]string{"candidates.dir": "candidates-dir"})
	config, logger := setup()

	jobText, err := readTextFile(cmd.Flag("job-file").Value.String())
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	deps, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the application", zap.Error(err))
	}
	defer deps.Close()

	job, err := deps.scorer.PrepareJob(jobText, cmd.Flag("job-type").Value.String())
	if err != nil {
		logger.Error("preparing the job", zap.Error(err))
		return
	}

	source, err := deps.candidateSource(ctx)
	if err != nil {
		logger.Fatal("opening the candidate source", zap.Error(err))
	}
	if source == nil {
		logger.Error("no candidate source configured",
			zap.String("hint", "use --candidates-dir or set candidates.database-url"),
		)
		return
	}

	ranked, err := rankFrom(ctx, deps, source, job)
	if err != nil {
		logger.Error("ranking candidates", zap.Error(err))
		return
	}

	logger.Info("candidates ranked",
		zap.Int("count", len(ranked)),
		zap.String("job_type", string(job.Type)),
		zap.Bool("ai_available", deps.scorer.AIAvailable()),
	)

	top, _ := cmd.Flags().GetInt("top")
	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive {
		printJSON(rankOutput{TotalCandidates: len(ranked), RankedCandidates: limit(ranked, top)})
		return
	}

	for {
		_, action, err := rankPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleRankAction(action, deps, ranked, top); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func rankFrom(ctx context.Context, deps *application, source candidates.Source, job scoring.Job) ([]ranking.Ranked, error) {
	list, err := source.List(ctx)
	if err != nil && !errors.Is(err, candidates.ErrNoCandidates) {
		return nil, err
	}

	list, err = ranking.RunFilters(ctx, deps.logger.Named("filters"), deps.filters, list)
	if err != nil {
		return nil, err
	}

	return deps.matcher.MatchAll(ctx, job, list), nil
}

func handleRankAction(action string, deps *application, ranked []ranking.Ranked, top int) error {
	switch action {
	case PromptShowList:
		for _, r := range limit(ranked, top) {
			fmt.Println(rankLabel(r))
		}
		return nil
	case PromptBrowse:
		return browse(deps, ranked)
	case PromptResultsToFile:
		filename, err := dumpToTmpFile(rankOutput{TotalCandidates: len(ranked), RankedCandidates: ranked})
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		deps.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		deps.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// browse lists candidates and shows the full result of the chosen one. With an exclude
// file configured, the chosen candidate can be added to it.
func browse(deps *application, ranked []ranking.Ranked) error {
	excludeFile := deps.config.ExcludeFile

	for {
		items := make([]string, 0, len(ranked)+1)
		for _, r := range ranked {
			items = append(items, rankLabel(r))
		}

		selector := promptui.Select{
			Label: "Choose a candidate and press ENTER",
			Items: append(items, PromptBack),
			Size:  defaultBrowserPageSize,
		}

		idx, _, err := selector.Run()
		if err != nil {
			return err
		}
		if idx == len(ranked) {
			return nil
		}

		chosen := ranked[idx]
		printJSON(chosen)

		if excludeFile == "" {
			continue
		}

		confirm := promptui.Select{
			Label: fmt.Sprintf("%s %s?", PromptAppendToExclude, chosen.Candidate.ID),
			Items: []string{"No", "Yes"},
		}
		if _, answer, err := confirm.Run(); err != nil {
			return err
		} else if answer != "Yes" {
			continue
		}

		if err := ranking.AppendExcluded(excludeFile, []string{chosen.Candidate.ID}); err != nil {
			return err
		}
		deps.logger.Info("appended to exclude file",
			zap.String("filename", excludeFile),
			zap.String("candidate_id", chosen.Candidate.ID),
		)
	}
}

func rankLabel(r ranking.Ranked) string {
	name := r.Candidate.Name
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("%d. %s %s / %d / %s / %s", r.Rank, r.Candidate.ID, name, r.FinalScore, r.Source, r.Classification)
}

func limit(ranked []ranking.Ranked, top int) []ranking.Ranked {
	if top <= 0 || top >= len(ranked) {
		return ranked
	}
	return ranked[:top]
}

func dumpToTmpFile(v any) (string, error) {
	file, err := os.CreateTemp("", "cv-ranker-*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}
