// Package ranking scores a list of candidates against one job and orders them.
package ranking

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/candidates"
	"github.com/spigell/cv-ranker/internal/scoring"
)

// Scorer resolves one pair. *scoring.Scorer satisfies it.
type Scorer interface {
	Score(ctx context.Context, job scoring.Job, candidateID, resumeText string) scoring.Result
}

// Ranked is a result tagged with the candidate it belongs to.
type Ranked struct {
	Rank      int                  `json:"rank"`
	Candidate candidates.Candidate `json:"candidate"`
	scoring.Result
}

// Stats summarizes one MatchAll run.
type Stats struct {
	Initial  int
	AI       int
	Fallback int
}

// Matcher walks candidates strictly one after another.
type Matcher struct {
	scorer Scorer
	logger *zap.Logger
}

func NewMatcher(scorer Scorer, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{scorer: scorer, logger: log}
}

// MatchAll scores every candidate in input order and returns them by descending final score.
// Equal scores keep their input order.
func (m *Matcher) MatchAll(ctx context.Context, job scoring.Job, list []candidates.Candidate) []Ranked {
	if len(list) == 0 {
		return []Ranked{}
	}

	ranked := make([]Ranked, 0, len(list))
	stats := Stats{Initial: len(list)}
	for _, c := range list {
		res := m.scorer.Score(ctx, job, c.ID, c.Text)
		if res.Source == scoring.SourceAI {
			stats.AI++
		} else {
			stats.Fallback++
		}
		ranked = append(ranked, Ranked{Candidate: c, Result: res})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	m.logger.Info("ranking step",
		zap.String("job_type", string(job.Type)),
		zap.Int("initial", stats.Initial),
		zap.Int("ai", stats.AI),
		zap.Int("fallback", stats.Fallback),
	)

	return ranked
}
