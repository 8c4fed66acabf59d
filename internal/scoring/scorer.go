package scoring

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/jobtype"
	"github.com/spigell/cv-ranker/internal/lexical"
	"github.com/spigell/cv-ranker/internal/logger"
)

// Job is a job description with its derived or overridden type.
type Job struct {
	Text string
	Type jobtype.Type
}

// PairRequest is the single-pair input.
type PairRequest struct {
	JobText       string
	CandidateText string
	JobType       string
}

// Evaluation is a single-pair outcome with the values exposed for transparency.
type Evaluation struct {
	Result        Result
	FallbackScore int
	IsTechnical   bool
}

// Scorer computes the lexical fallback, optionally asks a model, and resolves the final score.
type Scorer struct {
	classifier *jobtype.Classifier
	assessor   Assessor
	adjusters  []FallbackAdjuster
	logger     *zap.Logger
}

// NewScorer wires a scorer. A nil assessor means the model path is unavailable and every pair
// is resolved from the fallback.
func NewScorer(classifier *jobtype.Classifier, assessor Assessor, log *zap.Logger, adjusters ...FallbackAdjuster) *Scorer {
	if classifier == nil {
		classifier = jobtype.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}

	kept := make([]FallbackAdjuster, 0, len(adjusters))
	for _, a := range adjusters {
		if a != nil && !isNilCeiling(a) {
			kept = append(kept, a)
		}
	}

	return &Scorer{classifier: classifier, assessor: assessor, adjusters: kept, logger: log}
}

func isNilCeiling(a FallbackAdjuster) bool {
	c, ok := a.(*IndustryCeiling)
	return ok && c == nil
}

// AIAvailable reports whether the model path is wired.
func (s *Scorer) AIAvailable() bool { return s.assessor != nil }

// PrepareJob validates the job text and settles its type. A non-empty override wins over the
// classifier.
func (s *Scorer) PrepareJob(text, override string) (Job, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Job{}, &ValidationError{Field: "job_text", Reason: "must not be empty"}
	}

	if strings.TrimSpace(override) != "" {
		t, err := jobtype.Parse(override)
		if err != nil {
			return Job{}, &ValidationError{Field: "job_type", Reason: err.Error()}
		}
		return Job{Text: text, Type: t}, nil
	}

	return Job{Text: text, Type: s.classifier.Classify(text)}, nil
}

// ScorePair validates a single-pair request and scores it.
func (s *Scorer) ScorePair(ctx context.Context, req PairRequest) (Evaluation, error) {
	job, err := s.PrepareJob(req.JobText, req.JobType)
	if err != nil {
		return Evaluation{}, err
	}
	if strings.TrimSpace(req.CandidateText) == "" {
		return Evaluation{}, &ValidationError{Field: "candidate_text", Reason: "must not be empty"}
	}

	result := s.Score(ctx, job, "", req.CandidateText)
	return Evaluation{
		Result:        result,
		FallbackScore: result.FallbackScore,
		IsTechnical:   job.Type.IsTechnical(),
	}, nil
}

// Score never fails: any model problem resolves to the fallback.
func (s *Scorer) Score(ctx context.Context, job Job, candidateID, resumeText string) Result {
	log := logger.WithFields(s.logger, logger.ScoringFields(candidateID, string(job.Type), "")...)

	fallback := lexical.Similarity(job.Text, resumeText)
	for _, adj := range s.adjusters {
		adjusted := adj.Adjust(job, resumeText, fallback)
		if adjusted != fallback {
			log.Debug("fallback score adjusted",
				zap.String("adjuster", adj.Name()),
				zap.Int("from", fallback),
				zap.Int("to", adjusted),
			)
		}
		fallback = adjusted
	}

	var outcome *AIAssessment
	switch {
	case s.assessor == nil:
	case ctx.Err() != nil:
		log.Debug("request cancelled; using fallback score", zap.Error(ctx.Err()))
	default:
		assessment, err := s.assessor.Assess(ctx, job, resumeText)
		switch {
		case errors.Is(err, ErrNoCompletion):
			log.Warn("model chain exhausted; using fallback score")
		case err != nil:
			log.Warn("model assessment failed; using fallback score", zap.Error(err))
		default:
			outcome = assessment
		}
	}

	result := Resolve(outcome, fallback)
	if result.Source == SourceFallback {
		matched, missing := lexical.Overlap(job.Text, resumeText)
		result = result.withLexicalKeywords(matched, missing)
	}

	log.Info("candidate scored",
		zap.String(logger.FieldScoreSource, string(result.Source)),
		zap.Int("final_score", result.FinalScore),
		zap.Int("fallback_score", result.FallbackScore),
		zap.String("classification", result.Classification),
	)

	return result
}
