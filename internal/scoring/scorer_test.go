package scoring

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/jobtype"
)

const (
	backendJob    = "Senior Backend Engineer, Node.js, AWS, 5+ years"
	backendResume = "Backend developer, 6 years, AWS, Node.js, Docker"
)

type stubAssessor struct {
	assessment *AIAssessment
	err        error
	calls      int
}

func (s *stubAssessor) Assess(context.Context, Job, string) (*AIAssessment, error) {
	s.calls++
	return s.assessment, s.err
}

func TestScorePairFallbackWhenAIUnavailable(t *testing.T) {
	scorer := NewScorer(jobtype.New(nil), nil, zap.NewNop())

	eval, err := scorer.ScorePair(context.Background(), PairRequest{JobText: backendJob, CandidateText: backendResume})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := eval.Result
	if res.Source != SourceFallback {
		t.Fatalf("expected fallback source, got %s", res.Source)
	}
	if res.FinalScore < 15 || res.FinalScore > 50 {
		t.Fatalf("fallback score %d outside band", res.FinalScore)
	}
	if res.Warning == "" {
		t.Fatal("expected degraded warning")
	}
	if res.Model != "" {
		t.Fatalf("fallback must not carry a model, got %q", res.Model)
	}
	if !eval.IsTechnical {
		t.Fatal("expected backend job to be classified as technical")
	}
	if eval.FallbackScore != res.FinalScore {
		t.Fatalf("expected fallback score %d to be exposed, got %d", res.FinalScore, eval.FallbackScore)
	}
	if len(res.MatchedKeywords) == 0 {
		t.Fatal("expected lexical matched keywords on fallback result")
	}
}

func TestScorePairUsesQualifyingAIScore(t *testing.T) {
	completer := &stubCompleter{ok: true, completion: ai.Completion{
		Content:  `{"score": 82, "matched_keywords": ["Node.js", "AWS"], "missing_keywords": ["seniority"], "summary": "Solid backend match"}`,
		Provider: "gemini",
		Model:    "gemini-2.5-flash",
	}}
	scorer := NewScorer(jobtype.New(nil), NewAIScorer(completer, nil, 0, 0), zap.NewNop())

	eval, err := scorer.ScorePair(context.Background(), PairRequest{JobText: backendJob, CandidateText: backendResume})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := eval.Result
	if res.FinalScore != 82 || res.Source != SourceAI {
		t.Fatalf("expected AI score 82, got %d from %s", res.FinalScore, res.Source)
	}
	if res.Warning != "" {
		t.Fatalf("expected no warning, got %q", res.Warning)
	}
	if res.Model != "gemini-2.5-flash" {
		t.Fatalf("expected originating model, got %q", res.Model)
	}
	if res.FallbackScore < 15 || res.FallbackScore > 50 {
		t.Fatalf("fallback score %d must stay available as auxiliary field", res.FallbackScore)
	}
	if completer.calls != 1 {
		t.Fatalf("expected a single model call, got %d", completer.calls)
	}
}

func TestScoreDegradesOnAssessorFailure(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	assessor := &stubAssessor{err: errors.New("decode model response: boom")}
	scorer := NewScorer(nil, assessor, zap.New(core))

	res := scorer.Score(context.Background(), Job{Text: backendJob, Type: jobtype.Technical}, "c1", backendResume)
	if res.Source != SourceFallback || res.Warning == "" {
		t.Fatalf("expected degraded fallback result, got %+v", res)
	}
	if observed.FilterMessage("model assessment failed; using fallback score").Len() != 1 {
		t.Fatalf("expected failure to be logged, got %v", observed.All())
	}
	entry := observed.All()[0].ContextMap()
	if entry["candidate_id"] != "c1" {
		t.Fatalf("expected candidate id in log context, got %v", entry)
	}
}

func TestScorePairValidation(t *testing.T) {
	assessor := &stubAssessor{}
	scorer := NewScorer(nil, assessor, nil)

	cases := []struct {
		name  string
		req   PairRequest
		field string
	}{
		{name: "missing job", req: PairRequest{CandidateText: "resume"}, field: "job_text"},
		{name: "blank candidate", req: PairRequest{JobText: "job", CandidateText: "  "}, field: "candidate_text"},
		{name: "bad job type", req: PairRequest{JobText: "job", CandidateText: "resume", JobType: "executive"}, field: "job_type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scorer.ScorePair(context.Background(), tc.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}

	if assessor.calls != 0 {
		t.Fatalf("validation must happen before any scoring, got %d model calls", assessor.calls)
	}
}

func TestPrepareJobOverride(t *testing.T) {
	scorer := NewScorer(nil, nil, nil)

	job, err := scorer.PrepareJob(backendJob, "non_technical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Type != jobtype.NonTechnical {
		t.Fatalf("expected override to win, got %s", job.Type)
	}

	job, err = scorer.PrepareJob(backendJob, "")
	if err != nil || job.Type != jobtype.Technical {
		t.Fatalf("expected classifier result, got %s, %v", job.Type, err)
	}
}

func TestIndustryCeiling(t *testing.T) {
	table := jobtype.DefaultTables().Industries
	ceiling := NewIndustryCeiling(table)
	if ceiling == nil {
		t.Fatal("expected default tables to enable the industry ceiling")
	}

	nurseJob := Job{Text: "Registered nurse for hospital patient care", Type: jobtype.NonTechnical}

	cases := []struct {
		name   string
		job    Job
		resume string
		score  int
		expect int
	}{
		{name: "outside industry capped", job: nurseJob, resume: "Retail store manager with strong customer focus", score: 45, expect: table.Ceiling},
		{name: "inside industry kept", job: nurseJob, resume: "ICU nurse with five years of clinical experience", score: 45, expect: 45},
		{name: "below ceiling kept", job: nurseJob, resume: "Retail store manager", score: 18, expect: 18},
		{name: "technical jobs ignored", job: Job{Text: nurseJob.Text, Type: jobtype.Technical}, resume: "Retail store manager", score: 45, expect: 45},
		{name: "unrelated industry ignored", job: Job{Text: "Sales associate", Type: jobtype.NonTechnical}, resume: "Barista", score: 45, expect: 45},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ceiling.Adjust(tc.job, tc.resume, tc.score); got != tc.expect {
				t.Fatalf("expected %d, got %d", tc.expect, got)
			}
		})
	}

	capped := Resolve(nil, ceiling.Adjust(nurseJob, "Retail store manager with strong customer focus", 45))
	if capped.Classification != "no match" {
		t.Fatalf("expected an industry mismatch to classify as no match, got %q at %d", capped.Classification, capped.FinalScore)
	}

	if NewIndustryCeiling(jobtype.IndustryTable{}) != nil {
		t.Fatal("expected empty table to disable the ceiling")
	}
}

func TestScorerSkipsNilIndustryCeiling(t *testing.T) {
	scorer := NewScorer(nil, nil, nil, NewIndustryCeiling(jobtype.IndustryTable{}))
	if len(scorer.adjusters) != 0 {
		t.Fatalf("expected nil adjuster to be dropped, got %d", len(scorer.adjusters))
	}

	// Scoring must not panic on a dropped adjuster.
	_ = scorer.Score(context.Background(), Job{Text: "job text here", Type: jobtype.NonTechnical}, "", "resume text")
}
