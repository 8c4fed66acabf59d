package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/jobtype"
)

type stubCompleter struct {
	completion ai.Completion
	ok         bool

	calls      int
	lastSystem string
	lastUser   string
	purpose    ai.Purpose
}

func (s *stubCompleter) Complete(_ context.Context, system, user string, purpose ai.Purpose) (ai.Completion, bool) {
	s.calls++
	s.lastSystem = system
	s.lastUser = user
	s.purpose = purpose
	return s.completion, s.ok
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		score   float64
		matched int
		wantErr bool
	}{
		{
			name:    "plain json",
			raw:     `{"score": 82, "classification": "strong match", "matched_keywords": ["aws", "node.js"], "summary": "Good"}`,
			score:   82,
			matched: 2,
		},
		{
			name:  "code fence and string score",
			raw:   "```json\n{\"score\": \"74\", \"strengths\": \"API design\"}\n```",
			score: 74,
		},
		{
			name:  "prose around object",
			raw:   "Here is the evaluation:\n{\"score\": \"85/100\", \"gaps\": [\"kubernetes\"]}\nThanks!",
			score: 85,
		},
		{
			name:  "alternative score key",
			raw:   `{"match_score": 55.5, "missing_skills": ["go"]}`,
			score: 55.5,
		},
		{name: "no score", raw: `{"summary": "n/a"}`, wantErr: true},
		{name: "not json", raw: "I cannot evaluate this resume.", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseResponse(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Score != tc.score {
				t.Fatalf("expected score %v, got %v", tc.score, got.Score)
			}
			if len(got.MatchedKeywords) != tc.matched {
				t.Fatalf("expected %d matched keywords, got %v", tc.matched, got.MatchedKeywords)
			}
		})
	}
}

func TestParseResponseWrapsSingleValuesIntoLists(t *testing.T) {
	t.Parallel()

	got, err := parseResponse(`{"score": 60, "strengths": "Team leadership"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Strengths) != 1 || got.Strengths[0] != "Team leadership" {
		t.Fatalf("expected single strength, got %v", got.Strengths)
	}
}

func TestAIScorerSelectsPromptByJobType(t *testing.T) {
	stub := &stubCompleter{ok: true, completion: ai.Completion{Content: `{"score": 40}`, Provider: "gemini", Model: "gemini-2.5-flash"}}
	scorer := NewAIScorer(stub, zap.NewNop(), 0, 0)

	if _, err := scorer.Assess(context.Background(), Job{Text: "Go developer", Type: jobtype.Technical}, "resume"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stub.lastSystem, "technical role") || strings.Contains(stub.lastSystem, "{{") {
		t.Fatalf("unexpected technical system prompt: %s", stub.lastSystem)
	}
	if stub.purpose != ai.PurposeScoring {
		t.Fatalf("expected scoring purpose, got %s", stub.purpose)
	}

	if _, err := scorer.Assess(context.Background(), Job{Text: "Hotel receptionist", Type: jobtype.NonTechnical}, "resume"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stub.lastSystem, "non-technical role") {
		t.Fatalf("unexpected non-technical system prompt: %s", stub.lastSystem)
	}
	if !strings.Contains(stub.lastUser, "Hotel receptionist") || !strings.Contains(stub.lastUser, "resume") {
		t.Fatalf("user prompt must carry both texts: %s", stub.lastUser)
	}
}

func TestAIScorerClipsLongTexts(t *testing.T) {
	stub := &stubCompleter{ok: true, completion: ai.Completion{Content: `{"score": 40}`, Model: "m"}}
	scorer := NewAIScorer(stub, zap.NewNop(), 0, 50)

	long := strings.Repeat("kubernetes ", 100)
	if _, err := scorer.Assess(context.Background(), Job{Text: "job", Type: jobtype.Technical}, long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(stub.lastUser, "kubernetes") > 5 {
		t.Fatalf("expected resume to be clipped, prompt: %s", stub.lastUser)
	}
}

func TestAIScorerReportsMissingCompletion(t *testing.T) {
	scorer := NewAIScorer(&stubCompleter{ok: false}, nil, 0, 0)

	_, err := scorer.Assess(context.Background(), Job{Text: "job", Type: jobtype.Technical}, "resume")
	if !errors.Is(err, ErrNoCompletion) {
		t.Fatalf("expected ErrNoCompletion, got %v", err)
	}
}

func TestAIScorerSetsModel(t *testing.T) {
	stub := &stubCompleter{ok: true, completion: ai.Completion{Content: `{"score": 82}`, Provider: "openai", Model: "gpt-4o-mini"}}

	got, err := NewAIScorer(stub, nil, 0, 0).Assess(context.Background(), Job{Text: "job", Type: jobtype.Technical}, "resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "gpt-4o-mini" || got.Score != 82 {
		t.Fatalf("unexpected assessment: %+v", got)
	}
}
