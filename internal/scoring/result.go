// Package scoring turns a job description and a resume into an authoritative score. The
// external model's assessment and the lexical fallback are never combined: exactly one of them
// becomes the final score.
package scoring

import (
	"math"
	"strings"
)

// Source tags where a final score came from.
type Source string

const (
	SourceAI       Source = "AI"
	SourceFallback Source = "FALLBACK"
)

// FallbackWarning is attached to every result that did not come from a model.
const FallbackWarning = "AI scoring was unavailable; this score is a lexical estimate and its accuracy is not guaranteed"

// AIAssessment is a parsed model answer plus the model that produced it.
type AIAssessment struct {
	Score           float64
	Classification  string
	MatchedKeywords []string
	MissingKeywords []string
	Summary         string
	Strengths       []string
	Gaps            []string
	Recommendation  string
	Model           string
}

// Result is the outcome for one (job, resume) pair. Values are only produced by this package
// and carry their own copies of every slice.
type Result struct {
	FinalScore      int      `json:"final_score"`
	Source          Source   `json:"source"`
	Classification  string   `json:"classification"`
	MatchedKeywords []string `json:"matched_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
	Summary         string   `json:"summary,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
	Gaps            []string `json:"gaps,omitempty"`
	Recommendation  string   `json:"recommendation,omitempty"`
	Model           string   `json:"model,omitempty"`
	FallbackScore   int      `json:"fallback_score"`
	Warning         string   `json:"warning,omitempty"`
}

// Resolve picks the authoritative score. A qualifying assessment wins in full; otherwise the
// fallback score is final and every model-specific field stays empty.
func Resolve(outcome *AIAssessment, fallback int) Result {
	if qualifies(outcome) {
		score := int(math.Round(outcome.Score))
		classification := strings.TrimSpace(outcome.Classification)
		if classification == "" {
			classification = aiClassification(score)
		}
		return Result{
			FinalScore:      score,
			Source:          SourceAI,
			Classification:  classification,
			MatchedKeywords: clone(outcome.MatchedKeywords),
			MissingKeywords: clone(outcome.MissingKeywords),
			Summary:         strings.TrimSpace(outcome.Summary),
			Strengths:       clone(outcome.Strengths),
			Gaps:            clone(outcome.Gaps),
			Recommendation:  strings.TrimSpace(outcome.Recommendation),
			Model:           strings.TrimSpace(outcome.Model),
			FallbackScore:   fallback,
		}
	}

	return Result{
		FinalScore:      fallback,
		Source:          SourceFallback,
		Classification:  fallbackClassification(fallback),
		MatchedKeywords: []string{},
		MissingKeywords: []string{},
		FallbackScore:   fallback,
		Warning:         FallbackWarning,
	}
}

func qualifies(a *AIAssessment) bool {
	if a == nil || strings.TrimSpace(a.Model) == "" {
		return false
	}
	if math.IsNaN(a.Score) || math.IsInf(a.Score, 0) {
		return false
	}
	return a.Score >= 0 && a.Score <= 100
}

func aiClassification(score int) string {
	switch {
	case score >= 75:
		return "strong match"
	case score >= 50:
		return "good match"
	case score >= 30:
		return "partial match"
	default:
		return "weak match"
	}
}

func fallbackClassification(score int) string {
	switch {
	case score >= 40:
		return "near match"
	case score >= 25:
		return "partial match"
	default:
		return "no match"
	}
}

// withLexicalKeywords fills keyword lists of a fallback result from the lexical overlap.
func (r Result) withLexicalKeywords(matched, missing []string) Result {
	if r.Source != SourceFallback {
		return r
	}
	r.MatchedKeywords = clone(matched)
	r.MissingKeywords = clone(missing)
	return r
}

func clone(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
