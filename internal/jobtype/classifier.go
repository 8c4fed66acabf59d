// Package jobtype decides whether a job description describes technical or non-technical work.
package jobtype

import (
	"fmt"
	"strings"
)

// Type is the derived kind of a job description.
type Type string

const (
	Technical    Type = "technical"
	NonTechnical Type = "non-technical"
)

// IsTechnical reports whether t is the technical type.
func (t Type) IsTechnical() bool { return t == Technical }

// Parse validates a caller-provided job type override.
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Technical), "tech":
		return Technical, nil
	case string(NonTechnical), "non_technical", "nontechnical", "non-tech":
		return NonTechnical, nil
	default:
		return "", fmt.Errorf("unknown job type %q: expected %q or %q", s, Technical, NonTechnical)
	}
}

// Classifier is a keyword-vote heuristic. It is safe for concurrent use.
type Classifier struct {
	technical    []string
	nonTechnical []string
}

// New builds a classifier from keyword tables.
func New(tables *Tables) *Classifier {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Classifier{
		technical:    tables.Technical,
		nonTechnical: tables.NonTechnical,
	}
}

// Classify votes technical against non-technical keyword hits. Ties resolve to Technical
// because the scoring prompts are tuned for technical roles.
func (c *Classifier) Classify(text string) Type {
	tech := CountHits(text, c.technical)
	nonTech := CountHits(text, c.nonTechnical)
	if nonTech > tech {
		return NonTechnical
	}
	return Technical
}
