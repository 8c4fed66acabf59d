// Package candidates reads resumes from external stores. The ranking core only ever reads.
package candidates

import (
	"context"
	"errors"
)

// ErrNoCandidates is returned when a source is reachable but holds nothing to rank.
var ErrNoCandidates = errors.New("no candidates found")

// Candidate is one resume with its optional identity.
type Candidate struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Text  string `json:"-"`
}

// Source lists candidates in a stable order.
type Source interface {
	List(ctx context.Context) ([]Candidate, error)
}

// StaticSource serves a fixed in-memory list.
type StaticSource []Candidate

func (s StaticSource) List(context.Context) ([]Candidate, error) {
	if len(s) == 0 {
		return nil, ErrNoCandidates
	}
	return append([]Candidate(nil), s...), nil
}
