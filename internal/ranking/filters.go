package ranking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/candidates"
)

// Filter is a pre-ranking step that may drop candidates.
type Filter interface {
	Name() string
	Apply(ctx context.Context, list []candidates.Candidate) ([]candidates.Candidate, Step, error)
}

// Step describes the result of one filter.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// RunFilters applies filters in order and logs each step.
func RunFilters(ctx context.Context, log *zap.Logger, filters []Filter, list []candidates.Candidate) ([]candidates.Candidate, error) {
	if log == nil {
		log = zap.NewNop()
	}

	for _, f := range filters {
		next, info, err := f.Apply(ctx, list)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}

		log.Info("filter step",
			zap.String("name", f.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		list = next
	}

	return list, nil
}

func keep(list []candidates.Candidate, drop func(candidates.Candidate) bool) ([]candidates.Candidate, Step) {
	out := make([]candidates.Candidate, 0, len(list))
	for _, c := range list {
		if !drop(c) {
			out = append(out, c)
		}
	}
	return out, Step{Initial: len(list), Dropped: len(list) - len(out), Left: len(out)}
}

type blankTextFilter struct{}

// NewBlankText drops candidates with no resume text.
func NewBlankText() Filter { return blankTextFilter{} }

func (blankTextFilter) Name() string { return "blank_text" }

func (blankTextFilter) Apply(_ context.Context, list []candidates.Candidate) ([]candidates.Candidate, Step, error) {
	out, step := keep(list, func(c candidates.Candidate) bool {
		return strings.TrimSpace(c.Text) == ""
	})
	return out, step, nil
}

type dedupeFilter struct{}

// NewDedupe keeps the first candidate per email, or per ID when the email is unknown.
func NewDedupe() Filter { return dedupeFilter{} }

func (dedupeFilter) Name() string { return "dedupe" }

func (dedupeFilter) Apply(_ context.Context, list []candidates.Candidate) ([]candidates.Candidate, Step, error) {
	seen := make(map[string]struct{}, len(list))
	out, step := keep(list, func(c candidates.Candidate) bool {
		key := "id:" + c.ID
		if email := strings.ToLower(strings.TrimSpace(c.Email)); email != "" {
			key = "email:" + email
		}
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
		return false
	})
	return out, step, nil
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile drops candidates whose ID or email is listed in the file, one per line.
// Blank lines and lines starting with '#' are ignored. An empty path disables the filter.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path)}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Apply(_ context.Context, list []candidates.Candidate) ([]candidates.Candidate, Step, error) {
	if f.path == "" {
		return list, Step{Initial: len(list), Left: len(list)}, nil
	}

	excluded, err := readExcluded(f.path)
	if err != nil {
		return nil, Step{}, fmt.Errorf("getting excluded candidates from file: %w", err)
	}

	out, step := keep(list, func(c candidates.Candidate) bool {
		_, byID := excluded[strings.ToLower(c.ID)]
		_, byEmail := excluded[strings.ToLower(strings.TrimSpace(c.Email))]
		return byID || (byEmail && c.Email != "")
	})
	return out, step, nil
}

func readExcluded(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	out := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out[strings.ToLower(line)] = struct{}{}
	}
	return out, scanner.Err()
}

// DefaultFilters is the pre-ranking pipeline used by the CLI and the HTTP server.
func DefaultFilters(excludeFile string) []Filter {
	return []Filter{NewBlankText(), NewDedupe(), NewExcludeFile(excludeFile)}
}

// AppendExcluded adds ids to the exclude file, creating it if needed. IDs already listed are
// skipped.
func AppendExcluded(path string, ids []string) error {
	existing, err := readExcluded(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading exclude file: %w", err)
	}
	if existing == nil {
		existing = make(map[string]struct{})
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening exclude file: %w", err)
	}
	defer file.Close()

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := existing[strings.ToLower(id)]; ok {
			continue
		}
		if _, err := fmt.Fprintln(file, id); err != nil {
			return fmt.Errorf("writing exclude file: %w", err)
		}
		existing[strings.ToLower(id)] = struct{}{}
	}
	return nil
}
