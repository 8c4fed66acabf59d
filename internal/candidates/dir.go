package candidates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var resumeExtensions = map[string]bool{".txt": true, ".md": true}

// DirSource reads one candidate per .txt or .md file. The file name without extension is the
// candidate ID. Leading "Name:" and "Email:" lines are taken as identity and stripped from the
// text.
type DirSource struct {
	Dir string
}

func (s DirSource) List(ctx context.Context) ([]Candidate, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading candidates directory %q: %w", s.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !resumeExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]Candidate, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(s.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading candidate %q: %w", name, err)
		}

		c := parseResume(string(data))
		c.ID = strings.TrimSuffix(name, filepath.Ext(name))
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrNoCandidates, s.Dir)
	}
	return out, nil
}

func parseResume(raw string) Candidate {
	var c Candidate
	var body strings.Builder

	header := true
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if header {
			key, value, ok := strings.Cut(line, ":")
			switch {
			case ok && strings.EqualFold(strings.TrimSpace(key), "name"):
				c.Name = strings.TrimSpace(value)
				continue
			case ok && strings.EqualFold(strings.TrimSpace(key), "email"):
				c.Email = strings.TrimSpace(value)
				continue
			case strings.TrimSpace(line) == "" && (c.Name != "" || c.Email != ""):
				continue
			}
			header = false
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	c.Text = strings.TrimSpace(body.String())
	return c
}
