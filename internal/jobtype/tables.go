package jobtype

import (
	"bytes"
	"fmt"
	"strings"

	_ "embed"

	"github.com/spf13/viper"
)

//go:embed keywords.yaml
var defaultTables []byte

// Tables holds the declarative keyword data used for classification and fallback heuristics.
type Tables struct {
	Technical    []string      `mapstructure:"technical"`
	NonTechnical []string      `mapstructure:"non-technical"`
	Industries   IndustryTable `mapstructure:"industries"`
}

// IndustryTable lists industries whose jobs rarely match resumes from outside the industry.
type IndustryTable struct {
	Ceiling int             `mapstructure:"ceiling"`
	Groups  []IndustryGroup `mapstructure:"groups"`
}

// IndustryGroup pairs the keywords that flag a job as belonging to an industry with the
// keywords that show a resume has relevant background.
type IndustryGroup struct {
	Name   string   `mapstructure:"name"`
	Job    []string `mapstructure:"job"`
	Resume []string `mapstructure:"resume"`
}

// LoadTables reads the embedded tables and, when path is set, overrides them with the file.
func LoadTables(path string) (*Tables, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultTables)); err != nil {
		return nil, fmt.Errorf("read embedded keyword tables: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read keyword tables from %q: %w", path, err)
		}
	}

	var tables Tables
	if err := v.Unmarshal(&tables); err != nil {
		return nil, fmt.Errorf("decode keyword tables: %w", err)
	}

	tables.Technical = normalizeKeywords(tables.Technical)
	tables.NonTechnical = normalizeKeywords(tables.NonTechnical)
	for i := range tables.Industries.Groups {
		g := &tables.Industries.Groups[i]
		g.Job = normalizeKeywords(g.Job)
		g.Resume = normalizeKeywords(g.Resume)
	}

	if len(tables.Technical) == 0 || len(tables.NonTechnical) == 0 {
		return nil, fmt.Errorf("keyword tables must define both technical and non-technical keywords")
	}

	return &tables, nil
}

// DefaultTables returns the embedded tables. It panics only if the embedded file is broken.
func DefaultTables() *Tables {
	tables, err := LoadTables("")
	if err != nil {
		panic(err)
	}
	return tables
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// CountHits returns how many keywords occur in text, case-insensitively.
func CountHits(text string, keywords []string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}
