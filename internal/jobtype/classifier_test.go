package jobtype

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	c := New(DefaultTables())

	cases := []struct {
		name   string
		text   string
		expect Type
	}{
		{name: "backend role", text: "Senior Backend Engineer, Node.js, AWS, 5+ years", expect: Technical},
		{name: "sales role", text: "Account Executive to grow sales in retail, customer success mindset", expect: NonTechnical},
		{name: "nursing role", text: "Registered Nurse for night shifts, nursing license required", expect: NonTechnical},
		{name: "no keywords defaults to technical", text: "We are hiring", expect: Technical},
		{name: "empty defaults to technical", text: "", expect: Technical},
		{name: "tie defaults to technical", text: "sales developer", expect: Technical},
		{name: "case insensitive", text: "KUBERNETES and DOCKER", expect: Technical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := c.Classify(tc.text); got != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, got)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	t.Parallel()

	c := New(nil)
	text := "Marketing manager with social media and sales background"
	first := c.Classify(text)
	for i := 0; i < 5; i++ {
		if got := c.Classify(text); got != first {
			t.Fatalf("classification changed between calls: %q vs %q", first, got)
		}
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	for input, expect := range map[string]Type{
		"technical":     Technical,
		" Technical ":   Technical,
		"non-technical": NonTechnical,
		"non_technical": NonTechnical,
		"nontechnical":  NonTechnical,
	} {
		got, err := Parse(input)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if got != expect {
			t.Fatalf("expected %q for %q, got %q", expect, input, got)
		}
	}

	if _, err := Parse("managerial"); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

func TestLoadTablesOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keywords.yaml")
	data := []byte("technical:\n  - Plumbing\nnon-technical:\n  - gardening\n  - GARDENING\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tables.Technical) != 1 || tables.Technical[0] != "plumbing" {
		t.Fatalf("expected technical table to be overridden, got %v", tables.Technical)
	}
	if len(tables.NonTechnical) != 1 {
		t.Fatalf("expected duplicate keywords to collapse, got %v", tables.NonTechnical)
	}
	if tables.Industries.Ceiling != 20 {
		t.Fatalf("expected embedded industry ceiling to survive merge, got %d", tables.Industries.Ceiling)
	}

	if got := New(tables).Classify("plumbing and gardening and gardening"); got != Technical {
		t.Fatalf("expected tie to resolve to technical, got %q", got)
	}
}

func TestLoadTablesMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadTables(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing tables file")
	}
}
