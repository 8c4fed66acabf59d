package lexical

import (
	"sort"
	"strings"
	"unicode"
)

const maxKeywords = 20

// stopWords filters common English words that add noise to keyword matching.
var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "years": true,
	"year": true, "experience": true, "senior": true, "junior": true,
}

// Overlap reports which job keywords appear in the resume and which do not.
// Both lists are sorted; each holds at most 20 entries.
func Overlap(jobText, resumeText string) (matched, missing []string) {
	jobKW := keywords(jobText)
	resumeKW := keywords(resumeText)

	for kw := range jobKW {
		if resumeKW[kw] {
			matched = append(matched, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	sort.Strings(matched)
	sort.Strings(missing)
	if len(matched) > maxKeywords {
		matched = matched[:maxKeywords]
	}
	if len(missing) > maxKeywords {
		missing = missing[:maxKeywords]
	}
	return matched, missing
}

// keywords keeps tech suffixes like "c++", "c#" and "node.js" intact.
func keywords(text string) map[string]bool {
	kw := make(map[string]bool)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= minTokenLength && !stopWords[w] && !isNumber(w) {
			kw[w] = true
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return kw
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) && r != '+' {
			return false
		}
	}
	return true
}
