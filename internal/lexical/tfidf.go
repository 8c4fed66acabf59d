// Package lexical scores resume/job text overlap without any external service.
// Scores it produces are a fallback and are deliberately kept inside a narrow band.
package lexical

import (
	"math"
	"strings"
	"unicode"
)

const (
	// FloorScore is returned for empty input and for any numeric failure.
	FloorScore = 15
	// CeilingScore caps the fallback so it never reads as a confident match.
	CeilingScore = 50

	minTokenLength = 3
	corpusSize     = 2
)

// Similarity returns the TF-IDF cosine similarity of job and resume text scaled to
// [FloorScore, CeilingScore]. It never fails.
func Similarity(jobText, resumeText string) (score int) {
	defer func() {
		if recover() != nil {
			score = FloorScore
		}
	}()

	jobNorm := normalize(jobText)
	resumeNorm := normalize(resumeText)

	jobTokens := tokens(jobNorm)
	resumeTokens := tokens(resumeNorm)
	if len(jobTokens) == 0 || len(resumeTokens) == 0 {
		return FloorScore
	}

	docs := []string{jobNorm, resumeNorm}
	vocabulary := vocabularyOf(jobTokens, resumeTokens)

	idf := make(map[string]float64, len(vocabulary))
	for _, term := range vocabulary {
		df := 0
		for _, doc := range docs {
			if strings.Contains(doc, term) {
				df++
			}
		}
		idf[term] = math.Log(float64(corpusSize+1)/float64(df+1)) + 1
	}

	jobVec := weights(jobTokens, vocabulary, idf)
	resumeVec := weights(resumeTokens, vocabulary, idf)

	cosine, ok := cosineSimilarity(jobVec, resumeVec)
	if !ok {
		return FloorScore
	}

	return clamp(int(math.Round(cosine * 100)))
}

// normalize lower-cases text and drops every rune that is not a letter, digit,
// underscore or whitespace.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLength {
			out = append(out, f)
		}
	}
	return out
}

func vocabularyOf(docs ...[]string) []string {
	seen := make(map[string]struct{})
	var vocabulary []string
	for _, doc := range docs {
		for _, t := range doc {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			vocabulary = append(vocabulary, t)
		}
	}
	return vocabulary
}

func weights(doc []string, vocabulary []string, idf map[string]float64) []float64 {
	counts := make(map[string]int, len(doc))
	for _, t := range doc {
		counts[t]++
	}

	total := float64(len(doc))
	vec := make([]float64, len(vocabulary))
	for i, term := range vocabulary {
		if c, ok := counts[term]; ok {
			vec[i] = float64(c) / total * idf[term]
		}
	}
	return vec
}

func cosineSimilarity(a, b []float64) (float64, bool) {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(cosine) || math.IsInf(cosine, 0) {
		return 0, false
	}
	return cosine, true
}

func clamp(score int) int {
	if score < FloorScore {
		return FloorScore
	}
	if score > CeilingScore {
		return CeilingScore
	}
	return score
}
