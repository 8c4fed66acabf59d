package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/jobtype"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/utils"
)

//go:embed prompt_technical.md
var technicalPrompt string

//go:embed prompt_non_technical.md
var nonTechnicalPrompt string

//go:embed prompt_user.md
var userPrompt string

const responseFormat = `Return only a single JSON object, without markdown or any text around it:
{
  "score": integer from 0 to 100,
  "classification": "strong match" | "good match" | "partial match" | "weak match",
  "matched_keywords": [string],
  "missing_keywords": [string],
  "summary": string,
  "strengths": [string],
  "gaps": [string],
  "recommendation": string
}`

const (
	defaultMaxLogLength   = 200
	defaultMaxPromptRunes = 12000
)

// ErrNoCompletion means every model in the chain failed for this pair.
var ErrNoCompletion = errors.New("no model produced a completion")

// Completer is the serialized model chain.
type Completer interface {
	Complete(ctx context.Context, system, user string, purpose ai.Purpose) (ai.Completion, bool)
}

// Assessor asks a model to score one pair.
type Assessor interface {
	Assess(ctx context.Context, job Job, resumeText string) (*AIAssessment, error)
}

// AIScorer builds the prompt for the job type, calls the model chain and parses its answer.
type AIScorer struct {
	completer      Completer
	logger         *zap.Logger
	maxLogLen      int
	maxPromptRunes int
}

func NewAIScorer(completer Completer, log *zap.Logger, maxLogLength, maxPromptRunes int) *AIScorer {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if maxPromptRunes <= 0 {
		maxPromptRunes = defaultMaxPromptRunes
	}
	return &AIScorer{
		completer:      completer,
		logger:         log,
		maxLogLen:      maxLogLength,
		maxPromptRunes: maxPromptRunes,
	}
}

func (s *AIScorer) Assess(ctx context.Context, job Job, resumeText string) (*AIAssessment, error) {
	system, user := buildPrompts(job, resumeText, s.maxPromptRunes)

	completion, ok := s.completer.Complete(ctx, system, user, ai.PurposeScoring)
	if !ok {
		return nil, ErrNoCompletion
	}

	log := logger.WithCommonFields(s.logger, completion.Provider, completion.Model)

	assessment, err := parseResponse(completion.Content)
	if err != nil {
		log.Warn("unparsable model response",
			zap.String("response_preview", utils.TruncateForLog(completion.Content, s.maxLogLen)),
			zap.Error(err),
		)
		return nil, err
	}

	assessment.Model = completion.Model
	return assessment, nil
}

func buildPrompts(job Job, resumeText string, maxRunes int) (system, user string) {
	system = technicalPrompt
	if job.Type == jobtype.NonTechnical {
		system = nonTechnicalPrompt
	}
	system = strings.ReplaceAll(system, "{{RESPONSE_FORMAT}}", responseFormat)

	user = strings.ReplaceAll(userPrompt, "{{JOB_TEXT}}", utils.ClipText(strings.TrimSpace(job.Text), maxRunes))
	user = strings.ReplaceAll(user, "{{RESUME_TEXT}}", utils.ClipText(strings.TrimSpace(resumeText), maxRunes))
	return system, user
}

type responsePayload struct {
	Score           any      `mapstructure:"score"`
	MatchScore      any      `mapstructure:"match_score"`
	Classification  string   `mapstructure:"classification"`
	MatchedKeywords []string `mapstructure:"matched_keywords"`
	MissingKeywords []string `mapstructure:"missing_keywords"`
	Summary         string   `mapstructure:"summary"`
	Strengths       []string `mapstructure:"strengths"`
	Gaps            []string `mapstructure:"gaps"`
	Recommendation  string   `mapstructure:"recommendation"`
}

func parseResponse(raw string) (*AIAssessment, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	var payload responsePayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &payload,
	})
	if err != nil {
		return nil, fmt.Errorf("build response decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	score := coerceFloat(payload.Score)
	if math.IsNaN(score) {
		score = coerceFloat(payload.MatchScore)
	}
	if math.IsNaN(score) {
		return nil, errors.New("model response has no numeric score")
	}

	return &AIAssessment{
		Score:           score,
		Classification:  strings.TrimSpace(payload.Classification),
		MatchedKeywords: payload.MatchedKeywords,
		MissingKeywords: payload.MissingKeywords,
		Summary:         strings.TrimSpace(payload.Summary),
		Strengths:       payload.Strengths,
		Gaps:            payload.Gaps,
		Recommendation:  strings.TrimSpace(payload.Recommendation),
	}, nil
}

// extractJSON strips code fences and any prose around the outermost object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		trimmed = strings.TrimSuffix(trimmed, "%")
		if before, _, ok := strings.Cut(trimmed, "/"); ok {
			trimmed = strings.TrimSpace(before)
		}
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
