package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/utils"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	// MaxDescriptionLength bounds the description embedded in the prompt.
	MaxDescriptionLength = 3000
)

var errMissingScore = errors.New("response has no numeric score")

// Scorer rates jobs with Gemini. It implements ai.Scorer.
type Scorer struct {
	generator   contentGenerator
	profileText string
	logger      *zap.Logger
	maxLogLen   int
}

var _ ai.Scorer = (*Scorer)(nil)

// NewScorer returns a scorer that embeds profileText in every prompt.
// A nil generator yields an unavailable scorer.
func NewScorer(generator contentGenerator, profileText string, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	model := ""
	if generator != nil {
		model = generator.Model()
	}

	return &Scorer{
		generator:   generator,
		profileText: profileText,
		logger:      logger.WithCommonFields(log, Provider, model),
		maxLogLen:   maxLogLength,
	}
}

func (s *Scorer) IsAvailable() bool {
	return s != nil && s.generator != nil
}

// Score asks the model for a verdict. Failures yield a zero score with Err set.
func (s *Scorer) Score(ctx context.Context, job ai.Job) *ai.Assessment {
	if !s.IsAvailable() {
		return ai.Unavailable{}.Score(ctx, job)
	}

	prompt := buildPrompt(s.profileText, job)

	s.logger.Debug("gemini generate content request",
		zap.String("title", job.Title),
		zap.String("company", job.Company),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		s.logger.Warn("gemini scoring failed", zap.String("title", job.Title), zap.Error(err))
		return ai.Failed("AI scoring failed (API error)", err)
	}

	s.logger.Debug("gemini generate content response",
		zap.String("title", job.Title),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	score, reasoning, err := parseResponse(raw)
	if err != nil {
		s.logger.Warn("failed to parse gemini response",
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
			zap.Error(err),
		)
		failed := ai.Failed("Parse error: "+utils.TruncateForLog(raw, 100), err)
		failed.Raw = raw
		return failed
	}

	return &ai.Assessment{Score: score, Reasoning: reasoning, Raw: raw}
}

func buildPrompt(profileText string, job ai.Job) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE}}\n\nJob: {{TITLE}} at {{COMPANY}} ({{LOCATION}})\n{{DESCRIPTION}}\n\nJSON Response:"
	}

	location := strings.TrimSpace(job.Location)
	if location == "" {
		location = "Not specified"
	}
	description := strings.TrimSpace(job.Description)
	if description == "" {
		description = "No description available"
	}

	return strings.NewReplacer(
		"{{PROFILE}}", profileText,
		"{{TITLE}}", job.Title,
		"{{COMPANY}}", job.Company,
		"{{LOCATION}}", location,
		"{{DESCRIPTION}}", utils.TruncateWords(description, MaxDescriptionLength),
	).Replace(template)
}

func parseResponse(raw string) (float64, string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return 0, "", fmt.Errorf("parse gemini response: %w", err)
	}

	score := 0.0
	if v, ok := data["score"]; ok {
		score = coerceFloat(v)
		if math.IsNaN(score) {
			return 0, "", errMissingScore
		}
	}

	reasoning := coerceString(data["reasoning"])
	if reasoning == "" {
		reasoning = coerceString(data["reason"])
	}

	return ai.Clamp(score), reasoning, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
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

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
