package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/metrics"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/storage"
	"go.uber.org/zap"
)

// Engine selects which scorers contribute to the combined score.
type Engine string

const (
	EngineKeyword Engine = "keyword"
	EngineAI      Engine = "ai"
	EngineHybrid  Engine = "hybrid"
)

// ParseEngine accepts the short names and their -only spellings.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hybrid":
		return EngineHybrid, nil
	case "keyword", "keyword-only", "keywords":
		return EngineKeyword, nil
	case "ai", "ai-only":
		return EngineAI, nil
	default:
		return "", fmt.Errorf("unknown scoring engine %q", s)
	}
}

// Options configure the orchestrator.
type Options struct {
	Engine Engine
	// MinKeywordForAI is the keyword score a posting needs before the AI is asked.
	MinKeywordForAI float64
	AIWeight        float64
	KeywordWeight   float64
}

func DefaultOptions() Options {
	return Options{Engine: EngineHybrid, MinKeywordForAI: 0.2, AIWeight: 0.7, KeywordWeight: 0.3}
}

// KeywordRater is satisfied by *KeywordScorer.
type KeywordRater interface {
	Score(title, description, location string, isRemote bool) (float64, string)
}

// ScoreWriter persists scores. Satisfied by *storage.Store.
type ScoreWriter interface {
	UpdateScores(ctx context.Context, id int64, u storage.ScoreUpdate) error
}

// Result is the outcome of scoring one posting.
type Result struct {
	Keyword   float64
	AI        *float64
	Combined  float64
	Reasoning string
}

// BatchResult reports aggregate counts of ScoreBatch.
type BatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Scorer combines keyword and AI scores and persists them.
type Scorer struct {
	keyword KeywordRater
	ai      ai.Scorer
	store   ScoreWriter
	opts    Options
	useAI   bool
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewScorer wires the orchestrator. A nil aiScorer means keyword-only scoring.
func NewScorer(keyword KeywordRater, aiScorer ai.Scorer, store ScoreWriter, opts Options, log *zap.Logger, m *metrics.Collector) *Scorer {
	if aiScorer == nil {
		aiScorer = ai.Unavailable{}
	}

	s := &Scorer{
		keyword: keyword,
		ai:      aiScorer,
		store:   store,
		opts:    opts,
		logger:  logger.OrNop(log).Named("scoring"),
		metrics: m,
	}
	s.useAI = (opts.Engine == EngineAI || opts.Engine == EngineHybrid) && aiScorer.IsAvailable()

	if s.useAI {
		s.logger.Info("AI scoring enabled", zap.String("engine", string(opts.Engine)), zap.Float64("gate", opts.MinKeywordForAI))
	} else {
		s.logger.Info("using keyword-only scoring", zap.String("engine", string(opts.Engine)))
	}

	return s
}

// UsesAI reports whether the AI scorer participates.
func (s *Scorer) UsesAI() bool {
	return s.useAI
}

// Evaluate computes the scores of p without persisting them.
func (s *Scorer) Evaluate(ctx context.Context, p *posting.Posting) Result {
	kw, kwReasoning := s.keyword.Score(p.Title, p.Description, p.Location, p.IsRemote)
	kw = ai.Clamp(kw)

	if !s.useAI || kw < s.opts.MinKeywordForAI {
		if s.useAI {
			s.metrics.AICall("skipped")
		}
		return Result{Keyword: kw, Combined: kw, Reasoning: "Keywords: " + kwReasoning}
	}

	assessment := s.ai.Score(ctx, ai.Job{
		Title:       p.Title,
		Company:     p.Company,
		Location:    p.Location,
		Description: p.Description,
	})
	if assessment == nil {
		assessment = ai.Failed("AI scoring failed (no result)", nil)
	}
	if assessment.Err != nil {
		s.metrics.AICall("error")
		s.logger.Warn("AI scorer degraded to zero", append(logger.PostingFields(p), zap.Error(assessment.Err))...)
	} else {
		s.metrics.AICall("ok")
	}

	aiScore := ai.Clamp(assessment.Score)
	return Result{
		Keyword:   kw,
		AI:        &aiScore,
		Combined:  ai.Clamp(s.opts.AIWeight*aiScore + s.opts.KeywordWeight*kw),
		Reasoning: fmt.Sprintf("AI: %s | Keywords: %s", assessment.Reasoning, kwReasoning),
	}
}

// ScoreOne scores p and stores the result.
func (s *Scorer) ScoreOne(ctx context.Context, p *posting.Posting) (Result, error) {
	if p == nil {
		return Result{}, fmt.Errorf("nil posting")
	}

	res := s.Evaluate(ctx, p)

	update := storage.ScoreUpdate{
		Keyword:   &res.Keyword,
		AI:        res.AI,
		Combined:  &res.Combined,
		Reasoning: &res.Reasoning,
	}
	if err := s.store.UpdateScores(ctx, p.ID, update); err != nil {
		return res, fmt.Errorf("store scores of posting %d: %w", p.ID, err)
	}

	p.KeywordScore = update.Keyword
	p.AIScore = update.AI
	p.CombinedScore = update.Combined
	p.ScoreReasoning = res.Reasoning

	fields := append(logger.PostingFields(p),
		zap.Float64("combined", res.Combined),
		zap.Float64("keyword", res.Keyword),
	)
	if res.AI != nil {
		fields = append(fields, zap.Float64("ai", *res.AI))
	}
	s.logger.Debug("scored posting", fields...)

	return res, nil
}

// ScoreBatch scores postings in order. A failure or panic on one posting is
// logged and counted; the rest are still scored.
func (s *Scorer) ScoreBatch(ctx context.Context, items []*posting.Posting) BatchResult {
	var result BatchResult

	for i, p := range items {
		result.Attempted++
		if err := s.scoreIsolated(ctx, p); err != nil {
			result.Failed++
			s.metrics.Scored(false)
			s.logger.Error("failed to score posting", append(logger.PostingFields(p), zap.Error(err))...)
		} else {
			result.Succeeded++
			s.metrics.Scored(true)
		}

		if (i+1)%10 == 0 {
			s.logger.Info("scoring progress", zap.Int("done", i+1), zap.Int("total", len(items)))
		}
	}

	s.logger.Info("scoring complete",
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result
}

func (s *Scorer) scoreIsolated(ctx context.Context, p *posting.Posting) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scoring: %v", r)
		}
	}()

	_, err = s.ScoreOne(ctx, p)
	return err
}
