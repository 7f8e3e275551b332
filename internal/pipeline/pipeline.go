// Package pipeline runs the ingest, score and notify stages in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/jobradar/internal/feed"
	"github.com/spigell/jobradar/internal/filtering"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/metrics"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/scoring"
	"go.uber.org/zap"
)

// Store is the storage surface the pipeline drives.
type Store interface {
	StartScrapeRun(ctx context.Context, source string) (int64, error)
	CompleteScrapeRun(ctx context.Context, runID int64, found, inserted, updated int) error
	FailScrapeRun(ctx context.Context, runID int64, errText string) error
	UpsertBatch(ctx context.Context, items []*posting.Posting) ([]posting.Inserted, error)
	GetUnscored(ctx context.Context) ([]*posting.Posting, error)
}

// BatchScorer is satisfied by *scoring.Scorer.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, items []*posting.Posting) scoring.BatchResult
}

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	SendAll(ctx context.Context) (notify.Summary, error)
}

// Deps wires the runner.
type Deps struct {
	Store     Store
	Producers []feed.Producer
	Queries   []feed.Query
	// Filters must already be validated.
	Filters   []filtering.Filter
	Scorer    BatchScorer
	Notifier  Notifier
	Logger    *zap.Logger
	Metrics   *metrics.Collector
}

// Runner executes pipeline stages. It holds no state between runs.
type Runner struct {
	deps   Deps
	logger *zap.Logger
}

func New(deps Deps) *Runner {
	return &Runner{deps: deps, logger: logger.OrNop(deps.Logger).Named("pipeline")}
}

// SourceResult counts the outcome of one producer.
type SourceResult struct {
	Found   int
	New     int
	Updated int
	Failed  bool
}

// IngestResult maps producer names to their counters.
type IngestResult map[string]SourceResult

// New is the number of postings stored for the first time.
func (r IngestResult) New() int {
	total := 0
	for _, s := range r {
		total += s.New
	}
	return total
}

// Result summarises a full pass.
type Result struct {
	Ingest IngestResult
	Scored scoring.BatchResult
	Notify notify.Summary
}

// Run executes ingest, score and notify. A failing stage is logged and the
// next stage still runs; all errors are returned together.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var (
		result Result
		errs   []error
		err    error
	)

	r.logger.Info("pipeline started")

	if result.Ingest, err = r.Ingest(ctx); err != nil {
		errs = append(errs, fmt.Errorf("ingest: %w", err))
	}
	if ctx.Err() != nil {
		return result, errors.Join(append(errs, ctx.Err())...)
	}

	if result.Scored, err = r.Score(ctx); err != nil {
		errs = append(errs, fmt.Errorf("score: %w", err))
	}
	if ctx.Err() != nil {
		return result, errors.Join(append(errs, ctx.Err())...)
	}

	if result.Notify, err = r.Notify(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notify: %w", err))
	}

	r.logger.Info("pipeline complete",
		zap.Int("new", result.Ingest.New()),
		zap.Int("scored", result.Scored.Succeeded),
		zap.Int("notified", result.Notify.Sent()),
	)
	return result, errors.Join(errs...)
}

// Ingest runs every available producer over every query.
func (r *Runner) Ingest(ctx context.Context) (IngestResult, error) {
	defer r.deps.Metrics.ObserveStage("ingest", time.Now())

	result := make(IngestResult, len(r.deps.Producers))
	var errs []error

	for _, producer := range r.deps.Producers {
		name := producer.Name()
		if !producer.IsAvailable() {
			r.logger.Warn("producer not available", zap.String(logger.FieldSource, name))
			continue
		}

		src, err := r.ingestSource(ctx, producer)
		result[name] = src
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", name, err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	return result, errors.Join(errs...)
}

func (r *Runner) ingestSource(ctx context.Context, producer feed.Producer) (SourceResult, error) {
	var result SourceResult
	name := producer.Name()
	log := r.logger.With(zap.String(logger.FieldSource, name))

	runID, err := r.deps.Store.StartScrapeRun(ctx, name)
	if err != nil {
		return result, err
	}

	fail := func(cause error) (SourceResult, error) {
		result.Failed = true
		r.deps.Metrics.ScrapeRun(name, string(posting.RunFailed))
		log.Error("scrape run failed", zap.Error(cause))
		if err := r.deps.Store.FailScrapeRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
			cause = errors.Join(cause, err)
		}
		return result, cause
	}

	for _, q := range r.deps.Queries {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		qlog := log.With(zap.String(logger.FieldGroup, q.Group), zap.Stringer("query", q))
		qlog.Info("searching")

		fetched, err := producer.Fetch(ctx, q)
		if err != nil {
			qlog.Error("fetch failed, skipping query", zap.Error(err))
			continue
		}
		result.Found += len(fetched)
		r.deps.Metrics.Fetched(name, q.Group, len(fetched))

		batch := &filtering.Batch{Group: q.Group, Items: fetched}
		if err := filtering.Run(ctx, filtering.Deps{Logger: qlog, Metrics: r.deps.Metrics}, r.deps.Filters, batch); err != nil {
			return fail(fmt.Errorf("filter: %w", err))
		}
		for _, p := range batch.Items {
			if p.Source == "" {
				p.Source = name
			}
		}

		inserted, err := r.deps.Store.UpsertBatch(ctx, batch.Items)
		if err != nil {
			return fail(err)
		}
		result.New += len(inserted)
		result.Updated += batch.Len() - len(inserted)
		r.deps.Metrics.Inserted(name, len(inserted))
	}

	if err := r.deps.Store.CompleteScrapeRun(ctx, runID, result.Found, result.New, result.Updated); err != nil {
		return result, err
	}
	r.deps.Metrics.ScrapeRun(name, string(posting.RunCompleted))
	log.Info("source done", zap.Int("found", result.Found), zap.Int("new", result.New), zap.Int("updated", result.Updated))

	return result, nil
}

// Score scores every unscored posting.
func (r *Runner) Score(ctx context.Context) (scoring.BatchResult, error) {
	defer r.deps.Metrics.ObserveStage("score", time.Now())

	if r.deps.Scorer == nil {
		return scoring.BatchResult{}, nil
	}

	unscored, err := r.deps.Store.GetUnscored(ctx)
	if err != nil {
		return scoring.BatchResult{}, err
	}
	if len(unscored) == 0 {
		r.logger.Info("no unscored postings")
		return scoring.BatchResult{}, nil
	}

	return r.deps.Scorer.ScoreBatch(ctx, unscored), nil
}

// Notify dispatches pending notifications.
func (r *Runner) Notify(ctx context.Context) (notify.Summary, error) {
	defer r.deps.Metrics.ObserveStage("notify", time.Now())

	if r.deps.Notifier == nil {
		return notify.Summary{}, nil
	}
	return r.deps.Notifier.SendAll(ctx)
}
