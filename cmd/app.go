package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/ai/gemini"
	"github.com/spigell/jobradar/internal/config"
	"github.com/spigell/jobradar/internal/feed"
	"github.com/spigell/jobradar/internal/filtering"
	"github.com/spigell/jobradar/internal/metrics"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/notify/discord"
	"github.com/spigell/jobradar/internal/notify/email"
	"github.com/spigell/jobradar/internal/pipeline"
	"github.com/spigell/jobradar/internal/ratelimit"
	"github.com/spigell/jobradar/internal/retry"
	"github.com/spigell/jobradar/internal/scoring"
	"github.com/spigell/jobradar/internal/storage"
	"go.uber.org/zap"
)

// application holds what every command shares: config, logger, store and metrics.
type application struct {
	config  *config.Config
	logger  *zap.Logger
	store   *storage.Store
	metrics *metrics.Collector
}

// setup loads the config and opens the store. Failures are fatal, like
// everywhere else in the CLI.
func setup(ctx context.Context) *application {
	logger := newLogger()

	cfg, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("config loaded",
		zap.String("config_file", viper.ConfigFileUsed()),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("scoring_engine", cfg.Scoring.Engine),
		zap.Int("sources", len(cfg.Ingest.Sources)),
	)

	store, err := storage.Open(ctx, cfg.Database.StorageOptions(), logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}

	return &application{
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: metrics.New(resolvedVersion()),
	}
}

func (a *application) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing the database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newAIScorer returns ai.Unavailable when no Gemini key is configured.
// Scoring then falls back to keyword-only.
func (a *application) newAIScorer(ctx context.Context) (ai.Scorer, error) {
	cfg := a.config.AI.Gemini
	if cfg.APIKey == "" {
		a.logger.Warn("gemini api key is not configured, using keyword scoring only",
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api_key_file"),
		)
		return ai.Unavailable{}, nil
	}

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}

	generator, err := gemini.NewGenerator(ctx, cfg.APIKey, gemini.Options{
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Retry:   retryCfg,
	}, a.logger.With(zap.Int("ai_retry_attempts", retryCfg.MaxAttempts)))
	if err != nil {
		return nil, fmt.Errorf("building gemini generator: %w", err)
	}

	return gemini.NewScorer(generator, a.config.Profile.PromptText(), a.logger, cfg.MaxLogLength), nil
}

func (a *application) newScorer(ctx context.Context) (*scoring.Scorer, error) {
	opts, err := a.config.Scoring.Options()
	if err != nil {
		return nil, err
	}

	var aiScorer ai.Scorer = ai.Unavailable{}
	if opts.Engine != scoring.EngineKeyword {
		if aiScorer, err = a.newAIScorer(ctx); err != nil {
			return nil, err
		}
	}

	return scoring.NewScorer(scoring.NewKeywordScorer(a.config.Profile), aiScorer, a.store, opts, a.logger, a.metrics), nil
}

func (a *application) newDispatcher() *notify.Dispatcher {
	d := a.config.Notifications.Discord
	e := a.config.Notifications.Email

	channels := []notify.Channel{
		discord.New(discord.Options{
			Enabled:    d.Enabled,
			WebhookURL: d.WebhookURL,
			MinScore:   d.MinScore,
			HTTPClient: newHTTPClient(),
			Limiter:    ratelimit.New(d.CallsPerMinute),
			Retry:      retry.DefaultConfig(),
		}, a.logger),
		email.New(email.Options{
			Enabled:  e.Enabled,
			Host:     e.SMTPHost,
			Port:     e.SMTPPort,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
			To:       e.To,
			MinScore: e.MinScore,
		}, a.logger),
	}

	return notify.NewDispatcher(a.store, channels, a.config.Scoring.NotificationThreshold, a.logger, a.metrics)
}

// newProducers builds a producer per configured source. A non-empty only
// keeps the source with that name.
func (a *application) newProducers(only string) ([]feed.Producer, error) {
	producers := make([]feed.Producer, 0, len(a.config.Ingest.Sources))

	for _, src := range a.config.Ingest.Sources {
		if only != "" && src.Name != only {
			continue
		}
		switch src.Type {
		case config.SourceTypeFile:
			if !src.Enabled {
				a.logger.Info("source disabled", zap.String("source", src.Name))
				continue
			}
			producers = append(producers, feed.NewFileProducer(src.Name, src.Path, a.logger))
		case config.SourceTypeHTTP:
			producers = append(producers, feed.NewHTTPProducer(feed.HTTPOptions{
				Name:         src.Name,
				Enabled:      src.Enabled,
				URL:          src.URL,
				APIKey:       src.APIKey,
				APIKeyHeader: src.APIKeyHeader,
				MaxPages:     src.MaxPages,
				PerPage:      src.PerPage,
				HTTPClient:   newHTTPClient(),
				Limiter:      ratelimit.New(src.CallsPerMinute),
				Retry:        retry.DefaultConfig(),
			}, a.logger))
		}
	}

	if only != "" && len(producers) == 0 {
		return nil, fmt.Errorf("source %q is not configured or disabled", only)
	}
	return producers, nil
}

func (a *application) newFilters() ([]filtering.Filter, error) {
	steps := filtering.Default()
	cfg := &filtering.Config{
		ExcludedTitles:    a.config.Ingest.ExcludedTitles,
		ExcludedCompanies: a.config.Ingest.ExcludedCompanies,
		ExcludeFile:       a.config.Ingest.ExcludeFile,
	}
	if err := filtering.Validate(cfg, steps); err != nil {
		return nil, fmt.Errorf("validating filters: %w", err)
	}

	for _, status := range filtering.Describe(steps) {
		a.logger.Debug("filter", zap.String("name", status.Name), zap.Bool("enabled", status.Enabled), zap.Any("details", status.Details))
	}
	return steps, nil
}

// stages selects which pipeline parts newRunner wires.
type stages struct {
	ingest, score, notify bool
	// source limits ingest to one named source.
	source string
}

var allStages = stages{ingest: true, score: true, notify: true}

func (a *application) newRunner(ctx context.Context, s stages) (*pipeline.Runner, error) {
	deps := pipeline.Deps{
		Store:   a.store,
		Logger:  a.logger,
		Metrics: a.metrics,
	}

	if s.ingest {
		filters, err := a.newFilters()
		if err != nil {
			return nil, err
		}
		producers, err := a.newProducers(s.source)
		if err != nil {
			return nil, err
		}
		deps.Producers = producers
		deps.Queries = a.config.Queries()
		deps.Filters = filters
		if len(deps.Queries) == 0 {
			a.logger.Warn("no search queries configured", zap.String("hint", "add ingest.query_groups to the config"))
		}
	}

	if s.score {
		scorer, err := a.newScorer(ctx)
		if err != nil {
			return nil, err
		}
		deps.Scorer = scorer
	}

	if s.notify {
		deps.Notifier = a.newDispatcher()
	}

	return pipeline.New(deps), nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
