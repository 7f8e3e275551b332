// Package filtering validates, cleans and tags fetched postings before they
// reach storage.
package filtering

import (
	"context"
	"fmt"

	"github.com/spigell/jobradar/internal/metrics"
	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to a batch.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, b *Batch) (Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	ExcludedTitles    []string
	ExcludedCompanies []string
	// ExcludeFile lists posting URLs to ignore, one per line.
	ExcludeFile string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard chain. Validation runs first so dropped
// records never reach the cleaning steps.
func Default() []Filter {
	return []Filter{
		NewRequireURL(),
		NewExcludedTitles(),
		NewExcludedCompanies(),
		NewExcludeFile(),
		NewHTMLDescription(),
		NewQueryGroup(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Validate prepares every enabled step. Call it once per configuration.
func Validate(cfg *Config, steps []Filter) error {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// Run executes the supplied filters sequentially on b.
func Run(ctx context.Context, deps Deps, steps []Filter, b *Batch) error {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			log.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		info, err := step.Apply(ctx, deps, b)
		if err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Metrics.Dropped(step.Name(), info.Dropped)
		log.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
	}

	return nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Batch is the set of postings returned by one producer query.
type Batch struct {
	Group string
	Items []*posting.Posting
}

func (b *Batch) Len() int {
	return len(b.Items)
}

// Exclude removes every posting matching drop and returns the removed URLs.
// Nil entries are always removed.
func (b *Batch) Exclude(drop func(*posting.Posting) bool) []string {
	var excluded []string
	kept := b.Items[:0]
	for _, p := range b.Items {
		if p == nil {
			continue
		}
		if drop(p) {
			excluded = append(excluded, p.URL)
			continue
		}
		kept = append(kept, p)
	}
	clear(b.Items[len(kept):])
	b.Items = kept
	return excluded
}
