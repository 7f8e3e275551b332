package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/posting"
)

type titlesFilter struct {
	terms []string
}

// NewExcludedTitles creates a filter that removes postings whose title
// contains any excluded term.
func NewExcludedTitles() Filter {
	return &titlesFilter{}
}

func (f *titlesFilter) Name() string { return "excluded_titles" }

func (f *titlesFilter) Disable(string) {}

func (f *titlesFilter) IsEnabled() bool { return true }

func (f *titlesFilter) Validate(cfg *Config) error {
	f.terms = nil
	if cfg != nil {
		f.terms = lowered(cfg.ExcludedTitles)
	}
	return nil
}

func (f *titlesFilter) Apply(_ context.Context, deps Deps, b *Batch) (Step, error) {
	initial := b.Len()
	if len(f.terms) == 0 {
		return Step{Initial: initial, Dropped: 0, Left: b.Len()}, nil
	}

	excluded := b.Exclude(func(p *posting.Posting) bool {
		title := strings.ToLower(p.Title)
		for _, term := range f.terms {
			if strings.Contains(title, term) {
				return true
			}
		}
		return false
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding postings by title",
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", b.Len()),
		)
	}

	return Step{Initial: initial, Dropped: len(excluded), Left: b.Len()}, nil
}

func (f *titlesFilter) Status() Status {
	details := map[string]string{}
	if len(f.terms) > 0 {
		details["terms"] = strings.Join(f.terms, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
