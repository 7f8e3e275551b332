package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/posting"
)

type companiesFilter struct {
	companies []string
}

// NewExcludedCompanies creates a filter that removes postings by companies configured in the config.
func NewExcludedCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg != nil {
		f.companies = lowered(cfg.ExcludedCompanies)
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, b *Batch) (Step, error) {
	initial := b.Len()
	if len(f.companies) == 0 {
		return Step{Initial: initial, Dropped: 0, Left: b.Len()}, nil
	}

	excluded := b.Exclude(func(p *posting.Posting) bool {
		company := strings.ToLower(strings.TrimSpace(p.Company))
		for _, c := range f.companies {
			if company == c {
				return true
			}
		}
		return false
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding postings by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", b.Len()),
		)
	}

	return Step{Initial: initial, Dropped: len(excluded), Left: b.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

func lowered(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
