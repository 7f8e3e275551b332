package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/utils"
)

type requireURLFilter struct{}

// NewRequireURL creates a filter that drops records without a URL, which
// cannot be deduplicated.
func NewRequireURL() Filter {
	return &requireURLFilter{}
}

func (f *requireURLFilter) Name() string { return "require_url" }

func (f *requireURLFilter) Disable(string) {}

func (f *requireURLFilter) IsEnabled() bool { return true }

func (f *requireURLFilter) Validate(*Config) error { return nil }

func (f *requireURLFilter) Apply(_ context.Context, deps Deps, b *Batch) (Step, error) {
	initial := b.Len()
	var titles []string
	b.Exclude(func(p *posting.Posting) bool {
		if strings.TrimSpace(p.URL) == "" {
			titles = append(titles, p.Title)
			return true
		}
		return false
	})
	dropped := initial - b.Len()
	if deps.Logger != nil && dropped > 0 {
		deps.Logger.Warn("dropping postings without url",
			zap.Strings("titles", titles),
			zap.Int("postings_left", b.Len()),
		)
	}

	return Step{Initial: initial, Dropped: dropped, Left: b.Len()}, nil
}

type htmlDescriptionFilter struct {
	disabled bool
	reason   string
}

// NewHTMLDescription creates a step converting HTML descriptions to plain
// text. The original markup is kept in DescriptionRaw.
func NewHTMLDescription() Filter {
	return &htmlDescriptionFilter{}
}

func (f *htmlDescriptionFilter) Name() string { return "html_description" }

func (f *htmlDescriptionFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *htmlDescriptionFilter) IsEnabled() bool { return !f.disabled }

func (f *htmlDescriptionFilter) Validate(*Config) error { return nil }

func (f *htmlDescriptionFilter) Apply(_ context.Context, _ Deps, b *Batch) (Step, error) {
	for _, p := range b.Items {
		if !utils.LooksLikeHTML(p.Description) {
			continue
		}
		if p.DescriptionRaw == "" {
			p.DescriptionRaw = p.Description
		}
		p.Description = utils.HTMLToText(p.Description)
	}
	return Step{Initial: b.Len(), Left: b.Len()}, nil
}

func (f *htmlDescriptionFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: !f.disabled, Reason: f.reason}
}

type queryGroupFilter struct{}

// NewQueryGroup creates a step tagging every posting with the batch group.
func NewQueryGroup() Filter {
	return &queryGroupFilter{}
}

func (f *queryGroupFilter) Name() string { return "query_group" }

func (f *queryGroupFilter) Disable(string) {}

func (f *queryGroupFilter) IsEnabled() bool { return true }

func (f *queryGroupFilter) Validate(*Config) error { return nil }

func (f *queryGroupFilter) Apply(_ context.Context, _ Deps, b *Batch) (Step, error) {
	for _, p := range b.Items {
		switch {
		case b.Group != "":
			p.QueryGroup = b.Group
		case p.QueryGroup == "":
			p.QueryGroup = posting.DefaultQueryGroup
		}
	}
	return Step{Initial: b.Len(), Left: b.Len()}, nil
}
