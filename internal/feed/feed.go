// Package feed contains the producers that fetch normalized posting records
// from external sources.
package feed

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/jobradar/internal/posting"
)

// Query is one search a producer runs. Location is empty for "anywhere".
type Query struct {
	Text     string
	Location string
	Group    string
}

// Remote reports whether the query asks for remote positions only.
func (q Query) Remote() bool {
	return strings.EqualFold(strings.TrimSpace(q.Location), "remote")
}

func (q Query) String() string {
	loc := q.Location
	if loc == "" {
		loc = "anywhere"
	}
	return fmt.Sprintf("%q in %s", q.Text, loc)
}

// Producer fetches postings for a query.
type Producer interface {
	Name() string
	IsAvailable() bool
	Fetch(ctx context.Context, q Query) ([]*posting.Posting, error)
}

// Item is a raw record as decoded from JSON.
type Item = map[string]any

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Decode converts raw records into postings. Records without title or url are
// skipped and counted. Source falls back to source when the record has none.
func Decode(items []Item, source string) ([]*posting.Posting, int, error) {
	out := make([]*posting.Posting, 0, len(items))
	skipped := 0

	for i, item := range items {
		p, err := decodeItem(item)
		if err != nil {
			return nil, skipped, fmt.Errorf("record %d: %w", i, err)
		}
		if p.Title == "" || p.URL == "" {
			skipped++
			continue
		}
		if p.Source == "" {
			p.Source = source
		}
		out = append(out, p)
	}

	return out, skipped, nil
}

// Record is the normalized shape producers emit. Field names follow the
// storage columns.
type Record struct {
	Source         string     `mapstructure:"source"`
	ExternalID     string     `mapstructure:"external_id"`
	URL            string     `mapstructure:"url"`
	Title          string     `mapstructure:"title"`
	Company        string     `mapstructure:"company"`
	Location       string     `mapstructure:"location"`
	IsRemote       bool       `mapstructure:"is_remote"`
	Description    string     `mapstructure:"description"`
	DescriptionRaw string     `mapstructure:"description_raw"`
	EmploymentType string     `mapstructure:"employment_type"`
	SalaryMin      *float64   `mapstructure:"salary_min"`
	SalaryMax      *float64   `mapstructure:"salary_max"`
	SalaryCurrency string     `mapstructure:"salary_currency"`
	PostedAt       *time.Time `mapstructure:"date_posted"`
	QueryGroup     string     `mapstructure:"query_group"`
}

// Posting converts the record, trimming the identifying fields.
func (r Record) Posting() *posting.Posting {
	return &posting.Posting{
		Source:         r.Source,
		ExternalID:     strings.TrimSpace(r.ExternalID),
		URL:            strings.TrimSpace(r.URL),
		Title:          strings.TrimSpace(r.Title),
		Company:        strings.TrimSpace(r.Company),
		Location:       strings.TrimSpace(r.Location),
		IsRemote:       r.IsRemote,
		Description:    r.Description,
		DescriptionRaw: r.DescriptionRaw,
		EmploymentType: r.EmploymentType,
		SalaryMin:      r.SalaryMin,
		SalaryMax:      r.SalaryMax,
		SalaryCurrency: r.SalaryCurrency,
		PostedAt:       r.PostedAt,
		QueryGroup:     r.QueryGroup,
	}
}

func decodeItem(item Item) (*posting.Posting, error) {
	clean := make(Item, len(item))
	for k, v := range item {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		clean[k] = v
	}

	var r Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToTimeHook,
		WeaklyTypedInput: true,
		Result:           &r,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(clean); err != nil {
		return nil, err
	}

	return r.Posting(), nil
}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	s := strings.TrimSpace(data.(string))
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return nil, lastErr
}
