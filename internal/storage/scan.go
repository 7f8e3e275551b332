package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spigell/jobradar/internal/posting"
)

// Fixed width keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const postingColumns = `id, source, external_id, url, url_hash, title_company_hash, title, company,
	location, is_remote, description, description_raw, employment_type, salary_min, salary_max,
	salary_currency, query_group, date_posted, date_scraped, date_updated, is_active,
	keyword_score, ai_score, combined_score, score_reasoning, user_status, user_notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func scanPosting(row rowScanner) (*posting.Posting, error) {
	var (
		p                               posting.Posting
		externalID, location, descRaw   sql.NullString
		datePosted, dateUpdated         sql.NullString
		dateScraped                     string
		isRemote, isActive              int64
		salaryMin, salaryMax            sql.NullFloat64
		keywordScore, aiScore, combined sql.NullFloat64
		userStatus                      string
	)

	err := row.Scan(
		&p.ID, &p.Source, &externalID, &p.URL, &p.URLHash, &p.TitleCompanyHash, &p.Title, &p.Company,
		&location, &isRemote, &p.Description, &descRaw, &p.EmploymentType, &salaryMin, &salaryMax,
		&p.SalaryCurrency, &p.QueryGroup, &datePosted, &dateScraped, &dateUpdated, &isActive,
		&keywordScore, &aiScore, &combined, &p.ScoreReasoning, &userStatus, &p.UserNotes,
	)
	if err != nil {
		return nil, err
	}

	p.ExternalID = externalID.String
	p.Location = location.String
	p.DescriptionRaw = descRaw.String
	p.IsRemote = isRemote != 0
	p.IsActive = isActive != 0
	p.SalaryMin = floatPtr(salaryMin)
	p.SalaryMax = floatPtr(salaryMax)
	p.KeywordScore = floatPtr(keywordScore)
	p.AIScore = floatPtr(aiScore)
	p.CombinedScore = floatPtr(combined)
	p.UserStatus = posting.Status(userStatus)

	if p.ScrapedAt, err = parseTime(dateScraped); err != nil {
		return nil, fmt.Errorf("posting %d date_scraped: %w", p.ID, err)
	}
	if p.PostedAt, err = timePtr(datePosted); err != nil {
		return nil, fmt.Errorf("posting %d date_posted: %w", p.ID, err)
	}
	if p.UpdatedAt, err = timePtr(dateUpdated); err != nil {
		return nil, fmt.Errorf("posting %d date_updated: %w", p.ID, err)
	}

	return &p, nil
}

func scanPostings(rows *sql.Rows) ([]*posting.Posting, error) {
	defer rows.Close()

	var out []*posting.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
