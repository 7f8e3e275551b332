package posting

import (
	"time"
)

// DefaultQueryGroup is assigned to postings whose producer did not tag them.
const DefaultQueryGroup = "priority"

// Posting is the canonical record of a job listing.
// Producers fill the descriptive fields; the store assigns the fingerprints,
// the identifiers and the timestamps.
type Posting struct {
	ID         int64  `json:"id"`
	Source     string `json:"source"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url"`

	URLHash          string `json:"url_hash,omitempty"`
	TitleCompanyHash string `json:"title_company_hash,omitempty"`

	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location,omitempty"`
	IsRemote       bool     `json:"is_remote"`
	Description    string   `json:"description,omitempty"`
	DescriptionRaw string   `json:"description_raw,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	SalaryMin      *float64 `json:"salary_min,omitempty"`
	SalaryMax      *float64 `json:"salary_max,omitempty"`
	SalaryCurrency string   `json:"salary_currency,omitempty"`
	QueryGroup     string   `json:"query_group"`

	PostedAt  *time.Time `json:"posted_at,omitempty"`
	ScrapedAt time.Time  `json:"scraped_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	IsActive  bool       `json:"is_active"`

	KeywordScore   *float64 `json:"keyword_score,omitempty"`
	AIScore        *float64 `json:"ai_score,omitempty"`
	CombinedScore  *float64 `json:"combined_score,omitempty"`
	ScoreReasoning string   `json:"score_reasoning,omitempty"`

	UserStatus Status `json:"user_status"`
	UserNotes  string `json:"user_notes,omitempty"`
}

// Scored reports whether a scoring pass has written a combined score.
func (p *Posting) Scored() bool {
	return p != nil && p.CombinedScore != nil
}

// Score returns the combined score, treating unscored postings as zero.
func (p *Posting) Score() float64 {
	if p == nil || p.CombinedScore == nil {
		return 0
	}
	return *p.CombinedScore
}

// DisplayLocation is the location shown to humans in notifications and listings.
func (p *Posting) DisplayLocation() string {
	switch {
	case p.Location != "":
		return p.Location
	case p.IsRemote:
		return "Remote"
	default:
		return "N/A"
	}
}

// Inserted pairs a freshly inserted posting with its storage id.
type Inserted struct {
	ID      int64
	Posting *Posting
}

// Float returns a pointer to v. Handy for optional score fields.
func Float(v float64) *float64 {
	return &v
}
