package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/jobradar/internal/fingerprint"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
)

// DefaultQueryLimit caps Query when the filter leaves Limit unset.
const DefaultQueryLimit = 20

// Filter narrows Query results. Zero values disable a criterion.
type Filter struct {
	// MinScore keeps postings scored at or above it plus unscored ones.
	MinScore float64
	Status   posting.Status
	Source   string
	Group    string
	Limit    int
}

// ScoreUpdate writes only the non-nil fields.
type ScoreUpdate struct {
	Keyword   *float64
	AI        *float64
	Combined  *float64
	Reasoning *string
}

func (u ScoreUpdate) empty() bool {
	return u.Keyword == nil && u.AI == nil && u.Combined == nil && u.Reasoning == nil
}

// Upsert stores p unless a posting with the same link already exists.
// A known link only refreshes date_updated and reactivates the row.
func (s *Store) Upsert(ctx context.Context, p *posting.Posting) (int64, bool, error) {
	if p == nil || strings.TrimSpace(p.URL) == "" {
		return 0, false, ErrMissingURL
	}

	p.URLHash = fingerprint.URL(p.URL)

	id, err := s.idByURLHash(ctx, p.URLHash)
	switch {
	case err == nil:
		if err := s.touch(ctx, id); err != nil {
			return 0, false, fmt.Errorf("refresh posting %d: %w", id, err)
		}
		p.ID = id
		return id, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("lookup posting %s: %w", p.URL, err)
	}

	p.TitleCompanyHash = fingerprint.TitleCompany(p.Title, p.Company)
	s.logOverlap(ctx, p)

	id, err = s.insert(ctx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return s.resolveDuplicate(ctx, p)
		}
		return 0, false, fmt.Errorf("insert posting %s: %w", p.URL, err)
	}

	p.ID = id
	return id, true, nil
}

// UpsertBatch upserts every posting in order and returns the new ones.
// Postings without a link are skipped; any other error aborts the batch.
func (s *Store) UpsertBatch(ctx context.Context, items []*posting.Posting) ([]posting.Inserted, error) {
	var inserted []posting.Inserted

	for _, p := range items {
		if p == nil || strings.TrimSpace(p.URL) == "" {
			s.logger.Warn("skipping posting without url", logger.PostingFields(p)...)
			continue
		}

		id, isNew, err := s.Upsert(ctx, p)
		if err != nil {
			return inserted, err
		}
		if isNew {
			inserted = append(inserted, posting.Inserted{ID: id, Posting: p})
		}
	}

	return inserted, nil
}

func (s *Store) insert(ctx context.Context, p *posting.Posting) (int64, error) {
	if p.ScrapedAt.IsZero() {
		p.ScrapedAt = s.now()
	}
	if p.QueryGroup == "" {
		p.QueryGroup = posting.DefaultQueryGroup
	}
	if p.UserStatus == "" {
		p.UserStatus = posting.StatusNew
	}
	p.IsActive = true

	var id int64
	err := s.queryRow(ctx, `INSERT INTO postings (
		source, external_id, url, url_hash, title_company_hash, title, company, location,
		is_remote, description, description_raw, employment_type, salary_min, salary_max,
		salary_currency, query_group, date_posted, date_scraped, is_active, user_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.Source, nullString(p.ExternalID), p.URL, p.URLHash, p.TitleCompanyHash, p.Title, p.Company,
		nullString(p.Location), boolInt(p.IsRemote), p.Description, nullString(p.DescriptionRaw),
		p.EmploymentType, nullFloat(p.SalaryMin), nullFloat(p.SalaryMax), p.SalaryCurrency,
		p.QueryGroup, nullTime(p.PostedAt), formatTime(p.ScrapedAt), 1, string(p.UserStatus),
	).Scan(&id)

	return id, err
}

// resolveDuplicate handles a concurrent writer winning the insert race.
func (s *Store) resolveDuplicate(ctx context.Context, p *posting.Posting) (int64, bool, error) {
	id, err := s.idByURLHash(ctx, p.URLHash)
	if errors.Is(err, sql.ErrNoRows) && p.ExternalID != "" {
		err = s.queryRow(ctx, `SELECT id FROM postings WHERE source = ? AND external_id = ?`,
			p.Source, p.ExternalID).Scan(&id)
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve duplicate posting %s: %w", p.URL, err)
	}

	s.logger.Debug("duplicate insert resolved to existing posting",
		zap.Int64(logger.FieldPostingID, id), zap.String("url", p.URL))

	if err := s.touch(ctx, id); err != nil {
		return 0, false, fmt.Errorf("refresh posting %d: %w", id, err)
	}
	p.ID = id
	return id, false, nil
}

func (s *Store) idByURLHash(ctx context.Context, hash string) (int64, error) {
	var id int64
	err := s.queryRow(ctx, `SELECT id FROM postings WHERE url_hash = ?`, hash).Scan(&id)
	return id, err
}

func (s *Store) touch(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `UPDATE postings SET date_updated = ?, is_active = 1 WHERE id = ?`, s.timestamp(), id)
	return err
}

// logOverlap reports the same role seen on another source. The posting is
// stored regardless.
func (s *Store) logOverlap(ctx context.Context, p *posting.Posting) {
	if !s.logger.Core().Enabled(zap.DebugLevel) {
		return
	}

	var (
		otherID     int64
		otherSource string
	)
	err := s.queryRow(ctx, `SELECT id, source FROM postings WHERE title_company_hash = ? AND source <> ? LIMIT 1`,
		p.TitleCompanyHash, p.Source).Scan(&otherID, &otherSource)
	if err != nil {
		return
	}

	s.logger.Debug("posting also listed on another source",
		append(logger.PostingFields(p), zap.Int64("other_id", otherID), zap.String("other_source", otherSource))...)
}

// UpdateScores writes the provided score fields of one posting.
func (s *Store) UpdateScores(ctx context.Context, id int64, u ScoreUpdate) error {
	if u.empty() {
		return nil
	}
	if u.Combined != nil && (*u.Combined < 0 || *u.Combined > 1) {
		return fmt.Errorf("posting %d: combined score %v out of range", id, *u.Combined)
	}

	var (
		sets []string
		args []any
	)
	if u.Keyword != nil {
		sets, args = append(sets, "keyword_score = ?"), append(args, *u.Keyword)
	}
	if u.AI != nil {
		sets, args = append(sets, "ai_score = ?"), append(args, *u.AI)
	}
	if u.Combined != nil {
		sets, args = append(sets, "combined_score = ?"), append(args, *u.Combined)
	}
	if u.Reasoning != nil {
		sets, args = append(sets, "score_reasoning = ?"), append(args, *u.Reasoning)
	}
	args = append(args, id)

	res, err := s.exec(ctx, `UPDATE postings SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update scores of posting %d: %w", id, err)
	}
	return expectRow(res, id)
}

// GetUnscored returns active postings without a combined score, newest first.
func (s *Store) GetUnscored(ctx context.Context) ([]*posting.Posting, error) {
	rows, err := s.query(ctx, `SELECT `+postingColumns+` FROM postings
		WHERE is_active = 1 AND combined_score IS NULL
		ORDER BY date_scraped DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query unscored postings: %w", err)
	}
	return scanPostings(rows)
}

// Query lists active postings, best scored first.
func (s *Store) Query(ctx context.Context, f Filter) ([]*posting.Posting, error) {
	where := []string{"is_active = 1"}
	var args []any

	if f.MinScore > 0 {
		where = append(where, "(combined_score >= ? OR combined_score IS NULL)")
		args = append(args, f.MinScore)
	}
	if f.Status != "" {
		where = append(where, "user_status = ?")
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.Group != "" {
		where = append(where, "query_group = ?")
		args = append(args, f.Group)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	args = append(args, limit)

	rows, err := s.query(ctx, `SELECT `+postingColumns+` FROM postings
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY COALESCE(combined_score, 0) DESC, id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	return scanPostings(rows)
}

// Get loads one posting by id.
func (s *Store) Get(ctx context.Context, id int64) (*posting.Posting, error) {
	p, err := scanPosting(s.queryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("posting %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get posting %d: %w", id, err)
	}
	return p, nil
}

// SetUserStatus records the operator's triage decision. Notes are left
// untouched when nil.
func (s *Store) SetUserStatus(ctx context.Context, id int64, status posting.Status, notes *string) error {
	if _, err := posting.ParseStatus(string(status)); err != nil {
		return err
	}

	query := `UPDATE postings SET user_status = ? WHERE id = ?`
	args := []any{string(status), id}
	if notes != nil {
		query = `UPDATE postings SET user_status = ?, user_notes = ? WHERE id = ?`
		args = []any{string(status), *notes, id}
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set status of posting %d: %w", id, err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("posting %d rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("posting %d: %w", id, ErrNotFound)
	}
	return nil
}
