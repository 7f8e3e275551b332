package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spigell/jobradar/internal/posting"
)

// StartScrapeRun opens an audit record for one producer invocation.
func (s *Store) StartScrapeRun(ctx context.Context, source string) (int64, error) {
	var id int64
	err := s.queryRow(ctx, `INSERT INTO scrape_runs (source, started_at, status) VALUES (?, ?, ?) RETURNING id`,
		source, s.timestamp(), string(posting.RunRunning)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start scrape run for %s: %w", source, err)
	}
	return id, nil
}

// CompleteScrapeRun closes a run with its counters.
func (s *Store) CompleteScrapeRun(ctx context.Context, runID int64, found, inserted, updated int) error {
	_, err := s.exec(ctx, `UPDATE scrape_runs
		SET completed_at = ?, status = ?, jobs_found = ?, jobs_new = ?, jobs_updated = ?
		WHERE id = ?`,
		s.timestamp(), string(posting.RunCompleted), found, inserted, updated, runID)
	if err != nil {
		return fmt.Errorf("complete scrape run %d: %w", runID, err)
	}
	return nil
}

// FailScrapeRun closes a run with an error message.
func (s *Store) FailScrapeRun(ctx context.Context, runID int64, errText string) error {
	_, err := s.exec(ctx, `UPDATE scrape_runs SET completed_at = ?, status = ?, error_message = ? WHERE id = ?`,
		s.timestamp(), string(posting.RunFailed), errText, runID)
	if err != nil {
		return fmt.Errorf("fail scrape run %d: %w", runID, err)
	}
	return nil
}

// RecentScrapeRuns lists the latest runs, newest first.
func (s *Store) RecentScrapeRuns(ctx context.Context, limit int) ([]posting.ScrapeRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.query(ctx, `SELECT id, source, started_at, completed_at, status,
		jobs_found, jobs_new, jobs_updated, error_message
		FROM scrape_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scrape runs: %w", err)
	}
	defer rows.Close()

	var out []posting.ScrapeRun
	for rows.Next() {
		var (
			r           posting.ScrapeRun
			startedAt   string
			completedAt sql.NullString
			status      string
			errText     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Source, &startedAt, &completedAt, &status,
			&r.Found, &r.New, &r.Updated, &errText); err != nil {
			return nil, err
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("scrape run %d started_at: %w", r.ID, err)
		}
		if r.CompletedAt, err = timePtr(completedAt); err != nil {
			return nil, fmt.Errorf("scrape run %d completed_at: %w", r.ID, err)
		}
		r.Status = posting.RunStatus(status)
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}
