package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
)

// HighMatchThreshold is the combined score counted as a high match.
const HighMatchThreshold = 0.7

// Stats summarises the posting table.
type Stats struct {
	Total       int            `json:"total"`
	Active      int            `json:"active"`
	Scored      int            `json:"scored"`
	HighMatches int            `json:"high_matches"`
	AvgScore    float64        `json:"avg_score"`
	BySource    map[string]int `json:"by_source"`
	ByStatus    map[string]int `json:"by_status"`
}

// Stats counts postings across all rows, active or not.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{BySource: map[string]int{}, ByStatus: map[string]int{}}

	var avg sql.NullFloat64
	err := s.queryRow(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN combined_score IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN combined_score >= ? THEN 1 ELSE 0 END), 0),
			AVG(combined_score)
		FROM postings`, HighMatchThreshold,
	).Scan(&st.Total, &st.Active, &st.Scored, &st.HighMatches, &avg)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	if avg.Valid {
		st.AvgScore = math.Round(avg.Float64*1000) / 1000
	}

	if err := s.countBy(ctx, "source", st.BySource); err != nil {
		return st, err
	}
	if err := s.countBy(ctx, "user_status", st.ByStatus); err != nil {
		return st, err
	}

	return st, nil
}

func (s *Store) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.query(ctx, `SELECT `+column+`, COUNT(*) FROM postings GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("count postings by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}
