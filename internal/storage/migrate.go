package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version    int
	name       string
	statements []string
}

// Migrations are additive. Never edit a released entry; append a new one.
var migrations = []migration{
	{
		version: 1,
		name:    "base tables",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS postings (
				id {{ID}},
				source TEXT NOT NULL,
				external_id TEXT,
				url TEXT NOT NULL,
				url_hash TEXT NOT NULL UNIQUE,
				title_company_hash TEXT NOT NULL,
				title TEXT NOT NULL,
				company TEXT NOT NULL,
				location TEXT,
				is_remote INTEGER NOT NULL DEFAULT 0,
				description TEXT NOT NULL DEFAULT '',
				description_raw TEXT,
				employment_type TEXT NOT NULL DEFAULT '',
				salary_min {{FLOAT}},
				salary_max {{FLOAT}},
				salary_currency TEXT NOT NULL DEFAULT '',
				date_posted TEXT,
				date_scraped TEXT NOT NULL,
				date_updated TEXT,
				is_active INTEGER NOT NULL DEFAULT 1,
				keyword_score {{FLOAT}},
				ai_score {{FLOAT}},
				combined_score {{FLOAT}},
				score_reasoning TEXT NOT NULL DEFAULT '',
				user_status TEXT NOT NULL DEFAULT 'new',
				user_notes TEXT NOT NULL DEFAULT '',
				UNIQUE (source, external_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_postings_title_company ON postings (title_company_hash)`,
			`CREATE INDEX IF NOT EXISTS idx_postings_combined_score ON postings (combined_score)`,
			`CREATE INDEX IF NOT EXISTS idx_postings_user_status ON postings (user_status)`,
			`CREATE TABLE IF NOT EXISTS notifications (
				id {{ID}},
				posting_id BIGINT NOT NULL REFERENCES postings (id),
				channel TEXT NOT NULL,
				sent_at TEXT NOT NULL,
				status TEXT NOT NULL,
				error_message TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_posting_channel ON notifications (posting_id, channel)`,
			`CREATE TABLE IF NOT EXISTS scrape_runs (
				id {{ID}},
				source TEXT NOT NULL,
				started_at TEXT NOT NULL,
				completed_at TEXT,
				status TEXT NOT NULL,
				jobs_found INTEGER NOT NULL DEFAULT 0,
				jobs_new INTEGER NOT NULL DEFAULT 0,
				jobs_updated INTEGER NOT NULL DEFAULT 0,
				error_message TEXT
			)`,
		},
	},
	{
		version: 2,
		name:    "query groups",
		statements: []string{
			`ALTER TABLE postings ADD COLUMN query_group TEXT NOT NULL DEFAULT 'priority'`,
			`CREATE INDEX IF NOT EXISTS idx_postings_query_group ON postings (query_group)`,
		},
	},
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.queryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Migrate applies every pending migration, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		s.logger.Info("applied migration", zap.Int("version", m.version), zap.String("name", m.name))
	}

	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, s.dialect.ddl(stmt)); err != nil {
			return err
		}
	}

	insert := s.dialect.Rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, m.version, s.timestamp()); err != nil {
		return err
	}

	return tx.Commit()
}
