package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spigell/jobradar/internal/posting"
)

// GetUnnotified returns active postings scored at least minScore that have
// no sent receipt on channel. Failed attempts do not count.
func (s *Store) GetUnnotified(ctx context.Context, channel string, minScore float64) ([]*posting.Posting, error) {
	rows, err := s.query(ctx, `SELECT `+postingColumns+` FROM postings
		WHERE is_active = 1
			AND combined_score >= ?
			AND NOT EXISTS (
				SELECT 1 FROM notifications n
				WHERE n.posting_id = postings.id AND n.channel = ? AND n.status = ?
			)
		ORDER BY combined_score DESC, id DESC`,
		minScore, channel, string(posting.ReceiptSent))
	if err != nil {
		return nil, fmt.Errorf("query unnotified postings for %s: %w", channel, err)
	}
	return scanPostings(rows)
}

// RecordNotification appends a receipt. Receipts are never updated.
func (s *Store) RecordNotification(ctx context.Context, postingID int64, channel string, status posting.ReceiptStatus, errText string) error {
	_, err := s.exec(ctx, `INSERT INTO notifications (posting_id, channel, sent_at, status, error_message)
		VALUES (?, ?, ?, ?, ?)`,
		postingID, channel, s.timestamp(), string(status), nullString(errText))
	if err != nil {
		return fmt.Errorf("record %s notification of posting %d: %w", channel, postingID, err)
	}
	return nil
}

// Receipts returns the delivery history of one posting, oldest first.
func (s *Store) Receipts(ctx context.Context, postingID int64) ([]posting.Receipt, error) {
	rows, err := s.query(ctx, `SELECT id, posting_id, channel, sent_at, status, error_message
		FROM notifications WHERE posting_id = ? ORDER BY id`, postingID)
	if err != nil {
		return nil, fmt.Errorf("query receipts of posting %d: %w", postingID, err)
	}
	defer rows.Close()

	var out []posting.Receipt
	for rows.Next() {
		var (
			r       posting.Receipt
			sentAt  string
			status  string
			errText sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PostingID, &r.Channel, &sentAt, &status, &errText); err != nil {
			return nil, err
		}
		if r.SentAt, err = parseTime(sentAt); err != nil {
			return nil, fmt.Errorf("receipt %d sent_at: %w", r.ID, err)
		}
		r.Status = posting.ReceiptStatus(status)
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}
