package posting

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the operator-assigned triage state of a posting.
type Status string

const (
	StatusNew      Status = "new"
	StatusReviewed Status = "reviewed"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
	StatusSaved    Status = "saved"
)

// ErrInvalidStatus is returned by ParseStatus for unknown values.
var ErrInvalidStatus = errors.New("invalid posting status")

// Statuses lists every valid status in triage order.
func Statuses() []Status {
	return []Status{StatusNew, StatusReviewed, StatusApplied, StatusRejected, StatusSaved}
}

// ParseStatus converts user input into a Status. Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, status := range Statuses() {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ReceiptStatus is the outcome of one notification attempt.
type ReceiptStatus string

const (
	ReceiptSent   ReceiptStatus = "sent"
	ReceiptFailed ReceiptStatus = "failed"
)

// Receipt records one delivery attempt of a posting on a channel.
type Receipt struct {
	ID        int64         `json:"id"`
	PostingID int64         `json:"posting_id"`
	Channel   string        `json:"channel"`
	SentAt    time.Time     `json:"sent_at"`
	Status    ReceiptStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// RunStatus is the state of a scrape run audit record.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ScrapeRun is the audit record of one producer invocation.
type ScrapeRun struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      RunStatus  `json:"status"`
	Found       int        `json:"found"`
	New         int        `json:"new"`
	Updated     int        `json:"updated"`
	Error       string     `json:"error,omitempty"`
}
