package posting_test

import (
	"errors"
	"testing"

	"github.com/spigell/jobradar/internal/posting"
)

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range []string{"new", "reviewed", "applied", "rejected", "saved", " Applied "} {
		got, err := posting.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if got == "" {
			t.Errorf("ParseStatus(%q) returned empty status", s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "hired", "unknown"} {
		_, err := posting.ParseStatus(s)
		if !errors.Is(err, posting.ErrInvalidStatus) {
			t.Errorf("ParseStatus(%q) expected ErrInvalidStatus, got %v", s, err)
		}
	}
}

func TestPostingScoreAndLocation(t *testing.T) {
	p := &posting.Posting{IsRemote: true}
	if p.Scored() {
		t.Fatal("expected posting without combined score to be unscored")
	}
	if p.Score() != 0 {
		t.Fatalf("expected zero score, got %v", p.Score())
	}
	if p.DisplayLocation() != "Remote" {
		t.Fatalf("unexpected location: %q", p.DisplayLocation())
	}

	p.CombinedScore = posting.Float(0.42)
	p.Location = "Boston, MA"
	if !p.Scored() || p.Score() != 0.42 {
		t.Fatalf("unexpected score state: scored=%v score=%v", p.Scored(), p.Score())
	}
	if p.DisplayLocation() != "Boston, MA" {
		t.Fatalf("unexpected location: %q", p.DisplayLocation())
	}

	if (&posting.Posting{}).DisplayLocation() != "N/A" {
		t.Fatal("expected N/A for unknown location")
	}
}
