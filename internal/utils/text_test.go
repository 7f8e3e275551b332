package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestTruncateWords(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 1000)

	tests := []struct {
		name  string
		input string
		limit int
		check func(t *testing.T, got string)
	}{
		{
			name:  "short text untouched",
			input: "short text",
			limit: 3000,
			check: func(t *testing.T, got string) {
				if got != "short text" {
					t.Fatalf("expected input unchanged, got %q", got)
				}
			},
		},
		{
			name:  "cuts on word boundary within budget",
			input: long,
			limit: 3000,
			check: func(t *testing.T, got string) {
				if utf8.RuneCountInString(got) > 3000 {
					t.Fatalf("expected at most 3000 runes, got %d", utf8.RuneCountInString(got))
				}
				if !strings.HasSuffix(got, "word...") {
					t.Fatalf("expected cut at word boundary, got suffix %q", got[len(got)-10:])
				}
			},
		},
		{
			name:  "hard cut without spaces",
			input: strings.Repeat("x", 50),
			limit: 20,
			check: func(t *testing.T, got string) {
				if got != strings.Repeat("x", 17)+"..." {
					t.Fatalf("unexpected hard cut: %q", got)
				}
			},
		},
		{
			name:  "non-positive limit",
			input: "anything",
			limit: 0,
			check: func(t *testing.T, got string) {
				if got != "" {
					t.Fatalf("expected empty, got %q", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.check(t, TruncateWords(tt.input, tt.limit))
		})
	}
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	in := `<div><h2>About</h2><p>Build <b>levels</b> &amp; worlds.</p><script>track()</script><ul><li>UE5</li><li>Blockout</li></ul></div>`
	got := HTMLToText(in)

	for _, want := range []string{"About", "Build levels & worlds.", "- UE5", "- Blockout"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "track()") {
		t.Fatalf("expected script contents to be dropped, got %q", got)
	}
	if HTMLToText("  plain   text ") != "plain text" {
		t.Fatalf("unexpected plain text handling: %q", HTMLToText("  plain   text "))
	}
}

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	if !LooksLikeHTML("<p>x</p>") {
		t.Fatal("expected markup to be detected")
	}
	if LooksLikeHTML("a < b") {
		t.Fatal("expected comparison not to be detected as markup")
	}
}

func TestWaitForRespectsContext(t *testing.T) {
	orig := sleep
	block := make(chan struct{})
	sleep = func(time.Duration) { <-block }
	t.Cleanup(func() {
		close(block)
		sleep = orig
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("expected nil for zero duration, got %v", err)
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit", input: "raw model reply", limit: 0, expect: ""},
		{name: "fits", input: `{"score":0.8}`, limit: 40, expect: `{"score":0.8}`},
		{name: "cut mid word", input: "senior level designer", limit: 6, expect: "senior..."},
		{name: "multibyte runes", input: "  Zürich office  ", limit: 3, expect: "Zür..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
