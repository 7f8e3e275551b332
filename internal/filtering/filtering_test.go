package filtering

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spigell/jobradar/internal/posting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newBatch(group string, items ...*posting.Posting) *Batch {
	return &Batch{Group: group, Items: items}
}

func titlesOf(b *Batch) []string {
	out := make([]string, 0, b.Len())
	for _, p := range b.Items {
		out = append(out, p.Title)
	}
	return out
}

func TestRunDefaultChain(t *testing.T) {
	dir := t.TempDir()
	excludeFile := filepath.Join(dir, "exclude.txt")
	content := "# already applied\nhttps://JOBS.example.com/seen?ref=mail\n\n"
	if err := os.WriteFile(excludeFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	cfg := &Config{
		ExcludedTitles:    []string{"Intern"},
		ExcludedCompanies: []string{" Shady Corp "},
		ExcludeFile:       excludeFile,
	}
	steps := Default()
	if err := Validate(cfg, steps); err != nil {
		t.Fatalf("validate: %v", err)
	}

	b := newBatch("stretch",
		&posting.Posting{Title: "Level Designer", Company: "Acme", URL: "https://jobs.example.com/1",
			Description: "<p>Build <b>levels</b></p><ul><li>UE5</li></ul>", QueryGroup: "priority"},
		&posting.Posting{Title: "Design Intern", Company: "Acme", URL: "https://jobs.example.com/2"},
		&posting.Posting{Title: "Game Designer", Company: "shady corp", URL: "https://jobs.example.com/3"},
		&posting.Posting{Title: "No Link", Company: "Acme"},
		&posting.Posting{Title: "Seen Before", Company: "Acme", URL: "https://jobs.example.com/seen"},
		nil,
	)

	core, logs := observer.New(zapcore.DebugLevel)
	if err := Run(context.Background(), Deps{Logger: zap.New(core)}, steps, b); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := titlesOf(b); len(got) != 1 || got[0] != "Level Designer" {
		t.Fatalf("unexpected survivors: %v", got)
	}
	p := b.Items[0]
	if p.QueryGroup != "stretch" {
		t.Fatalf("expected batch group, got %q", p.QueryGroup)
	}
	if !strings.HasPrefix(p.DescriptionRaw, "<p>") || strings.Contains(p.Description, "<") {
		t.Fatalf("unexpected description conversion: %q / %q", p.Description, p.DescriptionRaw)
	}
	if !strings.Contains(p.Description, "Build levels") || !strings.Contains(p.Description, "- UE5") {
		t.Fatalf("unexpected plain description: %q", p.Description)
	}
	if logs.FilterMessage("dropping postings without url").Len() != 1 {
		t.Fatal("expected warning for postings without url")
	}
}

func TestQueryGroupDefault(t *testing.T) {
	b := newBatch("", &posting.Posting{Title: "a"}, &posting.Posting{Title: "b", QueryGroup: "stretch"})
	if _, err := NewQueryGroup().Apply(context.Background(), Deps{}, b); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b.Items[0].QueryGroup != posting.DefaultQueryGroup || b.Items[1].QueryGroup != "stretch" {
		t.Fatalf("unexpected groups: %q, %q", b.Items[0].QueryGroup, b.Items[1].QueryGroup)
	}
}

func TestDisabledStepIsSkipped(t *testing.T) {
	steps := []Filter{NewHTMLDescription()}
	DisableByName(steps, "html_description", "raw markup wanted")

	b := newBatch("", &posting.Posting{Title: "a", URL: "u", Description: "<p>x</p>"})
	if err := Run(context.Background(), Deps{}, steps, b); err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.Items[0].Description != "<p>x</p>" {
		t.Fatalf("expected description untouched, got %q", b.Items[0].Description)
	}

	status := Describe(steps)
	if len(status) != 1 || status[0].Enabled || status[0].Reason != "raw markup wanted" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestExcludeFileMissingIsIgnored(t *testing.T) {
	f := NewExcludeFile()
	if err := f.Validate(&Config{ExcludeFile: filepath.Join(t.TempDir(), "absent.txt")}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	b := newBatch("", &posting.Posting{Title: "a", URL: "https://x/1"})
	info, err := f.Apply(context.Background(), Deps{}, b)
	if err != nil || info.Dropped != 0 || b.Len() != 1 {
		t.Fatalf("expected nothing dropped, got %+v, %v", info, err)
	}
}

func TestDescribeDetails(t *testing.T) {
	steps := Default()
	if err := Validate(&Config{ExcludedCompanies: []string{"Acme"}}, steps); err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, s := range Describe(steps) {
		if s.Name == "excluded_companies" && s.Details["companies"] != "acme" {
			t.Fatalf("unexpected company details: %+v", s)
		}
	}
}

func TestAppendExcluded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.txt")
	if err := os.WriteFile(path, []byte("https://jobs.example.com/1\n"), 0o600); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	added, err := AppendExcluded(path, []string{"https://jobs.example.com/1/", "https://jobs.example.com/2", "https://jobs.example.com/2?x=1", ""})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected one new url, got %d", added)
	}

	hashes, err := readExcludedURLs(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected 2 excluded urls, got %d", len(hashes))
	}
}
