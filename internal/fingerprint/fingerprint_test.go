package fingerprint

import "testing"

func TestURLNormalization(t *testing.T) {
	t.Parallel()

	base := URL("https://x.com/job/1")
	for _, variant := range []string{
		"https://x.com/job/1/",
		"https://x.com/job/1?ref=abc",
		"https://x.com/job/1#apply",
		"https://x.com/job/1/?ref=a",
		"https://x.com/job/1/#apply",
		"  HTTPS://X.COM/job/1/?utm_source=feed ",
	} {
		if got := URL(variant); got != base {
			t.Fatalf("expected %q to hash like base URL", variant)
		}
	}

	if URL("https://x.com/job/2") == base {
		t.Fatal("expected different paths to produce different hashes")
	}
	if len(base) != 64 {
		t.Fatalf("expected hex sha256 of length 64, got %d", len(base))
	}
}

func TestTitleCompanyNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		title, company string
	}{
		{name: "case", title: "SENIOR LEVEL DESIGNER", company: "ACME GAMES"},
		{name: "punctuation", title: "Senior Level Designer!", company: "Acme Games."},
		{name: "whitespace", title: "  Senior   Level Designer ", company: "Acme\tGames"},
	}

	want := TitleCompany("senior level designer", "acme games")
	if TitleCompany("senior level designer", "other studio") == want {
		t.Fatal("expected different companies to produce different hashes")
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TitleCompany(tt.title, tt.company); got != want {
				t.Fatalf("expected %s/%s to match normalized hash", tt.title, tt.company)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Lead  Designer (UE5)": "lead designer ue5",
		"  R&D / Tools ":       "rd tools",
		"":                     "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
