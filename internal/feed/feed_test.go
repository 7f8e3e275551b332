package feed

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/jobradar/internal/retry"
	"go.uber.org/zap"
)

func TestDecode(t *testing.T) {
	items := []Item{
		{
			"external_id":  float64(1234),
			"url":          " https://jobs.example.com/1 ",
			"title":        "Level Designer",
			"company":      "Acme",
			"is_remote":    "true",
			"salary_min":   float64(90000),
			"date_posted":  "2025-02-01T10:00:00Z",
			"location":     "",
			"query_group":  nil,
			"unknown_junk": "ignored",
		},
		{"title": "No URL"},
		{"url": "https://jobs.example.com/3", "title": "Designer", "source": "custom", "date_posted": "2025-02-03"},
	}

	got, skipped, err := Decode(items, "board")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if skipped != 1 || len(got) != 2 {
		t.Fatalf("expected 2 postings and 1 skipped, got %d and %d", len(got), skipped)
	}

	first := got[0]
	if first.Source != "board" || first.ExternalID != "1234" || first.URL != "https://jobs.example.com/1" {
		t.Fatalf("unexpected identity fields: %+v", first)
	}
	if !first.IsRemote || first.SalaryMin == nil || *first.SalaryMin != 90000 {
		t.Fatalf("unexpected typed fields: %+v", first)
	}
	if first.PostedAt == nil || !first.PostedAt.Equal(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted_at: %v", first.PostedAt)
	}
	if got[1].Source != "custom" || got[1].PostedAt == nil {
		t.Fatalf("unexpected second posting: %+v", got[1])
	}
}

func TestDecodeRejectsBadTimestamps(t *testing.T) {
	_, _, err := Decode([]Item{{"url": "u", "title": "t", "date_posted": "yesterday"}}, "board")
	if err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postings.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestFileProducerFormats(t *testing.T) {
	array := `[
		{"url": "https://a/1", "title": "Level Designer", "company": "Acme", "location": "Boston, MA"},
		{"url": "https://a/2", "title": "QA Tester", "company": "Acme", "is_remote": true}
	]`
	lines := `{"url": "https://a/1", "title": "Level Designer", "company": "Acme", "location": "Boston, MA"}

{"url": "https://a/2", "title": "QA Tester", "company": "Acme", "is_remote": true}
`

	for name, content := range map[string]string{"array": array, "lines": lines} {
		t.Run(name, func(t *testing.T) {
			p := NewFileProducer("export", writeFile(t, content), zap.NewNop())
			if !p.IsAvailable() {
				t.Fatal("expected producer to be available")
			}

			all, err := p.Fetch(context.Background(), Query{})
			if err != nil || len(all) != 2 {
				t.Fatalf("fetch all: %d postings, %v", len(all), err)
			}

			designers, _ := p.Fetch(context.Background(), Query{Text: "level designer", Location: "boston"})
			if len(designers) != 1 || designers[0].Title != "Level Designer" {
				t.Fatalf("unexpected designer match: %+v", designers)
			}

			remote, _ := p.Fetch(context.Background(), Query{Location: "Remote"})
			if len(remote) != 1 || remote[0].Title != "QA Tester" {
				t.Fatalf("unexpected remote match: %+v", remote)
			}
		})
	}
}

func TestFileProducerErrors(t *testing.T) {
	if NewFileProducer("export", "", nil).IsAvailable() {
		t.Fatal("expected producer without path to be unavailable")
	}
	p := NewFileProducer("export", writeFile(t, "{not json"), nil)
	if _, err := p.Fetch(context.Background(), Query{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func page(items int, pageNo, pages int) ItemResponse {
	resp := ItemResponse{Page: pageNo, Pages: pages, PerPage: 2}
	for i := 0; i < items; i++ {
		id := strconv.Itoa(pageNo*10 + i)
		resp.Items = append(resp.Items, Item{"url": "https://jobs.example.com/" + id, "title": "Designer " + id, "external_id": id})
	}
	return resp
}

func TestHTTPProducerPaging(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing api key header")
		}
		if r.URL.Query().Get("remote") != "true" || r.URL.Query().Get("text") != "level designer" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}

		pageNo, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_ = json.NewEncoder(gz).Encode(page(2, pageNo, 5))
	}))
	defer srv.Close()

	p := NewHTTPProducer(HTTPOptions{
		Name: "board", Enabled: true, URL: srv.URL, APIKey: "secret", APIKeyHeader: "X-Api-Key",
		MaxPages: 3, PerPage: 2,
	}, zap.NewNop())

	got, err := p.Fetch(context.Background(), Query{Text: "level designer", Location: "remote"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls.Load() != 3 || len(got) != 6 {
		t.Fatalf("expected 3 pages and 6 postings, got %d calls and %d postings", calls.Load(), len(got))
	}
	if got[0].Source != "board" {
		t.Fatalf("expected source fallback, got %q", got[0].Source)
	}
}

func TestHTTPProducerStopsOnShortPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("expected bearer token")
		}
		_ = json.NewEncoder(w).Encode(page(1, 0, 4))
	}))
	defer srv.Close()

	p := NewHTTPProducer(HTTPOptions{Name: "board", Enabled: true, URL: srv.URL, APIKey: "token", PerPage: 2}, nil)
	if _, err := p.Fetch(context.Background(), Query{Text: "designer"}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestHTTPProducerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(page(1, 0, 1))
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	p := NewHTTPProducer(HTTPOptions{
		Name: "board", Enabled: true, URL: srv.URL,
		Retry: retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, nil)

	got, err := p.Fetch(context.Background(), Query{})
	if err != nil || len(got) != 1 || calls.Load() != 2 {
		t.Fatalf("expected recovery after one retry, got %d postings, %d calls, err %v", len(got), calls.Load(), err)
	}
}

func TestHTTPProducerClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPProducer(HTTPOptions{Name: "board", Enabled: true, URL: srv.URL}, nil)
	if _, err := p.Fetch(context.Background(), Query{}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry on 401, got %d calls", calls.Load())
	}
	if NewHTTPProducer(HTTPOptions{URL: srv.URL}, nil).IsAvailable() {
		t.Fatal("expected disabled producer to be unavailable")
	}
}
