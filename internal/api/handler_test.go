package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spigell/jobradar/internal/metrics"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/storage"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*gin.Engine, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.Open(context.Background(), storage.Options{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "jobs.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewRouter(NewHandler(store), metrics.New("test"), zap.NewNop()), store
}

func seed(t *testing.T, store *storage.Store, url, title string, score float64) int64 {
	t.Helper()
	ctx := context.Background()
	id, _, err := store.Upsert(ctx, &posting.Posting{Source: "board", URL: url, Title: title, Company: "Acme"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpdateScores(ctx, id, storage.ScoreUpdate{Combined: posting.Float(score)}); err != nil {
		t.Fatalf("score: %v", err)
	}
	return id
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestListPostings(t *testing.T) {
	r, store := setup(t)
	seed(t, store, "https://jobs.example.com/1", "Level Designer", 0.9)
	seed(t, store, "https://jobs.example.com/2", "QA Tester", 0.3)

	w := do(r, http.MethodGet, "/postings?min_score=0.5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got []posting.Posting
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Level Designer" {
		t.Fatalf("unexpected postings: %+v", got)
	}

	w = do(r, http.MethodGet, "/postings?status=applied", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListPostingsValidation(t *testing.T) {
	r, _ := setup(t)
	for _, path := range []string{"/postings?min_score=2", "/postings?limit=-1", "/postings?status=hired"} {
		if w := do(r, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestGetPostingWithReceipts(t *testing.T) {
	r, store := setup(t)
	id := seed(t, store, "https://jobs.example.com/1", "Level Designer", 0.9)
	if err := store.RecordNotification(context.Background(), id, "discord", posting.ReceiptSent, ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	w := do(r, http.MethodGet, "/postings/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got struct {
		Title    string            `json:"title"`
		Receipts []posting.Receipt `json:"receipts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Level Designer" || len(got.Receipts) != 1 || got.Receipts[0].Channel != "discord" {
		t.Fatalf("unexpected detail: %+v", got)
	}

	if w := do(r, http.MethodGet, "/postings/99", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/postings/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	r, store := setup(t)
	id := seed(t, store, "https://jobs.example.com/1", "Level Designer", 0.9)

	w := do(r, http.MethodPatch, "/postings/1/status", `{"status":"Applied","notes":"sent portfolio"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	p, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.UserStatus != posting.StatusApplied || p.UserNotes != "sent portfolio" {
		t.Fatalf("unexpected posting state: %+v", p)
	}

	tests := []struct {
		path string
		body string
		want int
	}{
		{"/postings/1/status", `{"status":"hired"}`, http.StatusBadRequest},
		{"/postings/1/status", `{}`, http.StatusBadRequest},
		{"/postings/42/status", `{"status":"saved"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := do(r, http.MethodPatch, tt.path, tt.body); w.Code != tt.want {
			t.Fatalf("%s %s: expected %d, got %d", tt.path, tt.body, tt.want, w.Code)
		}
	}
}

func TestStatsHealthAndMetrics(t *testing.T) {
	r, store := setup(t)
	seed(t, store, "https://jobs.example.com/1", "Level Designer", 0.9)

	w := do(r, http.MethodGet, "/stats", "")
	var stats storage.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil || stats.Total != 1 || stats.HighMatches != 1 {
		t.Fatalf("unexpected stats %+v: %v", stats, err)
	}

	if w := do(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `jobradar_http_requests_total{endpoint="/stats",method="GET",status="200"} 1`) {
		t.Fatalf("expected request metrics, got %d:\n%s", w.Code, w.Body.String())
	}

	store.Close()
	if w := do(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected unavailable after close, got %d", w.Code)
	}
}
