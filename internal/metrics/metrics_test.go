package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestCollectorCounts(t *testing.T) {
	c := New("1.2.3")

	c.Fetched("jsearch", "priority", 3)
	c.Inserted("jsearch", 2)
	c.Inserted("jsearch", 0)
	c.Dropped("excluded_titles", 1)
	c.Scored(true)
	c.Scored(false)
	c.AICall("skipped")
	c.Notification("discord", "sent")

	body := scrape(t, c)
	for _, want := range []string{
		`jobradar_postings_fetched_total{query_group="priority",source="jsearch"} 3`,
		`jobradar_postings_inserted_total{source="jsearch"} 2`,
		`jobradar_postings_dropped_total{step="excluded_titles"} 1`,
		`jobradar_postings_scored_total{result="failed"} 1`,
		`jobradar_ai_calls_total{result="skipped"} 1`,
		`jobradar_notifications_total{channel="discord",status="sent"} 1`,
		`jobradar_build_info{version="1.2.3"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition output", want)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	c.Fetched("a", "b", 1)
	c.Scored(true)
	c.AICall("ok")
	c.Notification("email", "failed")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil collector, got %d", rec.Code)
	}
}
