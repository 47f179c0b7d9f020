package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveMutation("move", "committed", time.Millisecond)
	m.ObserveRequest("/api/board", 200)
	m.FeedEvent("object/update")
	m.FeedClients(1)
	m.Rebalanced()
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveMutation("move", "rolled_back", 20*time.Millisecond)
	m.ObserveRequest("/api/objects/{id}/move", 409)
	m.FeedEvent("object/update")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`rankboard_mutations_total{kind="move",outcome="rolled_back"} 1`,
		`rankboard_api_requests_total{code="Conflict",route="/api/objects/{id}/move"} 1`,
		`rankboard_feed_events_total{type="object/update"} 1`,
		"rankboard_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, text)
		}
	}
}
