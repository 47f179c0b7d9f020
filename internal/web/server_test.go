package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rankboard/internal/metrics"
	"rankboard/internal/model"
	"rankboard/internal/store"
)

const testSeed = `
board:
  id: b1
  classes: [{id: epic}, {id: task}, {id: subtask}]
  hierarchy: {epic: [""], task: ["", epic], subtask: [task]}
  options:
    status: [{id: todo}, {id: done}]
  column_field: status
items:
  - id: e1
    class: epic
    values: {status: todo}
    children:
      - id: t1
        class: task
        values: {status: todo}
        children: [{id: s1, class: subtask, values: {status: todo}}]
  - {id: t2, class: task, values: {status: done}}
`

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	sd, err := store.LoadSeed(strings.NewReader(testSeed))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if err := st.Seed(ctx, sd); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, st, WithMetrics(metrics.New()))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func post(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		t.Fatalf("error body is not JSON: %q", body)
	}
	return eb.Code
}

func TestReads(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts, "/api/board")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("board: %d %s", resp.StatusCode, body)
	}
	var b model.Board
	if err := json.Unmarshal(body, &b); err != nil || b.ID != "b1" || b.ColumnField != "status" {
		t.Fatalf("unexpected board %+v (%v)", b, err)
	}

	resp, body = get(t, ts, "/api/objects")
	var items []model.Item
	if err := json.Unmarshal(body, &items); err != nil || resp.StatusCode != http.StatusOK || len(items) != 4 {
		t.Fatalf("unexpected objects %d %s", resp.StatusCode, body)
	}

	resp, body = get(t, ts, "/api/objects/ghost")
	if resp.StatusCode != http.StatusNotFound || errorCode(t, body) != CodeNotFound {
		t.Fatalf("expected 404 not_found, got %d %s", resp.StatusCode, body)
	}

	resp, body = get(t, ts, "/healthz")
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Fatalf("unexpected health %d %q", resp.StatusCode, body)
	}
}

func TestMove_PromoteCascades(t *testing.T) {
	ts, st := newTestServer(t)
	resp, body := post(t, ts, "/api/objects/t1/move", `{"field":"status","value":"done","rank":500,"promote":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move: %d %s", resp.StatusCode, body)
	}
	s1, err := st.GetObject(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s1.Value("status") != "done" {
		t.Fatalf("expected cascade to s1, got %+v", s1)
	}
}

func TestErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	cases := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"stale scope", "/api/objects/t1/move", `{"rank":10}`, http.StatusConflict, CodeConflict},
		{"cycle", "/api/objects/e1/update", `{"parent":"t1"}`, http.StatusConflict, CodeConflict},
		{"bad option", "/api/objects/t2/move", `{"field":"status","value":"nope"}`, http.StatusBadRequest, CodeInvalid},
		{"malformed", "/api/objects/t2/move", `{`, http.StatusBadRequest, CodeInvalid},
		{"unknown field", "/api/objects/t2/move", `{"bogus":1}`, http.StatusBadRequest, CodeInvalid},
		{"mismatched id", "/api/objects/t2/move", `{"itemId":"t1"}`, http.StatusBadRequest, CodeInvalid},
		{"missing item", "/api/objects/ghost/update", `{"rank":1}`, http.StatusNotFound, CodeNotFound},
		{"partial order", "/api/classes/-/fields/status/options/reorder", `{"order":["done"]}`, http.StatusBadRequest, CodeInvalid},
	}
	for _, tc := range cases {
		resp, body := post(t, ts, tc.path, tc.body)
		if resp.StatusCode != tc.status || errorCode(t, body) != tc.code {
			t.Fatalf("%s: expected %d %s, got %d %s", tc.name, tc.status, tc.code, resp.StatusCode, body)
		}
	}
}

func TestReorderOptions(t *testing.T) {
	ts, st := newTestServer(t)
	resp, body := post(t, ts, "/api/classes/task/fields/status/options/reorder", `{"order":["done","todo"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reorder: %d %s", resp.StatusCode, body)
	}
	b, err := st.Board(context.Background())
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if b.Options["status"][0].ID != "done" {
		t.Fatalf("expected done first, got %+v", b.Options["status"])
	}
}

func TestMetrics_CountsRoutes(t *testing.T) {
	ts, _ := newTestServer(t)
	get(t, ts, "/api/objects/ghost")
	_, body := get(t, ts, "/metrics")
	want := `rankboard_api_requests_total{code="Not Found",route="/api/objects/{id}"} 1`
	if !strings.Contains(string(body), want) {
		t.Fatalf("metrics missing %q:\n%s", want, body)
	}
}
