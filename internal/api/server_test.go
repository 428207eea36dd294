package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"webhookrecv/internal/api/handlers"
	"webhookrecv/internal/capture"
	"webhookrecv/internal/ingestion"
	"webhookrecv/internal/metrics"
	"webhookrecv/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

type testEnv struct {
	server *Server
	store  *capture.Store
	feed   *realtime.Feed
}

type envOptions struct {
	savePath     string
	maxBodyBytes int64
	rps          float64
	burst        int
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace).WithWriter(io.Discard)
	store := capture.NewStore(100, logger)
	recorder := metrics.NewRecorder()
	feed := realtime.NewFeed(logger)
	receiver := ingestion.NewReceiver(store, ingestion.Options{Metrics: recorder, Feed: feed}, logger)

	if opts.maxBodyBytes == 0 {
		opts.maxBodyBytes = 1 << 20
	}

	srv := NewServer(&Config{
		Host:           "127.0.0.1",
		Port:           3000,
		Production:     true,
		RateLimitRPS:   opts.rps,
		RateLimitBurst: opts.burst,
	}, Handlers{
		Webhook:  handlers.NewWebhookHandler(receiver, opts.maxBodyBytes, logger),
		History:  handlers.NewHistoryHandler(store, recorder, opts.savePath, logger),
		Realtime: handlers.NewRealtimeHandler(feed, logger),
		Metrics:  recorder.Handler(),
	}, logger)

	return &testEnv{server: srv, store: store, feed: feed}
}

func (e *testEnv) do(method, target, contentType, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestServer_CaptureAndGet(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(http.MethodPost, "/github/hook", "application/json",
		`{"ref":"refs/heads/main","commits":[{},{}],"repository":{"full_name":"octo/repo"}}`,
		map[string]string{"X-GitHub-Event": "push"})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	resp := decodeJSON(t, rec)
	if resp["status"] != "received" || resp["id"] != "req_00001" {
		t.Errorf("Expected received req_00001, got %v", resp)
	}
	if _, err := time.Parse(time.RFC3339Nano, resp["timestamp"].(string)); err != nil {
		t.Errorf("Expected ISO timestamp, got %v", resp["timestamp"])
	}

	rec = env.do(http.MethodGet, "/_history/req_00001", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	record := decodeJSON(t, rec)
	if record["parser_type"] != "github" {
		t.Errorf("Expected parser_type 'github', got %v", record["parser_type"])
	}
	if record["path"] != "/github/hook" {
		t.Errorf("Expected path '/github/hook', got %v", record["path"])
	}
	if record["source_ip"] != "192.0.2.1" {
		t.Errorf("Expected source_ip '192.0.2.1', got %v", record["source_ip"])
	}
	parsed := record["parsed_data"].(map[string]any)
	if parsed["repository"] != "octo/repo" {
		t.Errorf("Expected repository 'octo/repo', got %v", parsed["repository"])
	}
}

func TestServer_GetUnknownRequest(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(http.MethodGet, "/_history/req_99999", "", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	if resp := decodeJSON(t, rec); resp["error"] != "request not found" {
		t.Errorf("Expected 'request not found', got %v", resp["error"])
	}
}

func TestServer_HeadersAndQueryFlattened(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest(http.MethodPut, "/hook?a=1&a=2&b=x", strings.NewReader("plain"))
	req.Header.Add("X-Multi", "one")
	req.Header.Add("X-Multi", "two")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	got, ok := env.store.Get("req_00001")
	if !ok {
		t.Fatal("Expected captured record")
	}
	if got.QueryParams["a"] != "2" || got.QueryParams["b"] != "x" {
		t.Errorf("Expected last query values, got %v", got.QueryParams)
	}
	if got.Headers["X-Multi"] != "one, two" {
		t.Errorf("Expected joined header 'one, two', got %q", got.Headers["X-Multi"])
	}
	if got.Headers["Host"] != "example.com" {
		t.Errorf("Expected Host header 'example.com', got %q", got.Headers["Host"])
	}
	if got.Body != capture.RawPayload("plain") {
		t.Errorf("Expected raw body 'plain', got %#v", got.Body)
	}
}

func TestServer_NonGetOnReservedPathIsCaptured(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/"},
		{http.MethodPost, "/_history"},
		{http.MethodPatch, "/_history/req_00001"},
		{http.MethodPost, "/_history/"},
	} {
		rec := env.do(tc.method, tc.path, "", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected %s %s to be captured, got status %d", tc.method, tc.path, rec.Code)
		}
	}

	if env.store.Len() != 4 {
		t.Errorf("Expected 4 captured requests, got %d", env.store.Len())
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, envOptions{maxBodyBytes: 8})

	rec := env.do(http.MethodPost, "/hook", "text/plain", strings.Repeat("x", 32), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d", rec.Code)
	}
	if env.store.Len() != 0 {
		t.Errorf("Expected nothing captured, got %d", env.store.Len())
	}
}

func TestServer_StatusAndHistory(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	for i := 0; i < 12; i++ {
		env.do(http.MethodPost, "/hook", "application/json", `{"n":1}`, nil)
	}

	status := decodeJSON(t, env.do(http.MethodGet, "/", "", "", nil))
	if status["status"] != "running" {
		t.Errorf("Expected status 'running', got %v", status["status"])
	}
	if status["total_requests"] != float64(12) {
		t.Errorf("Expected 12 total requests, got %v", status["total_requests"])
	}
	recent := status["recent_requests"].([]any)
	if len(recent) != 10 {
		t.Errorf("Expected 10 recent requests, got %d", len(recent))
	}
	if first := recent[0].(map[string]any); first["id"] != "req_00012" {
		t.Errorf("Expected newest first, got %v", first["id"])
	}

	history := decodeJSON(t, env.do(http.MethodGet, "/_history?limit=3", "", "", nil))
	if history["total"] != float64(12) || history["returned"] != float64(3) {
		t.Errorf("Expected total 12 returned 3, got %v/%v", history["total"], history["returned"])
	}
	entry := history["requests"].([]any)[0].(map[string]any)
	if entry["id"] != "req_00012" {
		t.Errorf("Expected newest entry 'req_00012', got %v", entry["id"])
	}
	if v, ok := entry["parser_type"]; !ok || v != nil {
		t.Errorf("Expected null parser_type, got %v (present=%v)", v, ok)
	}

	all := decodeJSON(t, env.do(http.MethodGet, "/_history?limit=0", "", "", nil))
	if all["returned"] != float64(12) {
		t.Errorf("Expected limit=0 to return all 12, got %v", all["returned"])
	}
}

func TestServer_ClearHistory(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do(http.MethodPost, "/a", "", "", nil)
	env.do(http.MethodPost, "/b", "", "", nil)

	resp := decodeJSON(t, env.do(http.MethodDelete, "/_history", "", "", nil))
	if resp["status"] != "cleared" || resp["count"] != float64(2) {
		t.Errorf("Expected cleared count 2, got %v", resp)
	}

	resp = decodeJSON(t, env.do(http.MethodPost, "/c", "", "", nil))
	if resp["id"] != "req_00001" {
		t.Errorf("Expected counter reset after clear, got %v", resp["id"])
	}
}

func TestServer_Export(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do(http.MethodPost, "/a", "application/json", `{"x":1}`, nil)

	rec := env.do(http.MethodGet, "/_export", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}
	doc := decodeJSON(t, rec)
	if doc["total_requests"] != float64(1) {
		t.Errorf("Expected 1 exported request, got %v", doc["total_requests"])
	}
}

func TestServer_SaveSnapshot(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if rec := env.do(http.MethodPost, "/_snapshot", "", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without save path, got %d", rec.Code)
	}

	path := filepath.Join(t.TempDir(), "history.json")
	env = newTestEnv(t, envOptions{savePath: path})
	env.do(http.MethodPost, "/a", "", "hello", nil)

	rec := env.do(http.MethodPost, "/_snapshot", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected snapshot file to exist: %v", err)
	}

	env = newTestEnv(t, envOptions{savePath: filepath.Join(t.TempDir(), "missing", "history.json")})
	rec = env.do(http.MethodPost, "/_snapshot", "", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 on write failure, got %d", rec.Code)
	}
	if resp := decodeJSON(t, rec); resp["error"] == "" {
		t.Error("Expected error text in response")
	}
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, envOptions{rps: 0.001, burst: 1})

	if rec := env.do(http.MethodPost, "/a", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/a", "", "", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rec.Code)
	}
	// admin routes are not limited
	if rec := env.do(http.MethodGet, "/_history", "", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected history to stay available, got %d", rec.Code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do(http.MethodPost, "/a", "", "", map[string]string{"Stripe-Signature": "t=1"})

	if rec := env.do(http.MethodGet, "/health", "", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", rec.Code)
	}

	rec := env.do(http.MethodGet, "/metrics", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected metrics 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `webhookrecv_requests_total{method="POST",provider="none"} 1`) {
		t.Errorf("Expected request counter in metrics, got:\n%s", rec.Body.String())
	}
}

func TestServer_Stream(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/_stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.server.Handler().ServeHTTP(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for env.feed.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for stream subscriber")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.feed.Publish(realtime.Event{ID: "req_00042", Method: "POST", Path: "/hook"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"id":"req_00042"`) {
		t.Errorf("Expected event in stream, got:\n%s", rec.Body.String())
	}
	if env.feed.SubscriberCount() != 0 {
		t.Errorf("Expected subscriber removed after disconnect, got %d", env.feed.SubscriberCount())
	}
}
