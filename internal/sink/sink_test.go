package sink_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/wondertwin-ai/posthog-destination/internal/server"
	"github.com/wondertwin-ai/posthog-destination/internal/sink"
	"github.com/wondertwin-ai/posthog-destination/pkg/testutil"
)

func setupSink(t *testing.T) (*sink.Store, *testutil.Client) {
	t.Helper()
	s := server.New(&server.Config{Name: "sink-test"}, nil)
	store := sink.NewStore()
	sink.NewHandler(store, s.Middleware()).Routes(s.Router)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return store, testutil.NewClient(t, srv)
}

// --- Capture ---

func TestCaptureRecordsEvent(t *testing.T) {
	store, c := setupSink(t)

	resp := c.Post("/capture/?ts=2015-02-23T22%3A28%3A55.111Z", map[string]any{
		"api_key":   "phc_test",
		"event":     "Loaded a Page",
		"timestamp": "2015-02-23T22:28:55.111Z",
		"properties": map[string]any{
			"distinct_id":  "user-id",
			"$current_url": "https://segment.com/academy/",
		},
	})
	resp.AssertStatus(http.StatusOK)
	if resp.JSONMap()["status"] != float64(1) {
		t.Errorf("expected status=1, got %v", resp.JSONMap()["status"])
	}

	if store.Count() != 1 {
		t.Fatalf("expected 1 stored event, got %d", store.Count())
	}
	evt := store.List()[0]
	if evt.UUID != "evt_000001" {
		t.Errorf("expected evt_000001, got %s", evt.UUID)
	}
	if evt.DistinctID != "user-id" {
		t.Errorf("expected distinct_id from properties, got %q", evt.DistinctID)
	}
	if evt.TS != "2015-02-23T22:28:55.111Z" {
		t.Errorf("expected ts query recorded, got %q", evt.TS)
	}
	if evt.Timestamp != "2015-02-23T22:28:55.111Z" || evt.APIKey != "phc_test" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestCaptureDefaultsTimestamp(t *testing.T) {
	store, c := setupSink(t)

	c.Post("/capture", map[string]any{"api_key": "k", "event": "e"}).AssertStatus(http.StatusOK)

	evt := store.List()[0]
	if evt.Timestamp == "" {
		t.Error("expected server-assigned timestamp")
	}
	if evt.TS != "" {
		t.Errorf("expected empty ts, got %q", evt.TS)
	}
}

func TestCaptureAPIKeyFromHeader(t *testing.T) {
	store, c := setupSink(t)

	c.DoWithHeaders(http.MethodPost, "/capture", map[string]any{"event": "e"},
		map[string]string{"X-PostHog-Api-Key": "phc_header"}).AssertStatus(http.StatusOK)

	if got := store.List()[0].APIKey; got != "phc_header" {
		t.Errorf("expected header key, got %q", got)
	}
}

func TestCaptureMissingAPIKey(t *testing.T) {
	store, c := setupSink(t)

	c.Post("/capture", map[string]any{"event": "e"}).
		AssertStatus(http.StatusUnauthorized).
		AssertBodyContains("invalid_api_key")
	if store.Count() != 0 {
		t.Error("expected nothing stored")
	}
}

func TestCaptureMissingEvent(t *testing.T) {
	_, c := setupSink(t)

	c.Post("/capture", map[string]any{"api_key": "k"}).
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("event field is required")
}

func TestCaptureMalformedBody(t *testing.T) {
	_, c := setupSink(t)

	c.Post("/capture", "{not json").
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("Invalid request body")
}

// --- Batch ---

func TestBatchCapture(t *testing.T) {
	store, c := setupSink(t)

	c.Post("/batch", map[string]any{
		"api_key": "phc_batch",
		"batch": []map[string]any{
			{"event": "a", "distinct_id": "u1"},
			{"event": "b", "distinct_id": "u2", "api_key": "phc_own"},
		},
	}).AssertStatus(http.StatusOK)

	events := store.List()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].APIKey != "phc_batch" || events[1].APIKey != "phc_own" {
		t.Errorf("unexpected api keys: %q, %q", events[0].APIKey, events[1].APIKey)
	}
}

// --- Admin ---

func TestAdminListEventsFilters(t *testing.T) {
	_, c := setupSink(t)

	for _, e := range []map[string]any{
		{"api_key": "k", "event": "$pageview", "properties": map[string]any{"distinct_id": "u1"}},
		{"api_key": "k", "event": "$pageview", "properties": map[string]any{"distinct_id": "u2"}},
		{"api_key": "k", "event": "$identify", "properties": map[string]any{"distinct_id": "u1"}},
	} {
		c.Post("/capture", e).AssertStatus(http.StatusOK)
	}

	if got := len(c.Events("")); got != 3 {
		t.Errorf("expected 3 events, got %d", got)
	}
	if got := len(c.Events("event=$pageview")); got != 2 {
		t.Errorf("expected 2 pageviews, got %d", got)
	}
	if got := len(c.Events("event=$pageview&distinct_id=u1")); got != 1 {
		t.Errorf("expected 1 filtered event, got %d", got)
	}
	if got := len(c.Events("distinct_id=nobody")); got != 0 {
		t.Errorf("expected no events, got %d", got)
	}
}

func TestAdminReset(t *testing.T) {
	store, c := setupSink(t)

	c.Post("/capture", map[string]any{"api_key": "k", "event": "e"}).AssertStatus(http.StatusOK)
	c.Post("/admin/reset", nil).AssertStatus(http.StatusOK)

	if store.Count() != 0 {
		t.Errorf("expected empty store, got %d", store.Count())
	}
	if id := store.NextID(); id != "evt_000001" {
		t.Errorf("expected counter reset, got %s", id)
	}

	// The reset request is logged once it completes; the capture before it
	// is gone.
	var log struct {
		Requests []server.RequestLogEntry `json:"requests"`
	}
	c.Get("/admin/requests").AssertStatus(http.StatusOK).JSON(&log)
	if len(log.Requests) != 1 || log.Requests[0].Path != "/admin/reset" {
		t.Errorf("expected only the reset request in the log, got %+v", log.Requests)
	}
}

func TestHealth(t *testing.T) {
	_, c := setupSink(t)
	c.Get("/admin/health").AssertStatus(http.StatusOK).AssertBodyContains("ok")
}

// --- Store ---

func TestStoreConcurrentAdd(t *testing.T) {
	store := sink.NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Add(sink.CapturedEvent{UUID: store.NextID(), Event: "e"})
		}()
	}
	wg.Wait()

	if store.Count() != 50 {
		t.Errorf("expected 50 events, got %d", store.Count())
	}
	seen := map[string]bool{}
	for _, evt := range store.List() {
		if seen[evt.UUID] {
			t.Fatalf("duplicate ID %s", evt.UUID)
		}
		seen[evt.UUID] = true
	}
}
