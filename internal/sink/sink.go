// Package sink implements an in-memory PostHog capture API. It records every
// event it receives and exposes them on admin endpoints, so the destination
// can be exercised end to end without a real PostHog project.
package sink

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/wondertwin-ai/posthog-destination/internal/server"
)

// captureRequest is a PostHog capture request body.
type captureRequest struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

// batchRequest is a PostHog batch capture request body.
type batchRequest struct {
	APIKey string           `json:"api_key"`
	Batch  []captureRequest `json:"batch"`
}

// Handler serves the capture API backed by a Store.
type Handler struct {
	store *Store
	mw    *server.Middleware
	now   func() time.Time
}

// NewHandler creates a handler recording into s. The request log of mw is
// cleared together with the store on /admin/reset.
func NewHandler(s *Store, mw *server.Middleware) *Handler {
	return &Handler{store: s, mw: mw, now: time.Now}
}

// Routes mounts the capture API and its admin extras.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/capture", h.Capture)
	r.Post("/capture/", h.Capture)
	r.Post("/batch", h.Batch)
	r.Post("/batch/", h.Batch)

	r.Get("/admin/events", h.AdminListEvents)
	r.Post("/admin/reset", h.AdminReset)
}

// Capture handles POST /capture.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.JSON(w, http.StatusBadRequest, map[string]any{
			"status": 0,
			"error":  "Invalid request body: " + err.Error(),
		})
		return
	}

	if req.APIKey == "" {
		req.APIKey = apiKeyFromRequest(r)
	}
	if req.APIKey == "" {
		noKeyError(w)
		return
	}
	if req.Event == "" {
		server.JSON(w, http.StatusBadRequest, map[string]any{
			"status": 0,
			"error":  "event field is required",
		})
		return
	}

	h.storeEvent(req, r.URL.Query().Get("ts"))
	server.JSON(w, http.StatusOK, map[string]any{"status": 1})
}

// Batch handles POST /batch.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.JSON(w, http.StatusBadRequest, map[string]any{
			"status": 0,
			"error":  "Invalid request body: " + err.Error(),
		})
		return
	}
	if req.APIKey == "" {
		req.APIKey = apiKeyFromRequest(r)
	}
	if req.APIKey == "" {
		noKeyError(w)
		return
	}

	ts := r.URL.Query().Get("ts")
	for _, event := range req.Batch {
		if event.APIKey == "" {
			event.APIKey = req.APIKey
		}
		h.storeEvent(event, ts)
	}
	server.JSON(w, http.StatusOK, map[string]any{"status": 1})
}

func (h *Handler) storeEvent(req captureRequest, ts string) {
	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = h.now().UTC().Format(time.RFC3339)
	}

	// The capture body carries distinct_id inside properties.
	distinctID := req.DistinctID
	if id, ok := req.Properties["distinct_id"].(string); ok && distinctID == "" {
		distinctID = id
	}

	h.store.Add(CapturedEvent{
		UUID:       h.store.NextID(),
		APIKey:     req.APIKey,
		Event:      req.Event,
		DistinctID: distinctID,
		Properties: req.Properties,
		Timestamp:  timestamp,
		TS:         ts,
	})
}

// AdminListEvents handles GET /admin/events?event=&distinct_id=.
func (h *Handler) AdminListEvents(w http.ResponseWriter, r *http.Request) {
	eventFilter := r.URL.Query().Get("event")
	distinctIDFilter := r.URL.Query().Get("distinct_id")

	events := h.store.Filter(func(evt CapturedEvent) bool {
		if eventFilter != "" && evt.Event != eventFilter {
			return false
		}
		if distinctIDFilter != "" && evt.DistinctID != distinctIDFilter {
			return false
		}
		return true
	})

	server.JSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

// AdminReset handles POST /admin/reset.
func (h *Handler) AdminReset(w http.ResponseWriter, r *http.Request) {
	h.store.Reset()
	if h.mw != nil {
		h.mw.ReqLog.Clear()
	}
	server.JSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// apiKeyFromRequest extracts the api_key from a header or query param.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-PostHog-Api-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		return auth
	}
	return r.URL.Query().Get("api_key")
}

func noKeyError(w http.ResponseWriter) {
	server.JSON(w, http.StatusUnauthorized, map[string]any{
		"type":   "authentication_error",
		"code":   "invalid_api_key",
		"detail": "Project API key invalid. You can find your project API key in PostHog project settings.",
	})
}
