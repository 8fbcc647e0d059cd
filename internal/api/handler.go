// Package api exposes the destination over HTTP: Segment events are posted
// in, forwarded to PostHog, and PostHog's reply is relayed back.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/posthog-destination/internal/metrics"
	"github.com/wondertwin-ai/posthog-destination/internal/posthog"
	"github.com/wondertwin-ai/posthog-destination/internal/segment"
	"github.com/wondertwin-ai/posthog-destination/internal/server"
)

// APIKeyHeader overrides the configured project key for one request.
const APIKeyHeader = "X-PostHog-Api-Key"

// maxBodyBytes bounds an inbound event body.
const maxBodyBytes = 1 << 20

// Handler holds the destination and the default project settings.
type Handler struct {
	dest             *posthog.Destination
	settings         posthog.Settings
	allowKeyOverride bool
	logger           *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(dest *posthog.Destination, settings posthog.Settings, allowKeyOverride bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dest:             dest,
		settings:         settings,
		allowKeyOverride: allowKeyOverride,
		logger:           logger,
	}
}

// Routes mounts one endpoint per event kind plus /v1/event, which reads
// the kind from the body.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		for _, t := range segment.Types {
			r.Post("/"+string(t), h.typed(t))
		}
		r.Post("/event", h.Event)
	})
}

func (h *Handler) typed(t segment.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := readBody(w, r)
		if !ok {
			return
		}
		evt, err := segment.DecodeAs(t, data)
		if err != nil {
			h.decodeError(w, r, err)
			return
		}
		h.forward(w, r, evt)
	}
}

// Event handles POST /v1/event.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	evt, err := segment.Decode(data)
	if err != nil {
		h.decodeError(w, r, err)
		return
	}
	h.forward(w, r, evt)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, evt segment.Event) {
	eventType := string(evt.Type())
	metrics.EventsReceived.WithLabelValues(eventType).Inc()

	settings := h.settingsFor(r)
	if err := settings.Validate(); err != nil {
		metrics.RecordCapture(eventType, metrics.OutcomeInvalid, 0)
		server.Error(w, http.StatusBadRequest, "invalid_settings", err.Error())
		return
	}

	start := time.Now()
	resp, err := h.dest.Handle(r.Context(), evt, settings)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, posthog.ErrInvalidEventPayload):
		metrics.RecordCapture(eventType, metrics.OutcomeInvalid, elapsed)
		server.Error(w, http.StatusBadRequest, "invalid_event_payload", err.Error())
		return
	case errors.Is(err, posthog.ErrEventNotSupported):
		metrics.RecordCapture(eventType, metrics.OutcomeInvalid, elapsed)
		server.Error(w, http.StatusNotImplemented, "event_not_supported", err.Error())
		return
	case err != nil:
		metrics.RecordCapture(eventType, metrics.OutcomeFailed, elapsed)
		h.logger.Warn("posthog capture failed",
			"type", eventType,
			"request_id", server.RequestIDFromContext(r.Context()),
			"error", err,
		)
		server.Error(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	outcome := metrics.OutcomeSent
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = metrics.OutcomeRejected
		h.logger.Info("posthog rejected capture",
			"type", eventType,
			"status", resp.StatusCode,
			"request_id", server.RequestIDFromContext(r.Context()),
		)
	}
	metrics.RecordCapture(eventType, outcome, elapsed)
	server.JSON(w, resp.StatusCode, resp.Body)
}

func (h *Handler) settingsFor(r *http.Request) posthog.Settings {
	s := h.settings
	if h.allowKeyOverride {
		if key := r.Header.Get(APIKeyHeader); key != "" {
			s.APIKey = key
		}
	}
	return s
}

func (h *Handler) decodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, segment.ErrUnknownType) {
		server.Error(w, http.StatusNotImplemented, "event_not_supported", err.Error())
		return
	}
	h.logger.Debug("rejecting malformed event",
		"path", r.URL.Path,
		"error", err,
	)
	server.Error(w, http.StatusBadRequest, "invalid_event_payload", err.Error())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.Error(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
			return nil, false
		}
		server.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return nil, false
	}
	return data, true
}
