// Package posthog translates Segment events into PostHog capture calls.
//
// Each handler reshapes one event kind and hands the result to
// Destination.Capture, which performs exactly one POST to the PostHog
// capture endpoint and returns the decoded response. Nothing is retried,
// batched or persisted.
package posthog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// DefaultInstance is used when Settings.Instance is empty.
const DefaultInstance = "https://app.posthog.com"

// Lib is reported as the $lib property on every capture.
const Lib = "Segment"

// Settings identifies the PostHog project events are sent to.
type Settings struct {
	APIKey   string `json:"api_key" validate:"required"`
	Instance string `json:"instance,omitempty" validate:"omitempty,url"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the settings can address a PostHog project.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("posthog: invalid settings: %w", err)
	}
	return nil
}

// BaseURL returns the configured instance or DefaultInstance.
func (s Settings) BaseURL() string {
	if s.Instance != "" {
		return strings.TrimRight(s.Instance, "/")
	}
	return DefaultInstance
}

// Message is a capture request before normalization.
type Message struct {
	Event      string
	Timestamp  string
	DistinctID string
	Properties map[string]any
	Context    map[string]any
}

// Payload is the JSON body of a capture request.
type Payload struct {
	Timestamp  string         `json:"timestamp,omitempty"`
	Event      string         `json:"event"`
	APIKey     string         `json:"api_key"`
	Properties map[string]any `json:"properties"`
}

// Response is PostHog's reply to a capture request.
type Response struct {
	StatusCode int `json:"status_code"`
	Body       any `json:"body"`
}

// Destination sends captures to PostHog. It holds no per-event state and
// is safe for concurrent use.
type Destination struct {
	client  *http.Client
	sniffer UserAgentSniffer
	logger  *slog.Logger
}

// Option configures a Destination.
type Option func(*Destination)

// WithHTTPClient sets the client used for capture requests.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Destination) { d.client = c }
}

// WithSniffer enables $browser detection from context.userAgent.
func WithSniffer(s UserAgentSniffer) Option {
	return func(d *Destination) { d.sniffer = s }
}

// WithLogger sets the logger for capture diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Destination) { d.logger = l }
}

// New creates a Destination. Without options it uses http.DefaultClient,
// no browser detection and slog.Default.
func New(opts ...Option) *Destination {
	d := &Destination{
		client: http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Endpoint returns the capture URL for a message timestamp.
func Endpoint(s Settings, timestamp string) string {
	u := s.BaseURL() + "/capture/"
	if timestamp == "" {
		return u
	}
	return u + "?" + url.Values{"ts": {timestamp}}.Encode()
}

// BuildPayload assembles the capture body for msg. Event properties
// override normalized context properties; distinct_id and $lib are always
// set last. msg is not modified.
func (d *Destination) BuildPayload(msg Message, s Settings) Payload {
	props := maps.Clone(msg.Properties)
	if props == nil {
		props = make(map[string]any)
	}

	if v, ok := props["url"]; ok {
		props["$current_url"] = v
		delete(props, "url")
	}
	if v, ok := props["browser"]; ok {
		props["$browser"] = v
		delete(props, "browser")
	} else if d.sniffer != nil {
		if ua, ok := msg.Context["userAgent"].(string); ok && ua != "" {
			if name := d.sniffer.Browser(ua, vendorFromUserAgent(ua), false); name != "" {
				props["$browser"] = name
			}
		}
	}
	if v, ok := props["utm_name"]; ok {
		if _, set := props["utm_campaign"]; !set {
			props["utm_campaign"] = v
		}
	}

	merged := NormalizeContext(msg.Context)
	maps.Copy(merged, props)
	if msg.DistinctID != "" {
		merged["distinct_id"] = msg.DistinctID
	} else {
		merged["distinct_id"] = nil
	}
	merged["$lib"] = Lib

	return Payload{
		Timestamp:  msg.Timestamp,
		Event:      msg.Event,
		APIKey:     s.APIKey,
		Properties: merged,
	}
}

// Capture sends msg to the PostHog capture endpoint and returns the decoded
// response whatever its status code. Transport and decode failures are
// returned as errors.
func (d *Destination) Capture(ctx context.Context, msg Message, s Settings) (*Response, error) {
	payload := d.BuildPayload(msg, s)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("posthog: marshal payload: %w", err)
	}

	endpoint := Endpoint(s, msg.Timestamp)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("posthog: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posthog: send capture: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("posthog: read response: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("posthog: decode response (status %d): %w", resp.StatusCode, err)
	}

	d.logger.Debug("posthog capture sent",
		"event", msg.Event,
		"endpoint", endpoint,
		"status", resp.StatusCode,
	)
	return &Response{StatusCode: resp.StatusCode, Body: decoded}, nil
}

// vendorFromUserAgent approximates navigator.vendor, which servers never
// see. Safari and iOS WebKit builds report Apple.
func vendorFromUserAgent(ua string) string {
	if !strings.Contains(ua, "AppleWebKit") || strings.Contains(ua, "Android") {
		return ""
	}
	if strings.Contains(ua, "Safari/") || strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") {
		return "Apple Computer, Inc."
	}
	return ""
}
