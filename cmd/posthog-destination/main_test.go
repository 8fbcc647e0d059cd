package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wondertwin-ai/posthog-destination/internal/config"
	"github.com/wondertwin-ai/posthog-destination/internal/logging"
	"github.com/wondertwin-ai/posthog-destination/internal/segment"
)

// ---------------------------------------------------------------------------
// parseArgs
// ---------------------------------------------------------------------------

func TestParseArgs(t *testing.T) {
	cmd, args, opts, err := parseArgs([]string{"send", "--config", "dest.yaml", "events.yaml", "--verbose"})
	if err != nil {
		t.Fatalf("parseArgs() error: %v", err)
	}
	if cmd != "send" {
		t.Errorf("expected send, got %q", cmd)
	}
	if len(args) != 1 || args[0] != "events.yaml" {
		t.Errorf("unexpected args: %v", args)
	}
	if opts.configPath != "dest.yaml" || !opts.verbose {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestParseArgsPort(t *testing.T) {
	_, _, opts, err := parseArgs([]string{"sink", "-port", "9999"})
	if err != nil {
		t.Fatalf("parseArgs() error: %v", err)
	}
	if opts.port != 9999 {
		t.Errorf("expected port 9999, got %d", opts.port)
	}
}

func TestParseArgsErrors(t *testing.T) {
	for _, raw := range [][]string{
		{"serve", "--port"},
		{"serve", "--port", "abc"},
		{"serve", "--config"},
	} {
		if _, _, _, err := parseArgs(raw); err == nil {
			t.Errorf("parseArgs(%v): expected error", raw)
		}
	}
}

func TestParseArgsEmpty(t *testing.T) {
	cmd, args, _, err := parseArgs(nil)
	if err != nil || cmd != "" || args != nil {
		t.Errorf("expected empty result, got %q %v %v", cmd, args, err)
	}
}

// ---------------------------------------------------------------------------
// loadConfig
// ---------------------------------------------------------------------------

func TestLoadConfigVerboseEnablesDebugLogging(t *testing.T) {
	t.Setenv(config.PathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("POSTHOG_DESTINATION_POSTHOG__API_KEY", "phc_test")
	t.Cleanup(func() { logging.Init(logging.Config{}) })

	tests := []struct {
		name      string
		level     string
		verbose   bool
		wantDebug bool
	}{
		{"default level", "", false, false},
		{"verbose flag", "", true, true},
		{"verbose over warn", "warn", true, true},
		{"verbose keeps trace", "trace", true, true},
		{"debug without verbose", "debug", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.level != "" {
				t.Setenv("POSTHOG_DESTINATION_LOGGING__LEVEL", tt.level)
			}
			cfg, err := loadConfig(options{verbose: tt.verbose})
			if err != nil {
				t.Fatalf("loadConfig() error: %v", err)
			}
			if cfg.Server.Verbose != tt.verbose {
				t.Errorf("expected server.verbose=%v, got %v", tt.verbose, cfg.Server.Verbose)
			}
			got := logging.NewSlogLogger().Enabled(context.Background(), slog.LevelDebug)
			if got != tt.wantDebug {
				t.Errorf("expected debug enabled=%v, got %v", tt.wantDebug, got)
			}
		})
	}
}

func TestLogLevelKeepsFinerLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Verbose = true
	cfg.Logging.Level = "trace"
	if got := logLevel(cfg); got != "trace" {
		t.Errorf("expected trace kept, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// parseEvents
// ---------------------------------------------------------------------------

func TestParseEventsYAMLList(t *testing.T) {
	input := `
- type: track
  userId: user-1
  event: Signed Up
  timestamp: 2015-02-23T22:28:55.111Z
  properties:
    plan: pro
    seats: 3
- type: identify
  anonymousId: anon-1
  traits:
    email: a@example.com
`
	events, err := parseEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseEvents() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	track, ok := events[0].(*segment.Track)
	if !ok {
		t.Fatalf("expected *segment.Track, got %T", events[0])
	}
	if track.Event != "Signed Up" || track.UserID != "user-1" {
		t.Errorf("unexpected track: %+v", track)
	}
	if track.Timestamp != "2015-02-23T22:28:55.111Z" {
		t.Errorf("expected timestamp kept as string, got %q", track.Timestamp)
	}
	if track.Properties["plan"] != "pro" {
		t.Errorf("unexpected properties: %v", track.Properties)
	}

	identify, ok := events[1].(*segment.Identify)
	if !ok {
		t.Fatalf("expected *segment.Identify, got %T", events[1])
	}
	if identify.AnonymousID != "anon-1" || identify.Traits["email"] != "a@example.com" {
		t.Errorf("unexpected identify: %+v", identify)
	}
}

func TestParseEventsJSONObject(t *testing.T) {
	input := `{"type": "alias", "userId": "new", "previousId": "old"}`
	events, err := parseEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseEvents() error: %v", err)
	}
	alias, ok := events[0].(*segment.Alias)
	if !ok || alias.PreviousID != "old" {
		t.Errorf("unexpected event: %#v", events[0])
	}
}

func TestParseEventsMultiDocument(t *testing.T) {
	input := "type: page\nuserId: u1\n---\ntype: screen\nuserId: u1\nname: Home\n"
	events, err := parseEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseEvents() error: %v", err)
	}
	if len(events) != 2 || events[1].Type() != segment.TypeScreen {
		t.Errorf("unexpected events: %v", events)
	}
}

func TestParseEventsUnknownType(t *testing.T) {
	_, err := parseEvents(strings.NewReader("- type: flush\n"))
	if !errors.Is(err, segment.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestParseEventsInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"scalar":     "hello",
		"list items": "- 1\n- 2\n",
		"malformed":  "- type: [track\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseEvents(strings.NewReader(input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
