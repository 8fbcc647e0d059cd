package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/posthog-destination/internal/segment"
)

// sendResult is printed for every event forwarded by the send command.
type sendResult struct {
	Index      int    `json:"index"`
	Type       string `json:"type,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       any    `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

func cmdSend(opts options, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: posthog-destination send <file>")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := parseEvents(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dest := newDestination(cfg)
	settings := cfg.Settings()
	enc := json.NewEncoder(os.Stdout)

	failed := 0
	for i, evt := range events {
		res := sendResult{Index: i, Type: string(evt.Type())}
		resp, err := dest.Handle(ctx, evt, settings)
		if err != nil {
			res.Error = err.Error()
			failed++
		} else {
			res.StatusCode = resp.StatusCode
			res.Body = resp.Body
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				failed++
			}
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d events failed", failed, len(events))
	}
	return nil
}

// parseEvents reads Segment events from YAML or JSON. Each document may be
// a single event or a list of events.
func parseEvents(r io.Reader) ([]segment.Event, error) {
	dec := yaml.NewDecoder(r)
	var events []segment.Event

	for doc := 0; ; doc++ {
		var raw any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing document %d: %w", doc, err)
		}

		var items []any
		switch v := raw.(type) {
		case nil:
			continue
		case []any:
			items = v
		case map[string]any:
			items = []any{v}
		default:
			return nil, fmt.Errorf("document %d: expected an event or a list of events", doc)
		}

		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("document %d, item %d: expected a mapping", doc, i)
			}
			evt, err := segment.FromMap(m)
			if err != nil {
				return nil, fmt.Errorf("document %d, item %d: %w", doc, i, err)
			}
			events = append(events, evt)
		}
	}

	if len(events) == 0 {
		return nil, errors.New("no events found")
	}
	return events, nil
}
