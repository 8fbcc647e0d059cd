package segment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrUnknownType is returned when an event's "type" is not a Segment kind.
var ErrUnknownType = errors.New("segment: unknown event type")

// ParseType normalizes s and checks it against the known kinds.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// New returns an empty event of kind t.
func New(t Type) (Event, error) {
	switch t {
	case TypeTrack:
		return &Track{}, nil
	case TypeIdentify:
		return &Identify{}, nil
	case TypeGroup:
		return &Group{}, nil
	case TypePage:
		return &Page{}, nil
	case TypeAlias:
		return &Alias{}, nil
	case TypeScreen:
		return &Screen{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

// Decode parses a JSON Segment event, selecting the kind from its "type" field.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("segment: decode event: %w", err)
	}
	t, err := ParseType(head.Type)
	if err != nil {
		return nil, err
	}
	return DecodeAs(t, data)
}

// DecodeAs parses data as an event of kind t, ignoring any "type" field.
func DecodeAs(t Type, data []byte) (Event, error) {
	evt, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("segment: decode %s event: %w", t, err)
	}
	return evt, nil
}

// FromMap converts a generic document (as produced by a YAML or JSON
// decoder) into an event.
func FromMap(m map[string]any) (Event, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("segment: encode event: %w", err)
	}
	return Decode(data)
}
