package posthog

import "errors"

var (
	// ErrInvalidEventPayload is returned when an event lacks a field its
	// PostHog mapping requires.
	ErrInvalidEventPayload = errors.New("invalid event payload")

	// ErrEventNotSupported is returned for event kinds the destination
	// refuses to forward.
	ErrEventNotSupported = errors.New("event not supported")
)
