package posthog

import (
	"context"
	"fmt"
	"maps"

	"github.com/wondertwin-ai/posthog-destination/internal/segment"
)

// PostHog event names.
const (
	EventIdentify      = "$identify"
	EventSet           = "$set"
	EventGroupIdentify = "$groupidentify"
	EventPageview      = "$pageview"
	EventCreateAlias   = "$create_alias"
	EventScreen        = "$screen"
)

// Handle forwards evt using the handler for its kind.
func (d *Destination) Handle(ctx context.Context, evt segment.Event, s Settings) (*Response, error) {
	switch e := evt.(type) {
	case *segment.Track:
		return d.OnTrack(ctx, e, s)
	case *segment.Identify:
		return d.OnIdentify(ctx, e, s)
	case *segment.Group:
		return d.OnGroup(ctx, e, s)
	case *segment.Page:
		return d.OnPage(ctx, e, s)
	case *segment.Alias:
		return d.OnAlias(ctx, e, s)
	case *segment.Screen:
		return d.OnScreen(ctx, e, s)
	}
	return nil, fmt.Errorf("%w: %T", ErrEventNotSupported, evt)
}

// OnTrack forwards a track event under its own name.
func (d *Destination) OnTrack(ctx context.Context, e *segment.Track, s Settings) (*Response, error) {
	return d.Capture(ctx, message(&e.Common, e.Event, e.Properties), s)
}

// OnIdentify forwards traits as $set. Identified users are sent as
// $identify linked to their anonymous ID; anonymous-only users fall back to
// a plain $set on the anonymous ID.
func (d *Destination) OnIdentify(ctx context.Context, e *segment.Identify, s Settings) (*Response, error) {
	props := maps.Clone(e.Properties)
	if props == nil {
		props = make(map[string]any)
	}
	if e.Traits != nil {
		props["$set"] = e.Traits
	}

	name := EventSet
	if e.UserID != "" {
		name = EventIdentify
		props["$anon_distinct_id"] = e.AnonymousID
	}
	return d.Capture(ctx, message(&e.Common, name, props), s)
}

// OnGroup forwards a group as $groupidentify. Event properties are replaced
// by the group descriptor.
func (d *Destination) OnGroup(ctx context.Context, e *segment.Group, s Settings) (*Response, error) {
	if e.GroupID == "" {
		return nil, fmt.Errorf("%w: groupId is required for group events", ErrInvalidEventPayload)
	}
	props := map[string]any{
		"$group_type": GroupType,
		"$group_key":  e.GroupID,
		"$group_set":  e.Traits,
	}
	return d.Capture(ctx, message(&e.Common, EventGroupIdentify, props), s)
}

// OnPage forwards a page view with its properties unchanged.
func (d *Destination) OnPage(ctx context.Context, e *segment.Page, s Settings) (*Response, error) {
	return d.Capture(ctx, message(&e.Common, EventPageview, e.Properties), s)
}

// OnAlias forwards $create_alias. The distinct_id is always the new user
// ID, never the anonymous ID.
func (d *Destination) OnAlias(ctx context.Context, e *segment.Alias, s Settings) (*Response, error) {
	msg := message(&e.Common, EventCreateAlias, map[string]any{
		"alias":       e.PreviousID,
		"distinct_id": e.UserID,
	})
	msg.DistinctID = e.UserID
	return d.Capture(ctx, msg, s)
}

// OnScreen forwards a screen view with $screen_name merged into its
// properties.
func (d *Destination) OnScreen(ctx context.Context, e *segment.Screen, s Settings) (*Response, error) {
	props := maps.Clone(e.Properties)
	if props == nil {
		props = make(map[string]any)
	}
	props["$screen_name"] = e.Name
	return d.Capture(ctx, message(&e.Common, EventScreen, props), s)
}

func message(c *segment.Common, event string, props map[string]any) Message {
	return Message{
		Event:      event,
		Timestamp:  c.Timestamp,
		DistinctID: c.DistinctID(),
		Properties: props,
		Context:    c.Context,
	}
}
