// Package segment defines the Segment tracking events accepted by the
// destination. The six event kinds form a closed set: Event can only be
// implemented by the types in this package.
package segment

// Type names a Segment event kind as it appears in the "type" field.
type Type string

// Segment event kinds.
const (
	TypeTrack    Type = "track"
	TypeIdentify Type = "identify"
	TypeGroup    Type = "group"
	TypePage     Type = "page"
	TypeAlias    Type = "alias"
	TypeScreen   Type = "screen"
)

// Types lists every supported kind.
var Types = []Type{TypeTrack, TypeIdentify, TypeGroup, TypePage, TypeAlias, TypeScreen}

// Event is one of *Track, *Identify, *Group, *Page, *Alias or *Screen.
type Event interface {
	Type() Type
	Base() *Common

	sealed()
}

// Common holds the fields shared by every event kind.
type Common struct {
	MessageID   string         `json:"messageId,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	AnonymousID string         `json:"anonymousId,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// Base returns the shared fields.
func (c *Common) Base() *Common { return c }

func (c *Common) sealed() {}

// DistinctID returns the user ID, falling back to the anonymous ID.
func (c *Common) DistinctID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.AnonymousID
}

// Track records an action the user performed.
type Track struct {
	Common
	Event string `json:"event"`
}

// Identify ties a user to their traits.
type Identify struct {
	Common
	Traits map[string]any `json:"traits,omitempty"`
}

// Group associates a user with a group (company, account, ...).
type Group struct {
	Common
	GroupID string         `json:"groupId"`
	Traits  map[string]any `json:"traits,omitempty"`
}

// Page records a web page view.
type Page struct {
	Common
	Name string `json:"name,omitempty"`
}

// Alias merges a previous identity into the current user.
type Alias struct {
	Common
	PreviousID string `json:"previousId"`
}

// Screen records a mobile screen view.
type Screen struct {
	Common
	Name string `json:"name,omitempty"`
}

func (*Track) Type() Type    { return TypeTrack }
func (*Identify) Type() Type { return TypeIdentify }
func (*Group) Type() Type    { return TypeGroup }
func (*Page) Type() Type     { return TypePage }
func (*Alias) Type() Type    { return TypeAlias }
func (*Screen) Type() Type   { return TypeScreen }
