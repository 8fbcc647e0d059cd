package posthog

import "strings"

// ResidualPrefix is prepended to every context key retained verbatim.
const ResidualPrefix = "segment_"

// GroupType is the PostHog group type Segment groups are filed under.
const GroupType = "segment_group"

// contextMapping maps dotted Segment context paths to PostHog properties.
var contextMapping = []struct {
	path string
	key  string
}{
	{"ip", "$ip"},
	{"page.url", "$current_url"},
	{"page.path", "$pathname"},
	{"os.name", "$os"},
	{"page.referrer", "$referrer"},
	{"screen.width", "$screen_width"},
	{"screen.height", "$screen_height"},
	{"device.type", "$device_type"},
}

// NormalizeContext flattens a Segment context into PostHog properties.
//
// Campaign entries become utm_<key> (name also yields utm_campaign), a
// groupId becomes $groups, well-known paths are mapped to their PostHog
// names, and every other top-level key except campaign is kept under
// ResidualPrefix. The input is not modified.
func NormalizeContext(ctx map[string]any) map[string]any {
	out := make(map[string]any)
	if len(ctx) == 0 {
		return out
	}

	if campaign, ok := ctx["campaign"].(map[string]any); ok {
		for k, v := range campaign {
			out["utm_"+k] = v
		}
		if name, ok := campaign["name"]; ok {
			if _, explicit := campaign["campaign"]; !explicit {
				out["utm_campaign"] = name
			}
		}
	}

	if groupID, ok := ctx["groupId"]; ok && groupID != nil {
		out["$groups"] = map[string]any{GroupType: groupID}
	}

	for _, m := range contextMapping {
		if v, ok := lookup(ctx, m.path); ok {
			out[m.key] = v
		}
	}

	for k, v := range ctx {
		if k == "campaign" {
			continue
		}
		out[ResidualPrefix+k] = v
	}
	return out
}

// lookup resolves a dotted path through nested maps.
func lookup(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
