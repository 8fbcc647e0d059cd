package posthog

import (
	"regexp"
	"strings"
)

// UserAgentSniffer derives a browser name from a user agent. An empty
// result means the browser is unknown.
type UserAgentSniffer interface {
	Browser(userAgent, vendor string, opera bool) string
}

// SnifferFunc adapts a plain function to UserAgentSniffer.
type SnifferFunc func(userAgent, vendor string, opera bool) string

// Browser calls f.
func (f SnifferFunc) Browser(userAgent, vendor string, opera bool) string {
	return f(userAgent, vendor, opera)
}

var blackberryRe = regexp.MustCompile(`(?i)(BlackBerry|PlayBook|BB10)`)

// DefaultSniffer matches the user agent against an ordered list of
// substring tests. More specific browsers are checked before the engines
// they embed.
type DefaultSniffer struct{}

// Browser implements UserAgentSniffer.
func (DefaultSniffer) Browser(ua, vendor string, opera bool) string {
	has := func(s string) bool { return strings.Contains(ua, s) }

	switch {
	case opera || has(" OPR/"):
		if has("Mini") {
			return "Opera Mini"
		}
		return "Opera"
	case blackberryRe.MatchString(ua):
		return "BlackBerry"
	case has("IEMobile") || has("WPDesktop"):
		return "Internet Explorer Mobile"
	case has("SamsungBrowser/"):
		return "Samsung Internet"
	case has("Edge") || has("Edg/"):
		return "Microsoft Edge"
	case has("FBIOS"):
		return "Facebook Mobile"
	case has("Chrome"):
		return "Chrome"
	case has("CriOS"):
		return "Chrome iOS"
	case has("UCWEB") || has("UCBrowser"):
		return "UC Browser"
	case has("FxiOS"):
		return "Firefox iOS"
	case strings.Contains(vendor, "Apple"):
		if has("Mobile") {
			return "Mobile Safari"
		}
		return "Safari"
	case has("Android"):
		return "Android Mobile"
	case has("Konqueror"):
		return "Konqueror"
	case has("Firefox"):
		return "Firefox"
	case has("MSIE") || has("Trident/"):
		return "Internet Explorer"
	case has("Gecko"):
		return "Mozilla"
	}
	return ""
}
