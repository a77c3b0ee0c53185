package walker

import (
	"net/url"
	"regexp"
	"strings"
)

// storyIDPattern pulls the platform story id out of a viewer location like
// https://www.instagram.com/stories/<username>/<id>/.
var storyIDPattern = regexp.MustCompile(`/stories/[^/]+/(\d+)`)

// StoryIDFromLocation extracts the story identifier from the current
// navigation location. An empty result means "no content", not an error.
func StoryIDFromLocation(location string) string {
	m := storyIDPattern.FindStringSubmatch(location)
	if m == nil {
		return ""
	}
	return m[1]
}

// Platform hosts whose links are viewer chrome, never sticker/swipe-up
// destinations.
var platformHosts = []string{"instagram.com", "facebook.com", "cdninstagram.com", "fbcdn.net"}

// exclusionRule is one predicate of the caption extraction policy. Rules
// are ordered and declared as data so they can be unit-tested against DOM
// fixtures without a live browser.
type exclusionRule struct {
	name   string
	reject func(text string) bool
}

var uiChrome = map[string]struct{}{
	"send message": {},
	"reply":        {},
	"close":        {},
	"menu":         {},
	"more":         {},
	"pause":        {},
	"play":         {},
	"mute":         {},
	"unmute":       {},
	"verified":     {},
	"sponsored":    {},
	"follow":       {},
}

var relativeTimePattern = regexp.MustCompile(`^\d+\s?(s|m|h|d|w)$`)

var captionExclusions = []exclusionRule{
	{"blank", func(t string) bool {
		return strings.TrimSpace(t) == ""
	}},
	{"viewer chrome", func(t string) bool {
		_, ok := uiChrome[strings.ToLower(strings.TrimSpace(t))]
		return ok
	}},
	{"relative timestamp", func(t string) bool {
		return relativeTimePattern.MatchString(strings.TrimSpace(t))
	}},
	{"bare url", func(t string) bool {
		t = strings.TrimSpace(t)
		return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") || strings.HasPrefix(t, "www.")
	}},
	{"single rune", func(t string) bool {
		return len([]rune(strings.TrimSpace(t))) < 2
	}},
}

// ExtractCaption picks the story caption out of the viewer's visible text
// nodes: the first node surviving every exclusion rule, skipping the target
// account's own name.
func ExtractCaption(texts []string, username string) string {
candidates:
	for _, t := range texts {
		trimmed := strings.TrimSpace(t)
		if strings.EqualFold(trimmed, username) {
			continue
		}
		for _, rule := range captionExclusions {
			if rule.reject(t) {
				continue candidates
			}
		}
		return trimmed
	}
	return ""
}

// ExtractOutboundLink returns the first href pointing off-platform: a
// sticker or swipe-up destination.
func ExtractOutboundLink(hrefs []string) string {
	for _, href := range hrefs {
		u, err := url.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if isPlatformHost(u.Hostname()) {
			continue
		}
		return href
	}
	return ""
}

func isPlatformHost(host string) bool {
	for _, p := range platformHosts {
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	return false
}

// UsablePosterURL rejects transient in-page handles (blob: object URLs die
// with the page) while letting real CDN poster URLs through.
func UsablePosterURL(poster string) bool {
	return poster != "" && !strings.HasPrefix(poster, "blob:") && !strings.HasPrefix(poster, "data:")
}
