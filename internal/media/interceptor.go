package media

import (
	"net/url"
	"strings"

	"github.com/AhmedNaeem5575/insta-story/internal/browser"
	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
)

// Query parameters that vary per partial fetch of the same logical asset.
// They are stripped so byte-range requests collapse onto one canonical URL.
var rangeParams = []string{"bytestart", "byteend"}

// Interceptor passively observes outgoing requests from the live browser
// session and keeps the latest matching media URL of each kind in its slot.
// It runs for the lifetime of the session, never blocks navigation and has
// no back-pressure; slot overwrites are the chosen tolerance.
type Interceptor struct {
	slot   CaptureSlot
	logger logger.Logger
}

func NewInterceptor(log logger.Logger) *Interceptor {
	return &Interceptor{logger: log}
}

// Attach subscribes the interceptor to the session's outgoing requests.
func (i *Interceptor) Attach(session browser.Session) {
	session.OnOutgoingRequest(i.Observe)
}

// Observe is the request callback. It runs on the browser event loop.
func (i *Interceptor) Observe(rawURL string) {
	if !IsStoryMedia(rawURL) {
		return
	}

	normalized := StripRangeParams(rawURL)
	kind := Classify(normalized)
	i.slot.store(kind, normalized)
	i.logger.Debug("Captured media URL", "kind", kind.String(), "url", normalized)
}

// Snapshot returns the current slot contents and resets the slot.
func (i *Interceptor) Snapshot() domain.CaptureSnapshot {
	return i.slot.SnapshotAndReset()
}

// IsStoryMedia reports whether a request URL is a story media stream: a
// known content-delivery host serving a recognized video container.
func IsStoryMedia(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if !strings.HasSuffix(host, ".cdninstagram.com") && !strings.Contains(host, "fbcdn.net") {
		return false
	}
	return strings.HasSuffix(u.Path, ".mp4")
}

// StripRangeParams removes transport-level byte-range query parameters so
// partial fetches of one asset do not look like distinct assets.
func StripRangeParams(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, p := range rangeParams {
		if q.Has(p) {
			q.Del(p)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
