package domain

import "time"

// StoryItem is one ephemeral post, constructed once per story boundary
// during a walk and immutable afterwards.
type StoryItem struct {
	ID       string
	Username string
	IsVideo  bool
	Caption  string

	CapturedAt time.Time
	// ExpiresAt is advisory: stories live roughly 24h after capture.
	ExpiresAt time.Time

	// MediaURL is the final playable location: either the original remote
	// URL or a local artifact reference when reconciliation succeeded.
	MediaURL         string
	OriginalVideoURL string
	OriginalAudioURL string
	LocalArtifactID  string

	ThumbnailURL string
	Permalink    string
	OutboundLink string
}

// StoryTTL is how long a story stays visible after it was posted.
const StoryTTL = 24 * time.Hour

// Key resolves the identity of a story for dedup purposes. Precedence:
// platform id, then the media URL when no id was extracted. Empty means
// the item carries nothing usable as an identity.
func (s StoryItem) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.MediaURL
}

// StoryBatch is the finished output of one walk, handed to the outward
// notification collaborator.
type StoryBatch struct {
	Username     string
	ScrapedAt    time.Time
	TotalStories int
	Stories      []StoryItem
}
