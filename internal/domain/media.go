package domain

// MediaKind tags a captured CDN URL as the audio-only or video-bearing
// delivery tier.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudio
)

func (k MediaKind) String() string {
	if k == MediaAudio {
		return "audio"
	}
	return "video"
}

// CaptureSnapshot is a read-only copy of the interceptor's slot, taken at
// the instant a story is evaluated.
type CaptureSnapshot struct {
	VideoURL string
	AudioURL string
}

// MediaArtifact identifies a merged output file in the local store.
type MediaArtifact struct {
	ID  string
	URL string
}
