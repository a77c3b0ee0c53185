package media

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
)

// CDN path segments that denote a delivery tier. The audio-only rendition of
// a story is served under a different storage tier than the video rendition,
// which makes the path a cheap first check before decoding anything.
const (
	audioTierPath = "t16/f2/m69"
	videoTierPath = "t2/f2/m86"
)

// encodingDescriptor is the JSON carried in the base64 "efg" query
// parameter on Instagram CDN URLs.
type encodingDescriptor struct {
	VencodeTag string `json:"vencode_tag"`
}

// Classify decides whether a captured CDN URL is the audio-only or the
// video-bearing stream. Decision order: tier path markers first, then the
// encoded descriptor's tag. Any decode failure classifies as video, the
// common case.
func Classify(rawURL string) domain.MediaKind {
	if strings.Contains(rawURL, audioTierPath) {
		return domain.MediaAudio
	}
	if strings.Contains(rawURL, videoTierPath) {
		return domain.MediaVideo
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.MediaVideo
	}

	efg := u.Query().Get("efg")
	if efg == "" {
		return domain.MediaVideo
	}

	decoded, err := base64.StdEncoding.DecodeString(efg)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(efg)
		if err != nil {
			return domain.MediaVideo
		}
	}

	var desc encodingDescriptor
	if err := json.Unmarshal(decoded, &desc); err != nil {
		return domain.MediaVideo
	}

	tag := strings.ToLower(desc.VencodeTag)
	if strings.Contains(tag, "audio") &&
		!strings.Contains(tag, "avc") &&
		!strings.Contains(tag, "vp9") {
		return domain.MediaAudio
	}
	return domain.MediaVideo
}
