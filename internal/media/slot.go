package media

import (
	"sync"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
)

// CaptureSlot holds the most recently observed media URL of each kind for
// the story currently on screen. The interceptor is its only writer and the
// walker its only reader; last write wins because repeated requests for the
// same logical stream (range fetches, retries) are expected and only the
// final, range-stripped URL is canonical.
type CaptureSlot struct {
	mu    sync.Mutex
	video string
	audio string
}

func (s *CaptureSlot) store(kind domain.MediaKind, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == domain.MediaAudio {
		s.audio = url
		return
	}
	s.video = url
}

// SnapshotAndReset returns the slot's contents and clears it as one
// operation, so a late event from the previous story can never leak into
// the next one between the read and the reset.
func (s *CaptureSlot) SnapshotAndReset() domain.CaptureSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := domain.CaptureSnapshot{VideoURL: s.video, AudioURL: s.audio}
	s.video = ""
	s.audio = ""
	return snap
}
