// Package walker drives the browser through one account's story sequence,
// correlating intercepted media URLs to story identifiers as it goes.
package walker

import (
	"context"
	"fmt"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/browser"
	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/internal/media"
	"github.com/AhmedNaeem5575/insta-story/pkg/errors"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
)

// idleLimit is how many consecutive no-progress cycles end the walk. Three
// absorbs transient render delays without looping forever on an exhausted
// sequence.
const idleLimit = 3

// Reconciler merges a matched (video, audio) pair into one local artifact.
type Reconciler interface {
	Reconcile(ctx context.Context, videoURL, audioURL string) (domain.MediaArtifact, error)
}

type Walker struct {
	session     browser.Session
	interceptor *media.Interceptor
	reconciler  Reconciler
	logger      logger.Logger
	settle      time.Duration
}

func New(session browser.Session, interceptor *media.Interceptor, reconciler Reconciler, log logger.Logger, settle time.Duration) *Walker {
	return &Walker{
		session:     session,
		interceptor: interceptor,
		reconciler:  reconciler,
		logger:      log,
		settle:      settle,
	}
}

// Walk runs the story sequence currently open in the viewer to exhaustion
// and returns the emitted items. seen is the in-run dedup set, pre-loaded
// from the ledger and grown as stories are emitted; the caller owns marking
// the ledger afterwards. A walk that never detects a viewer returns empty.
//
// A failure inside one story's evaluation is contained as a single idle
// increment; only a refused advance input is fatal, and even then the
// partial batch assembled so far is returned.
func (w *Walker) Walk(ctx context.Context, username string, seen map[string]struct{}, events *domain.EventLog) ([]domain.StoryItem, error) {
	open, err := w.viewerOpen(ctx)
	if err != nil || !open {
		w.logger.Info("No story viewer detected, nothing to walk", "username", username)
		events.Recordf("no story viewer detected for %s", username)
		return nil, nil
	}

	var emitted []domain.StoryItem
	idle := 0
	first := true

	prevLoc, err := w.session.CurrentLocation(ctx)
	if err != nil {
		prevLoc = ""
	}

	for idle < idleLimit {
		if ctx.Err() != nil {
			return emitted, ctx.Err()
		}

		produced, err := w.evaluate(ctx, username, seen, &emitted, events)
		switch {
		case err != nil:
			storyID := StoryIDFromLocation(prevLoc)
			w.logger.Warn("Story evaluation failed, counting as idle", "username", username, "story_id", storyID, "error", err)
			events.Recordf("story %s: evaluation failed: %v", storyID, err)
			idle++
		case !produced:
			idle++
		default:
			idle = 0
		}

		if idle >= idleLimit {
			break
		}

		// Advance to the next story and give the viewer a fixed settle
		// interval before comparing locations.
		if err := w.session.SendKey(ctx, browser.KeyArrowRight); err != nil {
			w.dismiss(ctx)
			return emitted, fmt.Errorf("%w: advance input rejected: %v", errors.ErrNavigationFailed, err)
		}
		if err := w.session.Wait(ctx, w.settle); err != nil {
			return emitted, err
		}

		loc, err := w.session.CurrentLocation(ctx)
		if err != nil {
			idle++
			first = false
			continue
		}

		if loc != prevLoc {
			idle = 0
		} else if !first {
			// The very first cycle never counts an unchanged location as
			// idle; the viewer may still be settling into the first story.
			idle++
		}
		prevLoc = loc
		first = false
	}

	w.dismiss(ctx)
	events.Recordf("walk finished for %s: %d stories emitted", username, len(emitted))
	return emitted, nil
}

// evaluate processes the story currently on screen. It reports whether the
// cycle emitted a new item.
func (w *Walker) evaluate(ctx context.Context, username string, seen map[string]struct{}, emitted *[]domain.StoryItem, events *domain.EventLog) (bool, error) {
	loc, err := w.session.CurrentLocation(ctx)
	if err != nil {
		return false, err
	}

	storyID := StoryIDFromLocation(loc)

	dom, err := w.readDOM(ctx)
	if err != nil {
		return false, err
	}

	// Snapshot-and-clear before anything slow happens, so network events
	// from the next story cannot land in this story's slot.
	snap := w.interceptor.Snapshot()

	// A known story is skipped without counting as progress; the location
	// change on the next advance is what keeps the walk alive through a run
	// of already-seen stories.
	if storyID != "" {
		if _, known := seen[storyID]; known {
			w.logger.Debug("Story already seen, skipping emission", "story_id", storyID)
			return false, nil
		}
	}

	if storyID == "" && snap.VideoURL == "" && !UsablePosterURL(dom.poster) {
		return false, nil
	}

	item := domain.StoryItem{
		ID:           storyID,
		Username:     username,
		Caption:      ExtractCaption(dom.texts, username),
		OutboundLink: ExtractOutboundLink(dom.hrefs),
		CapturedAt:   time.Now().UTC(),
	}
	item.ExpiresAt = item.CapturedAt.Add(domain.StoryTTL)
	if storyID != "" {
		item.Permalink = fmt.Sprintf("https://www.instagram.com/stories/%s/%s/", username, storyID)
	}
	if UsablePosterURL(dom.poster) {
		item.ThumbnailURL = dom.poster
	}

	switch {
	case dom.isVideo && snap.VideoURL != "":
		item.IsVideo = true
		item.OriginalVideoURL = snap.VideoURL
		item.OriginalAudioURL = snap.AudioURL
		item.MediaURL = snap.VideoURL

		artifact, err := w.reconciler.Reconcile(ctx, snap.VideoURL, snap.AudioURL)
		if err != nil {
			// Degrade to the raw captured URL; a story is never dropped
			// solely because local mirroring failed.
			w.logger.Warn("Reconciliation failed, falling back to remote URL", "story_id", storyID, "error", err)
			events.Recordf("story %s: reconciliation failed: %v", storyID, err)
		} else {
			item.LocalArtifactID = artifact.ID
			item.MediaURL = artifact.URL
		}

	case !dom.isVideo:
		imageURL := w.pickImageURL(snap, dom)
		if imageURL == "" {
			return false, nil
		}
		item.MediaURL = imageURL

	default:
		// Video flagged but nothing captured yet this cycle.
		return false, nil
	}

	key := item.Key()
	if _, known := seen[key]; known {
		w.logger.Debug("Story already seen, skipping emission", "story_id", key)
		return false, nil
	}

	seen[key] = struct{}{}
	*emitted = append(*emitted, item)
	w.logger.Info("Emitted story", "story_id", key, "is_video", item.IsVideo)
	events.Recordf("story %s: emitted (%s)", key, mediaKindLabel(item.IsVideo))
	return true, nil
}

// pickImageURL selects a displayable URL for a non-video story: anything
// captured this cycle first, then the DOM poster.
func (w *Walker) pickImageURL(snap domain.CaptureSnapshot, dom domSignals) string {
	if snap.VideoURL != "" {
		return snap.VideoURL
	}
	if UsablePosterURL(dom.poster) {
		return dom.poster
	}
	return ""
}

func (w *Walker) viewerOpen(ctx context.Context) (bool, error) {
	loc, err := w.session.CurrentLocation(ctx)
	if err == nil && storyIDPattern.MatchString(loc) {
		return true, nil
	}

	count, err := w.session.LocatorCount(ctx, viewerSelector)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (w *Walker) dismiss(ctx context.Context) {
	if err := w.session.SendKey(ctx, browser.KeyEscape); err != nil {
		w.logger.Debug("Viewer dismiss input failed", "error", err)
	}
}

func mediaKindLabel(isVideo bool) string {
	if isVideo {
		return "video"
	}
	return "image"
}
