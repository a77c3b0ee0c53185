package walker

import (
	"context"
)

// viewerSelector identifies the open story viewer dialog.
const viewerSelector = `section div[role="dialog"]`

// JS snippets evaluated in the page. Extraction decisions stay in Go; the
// page only hands back raw signals.
const (
	jsPosterURL = `(function() {
		var v = document.querySelector('video');
		if (v && v.poster) return v.poster;
		var img = document.querySelector('section img[draggable="false"], section img[decoding]');
		return img ? img.src : '';
	})()`

	jsVisibleTexts = `Array.from(document.querySelectorAll('section span, section h1, section div[dir="auto"]'))
		.map(function(e) { return e.innerText || ''; })
		.filter(function(t, i, all) { return all.indexOf(t) === i; })
		.slice(0, 40)`

	jsAnchorHrefs = `Array.from(document.querySelectorAll('section a[href]'))
		.map(function(a) { return a.href; })
		.slice(0, 20)`
)

// domSignals is everything the walker reads off the page at one story
// boundary.
type domSignals struct {
	isVideo bool
	poster  string
	texts   []string
	hrefs   []string
}

func (w *Walker) readDOM(ctx context.Context) (domSignals, error) {
	var sig domSignals

	count, err := w.session.LocatorCount(ctx, "video")
	if err != nil {
		return sig, err
	}
	sig.isVideo = count > 0

	// Poster, text and link reads are best-effort; a failed evaluate leaves
	// the field empty rather than failing the story.
	if err := w.session.EvaluateInPage(ctx, jsPosterURL, &sig.poster); err != nil {
		w.logger.Debug("Poster read failed", "error", err)
	}
	if err := w.session.EvaluateInPage(ctx, jsVisibleTexts, &sig.texts); err != nil {
		w.logger.Debug("Text read failed", "error", err)
	}
	if err := w.session.EvaluateInPage(ctx, jsAnchorHrefs, &sig.hrefs); err != nil {
		w.logger.Debug("Anchor read failed", "error", err)
	}

	return sig, nil
}
