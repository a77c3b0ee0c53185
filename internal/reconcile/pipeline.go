// Package reconcile merges the separately-delivered video and audio streams
// of one story into a single playable artifact.
package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/AhmedNaeem5575/insta-story/internal/artifacts"
	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/internal/fetch"
	"github.com/AhmedNaeem5575/insta-story/pkg/errors"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
)

// Pipeline downloads both streams through the authenticated session, merges
// them with an external transcoding process and publishes the result. The
// walk is stalled while it runs: the viewer auto-advances, and a concurrent
// fetch risks losing the CDN URL before capture.
type Pipeline struct {
	store      *artifacts.Store
	fetcher    fetch.Fetcher
	logger     logger.Logger
	ffmpegPath string

	// merge is swappable in tests.
	merge func(ctx context.Context, videoPath, audioPath, outPath string) error
}

func New(store *artifacts.Store, fetcher fetch.Fetcher, log logger.Logger, ffmpegPath string) *Pipeline {
	p := &Pipeline{
		store:      store,
		fetcher:    fetcher,
		logger:     log,
		ffmpegPath: ffmpegPath,
	}
	p.merge = p.ffmpegMerge
	return p
}

// Reconcile produces one artifact from a matched (video, audio) pair. The
// audio URL may be empty. Audio loss is non-fatal: a failed audio download
// or merge degrades to the video-only download. A failed video download
// aborts with ErrDownloadFailed; the caller still emits the story with the
// raw captured URL so it is never silently dropped.
func (p *Pipeline) Reconcile(ctx context.Context, videoURL, audioURL string) (domain.MediaArtifact, error) {
	id := p.store.NewID()

	tmpDir, err := os.MkdirTemp("", "reconcile-*")
	if err != nil {
		return domain.MediaArtifact{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	// Cleanup runs regardless of which step failed.
	defer os.RemoveAll(tmpDir)

	videoPath := filepath.Join(tmpDir, "video.mp4")
	if err := p.download(ctx, videoURL, videoPath); err != nil {
		return domain.MediaArtifact{}, err
	}

	finalPath := videoPath
	if audioURL != "" {
		audioPath := filepath.Join(tmpDir, "audio.mp4")
		if err := p.download(ctx, audioURL, audioPath); err != nil {
			p.logger.Warn("Audio download failed, keeping video-only", "artifact_id", id, "error", err)
		} else {
			mergedPath := filepath.Join(tmpDir, "merged.mp4")
			if err := p.merge(ctx, videoPath, audioPath, mergedPath); err != nil {
				p.logger.Warn("Merge failed, keeping video-only", "artifact_id", id, "error", err)
			} else {
				finalPath = mergedPath
			}
		}
	}

	if err := p.store.Publish(id, finalPath); err != nil {
		return domain.MediaArtifact{}, fmt.Errorf("failed to publish artifact %s: %w", id, err)
	}

	p.logger.Info("Published artifact", "artifact_id", id, "merged", finalPath != videoPath)
	return domain.MediaArtifact{ID: id, URL: p.store.URL(id)}, nil
}

func (p *Pipeline) download(ctx context.Context, url, dst string) error {
	data, err := p.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDownloadFailed, err)
	}
	return nil
}

// ffmpegMerge selects the video stream of the first input and the audio
// stream of the second, copies both codecs without re-encoding, truncates
// to the shorter duration and front-loads the moov atom for progressive
// playback.
func (p *Pipeline) ffmpegMerge(ctx context.Context, videoPath, audioPath, outPath string) error {
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
		"-shortest",
		"-movflags", "+faststart",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v: %s", errors.ErrMergeFailed, err, lastLine(stderr.Bytes()))
	}
	return nil
}

// lastLine keeps error messages to ffmpeg's final diagnostic line.
func lastLine(out []byte) string {
	trimmed := bytes.TrimSpace(out)
	if idx := bytes.LastIndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return string(trimmed)
}
