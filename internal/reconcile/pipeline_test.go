package reconcile

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/AhmedNaeem5575/insta-story/internal/artifacts"
	"github.com/AhmedNaeem5575/insta-story/pkg/errors"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	responses map[string][]byte
}

func (f *fakeFetcher) FetchBytes(_ context.Context, url string) ([]byte, error) {
	data, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("%w: no response for %s", errors.ErrDownloadFailed, url)
	}
	return data, nil
}

func newTestPipeline(t *testing.T, fetcher *fakeFetcher) (*Pipeline, *artifacts.Store) {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	return New(store, fetcher, logger.Nop(), "ffmpeg"), store
}

func TestReconcileVideoOnly(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://cdn/video.mp4": []byte("raw video"),
	}}
	p, store := newTestPipeline(t, fetcher)

	art, err := p.Reconcile(context.Background(), "https://cdn/video.mp4", "")
	require.NoError(t, err)
	assert.NotEmpty(t, art.ID)
	assert.Equal(t, "/videos/"+art.ID+".mp4", art.URL)

	data, err := os.ReadFile(store.Path(art.ID))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw video"), data)
}

func TestReconcileMergeFailureFallsBackToVideoOnly(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://cdn/video.mp4": []byte("raw video"),
		"https://cdn/audio.mp4": []byte("raw audio"),
	}}
	p, store := newTestPipeline(t, fetcher)
	p.merge = func(_ context.Context, _, _, _ string) error {
		return fmt.Errorf("%w: exit status 1", errors.ErrMergeFailed)
	}

	art, err := p.Reconcile(context.Background(), "https://cdn/video.mp4", "https://cdn/audio.mp4")
	require.NoError(t, err, "merge failure must not abort the pipeline")

	data, err := os.ReadFile(store.Path(art.ID))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw video"), data, "fallback artifact is the video-only download")
}

func TestReconcileMergeSuccessPublishesMergedFile(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://cdn/video.mp4": []byte("raw video"),
		"https://cdn/audio.mp4": []byte("raw audio"),
	}}
	p, store := newTestPipeline(t, fetcher)
	p.merge = func(_ context.Context, videoPath, audioPath, outPath string) error {
		return os.WriteFile(outPath, []byte("merged output"), 0o644)
	}

	art, err := p.Reconcile(context.Background(), "https://cdn/video.mp4", "https://cdn/audio.mp4")
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path(art.ID))
	require.NoError(t, err)
	assert.Equal(t, []byte("merged output"), data)
}

func TestReconcileAudioDownloadFailureIsNonFatal(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://cdn/video.mp4": []byte("raw video"),
	}}
	p, store := newTestPipeline(t, fetcher)

	art, err := p.Reconcile(context.Background(), "https://cdn/video.mp4", "https://cdn/missing-audio.mp4")
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path(art.ID))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw video"), data)
}

func TestReconcileVideoDownloadFailureAborts(t *testing.T) {
	p, store := newTestPipeline(t, &fakeFetcher{responses: map[string][]byte{}})

	_, err := p.Reconcile(context.Background(), "https://cdn/gone.mp4", "")
	assert.ErrorIs(t, err, errors.ErrDownloadFailed)

	ids, err2 := store.List()
	require.NoError(t, err2)
	assert.Empty(t, ids, "no artifact published on download failure")
}
