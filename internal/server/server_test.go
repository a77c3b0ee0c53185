package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/AhmedNaeem5575/insta-story/internal/artifacts"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *artifacts.Store) {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	return New(store, logger.Nop(), nil), store
}

func publish(t *testing.T, store *artifacts.Store, content []byte) string {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(tmp, content, 0o644))
	id := store.NewID()
	require.NoError(t, store.Publish(id, tmp))
	return id
}

func TestResumeTriggersCallback(t *testing.T) {
	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	calls := 0
	srv := New(store, logger.Nop(), func() { calls++ })

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestResumeWithoutCallbackIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resume", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamWithRange(t *testing.T) {
	srv, store := newTestServer(t)
	content := bytes.Repeat([]byte{0xAB}, 1000)
	id := publish(t, store, content)

	req := httptest.NewRequest(http.MethodGet, "/stream/"+id+".mp4", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-99/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, content[:100], rec.Body.Bytes())
}

func TestStreamWithoutRangeServesWholeFile(t *testing.T) {
	srv, store := newTestServer(t)
	content := bytes.Repeat([]byte{0xCD}, 1000)
	id := publish(t, store, content)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/"+id+".mp4", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestStreamMidFileRange(t *testing.T) {
	srv, store := newTestServer(t)
	content := []byte("0123456789")
	id := publish(t, store, content)

	req := httptest.NewRequest(http.MethodGet, "/stream/"+id+".mp4", nil)
	req.Header.Set("Range", "bytes=3-6")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 3-6/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, []byte("3456"), rec.Body.Bytes())
}

func TestStreamInvalidRange(t *testing.T) {
	srv, store := newTestServer(t)
	id := publish(t, store, []byte("0123456789"))

	for _, header := range []string{"bytes=5-20", "bytes=7-3", "items=0-5", "bytes=junk-4"} {
		req := httptest.NewRequest(http.MethodGet, "/stream/"+id+".mp4", nil)
		req.Header.Set("Range", header)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code, "header %q", header)
	}
}

func TestStreamOpenEndedRange(t *testing.T) {
	srv, store := newTestServer(t)
	id := publish(t, store, []byte("0123456789"))

	req := httptest.NewRequest(http.MethodGet, "/stream/"+id+".mp4", nil)
	req.Header.Set("Range", "bytes=8-")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 8-9/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, []byte("89"), rec.Body.Bytes())
}

func TestFetchWholeFile(t *testing.T) {
	srv, store := newTestServer(t)
	content := []byte("whole file body")
	id := publish(t, store, content)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/"+id+".mp4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/nope.mp4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteIdempotentNotFound(t *testing.T) {
	srv, store := newTestServer(t)
	id := publish(t, store, []byte("bytes"))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/videos/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/videos/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAfterPublish(t *testing.T) {
	srv, store := newTestServer(t)
	id := publish(t, store, []byte("bytes"))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Videos []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"videos"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, id, resp.Videos[0].ID)
	assert.Equal(t, "/videos/"+id+".mp4", resp.Videos[0].URL)
}
