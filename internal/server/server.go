// Package server exposes published artifacts over HTTP with byte-range
// support. Artifacts are write-once, so concurrent reads need no locking.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/AhmedNaeem5575/insta-story/internal/artifacts"
	pkgerrors "github.com/AhmedNaeem5575/insta-story/pkg/errors"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	store  *artifacts.Store
	logger logger.Logger
	resume func()
}

// New builds the media server. resume releases a login flow suspended on
// manual verification; nil disables the route.
func New(store *artifacts.Store, log logger.Logger, resume func()) *Server {
	return &Server{store: store, logger: log, resume: resume}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/videos", s.handleList)
	r.Get("/videos/{id}.mp4", s.handleFetch)
	r.Get("/stream/{id}.mp4", s.handleStream)
	r.Delete("/videos/{id}", s.handleDelete)
	r.Post("/resume", s.handleResume)

	return r
}

// handleResume is the operator's channel for completing a manual login:
// once the challenge/2FA screen is solved in the visible browser, POSTing
// here lets the suspended login flow re-validate and continue.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.resume == nil {
		http.NotFound(w, r)
		return
	}
	s.resume()
	s.logger.Info("Login resume signal received")
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type videoEntry struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List()
	if err != nil {
		s.logger.Error("Failed to list artifacts", "error", err)
		http.Error(w, "failed to list videos", http.StatusInternalServerError)
		return
	}

	videos := make([]videoEntry, 0, len(ids))
	for _, id := range ids {
		videos = append(videos, videoEntry{ID: id, URL: s.store.URL(id)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"videos": videos,
		"count":  len(videos),
	})
}

// handleFetch streams a whole artifact.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, size, err := s.store.Open(id)
	if err != nil {
		s.writeOpenError(w, r, id, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

// handleStream honors a single start-end byte range. Without a Range header
// the whole file streams with its size declared.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, size, err := s.store.Open(id)
	if err != nil {
		s.writeOpenError(w, r, id, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, f, length)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.Delete(id); err != nil {
		if pkgerrors.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		s.logger.Error("Failed to delete artifact", "artifact_id", id, "error", err)
		http.Error(w, "failed to delete video", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Deleted artifact", "artifact_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) writeOpenError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if pkgerrors.IsNotFound(err) {
		// 404s are expected traffic, not errors worth logging.
		http.NotFound(w, r)
		return
	}
	s.logger.Error("Failed to open artifact", "artifact_id", id, "error", err)
	http.Error(w, "failed to open video", http.StatusInternalServerError)
}

// parseRange parses a "bytes=start-end" header against a known file size.
// An omitted end clamps to the last byte. Valid ranges satisfy
// 0 <= start <= end < size.
func parseRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit in %q", header)
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range start in %q", header)
	}

	end := size - 1
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range end in %q", header)
		}
	}

	if start < 0 || start > end || end >= size {
		return 0, 0, fmt.Errorf("range %d-%d outside 0-%d", start, end, size-1)
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
