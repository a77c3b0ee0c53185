// Package artifacts is the durable store for merged story media. Files are
// written once under an opaque identifier and never mutated; only explicit
// operator action deletes them.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AhmedNaeem5575/insta-story/pkg/errors"
	"github.com/google/uuid"
)

const Extension = ".mp4"

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewID generates a fresh opaque artifact identifier.
func (s *Store) NewID() string {
	return uuid.New().String()
}

func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+Extension)
}

// URL is the serving path of an artifact relative to the media server root.
func (s *Store) URL(id string) string {
	return "/videos/" + id + Extension
}

// Publish moves a finished file into the store under id. Rename first;
// fall back to copy when the temp dir sits on another filesystem.
func (s *Store) Publish(id, srcPath string) error {
	dst := s.Path(id)
	if err := os.Rename(srcPath, dst); err == nil {
		return nil
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open merged file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	return out.Close()
}

// Open returns a reader over an artifact and its size.
func (s *Store) Open(id string) (*os.File, int64, error) {
	f, err := os.Open(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open artifact %s: %w", id, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat artifact %s: %w", id, err)
	}
	return f, info.Size(), nil
}

// Delete removes an artifact. Absent artifacts report ErrNotFound; the
// caller decides whether that is an error.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.Path(id))
	if os.IsNotExist(err) {
		return errors.ErrNotFound
	}
	return err
}

// List enumerates all artifact identifiers currently in the store, sorted
// for stable output.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), Extension))
	}
	sort.Strings(ids)
	return ids, nil
}
