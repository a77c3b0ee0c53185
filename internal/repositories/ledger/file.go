package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/pkg/errors"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
)

// FileRepository keeps one JSON ledger file per target account under dir.
type FileRepository struct {
	dir    string
	logger logger.Logger
}

func NewFileRepository(dir string, log logger.Logger) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &FileRepository{dir: dir, logger: log}, nil
}

var _ Repository = (*FileRepository)(nil)

func (r *FileRepository) path(username string) string {
	return filepath.Join(r.dir, username+".json")
}

// load reads the persisted ledger. A missing or unreadable file yields an
// empty ledger: prior state we cannot read is treated as no prior state.
func (r *FileRepository) load(username string) Ledger {
	led := Ledger{Username: username}

	data, err := os.ReadFile(r.path(username))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("Ledger unreadable, starting empty", "username", username, "error", err)
		}
		return led
	}

	if err := json.Unmarshal(data, &led); err != nil {
		r.logger.Warn("Ledger corrupt, starting empty", "username", username, "error", err)
		return Ledger{Username: username}
	}
	led.Username = username
	return led
}

func (r *FileRepository) ProcessedIDs(_ context.Context, username string) (map[string]struct{}, error) {
	led := r.load(username)
	set := make(map[string]struct{}, len(led.ProcessedIDs))
	for _, id := range led.ProcessedIDs {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *FileRepository) FilterNew(ctx context.Context, username string, candidates []domain.StoryItem) ([]domain.StoryItem, error) {
	processed, err := r.ProcessedIDs(ctx, username)
	if err != nil {
		return nil, err
	}
	return filterNew(processed, candidates), nil
}

func (r *FileRepository) MarkProcessed(ctx context.Context, username string, items []domain.StoryItem) error {
	if len(items) == 0 {
		return nil
	}

	led := r.load(username)
	existing := make(map[string]struct{}, len(led.ProcessedIDs))
	for _, id := range led.ProcessedIDs {
		existing[id] = struct{}{}
	}

	for _, item := range items {
		key := item.Key()
		if key == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}
		existing[key] = struct{}{}
		led.ProcessedIDs = append(led.ProcessedIDs, key)
	}

	now := time.Now().UTC()
	led.LastUpdated = &now

	return r.write(led)
}

// write rewrites the ledger atomically: marshal to a temp file in the same
// directory, then rename over the old one.
func (r *FileRepository) write(led Ledger) error {
	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrLedgerIO, err)
	}

	tmp, err := os.CreateTemp(r.dir, led.Username+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrLedgerIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", errors.ErrLedgerIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", errors.ErrLedgerIO, err)
	}

	if err := os.Rename(tmpName, r.path(led.Username)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", errors.ErrLedgerIO, err)
	}
	return nil
}
