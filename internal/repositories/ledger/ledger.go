package ledger

import (
	"context"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
)

// Ledger is the persisted dedup state for one target account: the set of
// story identifiers already processed, union-only, plus the time of the
// last write.
type Ledger struct {
	Username     string     `json:"username"`
	ProcessedIDs []string   `json:"processed_ids"`
	LastUpdated  *time.Time `json:"last_updated"`
}

// Repository is the dedup ledger contract. MarkProcessed must only be
// called after the corresponding batch has been durably handed off by the
// caller, so a crash between hand-off and mark leads to a re-run, never to
// silent loss.
type Repository interface {
	// ProcessedIDs returns the persisted identifier set for an account. A
	// missing ledger is an empty set, not a failure.
	ProcessedIDs(ctx context.Context, username string) (map[string]struct{}, error)

	// FilterNew removes in-batch duplicates (first occurrence per identity
	// key wins), then anything already in the persisted set.
	FilterNew(ctx context.Context, username string, candidates []domain.StoryItem) ([]domain.StoryItem, error)

	// MarkProcessed unions the given identifiers into the persisted set and
	// rewrites the ledger atomically with a fresh timestamp.
	MarkProcessed(ctx context.Context, username string, items []domain.StoryItem) error
}

// filterNew is the backend-independent half of FilterNew.
func filterNew(processed map[string]struct{}, candidates []domain.StoryItem) []domain.StoryItem {
	seen := make(map[string]struct{}, len(candidates))
	result := make([]domain.StoryItem, 0, len(candidates))
	for _, item := range candidates {
		key := item.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, done := processed[key]; done {
			continue
		}
		result = append(result, item)
	}
	return result
}
