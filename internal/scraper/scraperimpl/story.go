package scraperimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/pkg/retry"
)

// ScrapeUserStories runs one complete walk for an account. Ordering matters
// here: the batch is handed to the notifier before the ledger is marked, so
// a crash in between re-runs the batch instead of losing it. A crash after
// the mark but before delivery is the one accepted loss window.
func (s *ScraperImpl) ScrapeUserStories(ctx context.Context, username string) (*domain.StoryBatch, error) {
	s.walkMu.Lock()
	defer s.walkMu.Unlock()

	events := &domain.EventLog{}
	events.Recordf("scrape started for %s", username)

	seen, err := s.Ledger.ProcessedIDs(ctx, username)
	if err != nil {
		// Read failures degrade to "no prior state"; re-sending a story
		// beats silently dropping one.
		s.Logger.Warn("Ledger read failed, walking without prior state", "username", username, "error", err)
		seen = map[string]struct{}{}
	}

	storiesLoc := fmt.Sprintf(storiesURL, username)
	err = retry.Do(ctx, s.Logger, "open story viewer", func() error {
		return s.Session.Navigate(ctx, storiesLoc)
	}, retry.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open stories for %s: %w", username, err)
	}
	if err := s.Session.Wait(ctx, s.Config.Browser.SettleInterval); err != nil {
		return nil, err
	}

	items, walkErr := s.Walker.Walk(ctx, username, seen, events)

	batch := &domain.StoryBatch{
		Username:     username,
		ScrapedAt:    time.Now().UTC(),
		TotalStories: len(items),
		Stories:      items,
	}

	if walkErr != nil {
		s.Logger.Error("Walk terminated early", "username", username, "error", walkErr)
		events.Recordf("walk terminated early: %v", walkErr)
		if notifyErr := s.Notifier.NotifyError(fmt.Sprintf("%s: %v", username, walkErr)); notifyErr != nil {
			s.Logger.Error("Failed to notify walk error", "error", notifyErr)
		}
	}

	if len(items) == 0 {
		s.Logger.Info("No new stories", "username", username)
		return batch, walkErr
	}

	// Hand-off first. The notifier receiving the batch is the durable
	// output of a run.
	if err := s.Notifier.NotifyBatch(batch, events.Lines()); err != nil {
		s.Logger.Error("Batch hand-off failed, ledger left unmarked", "username", username, "error", err)
		return batch, fmt.Errorf("failed to deliver batch for %s: %w", username, err)
	}

	if err := s.Ledger.MarkProcessed(ctx, username, items); err != nil {
		// Surfaced but the caller keeps the batch; nothing assembled is
		// lost, the next run will just re-filter.
		s.Logger.Error("Failed to mark ledger", "username", username, "error", err)
		return batch, fmt.Errorf("failed to mark ledger for %s: %w", username, err)
	}

	s.Logger.Info("Scrape complete", "username", username, "stories", len(items))
	return batch, walkErr
}
