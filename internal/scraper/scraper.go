package scraper

import (
	"context"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
)

type Client interface {
	// Login authenticates the browser session, retrying the initial
	// navigation a bounded number of times. With manual login enabled it
	// suspends until Resume is called, then re-validates observable state.
	Login(ctx context.Context) error

	// ScrapeUserStories runs one full walk for an account: discover, filter
	// against the ledger, reconcile video stories, hand the batch to the
	// notifier and only then mark the ledger. The partial batch is returned
	// even when an error surfaced.
	ScrapeUserStories(ctx context.Context, username string) (*domain.StoryBatch, error)

	// ScheduleScrapes runs ScrapeUserStories for every configured target on
	// a randomized interval until the context ends.
	ScheduleScrapes(ctx context.Context) error

	// Resume releases a login flow suspended on manual verification.
	Resume()
}
