package scraperimpl

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// ScheduleScrapes registers a randomized-interval job covering every
// configured target account.
func (s *ScraperImpl) ScheduleScrapes(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationRandomJob(s.Config.Parser.IntervalMin, s.Config.Parser.IntervalMax),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				s.Logger.Info("Context cancelled, stopping scheduled scrapes")
				return
			}

			targets := s.Targets()
			if len(targets) == 0 {
				s.Logger.Info("No target accounts configured, skipping run")
				return
			}

			s.Logger.Info("Starting scheduled scrape run", "targets", len(targets))
			s.runJobsWithAnts(ctx, targets)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule scrapes: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		s.Logger.Info("Stopping scrape scheduler")
		if err := scheduler.Shutdown(); err != nil {
			s.Logger.Error("Failed to shut down scheduler", "error", err)
		}
	}()

	return nil
}

// runJobsWithAnts submits one job per target to a small worker pool. The
// jobs themselves serialize on the walk mutex (one browser viewer), but the
// pool keeps submission and failure handling uniform with retry spacing.
func (s *ScraperImpl) runJobsWithAnts(ctx context.Context, targets []string) {
	var wg sync.WaitGroup
	pool, _ := ants.NewPool(2, ants.WithPreAlloc(true))
	defer pool.Release()

	for _, target := range targets {
		wg.Add(1)
		userToProcess := target

		err := pool.Submit(func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				s.Logger.Info("Skipping job due to context cancellation", "username", userToProcess)
				return
			default:
				if _, err := s.ScrapeUserStories(ctx, userToProcess); err != nil {
					s.Logger.Error("Scrape failed", "username", userToProcess, "error", err)
				}
			}
		})
		if err != nil {
			wg.Done()
			s.Logger.Error("Failed to submit job to ants pool", "username", userToProcess, "error", err)
		}
	}

	wg.Wait()
}
