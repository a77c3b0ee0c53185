package scraperimpl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AhmedNaeem5575/insta-story/internal/browser"
	"github.com/AhmedNaeem5575/insta-story/internal/notify"
	"github.com/AhmedNaeem5575/insta-story/internal/repositories/ledger"
	"github.com/AhmedNaeem5575/insta-story/internal/scraper"
	"github.com/AhmedNaeem5575/insta-story/internal/walker"
	"github.com/AhmedNaeem5575/insta-story/pkg/config"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/AhmedNaeem5575/insta-story/pkg/retry"
	"go.uber.org/fx"
)

const (
	loginURL    = "https://www.instagram.com/accounts/login/"
	storiesURL  = "https://www.instagram.com/stories/%s/"
	usernameSel = `input[name="username"]`
	passwordSel = `input[name="password"]`
	submitSel   = `button[type="submit"]`
)

type Opts struct {
	fx.In

	Session  browser.Session
	Walker   *walker.Walker
	Ledger   ledger.Repository
	Notifier notify.Notifier
	Logger   logger.Logger
	Config   *config.Config
}

type ScraperImpl struct {
	Session  browser.Session
	Walker   *walker.Walker
	Ledger   ledger.Repository
	Notifier notify.Notifier
	Logger   logger.Logger
	Config   *config.Config

	resumeOnce sync.Once
	resume     chan struct{}

	// One walk at a time: the browser session has a single viewer.
	walkMu sync.Mutex
}

func New(opts Opts) *ScraperImpl {
	return &ScraperImpl{
		Session:  opts.Session,
		Walker:   opts.Walker,
		Ledger:   opts.Ledger,
		Notifier: opts.Notifier,
		Logger:   opts.Logger,
		Config:   opts.Config,
		resume:   make(chan struct{}),
	}
}

var _ scraper.Client = (*ScraperImpl)(nil)

func (s *ScraperImpl) Login(ctx context.Context) error {
	err := retry.Do(ctx, s.Logger, "navigate to login", func() error {
		return s.Session.Navigate(ctx, loginURL)
	}, retry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	if err := s.Session.Wait(ctx, s.Config.Browser.SettleInterval); err != nil {
		return err
	}

	// An existing persisted session may already be logged in, in which case
	// Instagram redirects away from the login form.
	if loggedIn, _ := s.loggedIn(ctx); loggedIn {
		s.Logger.Info("Session already authenticated")
		return nil
	}

	if err := s.Session.Fill(ctx, usernameSel, s.Config.Instagram.User); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := s.Session.Fill(ctx, passwordSel, s.Config.Instagram.Pass); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := s.Session.Click(ctx, submitSel); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	if err := s.Session.Wait(ctx, 2*s.Config.Browser.SettleInterval); err != nil {
		return err
	}

	if s.Config.Instagram.ManualLogin {
		s.Logger.Info("Waiting for operator to confirm login (challenge/2FA), POST /resume to continue")
		if err := s.awaitResume(ctx); err != nil {
			return err
		}
	}

	// The resume signal is not trusted blindly; observable state decides.
	loggedIn, err := s.loggedIn(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify login state: %w", err)
	}
	if !loggedIn {
		return fmt.Errorf("login did not complete, still on the login flow")
	}

	s.Logger.Info("Instagram login complete", "user", s.Config.Instagram.User)
	return nil
}

func (s *ScraperImpl) loggedIn(ctx context.Context) (bool, error) {
	loc, err := s.Session.CurrentLocation(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(loc, "/accounts/login") || strings.Contains(loc, "/challenge") {
		return false, nil
	}
	count, err := s.Session.LocatorCount(ctx, usernameSel)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Resume releases a login suspended on manual verification. Safe to call
// more than once.
func (s *ScraperImpl) Resume() {
	s.resumeOnce.Do(func() { close(s.resume) })
}

// awaitResume blocks until Resume or context end. No timeout by default:
// a human solving a challenge takes as long as it takes.
func (s *ScraperImpl) awaitResume(ctx context.Context) error {
	select {
	case <-s.resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Targets splits the configured comma-separated account list.
func (s *ScraperImpl) Targets() []string {
	raw := strings.Split(s.Config.Instagram.UsersParse, ",")
	targets := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}
