package browserimpl

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/browser"
	"github.com/AhmedNaeem5575/insta-story/pkg/config"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/fx"
)

// ChromeSession drives one Chrome target through chromedp.
type ChromeSession struct {
	taskCtx   context.Context
	cancels   []context.CancelFunc
	opTimeout time.Duration
	logger    logger.Logger

	mu        sync.Mutex
	listeners []browser.RequestListener
}

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

var keyCodes = map[string]string{
	browser.KeyArrowRight: kb.ArrowRight,
	browser.KeyEscape:     kb.Escape,
}

func New(opts Opts) (*ChromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Config.Browser.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		taskCtx:   taskCtx,
		cancels:   []context.CancelFunc{cancelTask, cancelAlloc},
		opTimeout: opts.Config.Browser.OpTimeout,
		logger:    opts.Logger,
	}

	// Single target-wide listener; per-walk subscribers register through
	// OnOutgoingRequest and are fanned out here.
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok {
			return
		}
		s.mu.Lock()
		fns := s.listeners
		s.mu.Unlock()
		for _, fn := range fns {
			fn(req.Request.URL)
		}
	})

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := chromedp.Run(taskCtx, network.Enable()); err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			opts.Logger.Info("Browser session started", "headless", opts.Config.Browser.Headless)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.close()
			return nil
		},
	})

	return s, nil
}

var _ browser.Session = (*ChromeSession)(nil)

func (s *ChromeSession) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// run executes actions against the shared target with the parent context's
// cancellation and a per-operation timeout layered on top.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(s.taskCtx, s.opTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *ChromeSession) CurrentLocation(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *ChromeSession) LocatorCount(ctx context.Context, selector string) (int, error) {
	var count int
	js := fmt.Sprintf("document.querySelectorAll(%q).length", selector)
	if err := s.run(ctx, chromedp.Evaluate(js, &count)); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *ChromeSession) SendKey(ctx context.Context, key string) error {
	code, ok := keyCodes[key]
	if !ok {
		code = key
	}
	return s.run(ctx, chromedp.KeyEvent(code))
}

func (s *ChromeSession) Fill(ctx context.Context, selector, text string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (s *ChromeSession) EvaluateInPage(ctx context.Context, js string, out any) error {
	return s.run(ctx, chromedp.Evaluate(js, out))
}

func (s *ChromeSession) OnOutgoingRequest(fn browser.RequestListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *ChromeSession) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChromeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		raw, err := network.GetCookies().Do(cdpCtx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}
	return cookies, nil
}
