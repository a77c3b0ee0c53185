package scraperimpl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/browser"
	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/internal/media"
	"github.com/AhmedNaeem5575/insta-story/internal/repositories/ledger"
	"github.com/AhmedNaeem5575/insta-story/internal/walker"
	"github.com/AhmedNaeem5575/insta-story/pkg/config"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedStory struct {
	location string
	isVideo  bool
	poster   string
	videoURL string
	audioURL string
}

type scriptedSession struct {
	stories     []scriptedStory
	idx         int
	entered     bool
	interceptor *media.Interceptor
}

func (s *scriptedSession) current() scriptedStory { return s.stories[s.idx] }

func (s *scriptedSession) feedCaptures() {
	st := s.current()
	if st.videoURL != "" {
		s.interceptor.Observe(st.videoURL)
	}
	if st.audioURL != "" {
		s.interceptor.Observe(st.audioURL)
	}
}

func (s *scriptedSession) Navigate(_ context.Context, url string) error {
	if strings.Contains(url, "/stories/") {
		s.entered = true
		s.idx = 0
		s.feedCaptures()
	}
	return nil
}

func (s *scriptedSession) CurrentLocation(context.Context) (string, error) {
	if !s.entered {
		return "https://www.instagram.com/", nil
	}
	return s.current().location, nil
}

func (s *scriptedSession) LocatorCount(_ context.Context, selector string) (int, error) {
	if selector == "video" && s.entered && s.current().isVideo {
		return 1, nil
	}
	return 0, nil
}

func (s *scriptedSession) Click(context.Context, string) error { return nil }

func (s *scriptedSession) SendKey(_ context.Context, key string) error {
	if key == browser.KeyArrowRight && s.idx < len(s.stories)-1 {
		s.idx++
		s.feedCaptures()
	}
	return nil
}

func (s *scriptedSession) Fill(context.Context, string, string) error { return nil }

func (s *scriptedSession) EvaluateInPage(_ context.Context, js string, out any) error {
	switch {
	case strings.Contains(js, "poster"):
		*(out.(*string)) = s.current().poster
	case strings.Contains(js, "innerText"):
		*(out.(*[]string)) = nil
	case strings.Contains(js, "a[href]"):
		*(out.(*[]string)) = nil
	}
	return nil
}

func (s *scriptedSession) OnOutgoingRequest(browser.RequestListener) {}

func (s *scriptedSession) Wait(context.Context, time.Duration) error { return nil }

func (s *scriptedSession) Cookies(context.Context) ([]*http.Cookie, error) { return nil, nil }

var _ browser.Session = (*scriptedSession)(nil)

type stubReconciler struct{}

func (stubReconciler) Reconcile(context.Context, string, string) (domain.MediaArtifact, error) {
	return domain.MediaArtifact{ID: "art-222", URL: "/videos/art-222.mp4"}, nil
}

// orderedLedger delegates to a real file ledger while recording call order
// against the notifier.
type orderedLedger struct {
	ledger.Repository
	calls *[]string
}

func (l *orderedLedger) MarkProcessed(ctx context.Context, username string, items []domain.StoryItem) error {
	*l.calls = append(*l.calls, "mark")
	return l.Repository.MarkProcessed(ctx, username, items)
}

type recordingNotifier struct {
	calls   *[]string
	batches []*domain.StoryBatch
	events  [][]string
	fail    bool
}

func (n *recordingNotifier) NotifyBatch(batch *domain.StoryBatch, events []string) error {
	*n.calls = append(*n.calls, "notify")
	if n.fail {
		return fmt.Errorf("telegram unreachable")
	}
	n.batches = append(n.batches, batch)
	n.events = append(n.events, events)
	return nil
}

func (n *recordingNotifier) NotifyError(string) error { return nil }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Instagram.UsersParse = "target"
	cfg.Browser.SettleInterval = time.Millisecond
	return cfg
}

func newScrapeFixture(t *testing.T, notifierFails bool) (*ScraperImpl, *recordingNotifier, ledger.Repository, *[]string) {
	t.Helper()

	interceptor := media.NewInterceptor(logger.Nop())
	session := &scriptedSession{
		interceptor: interceptor,
		stories: []scriptedStory{
			{location: "https://www.instagram.com/stories/target/111/",
				poster: "https://scontent.cdninstagram.com/p/111.jpg"},
			{location: "https://www.instagram.com/stories/target/222/", isVideo: true,
				videoURL: "https://scontent.cdninstagram.com/v/t2/f2/m86/222.mp4",
				audioURL: "https://scontent.cdninstagram.com/v/t16/f2/m69/222.mp4"},
			{location: "https://www.instagram.com/stories/target/333/",
				poster: "https://scontent.cdninstagram.com/p/333.jpg"},
		},
	}

	fileRepo, err := ledger.NewFileRepository(t.TempDir(), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, fileRepo.MarkProcessed(context.Background(), "target",
		[]domain.StoryItem{{ID: "111"}}))

	calls := &[]string{}
	repo := &orderedLedger{Repository: fileRepo, calls: calls}
	notifier := &recordingNotifier{calls: calls, fail: notifierFails}

	w := walker.New(session, interceptor, stubReconciler{}, logger.Nop(), time.Millisecond)

	s := New(Opts{
		Session:  session,
		Walker:   w,
		Ledger:   repo,
		Notifier: notifier,
		Logger:   logger.Nop(),
		Config:   testConfig(),
	})
	return s, notifier, fileRepo, calls
}

func TestScrapeUserStoriesEndToEnd(t *testing.T) {
	s, notifier, fileRepo, calls := newScrapeFixture(t, false)

	batch, err := s.ScrapeUserStories(context.Background(), "target")
	require.NoError(t, err)

	require.Len(t, batch.Stories, 2, "111 is already in the ledger")
	assert.Equal(t, 2, batch.TotalStories)
	assert.Equal(t, "target", batch.Username)

	video := batch.Stories[0]
	assert.Equal(t, "222", video.ID)
	assert.True(t, video.IsVideo)
	assert.Equal(t, "art-222", video.LocalArtifactID)
	assert.Equal(t, "/videos/art-222.mp4", video.MediaURL)

	image := batch.Stories[1]
	assert.Equal(t, "333", image.ID)
	assert.False(t, image.IsVideo)
	assert.Equal(t, "https://scontent.cdninstagram.com/p/333.jpg", image.MediaURL)

	// Hand-off strictly precedes the ledger mark.
	assert.Equal(t, []string{"notify", "mark"}, *calls)
	require.Len(t, notifier.batches, 1)
	assert.NotEmpty(t, notifier.events[0])

	set, err := fileRepo.ProcessedIDs(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"111": {}, "222": {}, "333": {}}, set)
}

func TestScrapeLeavesLedgerUnmarkedWhenHandOffFails(t *testing.T) {
	s, _, fileRepo, calls := newScrapeFixture(t, true)

	batch, err := s.ScrapeUserStories(context.Background(), "target")
	require.Error(t, err)
	require.NotNil(t, batch, "the assembled batch is returned even on failure")
	assert.Len(t, batch.Stories, 2)

	// No mark after a failed hand-off: the next run re-processes.
	assert.Equal(t, []string{"notify"}, *calls)
	set, err := fileRepo.ProcessedIDs(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"111": {}}, set)
}

// loginSession scripts just enough navigation state for the login flow: the
// username field exists only while the location is the login page.
type loginSession struct {
	mu       sync.Mutex
	location string
}

func (s *loginSession) setLocation(loc string) {
	s.mu.Lock()
	s.location = loc
	s.mu.Unlock()
}

func (s *loginSession) Navigate(_ context.Context, url string) error {
	s.setLocation(url)
	return nil
}

func (s *loginSession) CurrentLocation(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location, nil
}

func (s *loginSession) LocatorCount(_ context.Context, selector string) (int, error) {
	if selector == usernameSel {
		loc, _ := s.CurrentLocation(context.Background())
		if strings.Contains(loc, "/accounts/login") {
			return 1, nil
		}
	}
	return 0, nil
}

func (s *loginSession) Click(context.Context, string) error        { return nil }
func (s *loginSession) SendKey(context.Context, string) error      { return nil }
func (s *loginSession) Fill(context.Context, string, string) error { return nil }

func (s *loginSession) EvaluateInPage(context.Context, string, any) error { return nil }

func (s *loginSession) OnOutgoingRequest(browser.RequestListener) {}

func (s *loginSession) Wait(context.Context, time.Duration) error { return nil }

func (s *loginSession) Cookies(context.Context) ([]*http.Cookie, error) { return nil, nil }

var _ browser.Session = (*loginSession)(nil)

func TestLoginManualSuspendsUntilResume(t *testing.T) {
	cfg := testConfig()
	cfg.Instagram.ManualLogin = true
	session := &loginSession{}
	s := New(Opts{Session: session, Logger: logger.Nop(), Config: cfg})

	done := make(chan error, 1)
	go func() { done <- s.Login(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("login returned before resume: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// Operator solves the challenge in the visible browser, then signals.
	session.setLocation("https://www.instagram.com/")
	s.Resume()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("login did not return after resume")
	}
}

func TestLoginManualResumeRevalidatesState(t *testing.T) {
	cfg := testConfig()
	cfg.Instagram.ManualLogin = true
	session := &loginSession{}
	s := New(Opts{Session: session, Logger: logger.Nop(), Config: cfg})

	// Resume fires but the session never leaves the login flow; the signal
	// alone must not count as authenticated.
	s.Resume()
	err := s.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete")
}

func TestTargets(t *testing.T) {
	cfg := testConfig()
	cfg.Instagram.UsersParse = " alice, bob ,,charlie "
	s := &ScraperImpl{Config: cfg}
	assert.Equal(t, []string{"alice", "bob", "charlie"}, s.Targets())
}
