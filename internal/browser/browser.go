package browser

import (
	"context"
	"net/http"
	"time"
)

// Input keys the walker sends into the viewer.
const (
	KeyArrowRight = "ArrowRight"
	KeyEscape     = "Escape"
)

// RequestListener observes the URL of every outgoing request on the session.
// It runs on the browser event loop and must not block.
type RequestListener func(url string)

// Session is the capability the core drives on an authenticated, navigable
// browser. All calls are treated as potentially slow or flaky; callers wrap
// them in bounded retry or idle-increment fallback.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentLocation(ctx context.Context) (string, error)
	LocatorCount(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string) error
	SendKey(ctx context.Context, key string) error
	Fill(ctx context.Context, selector, text string) error
	EvaluateInPage(ctx context.Context, js string, out any) error
	OnOutgoingRequest(fn RequestListener)
	Wait(ctx context.Context, d time.Duration) error

	// Cookies exports the session's cookie jar so downloads can reuse the
	// viewer's auth state.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}
