// Package fetch downloads raw media bytes through the credentials of the
// live browser session, so CDN requests carry the same cookie/auth state as
// the viewer that produced the URLs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/browser"
	"github.com/AhmedNaeem5575/insta-story/pkg/errors"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Fetcher interface {
	FetchBytes(ctx context.Context, rawURL string) ([]byte, error)
}

// SessionFetcher is a Fetcher backed by the browser session's cookie jar.
type SessionFetcher struct {
	session browser.Session
	client  *http.Client
}

func NewSessionFetcher(session browser.Session) *SessionFetcher {
	return &SessionFetcher{
		session: session,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

var _ Fetcher = (*SessionFetcher)(nil)

func (f *SessionFetcher) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	cookies, err := f.session.Cookies(ctx)
	if err == nil {
		host := req.URL.Hostname()
		for _, c := range cookies {
			if cookieMatchesHost(c, host) {
				req.AddCookie(c)
			}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", errors.ErrDownloadFailed, resp.StatusCode, redact(rawURL))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDownloadFailed, err)
	}
	return body, nil
}

func cookieMatchesHost(c *http.Cookie, host string) bool {
	domain := strings.TrimPrefix(c.Domain, ".")
	return domain != "" && (host == domain || strings.HasSuffix(host, "."+domain))
}

// redact trims query strings out of URLs destined for error messages; CDN
// URLs carry signed tokens.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	u.RawQuery = ""
	return u.String()
}
