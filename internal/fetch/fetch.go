// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
)

// DefaultUserAgent is sent when no WithUserAgent option is given.
const DefaultUserAgent = "tapkit/dev"

// ErrTransient marks failures worth retrying later: network errors, 5xx
// responses and rate limiting.
var ErrTransient = errors.New("transient download failure")

// githubHosts receive the auth token. Tag archives redirect from github.com
// to codeload.github.com, release assets to objects.githubusercontent.com.
var githubHosts = []string{
	"github.com",
	"api.github.com",
	"codeload.github.com",
	"objects.githubusercontent.com",
}

type (
	// Client downloads archives over HTTP.
	Client struct {
		httpClient *http.Client
		token      string
		userAgent  string
		progress   io.Writer
		tokenHosts []string
	}

	// Option configures a Client.
	Option func(*Client)

	// StatusError is returned for any non-200 response.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// RateLimitError is returned when GitHub reports an exhausted quota.
	RateLimitError struct {
		Limit   int
		ResetAt time.Time
	}
)

func (e *StatusError) Error() string {
	return fmt.Sprintf("downloading %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns ErrTransient for server errors and 429, nil otherwise.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return ErrTransient
	}
	return nil
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub rate limit exceeded (limit %d, resets at %s)",
		e.Limit, e.ResetAt.UTC().Format("15:04 UTC"))
}

// Unwrap returns ErrTransient.
func (e *RateLimitError) Unwrap() error { return ErrTransient }

// WithHTTPClient sets the HTTP client, e.g. one with a timeout or proxy.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken sets a bearer token sent to GitHub hosts only.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithProgress renders a byte progress bar on w while downloading.
// A nil writer disables it.
func WithProgress(w io.Writer) Option {
	return func(cl *Client) { cl.progress = w }
}

// WithTokenHosts adds hosts that may receive the token, used by tests that
// stand in for GitHub.
func WithTokenHosts(hosts ...string) Option {
	return func(cl *Client) { cl.tokenHosts = append(cl.tokenHosts, hosts...) }
}

// New creates a Client. Without options it uses http.DefaultClient and
// DefaultUserAgent and draws no progress bar.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		userAgent:  DefaultUserAgent,
		tokenHosts: slices.Clone(githubHosts),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CachePath returns where Download stores rawURL inside dir. The prefix keeps
// two archives with the same file name (every GitHub tag archive is called
// v1.0.0.tar.gz) apart.
func CachePath(dir, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(dir, hex.EncodeToString(sum[:])[:16]+"--"+fileName(rawURL))
}

// Download fetches rawURL into dir and returns the cached file's path.
// A previously downloaded file is reused without contacting the server.
func (c *Client) Download(ctx context.Context, rawURL, dir string) (string, error) {
	dest := CachePath(dir, rawURL)
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		slog.Debug("using cached download", "url", redactURL(rawURL), "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	body, size, err := c.Open(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only response body

	slog.Debug("downloading", "url", redactURL(rawURL), "size", size)

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }() // no-op after a successful rename

	var w io.Writer = tmp
	var bar *progressbar.ProgressBar
	if c.progress != nil {
		bar = newBar(c.progress, size, fileName(rawURL))
		w = io.MultiWriter(tmp, bar)
	}

	if _, err := io.Copy(w, body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("downloading %s: %w: %w", redactURL(rawURL), ErrTransient, err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("moving download into cache: %w", err)
	}
	return dest, nil
}

// Open issues a GET for rawURL and returns the body and its advertised length
// (-1 when unknown). The caller closes the body.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request for %s: %w", redactURL(rawURL), err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" && c.isTokenHost(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("downloading %s: %w", redactURL(rawURL), ctx.Err())
		}
		return nil, 0, fmt.Errorf("downloading %s: %w: %w", redactURL(rawURL), ErrTransient, err)
	}

	if rlErr := checkRateLimit(resp); rlErr != nil {
		_ = resp.Body.Close()
		return nil, 0, rlErr
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, &StatusError{URL: redactURL(rawURL), StatusCode: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}

// isTokenHost reports whether the token may be sent to u. net/http already
// drops Authorization on redirects to another domain.
func (c *Client) isTokenHost(u *url.URL) bool {
	host := u.Hostname()
	return slices.ContainsFunc(c.tokenHosts, func(h string) bool { return strings.EqualFold(h, host) })
}

func newBar(w io.Writer, size int64, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// checkRateLimit only looks at the X-RateLimit-* headers; a zero remaining
// quota is an error whatever the status code.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	if rem, err := strconv.Atoi(remaining); err != nil || rem > 0 {
		return nil //nolint:nilerr // malformed header is not fatal
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // best effort
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // best effort
	return &RateLimitError{Limit: limit, ResetAt: time.Unix(resetUnix, 0)}
}

func fileName(rawURL string) string {
	name := "download"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." && base != "" {
			name = base
		}
	}
	return name
}

// redactURL drops query and fragment, which may carry signed tokens.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
