package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
)

// Fetcher downloads a remote address book or calendar.
type Fetcher interface {
	Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error)
}

// HTTPFetcher is the Fetcher for CardDAV, CalDAV and plain HTTP exports.
type HTTPFetcher struct {
	Client *http.Client
	// MaxBytes caps a body. Reading past it fails instead of truncating.
	MaxBytes int64
}

// NewHTTPFetcher returns a fetcher with the default timeout and size cap.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: config.HTTPTimeout},
		MaxBytes: config.MaxHTTPResponseSize,
	}
}

// Fetch issues a GET for target with optional basic auth. The returned body
// must be closed by the caller.
func (f *HTTPFetcher) Fetch(ctx context.Context, target, user, pass string) (io.ReadCloser, error) {
	req, log, err := f.newRequest(ctx, target)
	if err != nil {
		return nil, err
	}
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}

	log.Debug(config.MsgFetchStart)
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFetchNetwork, err)
	}
	if err := checkStatus(resp); err != nil {
		_ = resp.Body.Close()
		log.Warn(config.MsgFetchBadStatus, slog.Int(config.LogKeyStatus, resp.StatusCode))
		return nil, err
	}

	log.Info(config.MsgFetchDownloading, slog.Int64(config.LogKeySizeBytes, resp.ContentLength))
	return &cappedBody{body: resp.Body, left: f.maxBytes(), log: log}, nil
}

// newRequest validates target and builds the GET with the headers for its kind.
func (f *HTTPFetcher) newRequest(ctx context.Context, target string) (*http.Request, *slog.Logger, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", config.ErrFetchRequest, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, acceptFor(u))

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, redact(u)),
	)
	return req, log, nil
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *HTTPFetcher) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return config.MaxHTTPResponseSize
}

// acceptFor picks the media types from the file extension of u.
func acceptFor(u *url.URL) string {
	switch strings.ToLower(path.Ext(u.Path)) {
	case config.ExtICS:
		return config.MimeCalendar
	case config.ExtVCF:
		return config.MimeVCard
	default:
		return config.MimeContacts
	}
}

// redact drops credentials, query and fragment, which often carry tokens.
func redact(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %s", config.ErrFetchAuth, resp.Status)
	default:
		return fmt.Errorf("%s: %s", config.ErrFetchStatus, resp.Status)
	}
}

// cappedBody fails once more than left bytes have been read.
type cappedBody struct {
	body io.ReadCloser
	left int64
	read int64
	log  *slog.Logger
}

func (c *cappedBody) Read(p []byte) (int, error) {
	if c.left <= 0 {
		// One extra byte tells a body of exactly the cap from a longer one.
		var extra [1]byte
		if n, _ := c.body.Read(extra[:]); n > 0 {
			return 0, errors.New(config.ErrResponseTooLarge)
		}
		return 0, io.EOF
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.body.Read(p)
	c.left -= int64(n)
	c.read += int64(n)
	return n, err
}

func (c *cappedBody) Close() error {
	c.log.Debug(config.MsgFetchDone, slog.Int64(config.LogKeySizeBytes, c.read))
	return c.body.Close()
}
