// Package contacts reads candidate persons from address books and birthday
// calendars, locally or over HTTP.
package contacts

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// Source is the pull-only capability the importer depends on.
type Source interface {
	GetContacts(ctx context.Context) ([]model.Candidate, error)
	GetBirthdayCalendarEvents(ctx context.Context) ([]model.Candidate, error)
}

// Collect reads both capabilities of src. A candidate whose origin id was
// already produced, by the address book or an earlier event, is dropped.
func Collect(ctx context.Context, src Source) ([]model.Candidate, error) {
	start := time.Now()

	cards, err := src.GetContacts(ctx)
	if err != nil {
		return nil, err
	}
	events, err := src.GetBirthdayCalendarEvents(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cards))
	out := make([]model.Candidate, 0, len(cards)+len(events))
	for _, c := range slices.Concat(cards, events) {
		if c.OriginID != "" {
			if seen[c.OriginID] {
				continue
			}
			seen[c.OriginID] = true
		}
		out = append(out, c)
	}

	slog.Info(config.MsgContactsRead,
		config.LogKeyComponent, config.CompContacts,
		config.LogKeyCount, len(out),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return out, nil
}

// VCardSource reads a vCard address book (local file or CardDAV/WebDAV URL)
// and an optional iCalendar birthday calendar.
type VCardSource struct {
	Settings    config.ContactsSettings
	Fetcher     Fetcher
	Credentials Credentials
}

// NewVCardSource wires a source from the contacts settings.
func NewVCardSource(s config.ContactsSettings, f Fetcher, creds Credentials) *VCardSource {
	return &VCardSource{Settings: s, Fetcher: f, Credentials: creds}
}

// GetContacts decodes every card of the configured address book.
func (s *VCardSource) GetContacts(ctx context.Context) ([]model.Candidate, error) {
	reader, err := s.acquireStream(ctx)
	if err != nil {
		// If context error occurred during acquisition, return it directly.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", config.ErrContactsFetch, err)
	}
	// Best effort close. Errors in Close() for read-only files are rarely actionable here.
	defer func() { _ = reader.Close() }()

	return decodeCards(ctx, reader)
}

// GetBirthdayCalendarEvents decodes the configured birthday calendar.
// No calendar configured means no events.
func (s *VCardSource) GetBirthdayCalendarEvents(ctx context.Context) ([]model.Candidate, error) {
	if s.Settings.CalendarPath == "" {
		return nil, nil
	}

	var (
		reader io.ReadCloser
		err    error
	)
	if isRemote(s.Settings.CalendarPath) {
		reader, err = s.fetch(ctx, s.Settings.CalendarPath)
	} else {
		reader, err = os.Open(s.Settings.CalendarPath)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", config.ErrContactsFetch, err)
	}
	defer func() { _ = reader.Close() }()

	return decodeBirthdayEvents(ctx, reader)
}

// acquireStream opens the appropriate data source based on configuration.
func (s *VCardSource) acquireStream(ctx context.Context) (io.ReadCloser, error) {
	switch s.Settings.Mode {
	case config.SourceModeLocal:
		if s.Settings.LocalPath == "" {
			return nil, errors.New(config.ErrLocalPathEmpty)
		}
		return os.Open(s.Settings.LocalPath)
	case config.SourceModeWeb:
		if s.Settings.WebURL == "" {
			return nil, errors.New(config.ErrWebURLEmpty)
		}
		return s.fetch(ctx, s.Settings.WebURL)
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, s.Settings.Mode)
	}
}

func (s *VCardSource) fetch(ctx context.Context, target string) (io.ReadCloser, error) {
	if s.Fetcher == nil {
		return nil, errors.New(config.ErrFetcherMissing)
	}

	var pass string
	if s.Settings.WebUser != "" && s.Credentials != nil {
		p, err := s.Credentials.Password(s.Settings.WebUser)
		if err != nil {
			slog.Debug(config.MsgPassFail,
				config.LogKeyComponent, config.CompContacts,
				config.LogKeyUser, s.Settings.WebUser,
				config.LogKeyError, err,
			)
		}
		pass = p
	}
	return s.Fetcher.Fetch(ctx, target, s.Settings.WebUser, pass)
}

func isRemote(path string) bool {
	u, err := url.Parse(path)
	return err == nil && (u.Scheme == config.SchemeHTTP || u.Scheme == config.SchemeHTTPS)
}

// originID derives a stable identifier for sources without a UID.
func originID(name string, b *model.Birthday) string {
	date := ""
	if b != nil {
		date = b.String()
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf(config.FormatHashInput, name, date, config.UIDSalt)))
	return fmt.Sprintf("%x", hash[:config.UIDHashLength])
}
