package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// decodeCards turns a vCard stream into candidates. Malformed cards and
// unparsable birthdays are logged and skipped. A card without BDAY is kept
// with no birthday so it can still be matched.
func decodeCards(ctx context.Context, r io.Reader) ([]model.Candidate, error) {
	decoder := vcard.NewDecoder(r)
	var out []model.Candidate

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Log error but continue to next card to maximize data recovery
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompContacts,
				config.LogKeyError, err)
			continue
		}

		c := model.Candidate{}
		if fn := card.Get(config.VCardFN); fn != nil {
			c.DisplayName = strings.TrimSpace(fn.Value)
		}
		if n := card.Name(); n != nil {
			c.GivenName = strings.TrimSpace(n.GivenName)
			c.FamilyName = strings.TrimSpace(n.FamilyName)
		}

		if bday := card.Get(config.VCardBDAY); bday != nil && bday.Value != "" {
			b, err := parseDate(bday.Value)
			if err != nil {
				slog.Debug(config.MsgSkippedDate,
					config.LogKeyComponent, config.CompContacts,
					config.LogKeyValue, bday.Value)
				continue
			}
			if bday.Params.Get(config.ParamOmitYear) != "" {
				b.Year = 0
			}
			c.Birthday = &b
		}

		if uid := card.Get(config.VCardUID); uid != nil && uid.Value != "" {
			c.OriginID = uid.Value
		} else {
			c.OriginID = originID(c.FullName(), c.Birthday)
		}

		out = append(out, c)
	}
	return out, nil
}

// ParseBirthday reads a birthday typed by a user in any of the vCard date
// forms and rejects dates that do not exist.
func ParseBirthday(value string) (model.Birthday, error) {
	b, err := parseDate(value)
	if err != nil {
		return model.Birthday{}, fmt.Errorf("%s: %q", config.ErrDateParse, value)
	}
	if !b.Valid() {
		return model.Birthday{}, fmt.Errorf("%s: %s", config.ErrBirthdayInvalid, b)
	}
	return b, nil
}

// parseDate handles the vCard and iCalendar date formats seen in the wild.
// The sentinel year 1604 means the year is unknown.
func parseDate(value string) (model.Birthday, error) {
	value = strings.TrimSpace(value)

	// Full dates (Year known)
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			b := model.Birthday{Day: t.Day(), Month: int(t.Month()), Year: t.Year()}
			if b.Year == config.OmitYearSentinel {
				b.Year = 0
			}
			return b, nil
		}
	}

	// Truncated dates (Year unknown). Go parses these into year 0, a leap year,
	// so --0229 survives.
	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			return model.Birthday{Day: t.Day(), Month: int(t.Month())}, nil
		}
	}

	return model.Birthday{}, errors.New(config.ErrDateParse)
}
