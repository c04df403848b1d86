package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// decodeBirthdayEvents reads every VCALENDAR of r and keeps the all-day
// events that recur yearly (or not at all). The event summary is the name.
func decodeBirthdayEvents(ctx context.Context, r io.Reader) ([]model.Candidate, error) {
	decoder := ical.NewDecoder(r)
	var out []model.Candidate

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		cal, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrICalParse, err)
		}

		for _, event := range cal.Events() {
			c, ok := birthdayFromEvent(event)
			if !ok {
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func birthdayFromEvent(event ical.Event) (model.Candidate, bool) {
	uid, _ := event.Props.Text(config.PropUID)

	start := event.Props.Get(config.PropDTStart)
	if start == nil || !isDateValue(start) || !isYearly(event.Props.Get(config.PropRRule)) {
		slog.Debug(config.MsgSkippedEvent,
			config.LogKeyComponent, config.CompContacts,
			config.LogKeyValue, uid)
		return model.Candidate{}, false
	}

	b, err := parseDate(start.Value)
	if err != nil || !b.Valid() {
		slog.Debug(config.MsgSkippedDate,
			config.LogKeyComponent, config.CompContacts,
			config.LogKeyValue, start.Value)
		return model.Candidate{}, false
	}
	if start.Params.Get(config.ParamOmitYear) != "" {
		b.Year = 0
	}

	name, _ := event.Props.Text(config.PropSummary)
	c := model.Candidate{
		DisplayName: strings.TrimSpace(name),
		Birthday:    &b,
		OriginID:    uid,
	}
	if c.OriginID == "" {
		c.OriginID = originID(c.FullName(), c.Birthday)
	}
	return c, true
}

func isDateValue(p *ical.Prop) bool {
	if v := p.Params.Get(config.ParamValue); v != "" {
		return strings.EqualFold(v, config.ValueDate)
	}
	return len(p.Value) == len(config.DateFormatFullBasic)
}

func isYearly(rrule *ical.Prop) bool {
	if rrule == nil {
		return true
	}
	for _, part := range strings.Split(rrule.Value, ";") {
		if strings.EqualFold(strings.TrimSpace(part), config.ICalYearly) {
			return true
		}
	}
	return false
}
