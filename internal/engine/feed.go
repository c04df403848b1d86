package engine

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// FeedBuilder renders a plan as an iCalendar feed: one VEVENT per entry at
// its fire instant, with a DISPLAY alarm for on-device channels.
type FeedBuilder struct {
	Clock Clock

	// Summary allows the host to inject localized event titles.
	Summary func(e model.PlanEntry) string
}

// Build encodes entries. An empty plan yields a minimal valid calendar.
func (f *FeedBuilder) Build(entries []model.PlanEntry) ([]byte, error) {
	if len(entries) == 0 {
		var buf bytes.Buffer
		buf.WriteString(config.StubVCalendar)
		return buf.Bytes(), nil
	}

	cal := ical.NewCalendar()

	// Set standard iCalendar headers
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	// RFC 7986: Suggest a refresh interval
	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(f.Clock.Now().UTC())

	for _, e := range entries {
		summary := fmt.Sprintf(config.FallbackSummary, payloadName(e.Payload), e.Key.Channel)
		if f.Summary != nil {
			summary = f.Summary(e)
		}

		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, eventUID(e))
		event.Props.SetText(config.PropSummary, summary)
		event.Props.SetText(config.PropCategories, string(e.Key.Channel))
		event.Props.Set(dtStampProp)

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDateTime(e.FireAt.UTC())
		event.Props.Set(dtStartProp)

		if e.Kind() == model.KindLocal {
			addAlarm(event, config.ICalTriggerAt, summary)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	slog.Debug(config.MsgFeedBuilt,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyEntries, len(entries),
		config.LogKeySizeBytes, buf.Len(),
	)
	return buf.Bytes(), nil
}

// eventUID is stable for a key and an occurrence year, so calendar clients
// update the event in place when only the fire instant moves.
func eventUID(e model.PlanEntry) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf(config.FormatHashInput, e.Key.String(), e.Key.Kind(), config.UIDSalt)))
	return fmt.Sprintf(config.FormatUID, fmt.Sprintf("%x", hash[:config.UIDHashLength]), e.Occurrence.Year(), config.ICalDomain)
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually to avoid "VALUE=TEXT" param
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}

func payloadName(p model.Payload) string {
	switch p := p.(type) {
	case model.LocalPayload:
		return p.Name
	case model.ExternalPayload:
		return p.Name
	default:
		return config.FallbackName
	}
}
