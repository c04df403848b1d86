// Package model holds the value types shared by the scheduling engine, the
// dispatch router, the reconciler and the persons store.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
)

// -----------------------------------------------------------------------------
// Birthday
// -----------------------------------------------------------------------------

// Birthday is a day/month pair with an optional year. Year 0 means unknown.
type Birthday struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year,omitempty"`
}

// YearKnown reports whether the birth year was supplied.
func (b Birthday) YearKnown() bool {
	return b.Year != 0
}

// Valid reports whether the day exists in the month for some year.
// Feb 29 is accepted when the year is unknown.
func (b Birthday) Valid() bool {
	if b.Month < 1 || b.Month > 12 || b.Day < 1 {
		return false
	}
	year := b.Year
	if year == 0 {
		year = config.DefaultLeapYear
	}
	if year < 0 {
		return false
	}
	t := time.Date(year, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == b.Day && int(t.Month()) == b.Month
}

// Compatible reports whether two birthdays can describe the same person:
// same day and month, and equal years unless one of them is unknown.
func (b Birthday) Compatible(o Birthday) bool {
	if b.Day != o.Day || b.Month != o.Month {
		return false
	}
	return b.Year == 0 || o.Year == 0 || b.Year == o.Year
}

func (b Birthday) String() string {
	if !b.YearKnown() {
		return fmt.Sprintf(config.FormatNoYear, b.Month, b.Day)
	}
	return fmt.Sprintf(config.FormatFullDate, b.Year, b.Month, b.Day)
}

// -----------------------------------------------------------------------------
// Channels & methods
// -----------------------------------------------------------------------------

// MethodKind separates on-device delivery from message composition.
type MethodKind int

const (
	KindLocal MethodKind = iota + 1
	KindExternal
)

func (k MethodKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Channel is the concrete delivery channel of a reminder method.
type Channel string

const (
	ChannelNotification Channel = "notification"
	ChannelAlarm        Channel = "alarm"
	ChannelEmail        Channel = "email"
	ChannelSMS          Channel = "sms"
	ChannelWhatsApp     Channel = "whatsapp"
	ChannelSignal       Channel = "signal"
)

// Kind returns the method kind a channel belongs to, or 0 when unknown.
func (c Channel) Kind() MethodKind {
	switch c {
	case ChannelNotification, ChannelAlarm:
		return KindLocal
	case ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelSignal:
		return KindExternal
	default:
		return 0
	}
}

// Priority orders local notifications. Higher is more intrusive.
type Priority int

const (
	PriorityLow Priority = iota - 1
	PriorityDefault
	PriorityHigh
)

// Method is either a LocalMethod or an ExternalMethod.
type Method interface {
	method()
}

// LocalMethod fires on the device (notification or alarm).
type LocalMethod struct {
	Channel            Channel  `json:"channel"`
	Enabled            bool     `json:"enabled"`
	TimeOfDay          int      `json:"time_of_day"` // minutes after local midnight
	Sound              string   `json:"sound,omitempty"`
	Vibrate            bool     `json:"vibrate"`
	WakeScreen         bool     `json:"wake_screen"`
	OverrideSilentMode bool     `json:"override_silent_mode"`
	Priority           Priority `json:"priority"`
}

// ExternalMethod prepares a message for a composer (email, sms, messengers).
type ExternalMethod struct {
	Channel        Channel `json:"channel"`
	Enabled        bool    `json:"enabled"`
	TimeOfDay      int     `json:"time_of_day"`
	CustomTemplate string  `json:"custom_template,omitempty"`
	IncludeAge     bool    `json:"include_age"`
	Recipient      string  `json:"recipient,omitempty"`
}

func (LocalMethod) method()    {}
func (ExternalMethod) method() {}

// -----------------------------------------------------------------------------
// Reminder & Person
// -----------------------------------------------------------------------------

// Reminder is one slot of a person: a lead time and the channels to use.
type Reminder struct {
	DaysBefore int              `json:"days_before"`
	Local      []LocalMethod    `json:"local,omitempty"`
	External   []ExternalMethod `json:"external,omitempty"`
}

// Methods lists local methods first, then external ones, in configured order.
func (r Reminder) Methods() []Method {
	out := make([]Method, 0, len(r.Local)+len(r.External))
	for _, m := range r.Local {
		out = append(out, m)
	}
	for _, m := range r.External {
		out = append(out, m)
	}
	return out
}

// NewReminder builds a one-channel reminder with the channel's default
// options. The result is validated.
func NewReminder(daysBefore int, ch Channel, timeOfDay int) (Reminder, error) {
	r := Reminder{DaysBefore: daysBefore}
	switch ch.Kind() {
	case KindLocal:
		r.Local = []LocalMethod{{Channel: ch, Enabled: true, TimeOfDay: timeOfDay}}
	case KindExternal:
		r.External = []ExternalMethod{{Channel: ch, Enabled: true, TimeOfDay: timeOfDay}}
	default:
		return Reminder{}, fmt.Errorf("%s: %q", config.ErrChannelUnknown, ch)
	}
	if err := r.Validate(); err != nil {
		return Reminder{}, err
	}
	return r, nil
}

// Validate applies the edit-boundary rules to a reminder.
func (r Reminder) Validate() error {
	if r.DaysBefore < 0 || r.DaysBefore > config.MaxDaysBefore {
		return fmt.Errorf("%s: %d", config.ErrDaysBefore, r.DaysBefore)
	}
	seen := make(map[Channel]bool)
	check := func(ch Channel, kind MethodKind, tod int) error {
		if ch.Kind() != kind {
			return fmt.Errorf("%s: %q", config.ErrChannelKind, ch)
		}
		if seen[ch] {
			return fmt.Errorf("%s: %q", config.ErrChannelDuplicate, ch)
		}
		seen[ch] = true
		if tod < 0 || tod >= config.MinutesPerDay {
			return fmt.Errorf("%s: %d", config.ErrTimeOfDay, tod)
		}
		return nil
	}
	for _, m := range r.Local {
		if err := check(m.Channel, KindLocal, m.TimeOfDay); err != nil {
			return err
		}
	}
	for _, m := range r.External {
		if err := check(m.Channel, KindExternal, m.TimeOfDay); err != nil {
			return err
		}
	}
	return nil
}

// Person is a stored contact with an optional birthday and reminder slots.
type Person struct {
	ID          string     `json:"id"`
	GivenName   string     `json:"given_name,omitempty"`
	FamilyName  string     `json:"family_name,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Birthday    *Birthday  `json:"birthday,omitempty"`
	ExternalID  string     `json:"external_id,omitempty"`
	Reminders   []Reminder `json:"reminders,omitempty"`
}

// FullName prefers the display name, then "Given Family".
func (p Person) FullName() string {
	return fullName(p.DisplayName, p.GivenName, p.FamilyName)
}

// Validate applies the edit-boundary rules to a person.
func (p Person) Validate() error {
	if p.Birthday != nil && !p.Birthday.Valid() {
		return fmt.Errorf("%s: %s", config.ErrBirthdayInvalid, p.Birthday)
	}
	if len(p.Reminders) > config.MaxReminderSlots {
		return fmt.Errorf("%s: %d > %d", config.ErrTooManyReminders, len(p.Reminders), config.MaxReminderSlots)
	}
	for i, r := range p.Reminders {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s %d: %w", config.ErrReminderSlot, i, err)
		}
	}
	return nil
}

// Clone returns a deep copy so snapshots never alias store state.
func (p Person) Clone() Person {
	c := p
	if p.Birthday != nil {
		b := *p.Birthday
		c.Birthday = &b
	}
	if p.Reminders != nil {
		c.Reminders = make([]Reminder, len(p.Reminders))
		for i, r := range p.Reminders {
			c.Reminders[i] = Reminder{
				DaysBefore: r.DaysBefore,
				Local:      append([]LocalMethod(nil), r.Local...),
				External:   append([]ExternalMethod(nil), r.External...),
			}
		}
	}
	return c
}

// -----------------------------------------------------------------------------
// Plan entries
// -----------------------------------------------------------------------------

// Payload is either a LocalPayload or an ExternalPayload.
// Both are comparable so plan entries can be diffed with ==.
type Payload interface {
	payload()
}

// LocalPayload carries the device flags verbatim.
type LocalPayload struct {
	Name               string   `json:"name"`
	DaysBefore         int      `json:"days_before"`
	Sound              string   `json:"sound,omitempty"`
	Vibrate            bool     `json:"vibrate"`
	WakeScreen         bool     `json:"wake_screen"`
	OverrideSilentMode bool     `json:"override_silent_mode"`
	Priority           Priority `json:"priority"`
}

// ExternalPayload carries what the renderer needs at dispatch time.
// BirthYear is 0 when unknown.
type ExternalPayload struct {
	Name       string `json:"name"`
	BirthYear  int    `json:"birth_year,omitempty"`
	Template   string `json:"template,omitempty"`
	IncludeAge bool   `json:"include_age"`
	Recipient  string `json:"recipient,omitempty"`
}

func (LocalPayload) payload()    {}
func (ExternalPayload) payload() {}

// Key identifies a plan entry across recomputations.
type Key struct {
	PersonID string  `json:"person_id"`
	Slot     int     `json:"slot"`
	Channel  Channel `json:"channel"`
}

func (k Key) String() string {
	return fmt.Sprintf(config.FormatPlanKey, k.PersonID, k.Slot, k.Channel)
}

// Kind is the method kind of the keyed channel.
func (k Key) Kind() MethodKind {
	return k.Channel.Kind()
}

// PlanEntry is one scheduled (person, slot, channel) unit.
type PlanEntry struct {
	Key        Key       `json:"key"`
	FireAt     time.Time `json:"fire_at"`
	Occurrence time.Time `json:"occurrence"`
	DaysBefore int       `json:"days_before"`
	Payload    Payload   `json:"payload"`
}

// Kind is the method kind of the entry.
func (e PlanEntry) Kind() MethodKind {
	return e.Key.Kind()
}

// SameAs reports whether two entries would dispatch identically.
func (e PlanEntry) SameAs(o PlanEntry) bool {
	return e.Key == o.Key && e.FireAt.Equal(o.FireAt) && e.Payload == o.Payload
}

// -----------------------------------------------------------------------------
// Reconciliation input
// -----------------------------------------------------------------------------

// Candidate is a person proposed by an external contact source.
type Candidate struct {
	OriginID    string    `json:"origin_id"`
	GivenName   string    `json:"given_name,omitempty"`
	FamilyName  string    `json:"family_name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Birthday    *Birthday `json:"birthday,omitempty"`
}

// FullName prefers the display name, then "Given Family".
func (c Candidate) FullName() string {
	return fullName(c.DisplayName, c.GivenName, c.FamilyName)
}

func fullName(display, given, family string) string {
	if s := strings.TrimSpace(display); s != "" {
		return s
	}
	return strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(family))
}
