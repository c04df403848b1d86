package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

func TestBirthday_Valid(t *testing.T) {
	tests := []struct {
		name string
		b    model.Birthday
		want bool
	}{
		{"Regular date", model.Birthday{Day: 15, Month: 6, Year: 1990}, true},
		{"Unknown year", model.Birthday{Day: 15, Month: 6}, true},
		{"Feb 29 unknown year", model.Birthday{Day: 29, Month: 2}, true},
		{"Feb 29 leap year", model.Birthday{Day: 29, Month: 2, Year: 2000}, true},
		{"Feb 29 non-leap year", model.Birthday{Day: 29, Month: 2, Year: 1999}, false},
		{"Feb 30", model.Birthday{Day: 30, Month: 2}, false},
		{"April 31", model.Birthday{Day: 31, Month: 4}, false},
		{"Month 13", model.Birthday{Day: 1, Month: 13}, false},
		{"Day 0", model.Birthday{Day: 0, Month: 1}, false},
		{"Negative year", model.Birthday{Day: 1, Month: 1, Year: -5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.Valid())
		})
	}
}

func TestBirthday_CompatibleAndString(t *testing.T) {
	known := model.Birthday{Day: 3, Month: 4, Year: 1990}
	unknown := model.Birthday{Day: 3, Month: 4}

	assert.True(t, known.Compatible(unknown))
	assert.True(t, unknown.Compatible(known))
	assert.False(t, known.Compatible(model.Birthday{Day: 3, Month: 4, Year: 1991}))
	assert.False(t, known.Compatible(model.Birthday{Day: 4, Month: 4, Year: 1990}))

	assert.Equal(t, "1990-04-03", known.String())
	assert.Equal(t, "--04-03", unknown.String())
}

func TestChannel_Kind(t *testing.T) {
	assert.Equal(t, model.KindLocal, model.ChannelNotification.Kind())
	assert.Equal(t, model.KindLocal, model.ChannelAlarm.Kind())
	for _, ch := range []model.Channel{model.ChannelEmail, model.ChannelSMS, model.ChannelWhatsApp, model.ChannelSignal} {
		assert.Equal(t, model.KindExternal, ch.Kind(), string(ch))
	}
	assert.Equal(t, model.MethodKind(0), model.Channel("pigeon").Kind())
}

func TestReminder_Validate(t *testing.T) {
	ok := model.Reminder{
		DaysBefore: 1,
		Local:      []model.LocalMethod{{Channel: model.ChannelNotification, Enabled: true, TimeOfDay: 9 * 60}},
		External:   []model.ExternalMethod{{Channel: model.ChannelEmail, TimeOfDay: 0}},
	}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name    string
		r       model.Reminder
		wantErr string
	}{
		{"Negative days", model.Reminder{DaysBefore: -1}, config.ErrDaysBefore},
		{"Too many days", model.Reminder{DaysBefore: config.MaxDaysBefore + 1}, config.ErrDaysBefore},
		{"Time of day overflow", model.Reminder{Local: []model.LocalMethod{{Channel: model.ChannelAlarm, TimeOfDay: config.MinutesPerDay}}}, config.ErrTimeOfDay},
		{"External channel in local list", model.Reminder{Local: []model.LocalMethod{{Channel: model.ChannelSMS}}}, config.ErrChannelKind},
		{"Duplicate channel", model.Reminder{External: []model.ExternalMethod{{Channel: model.ChannelSMS}, {Channel: model.ChannelSMS}}}, config.ErrChannelDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewReminder(t *testing.T) {
	r, err := model.NewReminder(2, model.ChannelAlarm, 8*60)
	require.NoError(t, err)
	require.Len(t, r.Local, 1)
	assert.Empty(t, r.External)
	assert.Equal(t, 2, r.DaysBefore)
	assert.True(t, r.Local[0].Enabled)
	assert.Equal(t, 8*60, r.Local[0].TimeOfDay)

	r, err = model.NewReminder(0, model.ChannelWhatsApp, 0)
	require.NoError(t, err)
	require.Len(t, r.External, 1)
	assert.Equal(t, model.ChannelWhatsApp, r.External[0].Channel)

	_, err = model.NewReminder(0, "pigeon", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrChannelUnknown)

	_, err = model.NewReminder(config.MaxDaysBefore+1, model.ChannelEmail, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrDaysBefore)
}

func TestPerson_Validate(t *testing.T) {
	p := model.Person{
		DisplayName: "Alex",
		Birthday:    &model.Birthday{Day: 31, Month: 4},
	}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrBirthdayInvalid)

	p.Birthday = nil
	p.Reminders = make([]model.Reminder, config.MaxReminderSlots+1)
	err = p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrTooManyReminders)

	p.Reminders = []model.Reminder{{DaysBefore: 0}, {DaysBefore: 400}}
	err = p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrReminderSlot+" 1")
}

func TestPerson_CloneIsDeep(t *testing.T) {
	orig := model.Person{
		ID:       "p1",
		Birthday: &model.Birthday{Day: 1, Month: 1},
		Reminders: []model.Reminder{{
			Local: []model.LocalMethod{{Channel: model.ChannelAlarm, Enabled: true}},
		}},
	}
	c := orig.Clone()
	c.Birthday.Day = 2
	c.Reminders[0].Local[0].Enabled = false

	assert.Equal(t, 1, orig.Birthday.Day)
	assert.True(t, orig.Reminders[0].Local[0].Enabled)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Alex Martin", model.Person{GivenName: " Alex ", FamilyName: "Martin"}.FullName())
	assert.Equal(t, "Lexi", model.Person{DisplayName: "Lexi", GivenName: "Alex"}.FullName())
	assert.Equal(t, "Martin", model.Candidate{FamilyName: "Martin"}.FullName())
}

func TestPlanEntry_SameAs(t *testing.T) {
	key := model.Key{PersonID: "p1", Slot: 0, Channel: model.ChannelNotification}
	at := time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC)
	a := model.PlanEntry{Key: key, FireAt: at, Payload: model.LocalPayload{Name: "Alex", Vibrate: true}}

	b := a
	b.FireAt = at.In(time.FixedZone("X", 3600))
	assert.True(t, a.SameAs(b), "Same instant in another zone is the same entry")

	b.Payload = model.LocalPayload{Name: "Alex", Vibrate: false}
	assert.False(t, a.SameAs(b))

	b = a
	b.FireAt = at.Add(time.Minute)
	assert.False(t, a.SameAs(b))

	assert.Equal(t, "p1/0/notification", key.String())
	assert.Equal(t, model.KindLocal, a.Kind())
}
