package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// TestNextOccurrence verifies the core temporal logic of the application.
// It covers standard dates, boundaries (end of year), and leap year complexities.
func TestNextOccurrence(t *testing.T) {
	// Reference "Now": June 15th, 2025 (Non-Leap Year)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		birthday     model.Birthday
		expectedDate time.Time
		desc         string
	}{
		{
			name:         "Birthday in the past (this year)",
			birthday:     model.Birthday{Day: 1, Month: 1, Year: 1990},
			expectedDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			desc:         "Jan 1 is before June 15, so next occurrence is 2026",
		},
		{
			name:         "Birthday in the future (this year)",
			birthday:     model.Birthday{Day: 31, Month: 12, Year: 1990},
			expectedDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
			desc:         "Dec 31 is after June 15, so next occurrence is 2025",
		},
		{
			name:         "Birthday is Today",
			birthday:     model.Birthday{Day: 15, Month: 6, Year: 1990},
			expectedDate: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			desc:         "If birthday is today, it counts as the next occurrence",
		},
		{
			name:         "Year Unknown - Past",
			birthday:     model.Birthday{Day: 1, Month: 1},
			expectedDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			desc:         "Unknown year does not change the date logic",
		},
		{
			name:         "Leapling - Non-Leap Target Year (Feb 29 -> Feb 28)",
			birthday:     model.Birthday{Day: 29, Month: 2, Year: 2000},
			expectedDate: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
			desc:         "2026 has no Feb 29, the birthday falls back to Feb 28, never March 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := NextOccurrence(tt.birthday, now)
			assert.Equal(t, tt.expectedDate, next, tt.desc)
		})
	}
}

// TestNextOccurrence_LeapYearContext verifies behavior when the reference year is a leap year.
func TestNextOccurrence_LeapYearContext(t *testing.T) {
	// Reference "Now": Jan 1st, 2024 (Leap Year)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	leapling := model.Birthday{Day: 29, Month: 2}

	// In 2024, Feb 29 exists. It should be preserved.
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), NextOccurrence(leapling, now))

	// Feb 28th of a non-leap year is the leapling's day itself.
	feb28 := time.Date(2023, 2, 28, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), NextOccurrence(leapling, feb28))

	// March 1st of a non-leap year rolls to the next leap day.
	mar1 := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), NextOccurrence(leapling, mar1))
}

// TestNextOccurrence_WithinAYear sweeps a whole leap year of reference dates.
func TestNextOccurrence_WithinAYear(t *testing.T) {
	birthdays := []model.Birthday{
		{Day: 1, Month: 1},
		{Day: 29, Month: 2},
		{Day: 15, Month: 6},
		{Day: 31, Month: 12},
	}
	loc := time.FixedZone("UTC+9", 9*3600)
	ref := time.Date(2023, 12, 1, 23, 59, 0, 0, loc)

	for i := 0; i < 400; i++ {
		day := ref.AddDate(0, 0, i)
		today := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		for _, b := range birthdays {
			next := NextOccurrence(b, day)
			assert.False(t, next.Before(today), "%s on %s", b, day)
			assert.LessOrEqual(t, next.Sub(today), 366*24*time.Hour, "%s on %s", b, day)
			assert.Equal(t, loc, next.Location())
		}
	}
}

func TestShiftByDaysBefore(t *testing.T) {
	tests := []struct {
		name       string
		occurrence time.Time
		daysBefore int
		want       time.Time
	}{
		{"Same day", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), 0, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"Cross month", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), 3, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"Cross month leap", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"Cross year", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 7, time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC)},
		{"Full year", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), 365, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShiftByDaysBefore(tt.occurrence, tt.daysBefore))
		})
	}
}

func TestTriggerDate_NeverBeforeReference(t *testing.T) {
	b := model.Birthday{Day: 5, Month: 1}
	ref := time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC)
	occ := NextOccurrence(b, ref) // 2025-01-05

	// 3 days before lands on Jan 2, still ahead.
	trigger, o := TriggerDate(b, occ, 3, ref)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), trigger)
	assert.Equal(t, occ, o)

	// 10 days before would be Dec 26, already past: the 2026 occurrence is used.
	trigger, o = TriggerDate(b, occ, 10, ref)
	assert.Equal(t, time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC), trigger)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), o)

	// Trigger on the reference date itself is kept.
	trigger, _ = TriggerDate(b, occ, 6, ref)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), trigger)
}

func TestAgeAt(t *testing.T) {
	occ := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	age, ok := AgeAt(1990, occ)
	assert.True(t, ok)
	assert.Equal(t, 35, age)

	_, ok = AgeAt(0, occ)
	assert.False(t, ok, "Unknown year has no age")

	_, ok = AgeAt(2030, occ)
	assert.False(t, ok, "Not born yet")
}

func TestAtTimeOfDay(t *testing.T) {
	d := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC), atTimeOfDay(d, 9*60+30))
	assert.Equal(t, time.Date(2024, 6, 14, 23, 59, 0, 0, time.UTC), atTimeOfDay(d, 5000))
	assert.Equal(t, d, atTimeOfDay(d, -10))
}
